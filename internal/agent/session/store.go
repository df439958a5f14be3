package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/pkg/utils"
)

const (
	lockAcquireTimeout = 5 * time.Second
	lockStaleAfter     = 30 * time.Second
)

var (
	ErrVersionConflict = errors.New("session entry version conflict")
	ErrNotFound        = errors.New("session entry not found")
)

// Store is a JSON file of session key -> Entry. Every mutation re-reads the
// file under an exclusive lock file, so concurrent processes see each other's
// writes.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("session store path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve session store path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create session store dir: %w", err)
	}
	return &Store{path: abs}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Load returns a snapshot of every entry.
func (s *Store) Load(ctx context.Context) (map[string]*Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	e, ok := entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return e, nil
}

// Resolve returns the entry for key, creating and persisting a fresh one
// when the key has never been seen. An existing entry has UpdatedAt moved to
// now so the pruner leaves it alone while the caller works with it; the
// version is unchanged.
func (s *Store) Resolve(ctx context.Context, key string, now time.Time) (entry *Entry, isNew bool, err error) {
	err = s.mutate(func(entries map[string]*Entry) (bool, error) {
		if existing, ok := entries[key]; ok {
			touched := now.After(existing.UpdatedAt)
			if touched {
				existing.UpdatedAt = now
			}
			entry = existing.Clone()
			return touched, nil
		}
		created := newEntry(now)
		entries[key] = created
		entry, isNew = created.Clone(), true
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	if isNew {
		logs.CtxDebug(ctx, "[session] created entry key=%s session_id=%s", key, entry.SessionID)
	}
	return entry, isNew, nil
}

// Commit replaces the stored entry for key when its version still equals
// next.Version, then bumps the version. The committed entry is returned.
func (s *Store) Commit(ctx context.Context, key string, next *Entry, now time.Time) (*Entry, error) {
	if next == nil {
		return nil, fmt.Errorf("session entry is nil")
	}

	var committed *Entry
	err := s.mutate(func(entries map[string]*Entry) (bool, error) {
		cur, ok := entries[key]
		switch {
		case !ok && next.Version != 0:
			return false, fmt.Errorf("%w: %s was removed", ErrVersionConflict, key)
		case ok && cur.Version != next.Version:
			return false, fmt.Errorf("%w: %s at version %d, have %d", ErrVersionConflict, key, cur.Version, next.Version)
		}
		committed = next.Clone()
		committed.Version = next.Version + 1
		committed.UpdatedAt = now
		entries[key] = committed
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	logs.CtxDebug(ctx, "[session] committed key=%s version=%d", key, committed.Version)
	return committed.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	return s.mutate(func(entries map[string]*Entry) (bool, error) {
		if _, ok := entries[key]; !ok {
			return false, nil
		}
		delete(entries, key)
		return true, nil
	})
}

// Prune removes entries not updated since before and returns their session ids.
func (s *Store) Prune(ctx context.Context, before time.Time) ([]string, error) {
	_ = ctx
	var removed []string
	err := s.mutate(func(entries map[string]*Entry) (bool, error) {
		for key, e := range entries {
			if e.UpdatedAt.Before(before) {
				removed = append(removed, e.SessionID)
				delete(entries, key)
			}
		}
		sort.Strings(removed)
		return len(removed) > 0, nil
	})
	return removed, err
}

func (s *Store) mutate(fn func(entries map[string]*Entry) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := utils.AcquireFileLock(s.path+".lock", lockAcquireTimeout, lockStaleAfter)
	if err != nil {
		return fmt.Errorf("lock session store: %w", err)
	}
	defer release()

	entries, err := s.read()
	if err != nil {
		return err
	}
	changed, err := fn(entries)
	if err != nil || !changed {
		return err
	}
	return s.write(entries)
}

func (s *Store) read() (map[string]*Entry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*Entry), nil
		}
		return nil, fmt.Errorf("read session store: %w", err)
	}
	entries := make(map[string]*Entry)
	if len(raw) == 0 {
		return entries, nil
	}
	if err := sonic.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse session store %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *Store) write(entries map[string]*Entry) error {
	raw, err := sonic.ConfigStd.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session store: %w", err)
	}
	if err := utils.WriteFileAtomic(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	return nil
}
