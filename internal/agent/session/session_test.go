package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRoundTrip(t *testing.T) {
	k := NewKey("main", "discord", "channel:thread-123")
	assert.Equal(t, "agent:main:discord:channel:thread-123", k.String())

	parsed, err := ParseKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	rebound := k.Rebind("channel:other")
	assert.Equal(t, "agent:main:discord:channel:other", rebound.String())
	assert.Equal(t, "channel:thread-123", k.Address)
}

func TestParseKeyInvalid(t *testing.T) {
	for _, raw := range []string{"cron:job1", "agent:main:discord", "agent::discord:x", "session:a:b:c"} {
		_, err := ParseKey(raw)
		assert.Error(t, err, raw)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "sessions", "sessions.json"))
	require.NoError(t, err)
	return s
}

func TestResolveCreatesOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Unix(1700000000, 0).UTC()

	first, isNew, err := s.Resolve(ctx, "agent:main:discord:channel:1", now)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, first.SessionID)
	assert.Equal(t, uint64(1), first.Version)
	assert.False(t, first.SystemSent)

	second, isNew, err := s.Resolve(ctx, "agent:main:discord:channel:1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.SessionID, second.SessionID)

	reopened, err := NewStore(s.Path())
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "agent:main:discord:channel:1")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, got.SessionID)
}

func TestResolveKeepsIdleEntryFromPrune(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	_, _, err := s.Resolve(ctx, "idle", now.Add(-48*time.Hour))
	require.NoError(t, err)

	entry, isNew, err := s.Resolve(ctx, "idle", now)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.True(t, entry.UpdatedAt.Equal(now))
	assert.Equal(t, uint64(1), entry.Version)

	removed, err := s.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, removed)

	committed, err := s.Commit(ctx, "idle", entry, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), committed.Version)
}

func TestCommitCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	entry, _, err := s.Resolve(ctx, "k", now)
	require.NoError(t, err)

	stale := entry.Clone()
	entry.SystemSent = true
	entry.LastModel = "gpt-4o-mini"
	committed, err := s.Commit(ctx, "k", entry, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), committed.Version)

	stale.LastModel = "other"
	_, err = s.Commit(ctx, "k", stale, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionConflict))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, got.SystemSent)
	assert.Equal(t, "gpt-4o-mini", got.LastModel)
}

func TestCommitAfterDeleteConflicts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	entry, _, err := s.Resolve(ctx, "k", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "k"))

	_, err = s.Commit(ctx, "k", entry, time.Now())
	assert.True(t, errors.Is(err, ErrVersionConflict))

	_, err = s.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, _, err := s.Resolve(ctx, "same", time.Now())
			if err == nil {
				ids[i] = e.SessionID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestReadCorruptStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))
	_, _, err := s.Resolve(context.Background(), "k", time.Now())
	require.Error(t, err)
}

func TestTranscriptsAppendLoad(t *testing.T) {
	ctx := context.Background()
	tr, err := NewTranscripts(t.TempDir())
	require.NoError(t, err)

	msgs, err := tr.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, tr.Append(ctx, "sid", schema.UserMessage("hi"), schema.AssistantMessage("hello", nil)))
	require.NoError(t, tr.Append(ctx, "sid", schema.UserMessage("again")))

	msgs, err = tr.Load(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Equal(t, "again", msgs[2].Content)

	require.NoError(t, tr.Delete(ctx, "sid"))
	msgs, err = tr.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTranscriptsCompactKeepsTail(t *testing.T) {
	ctx := context.Background()
	tr, err := NewTranscripts(t.TempDir())
	require.NoError(t, err)
	tr.keepMessages = 2
	tr.compactMaxSize = 1

	require.NoError(t, tr.Append(ctx, "sid",
		schema.UserMessage("a"),
		schema.ToolMessage("result", "call-1"),
		schema.UserMessage("b"),
	))

	raw, err := os.ReadFile(tr.file("sid"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"a"`)

	msgs, err := tr.Load(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "b", msgs[0].Content)
}

func TestTranscriptsOversizedToolResult(t *testing.T) {
	ctx := context.Background()
	tr, err := NewTranscripts(t.TempDir())
	require.NoError(t, err)

	huge := strings.Repeat("x", 4*1024*1024+1)
	require.NoError(t, tr.Append(ctx, "sid",
		schema.UserMessage("fetch it"),
		schema.ToolMessage(huge, "call-1"),
	))
	require.NoError(t, tr.Append(ctx, "sid", schema.AssistantMessage("done", nil)))

	msgs, err := tr.Load(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.Tool, msgs[1].Role)
	assert.LessOrEqual(t, len(msgs[1].Content), maxRecordContent+3)
	assert.Equal(t, "done", msgs[2].Content)
}

func TestTranscriptsSkipsBadLines(t *testing.T) {
	ctx := context.Background()
	tr, err := NewTranscripts(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, tr.Append(ctx, "sid", schema.UserMessage("first")))
	f, err := os.OpenFile(tr.file("sid"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n" + strings.Repeat("y", maxRecordLine+1) + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, tr.Append(ctx, "sid", schema.UserMessage("second")))

	msgs, err := tr.Load(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestPruneOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tr, err := NewTranscripts(t.TempDir())
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	stale, _, err := s.Resolve(ctx, "old", old)
	require.NoError(t, err)
	require.NoError(t, tr.Append(ctx, stale.SessionID, schema.UserMessage("x")))
	_, _, err = s.Resolve(ctx, "fresh", time.Now())
	require.NoError(t, err)

	n, err := PruneOnce(ctx, s, tr, 24*time.Hour, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	_, statErr := os.Stat(tr.file(stale.SessionID))
	assert.True(t, os.IsNotExist(statErr))
}
