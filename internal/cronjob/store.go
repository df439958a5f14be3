package cronjob

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/gg/gmap"
	"github.com/bytedance/sonic"

	"github.com/tgifai/cronturn/internal/pkg/utils"
)

const storeVersion = 1

type storeFile struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}

// Store provides thread-safe persistence of cron jobs to a JSON file.
type Store struct {
	path string
	jobs map[string]Job // keyed by Job.ID
	mu   sync.RWMutex

	saveMu sync.Mutex // orders snapshot and write across concurrent savers
}

// NewStore creates a Store backed by the given file path.
// If the file does not exist it will be created on the first Save.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		jobs: make(map[string]Job),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads persisted jobs from disk. It is safe to call on a missing file.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read store file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var file storeFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("unmarshal store: %w", err)
	}

	s.jobs = make(map[string]Job, len(file.Jobs))
	for _, j := range file.Jobs {
		s.jobs[j.ID] = j
	}
	return nil
}

// Save writes all jobs to disk atomically, ordered by id.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	file := storeFile{Version: storeVersion, Jobs: s.List()}
	data, err := sonic.ConfigStd.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return utils.WriteFileAtomic(s.path, data, 0o644)
}

// Add inserts a new job. Returns an error if the ID already exists.
func (s *Store) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// Update replaces an existing job by ID. It reports false when the job was
// removed in the meantime, leaving the store unchanged.
func (s *Store) Update(job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return false
	}
	job.UpdatedAtMs = time.Now().UnixMilli()
	s.jobs[job.ID] = job
	return true
}

func (s *Store) Remove(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobID]
	delete(s.jobs, jobID)
	return ok
}

func (s *Store) Get(jobID string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	return j, ok
}

// List returns all jobs ordered by id.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := gmap.ToSlice(s.jobs, func(_ string, j Job) Job { return j })
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// ListDue returns enabled jobs whose next run is at or before now.
func (s *Store) ListDue(now time.Time) []Job {
	nowMs := now.UnixMilli()
	var due []Job
	for _, j := range s.List() {
		if !j.Enabled || j.State.NextRunAtMs == 0 {
			continue
		}
		if j.State.NextRunAtMs <= nowMs {
			due = append(due, j)
		}
	}
	return due
}
