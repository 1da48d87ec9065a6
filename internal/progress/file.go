package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jorge-barreto/tome/internal/fsutil"
)

// FileStore keeps one JSON document per run in a directory.
type FileStore struct {
	dir   string
	now   func() time.Time
	locks sync.Map // runID -> *sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating progress dir %s: %w", dir, err)
	}
	o := buildOptions(opts)
	return &FileStore{dir: dir, now: o.now}, nil
}

func (s *FileStore) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

func (s *FileStore) lock(runID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(runID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *FileStore) load(runID string) (*Record, error) {
	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", runID, err)
	}
	return &r, nil
}

func (s *FileStore) save(r *Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path(r.WorkflowID), data, 0644)
}

// mutate runs fn on the stored record under the run's lock and persists the result.
func (s *FileStore) mutate(runID string, fn func(*Record, time.Time)) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	mu := s.lock(runID)
	mu.Lock()
	defer mu.Unlock()

	r, err := s.load(runID)
	if err != nil {
		return err
	}
	fn(r, s.now())
	return s.save(r)
}

func (s *FileStore) Initialize(_ context.Context, in Init) (*Record, error) {
	if err := validRunID(in.RunID); err != nil {
		return nil, err
	}
	mu := s.lock(in.RunID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(s.path(in.RunID)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, in.RunID)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	r := newRecord(in, s.now())
	if err := s.save(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *FileStore) Update(_ context.Context, runID string, u Update) error {
	return s.mutate(runID, func(r *Record, now time.Time) { applyUpdate(r, u, now) })
}

func (s *FileStore) Complete(_ context.Context, runID string) error {
	return s.mutate(runID, applyComplete)
}

func (s *FileStore) Fail(_ context.Context, runID, reason, message string) error {
	return s.mutate(runID, func(r *Record, now time.Time) { applyFail(r, reason, message, now) })
}

// Get reads without taking the writer lock; the rename in save makes every
// read a complete snapshot.
func (s *FileStore) Get(_ context.Context, runID string) (*Snapshot, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	r, err := s.load(runID)
	if err != nil {
		return nil, err
	}
	return derive(r, s.now()), nil
}

// List returns every record, newest first.
func (s *FileStore) List(_ context.Context) ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		r, err := s.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}
