package translate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// InFlight tracks which articles currently have a run in progress. With a
// lock directory the guard also holds one lock file per running article, so
// separate processes sharing the directory exclude each other.
type InFlight struct {
	mu      sync.Mutex
	lockDir string
	running map[int64]*flock.Flock
}

func NewInFlight() *InFlight {
	return &InFlight{running: map[int64]*flock.Flock{}}
}

// NewSharedInFlight guards runs across every process using lockDir.
func NewSharedInFlight(lockDir string) *InFlight {
	f := NewInFlight()
	f.lockDir = lockDir
	return f
}

// Acquire marks articleID as running. It returns false when a run for the
// same article is already in progress here or in another process.
func (f *InFlight) Acquire(articleID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.running[articleID]; ok {
		return false, nil
	}

	var lock *flock.Flock
	if f.lockDir != "" {
		if err := os.MkdirAll(f.lockDir, 0o755); err != nil {
			return false, fmt.Errorf("create lock directory %s: %w", f.lockDir, err)
		}
		lock = flock.New(filepath.Join(f.lockDir, fmt.Sprintf("translate-%d.lock", articleID)))
		locked, err := lock.TryLock()
		if err != nil {
			return false, fmt.Errorf("lock article %d: %w", articleID, err)
		}
		if !locked {
			return false, nil
		}
	}

	f.running[articleID] = lock
	return true, nil
}

func (f *InFlight) Release(articleID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lock := f.running[articleID]; lock != nil {
		_ = lock.Unlock()
	}
	delete(f.running, articleID)
}

func (f *InFlight) Running(articleID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.running[articleID]
	return ok
}
