package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds concurrent read-only queries on one cluster. An
// exclusive holder acquires all of it.
const maxReaders = 1 << 16

// lockTable hands out one reader/writer lock per cluster. Acquisition
// honours context cancellation and is FIFO, so a waiting lifecycle
// operation is not starved by a stream of queries. A cluster's entry is
// dropped once nobody holds or waits for it.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*clusterLock
}

type clusterLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*clusterLock)}
}

func (t *lockTable) ref(clusterID string) *semaphore.Weighted {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[clusterID]
	if !ok {
		l = &clusterLock{sem: semaphore.NewWeighted(maxReaders)}
		t.locks[clusterID] = l
	}
	l.refs++
	return l.sem
}

func (t *lockTable) unref(clusterID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[clusterID]
	if !ok {
		return
	}
	l.refs--
	if l.refs == 0 {
		delete(t.locks, clusterID)
	}
}

// lock acquires exclusive access to a cluster.
func (t *lockTable) lock(ctx context.Context, clusterID string) (func(), error) {
	return t.acquire(ctx, clusterID, maxReaders)
}

// rlock acquires shared access to a cluster.
func (t *lockTable) rlock(ctx context.Context, clusterID string) (func(), error) {
	return t.acquire(ctx, clusterID, 1)
}

func (t *lockTable) acquire(ctx context.Context, clusterID string, n int64) (func(), error) {
	sem := t.ref(clusterID)
	if err := sem.Acquire(ctx, n); err != nil {
		t.unref(clusterID)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			sem.Release(n)
			t.unref(clusterID)
		})
	}, nil
}

// size returns the number of clusters with a live entry.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
