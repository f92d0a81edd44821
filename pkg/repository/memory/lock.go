package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// keyLocks is a table of per-key mutexes. Entries are created on demand and
// dropped when nobody holds or waits for them.
type keyLocks struct {
	mu      sync.Mutex
	entries map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{entries: make(map[string]*keyLock)}
}

func (l *keyLocks) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &keyLock{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, e)
		return goerr.Wrap(ctx.Err(), "lock wait canceled", goerr.V("key", key))
	}
}

func (l *keyLocks) release(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-e.ch
	l.drop(key, e)
}

func (l *keyLocks) drop(key string, e *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func approvalKey(id string) string {
	return "approval/" + id
}

func vulnerabilityKey(id string) string {
	return "vulnerability/" + id
}
