package service

import (
	"context"
	"sync"
)

// keyedLocks hands out one mutex per key and forgets keys nobody holds.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{m: make(map[string]*lockEntry)}
}

// lock acquires the mutex for key and returns its release func.
func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.m[key]
	if !ok {
		e = &lockEntry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedLocks) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.m)
}

// keyedGroups counts in-flight work per key so a caller can wait for the
// work of one key only.
type keyedGroups struct {
	mu sync.Mutex
	m  map[string]*groupEntry
}

type groupEntry struct {
	n    int
	done chan struct{}
}

func newKeyedGroups() *keyedGroups {
	return &keyedGroups{m: make(map[string]*groupEntry)}
}

// add registers one unit of work for key and returns its done func.
func (g *keyedGroups) add(key string) func() {
	g.mu.Lock()
	e, ok := g.m[key]
	if !ok {
		e = &groupEntry{done: make(chan struct{})}
		g.m[key] = e
	}
	e.n++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			e.n--
			if e.n == 0 {
				delete(g.m, key)
				close(e.done)
			}
		})
	}
}

// wait blocks until no work is registered for key or ctx ends.
func (g *keyedGroups) wait(ctx context.Context, key string) error {
	g.mu.Lock()
	e, ok := g.m[key]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// generations hands out a per-key counter that Delete bumps. Work
// captured under an older generation is stale.
type generations struct {
	mu sync.Mutex
	m  map[string]uint64
}

func newGenerations() *generations {
	return &generations{m: make(map[string]uint64)}
}

func (g *generations) current(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.m[key]
}

func (g *generations) bump(key string) {
	g.mu.Lock()
	g.m[key]++
	g.mu.Unlock()
}
