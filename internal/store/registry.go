package store

import (
	"container/list"
	"context"
	"sync"
)

// entry is a registry slot. ready is closed once the load finishes; ws and
// err are not read before that.
type entry struct {
	id    WorkspaceID
	ws    *workspace
	err   error
	ready chan struct{}
	refs  int
	elem  *list.Element // nil until loaded
}

// registry holds resident workspaces. At most capacity loaded entries are
// kept when they are unpinned; capacity 0 means no limit. Entries with refs
// > 0 are pinned and never evicted.
type registry struct {
	capacity int
	load     func(ctx context.Context, id WorkspaceID) (*workspace, error)
	onEvict  func(ws *workspace)

	mu      sync.Mutex
	entries map[WorkspaceID]*entry
	lru     *list.List // front is most recently used
	closed  bool
}

func newRegistry(capacity int, load func(context.Context, WorkspaceID) (*workspace, error), onEvict func(*workspace)) *registry {
	return &registry{
		capacity: capacity,
		load:     load,
		onEvict:  onEvict,
		entries:  make(map[WorkspaceID]*entry),
		lru:      list.New(),
	}
}

// acquire returns the workspace for id, loading it if needed, pinned until
// release is called. Only one load per id runs at a time; other callers wait
// for it and may give up when ctx ends. A failed load is not kept.
func (r *registry) acquire(ctx context.Context, id WorkspaceID) (*workspace, func(), error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, nil, ErrClosed
	}
	e, ok := r.entries[id]
	if ok {
		e.refs++
		if e.elem != nil {
			r.lru.MoveToFront(e.elem)
		}
		r.mu.Unlock()

		select {
		case <-e.ready:
		case <-ctx.Done():
			r.release(e)
			return nil, nil, ctx.Err()
		}
		if e.err != nil {
			r.release(e)
			return nil, nil, e.err
		}
		return e.ws, r.releaseFunc(e), nil
	}

	e = &entry{id: id, ready: make(chan struct{}), refs: 1}
	r.entries[id] = e
	r.mu.Unlock()

	ws, err := r.load(context.WithoutCancel(ctx), id)

	r.mu.Lock()
	if err != nil {
		e.err = err
		delete(r.entries, id)
		close(e.ready)
		r.mu.Unlock()
		return nil, nil, err
	}
	e.ws = ws
	e.elem = r.lru.PushFront(e)
	close(e.ready)
	evicted := r.evictLocked()
	loadedWorkspaces.Set(float64(r.lru.Len()))
	r.mu.Unlock()

	r.closeEvicted(evicted)
	return ws, r.releaseFunc(e), nil
}

func (r *registry) releaseFunc(e *entry) func() {
	var once sync.Once
	return func() { once.Do(func() { r.release(e) }) }
}

func (r *registry) release(e *entry) {
	r.mu.Lock()
	e.refs--
	evicted := r.evictLocked()
	loadedWorkspaces.Set(float64(r.lru.Len()))
	r.mu.Unlock()
	r.closeEvicted(evicted)
}

// evictLocked drops unpinned loaded entries, least recently used first, until
// the registry is within capacity. Callers hold r.mu.
func (r *registry) evictLocked() []*workspace {
	if r.capacity <= 0 || r.closed {
		return nil
	}
	var out []*workspace
	for el := r.lru.Back(); el != nil && r.lru.Len() > r.capacity; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if e.refs == 0 {
			r.lru.Remove(el)
			delete(r.entries, e.id)
			out = append(out, e.ws)
		}
		el = prev
	}
	return out
}

func (r *registry) closeEvicted(ws []*workspace) {
	for _, w := range ws {
		evictions.Inc()
		if r.onEvict != nil {
			r.onEvict(w)
		}
	}
}

// loaded returns the ids of resident workspaces, most recently used first.
func (r *registry) loaded() []WorkspaceID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]WorkspaceID, 0, r.lru.Len())
	for el := r.lru.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(*entry).id)
	}
	return ids
}

// close marks the registry closed and returns every loaded workspace.
func (r *registry) close() []*workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	out := make([]*workspace, 0, r.lru.Len())
	for el := r.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).ws)
	}
	r.lru.Init()
	r.entries = make(map[WorkspaceID]*entry)
	loadedWorkspaces.Set(0)
	return out
}
