package uploader

import "sync"

// Registry tracks the live transport per upload key. At most one transport may
// exist per key: attempting to add a second returns the one already present so
// callers fall back to reusing it. The registry is plain instance state so
// tests can run isolated managers side by side.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]ChunkTransport
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]ChunkTransport)}
}

// Add registers t under uploadID. If a transport is already registered the
// existing one is returned and t is discarded.
func (r *Registry) Add(uploadID string, t ChunkTransport) (ChunkTransport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[uploadID]; ok {
		return existing, false
	}
	r.clients[uploadID] = t
	return t, true
}

func (r *Registry) Get(uploadID string) (ChunkTransport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.clients[uploadID]
	return t, ok
}

func (r *Registry) Remove(uploadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, uploadID)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
