package server

import "sync"

// Handle identifies one viewer connection. Handles are never reused, so a
// queued action holding a removed handle simply finds nothing.
type Handle uint64

// registry is the single owner of live peers.
type registry struct {
	mu    sync.RWMutex
	peers map[Handle]*peer
}

func newRegistry() *registry {
	return &registry{peers: make(map[Handle]*peer)}
}

func (r *registry) add(p *peer) {
	r.mu.Lock()
	r.peers[p.handle] = p
	r.mu.Unlock()
}

// remove deletes h and returns its peer, or nil if h is not present.
func (r *registry) remove(h Handle) *peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[h]
	if !ok {
		return nil
	}
	delete(r.peers, h)
	return p
}

func (r *registry) get(h Handle) (*peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[h]
	return p, ok
}

// snapshot returns the current peers. Callers write to them without holding
// the registry lock.
func (r *registry) snapshot() []*peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// drain removes and returns every peer.
func (r *registry) drain() []*peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*peer, 0, len(r.peers))
	for h, p := range r.peers {
		out = append(out, p)
		delete(r.peers, h)
	}
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
