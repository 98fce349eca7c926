package realtime

import (
	"sync"
)

// Client is one live device channel as seen by the registry.
// Send must not block and reports whether the channel accepted the message.
type Client interface {
	Send(message []byte) bool
}

// Registry maps an account identity to the set of live clients declared under it.
// Empty sets are never retained.
type Registry struct {
	mu      sync.RWMutex
	clients map[Identity]map[Client]struct{}
}

// NewRegistry returns an empty registry. Construct one per process and pass it around.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[Identity]map[Client]struct{}),
	}
}

// Register adds client under identity. Registering the same pair twice is a no-op.
func (r *Registry) Register(identity Identity, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.clients[identity]
	if !ok {
		set = make(map[Client]struct{})
		r.clients[identity] = set
	}
	set[client] = struct{}{}
}

// Unregister removes client from identity and drops the identity once no clients remain.
func (r *Registry) Unregister(identity Identity, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.clients[identity]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(r.clients, identity)
	}
}

// Peers returns a copy of the clients currently registered under identity.
// Callers may send to the returned clients without holding any registry lock.
func (r *Registry) Peers(identity Identity) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.clients[identity]
	peers := make([]Client, 0, len(set))
	for c := range set {
		peers = append(peers, c)
	}
	return peers
}

// Stats reports how many identities and connections are registered.
func (r *Registry) Stats() (identities, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identities = len(r.clients)
	for _, set := range r.clients {
		connections += len(set)
	}
	return identities, connections
}
