package realtime

// has tells an absent identity apart from an empty one.
func (r *Registry) has(identity Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[identity]
	return ok
}
