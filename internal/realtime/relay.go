package realtime

import (
	"errors"
	"log/slog"
)

// ErrIdentityMismatch is returned by token verification when the token names another account.
var ErrIdentityMismatch = errors.New("token does not match declared identity")

// TokenVerifier resolves a bearer token to the identity it was issued for.
type TokenVerifier func(token string) (Identity, error)

// Option configures a Relay.
type Option func(*Relay)

// WithTokenVerifier requires every auth message to carry a token for the declared identity.
// Without it the declared identity is trusted as is.
func WithTokenVerifier(verify TokenVerifier) Option {
	return func(r *Relay) { r.verify = verify }
}

// Relay dispatches inbound realtime messages: auth declarations mutate the
// registry, event updates are fanned out to the sender's other devices.
type Relay struct {
	registry *Registry
	verify   TokenVerifier
}

func NewRelay(registry *Registry, opts ...Option) *Relay {
	r := &Relay{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry exposes the registry the relay writes to.
func (r *Relay) Registry() *Registry { return r.registry }

// Session is the relay's per-connection state. It is owned by the goroutine
// reading the connection and must not be shared.
type Session struct {
	id       string
	client   Client
	identity Identity
	closed   bool
}

// NewSession starts an unauthenticated session for client.
func NewSession(id string, client Client) *Session {
	return &Session{id: id, client: client}
}

// Identity returns the declared identity, or "" before a valid auth message.
func (s *Session) Identity() Identity { return s.identity }

// OnMessage handles one inbound frame. Malformed, unknown and unauthenticated
// messages are dropped without touching the registry.
func (r *Relay) OnMessage(s *Session, raw []byte) {
	if s.closed {
		return
	}
	env, err := ParseEnvelope(raw)
	if err != nil {
		slog.Debug("dropping malformed realtime message", "conn", s.id, "error", err)
		return
	}

	switch env.Type {
	case TypeAuth:
		r.authenticate(s, env)
	case TypeEventUpdate:
		if s.identity == "" {
			slog.Debug("dropping event_update before auth", "conn", s.id)
			return
		}
		sent := r.fanOut(s.identity, raw, s.client)
		if sent > 0 {
			slog.Debug("event_update relayed", "conn", s.id, "user", s.identity, "peers", sent)
		}
	default:
		slog.Debug("dropping realtime message", "conn", s.id, "type", env.Type)
	}
}

func (r *Relay) authenticate(s *Session, env Envelope) {
	identity, ok := ParseIdentity(env.UserID).Get()
	if !ok {
		slog.Debug("dropping auth without usable userId", "conn", s.id)
		return
	}
	if r.verify != nil {
		owner, err := r.verify(env.Token)
		if err == nil && owner != identity {
			err = ErrIdentityMismatch
		}
		if err != nil {
			slog.Warn("realtime auth rejected", "conn", s.id, "user", identity, "error", err)
			return
		}
	}

	if s.identity != "" && s.identity != identity {
		r.registry.Unregister(s.identity, s.client)
	}
	s.identity = identity
	r.registry.Register(identity, s.client)

	slog.Info("realtime client authenticated", "conn", s.id, "user", identity, "devices", len(r.registry.Peers(identity)))
}

// OnClose removes the session from the registry. Later calls are no-ops.
func (r *Relay) OnClose(s *Session) {
	if s.closed {
		return
	}
	s.closed = true
	if s.identity == "" {
		slog.Debug("realtime client closed before auth", "conn", s.id)
		return
	}
	r.registry.Unregister(s.identity, s.client)
	slog.Info("realtime client disconnected", "conn", s.id, "user", s.identity, "devices", len(r.registry.Peers(s.identity)))
}

// Notify sends payload to every live connection of identity and returns how many accepted it.
func (r *Relay) Notify(identity Identity, payload []byte) int {
	return r.fanOut(identity, payload, nil)
}

// fanOut sends to a snapshot of the identity's peers, skipping except.
// No registry lock is held while sending.
func (r *Relay) fanOut(identity Identity, payload []byte, except Client) int {
	sent := 0
	for _, peer := range r.registry.Peers(identity) {
		if except != nil && peer == except {
			continue
		}
		if peer.Send(payload) {
			sent++
		}
	}
	return sent
}

