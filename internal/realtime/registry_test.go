package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	name     string
	mu       sync.Mutex
	received [][]byte
	closed   bool
}

func (m *mockClient) Send(message []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.received = append(m.received, message)
	return true
}

func (m *mockClient) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockClient) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.received...)
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := &mockClient{name: "a"}

	r.Register("7", a)
	r.Register("7", a)

	peers := r.Peers("7")
	require.Len(t, peers, 1)
	assert.Same(t, a, peers[0])
}

func TestRegistry_UnregisterRemovesEmptyIdentity(t *testing.T) {
	r := NewRegistry()
	a := &mockClient{name: "a"}
	b := &mockClient{name: "b"}

	r.Register("7", a)
	r.Register("7", b)
	r.Unregister("7", a)
	require.True(t, r.has("7"))
	assert.Len(t, r.Peers("7"), 1)

	r.Unregister("7", b)
	assert.False(t, r.has("7"))
	assert.Empty(t, r.Peers("7"))

	identities, connections := r.Stats()
	assert.Zero(t, identities)
	assert.Zero(t, connections)
}

func TestRegistry_UnregisterTwiceIsNoop(t *testing.T) {
	r := NewRegistry()
	a := &mockClient{name: "a"}
	b := &mockClient{name: "b"}
	r.Register("7", a)
	r.Register("7", b)

	r.Unregister("7", a)
	r.Unregister("7", a)
	assert.Len(t, r.Peers("7"), 1)

	// never-registered pairs
	r.Unregister("8", a)
	r.Unregister("7", &mockClient{name: "stranger"})
	assert.Len(t, r.Peers("7"), 1)
	assert.False(t, r.has("8"))
}

func TestRegistry_PeersIsSnapshot(t *testing.T) {
	r := NewRegistry()
	a := &mockClient{name: "a"}
	b := &mockClient{name: "b"}
	r.Register("7", a)

	peers := r.Peers("7")
	r.Register("7", b)
	r.Unregister("7", a)

	require.Len(t, peers, 1)
	assert.Same(t, a, peers[0])
}

func TestRegistry_CrossIdentityIsolation(t *testing.T) {
	r := NewRegistry()
	a := &mockClient{name: "a"}
	b := &mockClient{name: "b"}
	r.Register("u", a)
	r.Register("v", b)

	assert.Equal(t, []Client{a}, r.Peers("u"))
	assert.Equal(t, []Client{b}, r.Peers("v"))

	identities, connections := r.Stats()
	assert.Equal(t, 2, identities)
	assert.Equal(t, 2, connections)
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	const identities = 20
	const perIdentity = 25

	clients := make([][]*mockClient, identities)
	for i := range clients {
		clients[i] = make([]*mockClient, perIdentity)
		for j := range clients[i] {
			clients[i][j] = &mockClient{name: fmt.Sprintf("%d-%d", i, j)}
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < identities; i++ {
		for j := 0; j < perIdentity; j++ {
			wg.Add(1)
			go func(id Identity, c *mockClient) {
				defer wg.Done()
				for k := 0; k < 50; k++ {
					r.Register(id, c)
					_ = r.Peers(id)
					r.Unregister(id, c)
				}
				r.Register(id, c)
			}(Identity(fmt.Sprint(i)), clients[i][j])
		}
	}
	wg.Wait()

	for i := 0; i < identities; i++ {
		assert.Len(t, r.Peers(Identity(fmt.Sprint(i))), perIdentity)
	}

	// drain everything concurrently; nothing may be left behind
	for i := 0; i < identities; i++ {
		for j := 0; j < perIdentity; j++ {
			wg.Add(1)
			go func(id Identity, c *mockClient) {
				defer wg.Done()
				r.Unregister(id, c)
				r.Unregister(id, c)
			}(Identity(fmt.Sprint(i)), clients[i][j])
		}
	}
	wg.Wait()

	ids, conns := r.Stats()
	assert.Zero(t, ids)
	assert.Zero(t, conns)
}
