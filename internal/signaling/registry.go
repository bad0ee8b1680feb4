package signaling

import (
	"fmt"
	"sync"
)

// Registry tracks every live connection and the room it currently occupies.
// All methods are safe for concurrent use.
//
// Register, Unregister and SetRoom form a contract with the upgrade handler
// and the hub: a connection is registered exactly once, before any other
// operation names it. Unregister and SetRoom on an unknown id are therefore
// programming errors and panic rather than failing quietly.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client

	// membership maps connection id -> room id, "" while in the lobby.
	membership map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		clients:    make(map[string]*Client),
		membership: make(map[string]string),
	}
}

// Register adds a connection with no room membership.
// Registering the same id twice is a programming error.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ID]; ok {
		panic(fmt.Sprintf("signaling: connection %q registered twice", c.ID))
	}
	r.clients[c.ID] = c
	r.membership[c.ID] = ""
}

// Unregister removes the connection and returns the room id it occupied,
// "" when it never joined one. Both facts are removed atomically.
func (r *Registry) Unregister(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mustKnow(id)
	roomID := r.membership[id]
	delete(r.clients, id)
	delete(r.membership, id)
	return roomID
}

// SetRoom records room membership after a successful admission.
func (r *Registry) SetRoom(id, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mustKnow(id)
	r.membership[id] = roomID
}

// Room returns the room id the connection currently occupies, "" while it
// is in the lobby.
func (r *Registry) Room(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mustKnow(id)
	return r.membership[id]
}

// Get looks up a connection by id.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	return c, ok
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// mustKnow panics when id was never registered. Callers hold r.mu.
func (r *Registry) mustKnow(id string) {
	if _, ok := r.clients[id]; !ok {
		panic(fmt.Sprintf("signaling: unknown connection %q", id))
	}
}
