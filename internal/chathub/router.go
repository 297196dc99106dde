package chathub

import (
	"log/slog"
	"sync"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/models"
)

// Router maps each online identity to its single live connection ("room" =
// one identity's inbox). Delivery is fire-and-forget: an absent or slow
// recipient is dropped and catches up through a history pull.
type Router struct {
	mu      sync.RWMutex
	clients map[string]Client
	log     *slog.Logger
}

func NewRouter(log *slog.Logger) *Router {
	return &Router{
		clients: make(map[string]Client),
		log:     log,
	}
}

// Join binds identity to c. A previous binding is told it was replaced and
// closed; the last join wins.
func (r *Router) Join(identity string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.clients[identity]
	r.clients[identity] = c
	r.log.Info("client joined", "identity", identity, "conn", c.GetConnID())

	if ok && old.GetConnID() != c.GetConnID() {
		old.Deliver(models.Event{Name: models.EventSessionReplaced})
		old.Close()
		r.log.Info("previous session replaced", "identity", identity, "conn", old.GetConnID())
	}
}

// Leave removes the binding only if it still points at c, so a stale leave
// cannot drop a newer session. It reports whether a binding was removed.
func (r *Router) Leave(identity string, c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.clients[identity]
	if !ok || current.GetConnID() != c.GetConnID() {
		return false
	}
	delete(r.clients, identity)
	c.Close()
	r.log.Info("client left", "identity", identity, "conn", c.GetConnID())
	return true
}

// Send pushes payload tagged with event to identity's live connection and
// reports whether it was handed over.
func (r *Router) Send(identity, event string, payload any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[identity]
	if !ok {
		r.log.Debug(apperr.ErrPushUndelivered.Error(), "identity", identity, "event", event)
		return false
	}
	if !c.Deliver(models.Event{Name: event, Payload: payload}) {
		r.log.Warn("push dropped, client buffer full or closed", "identity", identity, "event", event)
		return false
	}
	return true
}

func (r *Router) Online(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[identity]
	return ok
}

func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll drops every binding. Used on shutdown.
func (r *Router) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for identity, c := range r.clients {
		c.Close()
		delete(r.clients, identity)
	}
}
