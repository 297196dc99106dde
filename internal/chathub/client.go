package chathub

import (
	"context"

	"raaibar/backend/internal/models"
)

// Client is the interface for one live connection of an identity. It
// abstracts the transport so the router can hold WebSocket connections and
// test doubles uniformly.
type Client interface {
	// GetUserID returns the identity the connection was opened for.
	GetUserID() string
	// GetConnID distinguishes two sessions of the same identity.
	GetConnID() string

	// Deliver queues ev for the write pump without blocking. It reports false
	// when the client is closed or its buffer is full.
	Deliver(ev models.Event) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close stops the write pump. Safe to call more than once.
	Close()
}

// Dispatcher handles frames read off a client connection.
type Dispatcher interface {
	Dispatch(ctx context.Context, identity string, frame models.Frame)
}
