package chathub_test

import (
	"sync"

	"raaibar/backend/internal/models"
)

type MockClient struct {
	userID string
	connID string

	mu          sync.Mutex
	closed      bool
	full        bool
	RecvChannel chan models.Event
}

func newMockClient(userID, connID string) *MockClient {
	return &MockClient{
		userID:      userID,
		connID:      connID,
		RecvChannel: make(chan models.Event, 10),
	}
}

func (c *MockClient) GetUserID() string { return c.userID }
func (c *MockClient) GetConnID() string { return c.connID }

func (c *MockClient) Deliver(ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	c.RecvChannel <- ev
	return true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
