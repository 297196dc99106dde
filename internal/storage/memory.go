package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/models"
)

// MemoryConversationStore keeps the log in process memory. Used by tests and
// by single-process deployments that accept losing history on restart.
type MemoryConversationStore struct {
	mu     sync.RWMutex
	nextID uint64
	pairs  map[string][]models.Message
	render TimeRenderer
}

func NewMemoryConversationStore(render TimeRenderer) *MemoryConversationStore {
	return &MemoryConversationStore{
		pairs:  make(map[string][]models.Message),
		render: render,
	}
}

func (s *MemoryConversationStore) Append(_ context.Context, sender, receiver, text string, now time.Time) (models.Message, error) {
	msg := s.render.newMessage(sender, receiver, text, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg.ID = s.nextID

	log := s.pairs[msg.PairKey]
	// Insert after every message created at or before now so equal timestamps keep submission order.
	i := sort.Search(len(log), func(i int) bool { return log[i].CreatedAt.After(now) })
	s.pairs[msg.PairKey] = slices.Insert(log, i, msg)
	return msg, nil
}

func (s *MemoryConversationStore) History(_ context.Context, a, b string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.pairs[models.PairKey(a, b)]
	out := make([]models.Message, len(log))
	copy(out, log)
	return out, nil
}

// MemoryGraphStore keeps friend records in process memory. A single lock
// covers every record, so an accept is never observed half applied.
type MemoryGraphStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{users: make(map[string]*models.User)}
}

func (s *MemoryGraphStore) CreateIdentity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; ok {
		return apperr.ErrIdentityExists
	}
	user := models.NewUser(id)
	user.CreatedAt = time.Now()
	s.users[id] = user
	return nil
}

func (s *MemoryGraphStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *MemoryGraphStore) GetFriends(_ context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return sorted(u.Friends), nil
	}
	return []string{}, nil
}

func (s *MemoryGraphStore) GetPendingRequests(_ context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return sorted(u.PendingRequests), nil
	}
	return []string{}, nil
}

func (s *MemoryGraphStore) AddPendingRequest(_ context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.users[to]
	if !ok {
		return apperr.ErrUnknownIdentity
	}
	target.AddPending(from)
	return nil
}

func (s *MemoryGraphStore) AcceptRequest(_ context.Context, id, requester string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return apperr.ErrUnknownIdentity
	}
	other, ok := s.users[requester]
	if !ok {
		return apperr.ErrUnknownIdentity
	}
	linkUsers(user, other)
	return nil
}

func (s *MemoryGraphStore) RemovePendingRequest(_ context.Context, id, requester string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.RemovePending(requester)
	}
	return nil
}

// linkUsers applies an accepted request to both records.
func linkUsers(user, other *models.User) {
	user.RemovePending(other.ID)
	other.RemovePending(user.ID)
	user.AddFriend(other.ID)
	other.AddFriend(user.ID)
}

func sorted(ids []string) []string {
	out := slices.Clone(ids)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return out
}
