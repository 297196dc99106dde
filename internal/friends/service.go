// Package friends implements the request / accept workflow over a GraphStore.
package friends

import (
	"context"
	"log/slog"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/models"
	"raaibar/backend/internal/storage"

	"github.com/samber/lo"
)

// Notifier pushes best-effort friend events. Optional.
type Notifier interface {
	Send(identity, event string, payload any) bool
}

// Service handles the business logic for friend requests.
type Service struct {
	Store    storage.GraphStore
	Notifier Notifier
	log      *slog.Logger
}

func NewService(store storage.GraphStore, notifier Notifier, log *slog.Logger) *Service {
	return &Service{Store: store, Notifier: notifier, log: log}
}

// Register creates the record for a new identity.
func (s *Service) Register(ctx context.Context, id string) error {
	if err := s.Store.CreateIdentity(ctx, id); err != nil {
		return err
	}
	s.log.Info("identity registered", "identity", id)
	return nil
}

// SendRequest asks to to accept from as a friend. A request that was ignored
// before may be sent again.
func (s *Service) SendRequest(ctx context.Context, from, to string) error {
	if from == to {
		return apperr.ErrSelfRequest
	}
	ok, err := s.Store.Exists(ctx, to)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrUnknownIdentity
	}

	pending, err := s.Store.GetPendingRequests(ctx, to)
	if err != nil {
		return err
	}
	friends, err := s.Store.GetFriends(ctx, to)
	if err != nil {
		return err
	}
	if lo.Contains(pending, from) || lo.Contains(friends, from) {
		return apperr.ErrAlreadyConnected
	}

	if err := s.Store.AddPendingRequest(ctx, from, to); err != nil {
		return err
	}
	s.log.Info("friend request sent", "from", from, "to", to)
	s.notify(to, models.EventFriendRequest, from)
	return nil
}

// Accept confirms requester's pending request on id. Accepting an existing
// friendship again succeeds without change.
func (s *Service) Accept(ctx context.Context, id, requester string) error {
	if id == requester {
		return apperr.ErrSelfRequest
	}
	for _, who := range []string{id, requester} {
		ok, err := s.Store.Exists(ctx, who)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrUnknownIdentity
		}
	}

	pending, err := s.Store.GetPendingRequests(ctx, id)
	if err != nil {
		return err
	}
	friends, err := s.Store.GetFriends(ctx, id)
	if err != nil {
		return err
	}
	alreadyFriends := lo.Contains(friends, requester)
	if !lo.Contains(pending, requester) && !alreadyFriends {
		return apperr.ErrNoPendingRequest
	}

	if err := s.Store.AcceptRequest(ctx, id, requester); err != nil {
		return err
	}
	if !alreadyFriends {
		s.log.Info("friend request accepted", "identity", id, "requester", requester)
		s.notify(requester, models.EventFriendAccepted, id)
	}
	return nil
}

// Decline drops requester's pending request on id. Nothing remembers the
// decline, so requester may ask again.
func (s *Service) Decline(ctx context.Context, id, requester string) error {
	return s.Store.RemovePendingRequest(ctx, id, requester)
}

func (s *Service) ListFriends(ctx context.Context, id string) ([]string, error) {
	return s.Store.GetFriends(ctx, id)
}

func (s *Service) ListPendingRequests(ctx context.Context, id string) ([]string, error) {
	return s.Store.GetPendingRequests(ctx, id)
}

// AreFriends reports whether a and b share a confirmed edge. It lets the
// messaging service require friendship when configured to.
func (s *Service) AreFriends(ctx context.Context, a, b string) (bool, error) {
	friends, err := s.Store.GetFriends(ctx, a)
	if err != nil {
		return false, err
	}
	return lo.Contains(friends, b), nil
}

func (s *Service) notify(identity, event, from string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Send(identity, event, models.FriendNotice{From: from})
}
