// Package messaging routes a message from its sender to the recipient's live
// connection after making it durable.
//
// The conversation store is the durability point: if Append fails nothing is
// pushed and Submit fails. A push that finds the recipient offline is not an
// error, the recipient reads the message on its next history pull.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/config"
	"raaibar/backend/internal/models"
	"raaibar/backend/internal/storage"
)

// Pusher delivers best-effort events to an identity's live connection.
type Pusher interface {
	Send(identity, event string, payload any) bool
}

// Gate decides whether two identities may chat. Without one, any identity
// may message any other.
type Gate interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

type Service struct {
	Store  storage.ConversationStore
	Pusher Pusher

	gate         Gate
	echoToSender bool
	clock        func() time.Time
	log          *slog.Logger
}

type Option func(*Service)

// WithGate makes Submit fail with apperr.ErrNotFriends unless g allows the pair.
func WithGate(g Gate) Option {
	return func(s *Service) { s.gate = g }
}

// WithSenderEcho also pushes every stored message back to its sender.
func WithSenderEcho(enabled bool) Option {
	return func(s *Service) { s.echoToSender = enabled }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func NewService(store storage.ConversationStore, pusher Pusher, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		Store:  store,
		Pusher: pusher,
		clock:  time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the service clock, used by callers that do not carry their own time.
func (s *Service) Now() time.Time { return s.clock() }

// Submit validates, persists and then pushes a message.
func (s *Service) Submit(ctx context.Context, sender, receiver, text string, now time.Time) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, apperr.ErrInvalidMessage
	}

	if s.gate != nil {
		ok, err := s.gate.AreFriends(ctx, sender, receiver)
		if err != nil {
			return models.Message{}, err
		}
		if !ok {
			return models.Message{}, apperr.ErrNotFriends
		}
	}

	msg, err := s.Store.Append(ctx, sender, receiver, text, now)
	if err != nil {
		if !errors.Is(err, apperr.ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %v", apperr.ErrStorageUnavailable, err)
		}
		s.log.Error("message not stored, nothing pushed", "sender", sender, "receiver", receiver, "error", err)
		return models.Message{}, err
	}

	if !s.Pusher.Send(receiver, models.EventReceiveMessage, msg) {
		s.log.Debug("recipient offline, message waits for pull", "id", msg.ID, "receiver", receiver)
	}
	if s.echoToSender && sender != receiver {
		s.Pusher.Send(sender, models.EventReceiveMessage, msg)
	}
	return msg, nil
}

// History returns the conversation of a and b, oldest first.
func (s *Service) History(ctx context.Context, a, b string) ([]models.Message, error) {
	return s.Store.History(ctx, a, b)
}

// SetTyping pushes display_typing or hide_typing to receiver. Nothing is
// stored; the result only says whether the push was handed over.
func (s *Service) SetTyping(sender, receiver string, isTyping bool) bool {
	event := models.EventHideTyping
	if isTyping {
		event = models.EventDisplayTyping
	}
	return s.Pusher.Send(receiver, event, models.TypingState{
		Sender:    sender,
		Receiver:  receiver,
		ExpiresAt: s.clock().Add(config.TypingTTL),
	})
}
