package storage

import (
	"context"
	"time"

	"raaibar/backend/internal/config"
	"raaibar/backend/internal/models"
)

// ConversationStore is the durable, append-only message log keyed by the
// unordered pair of participants. It never triggers delivery.
type ConversationStore interface {
	// Append stores a new message created at now and returns it with its id
	// and rendered time filled in. Text is stored as given.
	Append(ctx context.Context, sender, receiver, text string, now time.Time) (models.Message, error)
	// History returns every message between a and b, oldest first. No
	// messages is an empty slice, not an error.
	History(ctx context.Context, a, b string) ([]models.Message, error)
}

// GraphStore keeps one friend record per identity.
type GraphStore interface {
	// CreateIdentity adds an empty record; apperr.ErrIdentityExists if present.
	CreateIdentity(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)

	// GetFriends and GetPendingRequests return an empty set for an unknown identity.
	GetFriends(ctx context.Context, id string) ([]string, error)
	GetPendingRequests(ctx context.Context, id string) ([]string, error)

	// AddPendingRequest records from in to's pending set. It is a no-op when
	// from is already pending or already a friend of to.
	AddPendingRequest(ctx context.Context, from, to string) error
	// AcceptRequest turns a pending request into a friend edge on both
	// records at once and clears any pending entry between the two, in
	// either direction. apperr.ErrUnknownIdentity if either record is missing.
	AcceptRequest(ctx context.Context, id, requester string) error
	// RemovePendingRequest drops requester from id's pending set.
	RemovePendingRequest(ctx context.Context, id, requester string) error
}

// TimeRenderer precomputes Message.RenderedTime.
type TimeRenderer struct {
	Layout   string
	Location *time.Location
}

// DefaultRenderer renders in local time as "3:04 PM".
func DefaultRenderer() TimeRenderer {
	return TimeRenderer{Layout: config.DefaultTimeLayout, Location: time.Local}
}

func (r TimeRenderer) Render(t time.Time) string {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	layout := r.Layout
	if layout == "" {
		layout = config.DefaultTimeLayout
	}
	return t.In(loc).Format(layout)
}

func (r TimeRenderer) newMessage(sender, receiver, text string, now time.Time) models.Message {
	return models.Message{
		PairKey:      models.PairKey(sender, receiver),
		Sender:       sender,
		Receiver:     receiver,
		Text:         text,
		CreatedAt:    now,
		RenderedTime: r.Render(now),
	}
}
