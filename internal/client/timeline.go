// Package client implements the client side of message reconciliation: a
// Timeline holding one conversation as the user sees it, and a Syncer that
// keeps it converged with the server over HTTP pulls and websocket pushes.
package client

import (
	"slices"
	"sync"
	"time"

	"raaibar/backend/internal/models"
	"raaibar/backend/internal/storage"
)

// Timeline is the visible conversation between Me and Peer.
//
// Optimistic messages (ID 0) and pushed messages are shown until the next
// full pull, which replaces everything. Pushes carrying an id already shown
// are dropped, and an echo of Me's own message takes the place of its
// optimistic copy, so a sender echo never shows a message twice.
type Timeline struct {
	Me   string
	Peer string

	mu          sync.Mutex
	messages    []models.Message
	typingUntil time.Time
	render      storage.TimeRenderer
}

func NewTimeline(me, peer string, render storage.TimeRenderer) *Timeline {
	return &Timeline{Me: me, Peer: peer, render: render}
}

// AddOptimistic shows text as sent at now before the server confirms it.
func (t *Timeline) AddOptimistic(text string, now time.Time) models.Message {
	msg := models.Message{
		PairKey:      models.PairKey(t.Me, t.Peer),
		Sender:       t.Me,
		Receiver:     t.Peer,
		Text:         text,
		CreatedAt:    now,
		RenderedTime: t.render.Render(now),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	return msg
}

// ApplyPush shows a pushed message of this conversation. It reports
// whether the visible list changed.
func (t *Timeline) ApplyPush(msg models.Message) bool {
	if !msg.Involves(t.Me, t.Peer) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.ID != 0 && slices.ContainsFunc(t.messages, func(m models.Message) bool { return m.ID == msg.ID }) {
		return false
	}
	if msg.Sender == t.Me {
		i := slices.IndexFunc(t.messages, func(m models.Message) bool {
			return m.ID == 0 && m.Sender == t.Me && m.Text == msg.Text
		})
		if i >= 0 {
			t.messages[i] = msg
			return true
		}
	}
	t.messages = append(t.messages, msg)
	if msg.Sender == t.Peer {
		t.typingUntil = time.Time{}
	}
	return true
}

// Replace swaps the whole view for an authoritative history.
func (t *Timeline) Replace(history []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = slices.Clone(history)
}

// Messages returns a copy of the visible list.
func (t *Timeline) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.messages)
}

// ApplyTyping records a display_typing or hide_typing push from Peer.
func (t *Timeline) ApplyTyping(event string, state models.TypingState) {
	if state.Sender != t.Peer || state.Receiver != t.Me {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if event == models.EventDisplayTyping {
		t.typingUntil = state.ExpiresAt
		return
	}
	t.typingUntil = time.Time{}
}

// PeerTyping reports whether the indicator should show at now. It clears
// itself at the pushed expiry even when hide_typing is lost.
func (t *Timeline) PeerTyping(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return now.Before(t.typingUntil)
}
