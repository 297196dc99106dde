package models

import (
	"fmt"
	"time"
)

// Message is one durable entry of a conversation. Once stored it is never
// edited or deleted.
type Message struct {
	// ID is assigned by the store, grows with creation order and is never reused.
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	// PairKey is the canonical key of the unordered {Sender, Receiver} pair.
	PairKey  string `gorm:"type:text;not null;index:idx_pair_created,priority:1" json:"-"`
	Sender   string `gorm:"type:text;not null" json:"sender"`
	Receiver string `gorm:"type:text;not null" json:"receiver"`
	Text     string `gorm:"type:text;not null" json:"text"`
	// CreatedAt is the authoritative ordering key of a conversation.
	CreatedAt time.Time `gorm:"not null;index:idx_pair_created,priority:2" json:"createdAt"`
	// RenderedTime is derived from CreatedAt at write time and never recomputed.
	RenderedTime string `gorm:"type:text;not null" json:"renderedTime"`
}

// PairKey returns the same key for (a, b) and (b, a). Each identity is
// length-prefixed so no two distinct pairs share a key, whatever bytes the
// identities contain.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%s%d:%s", len(a), a, len(b), b)
}

// Involves reports whether the message belongs to the conversation of a and b.
func (m Message) Involves(a, b string) bool {
	return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
}
