package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/models"

	"github.com/dgraph-io/badger/v4"
)

var messageSeqKey = []byte("seq:messages")

// BadgerConversationStore is an embedded durable log.
// Keys are "msg:{pair}/{created_at_padded}/{id_padded}". A prefix scan over
// one pair yields its messages in creation order, and the id keeps two
// messages with the same timestamp in submission order.
type BadgerConversationStore struct {
	db     *badger.DB
	seq    *badger.Sequence
	log    *slog.Logger
	render TimeRenderer
}

func NewBadgerConversationStore(db *badger.DB, log *slog.Logger, render TimeRenderer) (*BadgerConversationStore, error) {
	seq, err := db.GetSequence(messageSeqKey, 128)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &BadgerConversationStore{db: db, seq: seq, log: log, render: render}, nil
}

// Close returns unused sequence leases. It does not close the database.
func (s *BadgerConversationStore) Close() error {
	return s.seq.Release()
}

func (s *BadgerConversationStore) Append(_ context.Context, sender, receiver, text string, now time.Time) (models.Message, error) {
	msg := s.render.newMessage(sender, receiver, text, now)

	// Badger sequences start at 0; ids start at 1 like the SQL store.
	n, err := s.seq.Next()
	if err != nil {
		return models.Message{}, apperr.Unavailable("append", err)
	}
	msg.ID = n + 1

	bytes, err := json.Marshal(msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("encode message: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), bytes)
	})
	if err != nil {
		s.log.Error("failed to append message", "sender", sender, "receiver", receiver, "error", err)
		return models.Message{}, apperr.Unavailable("append", err)
	}
	return msg, nil
}

func (s *BadgerConversationStore) History(_ context.Context, a, b string) ([]models.Message, error) {
	history := []models.Message{}
	prefix := pairPrefix(models.PairKey(a, b))

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg models.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			// PairKey is not serialized.
			msg.PairKey = models.PairKey(msg.Sender, msg.Receiver)
			history = append(history, msg)
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to load history", "a", a, "b", b, "error", err)
		return nil, apperr.Unavailable("history", err)
	}
	return history, nil
}

func pairPrefix(pairKey string) []byte {
	return []byte("msg:" + pairKey + "/")
}

// messageKey orders by seconds with the sign bit flipped, so times before
// 1970 sort first, then by nanosecond and id. Seconds cover every time.Time.
func messageKey(msg models.Message) []byte {
	secs := uint64(msg.CreatedAt.Unix()) ^ (1 << 63)
	return fmt.Appendf(pairPrefix(msg.PairKey), "%020d.%09d/%020d", secs, msg.CreatedAt.Nanosecond(), msg.ID)
}
