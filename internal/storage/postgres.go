package storage

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate creates the messages and users tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Message{}, &models.User{})
}

// PostgresConversationStore stores messages in PostgreSQL. Ids come from the
// table sequence, so they follow insertion order.
type PostgresConversationStore struct {
	DB     *gorm.DB
	log    *slog.Logger
	render TimeRenderer
}

func NewPostgresConversationStore(db *gorm.DB, log *slog.Logger, render TimeRenderer) *PostgresConversationStore {
	return &PostgresConversationStore{DB: db, log: log, render: render}
}

// Append inserts the message. history.ID is filled by GORM.
func (s *PostgresConversationStore) Append(ctx context.Context, sender, receiver, text string, now time.Time) (models.Message, error) {
	msg := s.render.newMessage(sender, receiver, text, now)
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		s.log.Error("failed to append message", "sender", sender, "receiver", receiver, "error", err)
		return models.Message{}, apperr.Unavailable("append", err)
	}
	return msg, nil
}

func (s *PostgresConversationStore) History(ctx context.Context, a, b string) ([]models.Message, error) {
	history := []models.Message{}
	err := s.DB.WithContext(ctx).
		Where("pair_key = ?", models.PairKey(a, b)).
		Order("created_at asc, id asc").
		Find(&history).Error
	if err != nil {
		s.log.Error("failed to load history", "a", a, "b", b, "error", err)
		return nil, apperr.Unavailable("history", err)
	}
	return history, nil
}

// PostgresGraphStore keeps friend records as rows with two text[] columns.
// Two-record mutations lock both rows in identity order inside one transaction.
type PostgresGraphStore struct {
	DB  *gorm.DB
	log *slog.Logger
}

func NewPostgresGraphStore(db *gorm.DB, log *slog.Logger) *PostgresGraphStore {
	return &PostgresGraphStore{DB: db, log: log}
}

func (s *PostgresGraphStore) CreateIdentity(ctx context.Context, id string) error {
	var user models.User
	result := s.DB.WithContext(ctx).Where("id = ?", id).FirstOrCreate(&user, models.NewUser(id))
	if result.Error != nil {
		s.log.Error("failed to create identity", "identity", id, "error", result.Error)
		return apperr.Unavailable("create identity", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrIdentityExists
	}
	s.log.Info("new identity saved", "identity", id)
	return nil
}

func (s *PostgresGraphStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, apperr.Unavailable("exists", err)
	}
	return n > 0, nil
}

func (s *PostgresGraphStore) GetFriends(ctx context.Context, id string) ([]string, error) {
	user, err := s.find(s.DB.WithContext(ctx), id)
	if err != nil || user == nil {
		return []string{}, err
	}
	return sorted(user.Friends), nil
}

func (s *PostgresGraphStore) GetPendingRequests(ctx context.Context, id string) ([]string, error) {
	user, err := s.find(s.DB.WithContext(ctx), id)
	if err != nil || user == nil {
		return []string{}, err
	}
	return sorted(user.PendingRequests), nil
}

func (s *PostgresGraphStore) AddPendingRequest(ctx context.Context, from, to string) error {
	return s.transaction(ctx, "add pending request", func(tx *gorm.DB) error {
		users, err := lockUsers(tx, to)
		if err != nil {
			return err
		}
		target := users[to]
		if !target.AddPending(from) {
			return nil
		}
		return saveSets(tx, target)
	})
}

func (s *PostgresGraphStore) AcceptRequest(ctx context.Context, id, requester string) error {
	return s.transaction(ctx, "accept request", func(tx *gorm.DB) error {
		users, err := lockUsers(tx, id, requester)
		if err != nil {
			return err
		}
		user, other := users[id], users[requester]
		linkUsers(user, other)
		if err := saveSets(tx, user); err != nil {
			return err
		}
		return saveSets(tx, other)
	})
}

func (s *PostgresGraphStore) RemovePendingRequest(ctx context.Context, id, requester string) error {
	return s.transaction(ctx, "remove pending request", func(tx *gorm.DB) error {
		users, err := lockUsers(tx, id)
		if errors.Is(err, apperr.ErrUnknownIdentity) {
			return nil
		}
		if err != nil {
			return err
		}
		user := users[id]
		if !user.HasPending(requester) {
			return nil
		}
		user.RemovePending(requester)
		return saveSets(tx, user)
	})
}

// transaction runs fn and maps driver failures to ErrStorageUnavailable while
// letting domain errors through.
func (s *PostgresGraphStore) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	err := s.DB.WithContext(ctx).Transaction(fn)
	if err == nil || errors.Is(err, apperr.ErrUnknownIdentity) {
		return err
	}
	s.log.Error("friend graph transaction failed", "op", op, "error", err)
	return apperr.Unavailable(op, err)
}

func (s *PostgresGraphStore) find(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	err := db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to load identity", "identity", id, "error", err)
		return nil, apperr.Unavailable("load identity", err)
	}
	return &user, nil
}

// lockUsers selects the given rows FOR UPDATE ordered by identity, so two
// transactions touching the same pair always lock in the same order.
func lockUsers(tx *gorm.DB, ids ...string) (map[string]*models.User, error) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	var rows []models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ordered).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) != len(ordered) {
		return nil, apperr.ErrUnknownIdentity
	}

	users := make(map[string]*models.User, len(rows))
	for i := range rows {
		users[rows[i].ID] = &rows[i]
	}
	return users, nil
}

func saveSets(tx *gorm.DB, user *models.User) error {
	return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"friends":          user.Friends,
		"pending_requests": user.PendingRequests,
	}).Error
}
