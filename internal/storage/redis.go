package storage

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"raaibar/backend/internal/apperr"

	"github.com/redis/go-redis/v9"
)

const (
	identitiesKey   = "raaibar:identities"
	maxWatchRetries = 8
)

func friendsKey(id string) string { return "raaibar:friends:" + id }
func pendingKey(id string) string { return "raaibar:pending:" + id }

// RedisGraphStore keeps each record as two redis sets. Two-record updates run
// in one MULTI/EXEC, so readers see both sides of an edge or neither.
type RedisGraphStore struct {
	Redis *redis.Client
	log   *slog.Logger
}

func NewRedisGraphStore(rdb *redis.Client, log *slog.Logger) *RedisGraphStore {
	return &RedisGraphStore{Redis: rdb, log: log}
}

func (s *RedisGraphStore) CreateIdentity(ctx context.Context, id string) error {
	added, err := s.Redis.SAdd(ctx, identitiesKey, id).Result()
	if err != nil {
		return s.unavailable("create identity", err)
	}
	if added == 0 {
		return apperr.ErrIdentityExists
	}
	return nil
}

func (s *RedisGraphStore) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.Redis.SIsMember(ctx, identitiesKey, id).Result()
	if err != nil {
		return false, s.unavailable("exists", err)
	}
	return ok, nil
}

func (s *RedisGraphStore) GetFriends(ctx context.Context, id string) ([]string, error) {
	return s.members(ctx, friendsKey(id))
}

func (s *RedisGraphStore) GetPendingRequests(ctx context.Context, id string) ([]string, error) {
	return s.members(ctx, pendingKey(id))
}

// AddPendingRequest watches to's friend set so a concurrent accept cannot
// leave a stale pending entry next to a confirmed edge.
func (s *RedisGraphStore) AddPendingRequest(ctx context.Context, from, to string) error {
	if err := s.requireAll(ctx, to); err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		friend, err := tx.SIsMember(ctx, friendsKey(to), from).Result()
		if err != nil {
			return err
		}
		if friend {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, pendingKey(to), from)
			return nil
		})
		return err
	}
	return s.watch(ctx, "add pending request", txf, friendsKey(to))
}

func (s *RedisGraphStore) AcceptRequest(ctx context.Context, id, requester string) error {
	if err := s.requireAll(ctx, id, requester); err != nil {
		return err
	}

	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, pendingKey(id), requester)
		pipe.SRem(ctx, pendingKey(requester), id)
		pipe.SAdd(ctx, friendsKey(id), requester)
		pipe.SAdd(ctx, friendsKey(requester), id)
		return nil
	})
	if err != nil {
		return s.unavailable("accept request", err)
	}
	return nil
}

func (s *RedisGraphStore) RemovePendingRequest(ctx context.Context, id, requester string) error {
	if err := s.Redis.SRem(ctx, pendingKey(id), requester).Err(); err != nil {
		return s.unavailable("remove pending request", err)
	}
	return nil
}

func (s *RedisGraphStore) members(ctx context.Context, key string) ([]string, error) {
	ids, err := s.Redis.SMembers(ctx, key).Result()
	if err != nil {
		return nil, s.unavailable("members", err)
	}
	if ids == nil {
		ids = []string{}
	}
	slices.Sort(ids)
	return ids, nil
}

// requireAll fails with ErrUnknownIdentity unless every id is registered.
func (s *RedisGraphStore) requireAll(ctx context.Context, ids ...string) error {
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	found, err := s.Redis.SMIsMember(ctx, identitiesKey, members...).Result()
	if err != nil {
		return s.unavailable("exists", err)
	}
	for _, ok := range found {
		if !ok {
			return apperr.ErrUnknownIdentity
		}
	}
	return nil
}

// watch retries txf while a watched key changes under it.
func (s *RedisGraphStore) watch(ctx context.Context, op string, txf func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.Redis.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return s.unavailable(op, err)
	}
	return s.unavailable(op, redis.TxFailedErr)
}

func (s *RedisGraphStore) unavailable(op string, err error) error {
	s.log.Error("redis friend graph failed", "op", op, "error", err)
	return apperr.Unavailable(op, err)
}
