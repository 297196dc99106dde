package storage_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/models"
	"raaibar/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func utcRenderer() storage.TimeRenderer {
	return storage.TimeRenderer{Layout: "3:04 PM", Location: time.UTC}
}

// testConversationStore runs the behaviour every ConversationStore must share.
func testConversationStore(t *testing.T, newStore func(t *testing.T) storage.ConversationStore) {
	ctx := context.Background()

	t.Run("append fills id and rendered time", func(t *testing.T) {
		store := newStore(t)

		msg, err := store.Append(ctx, "Alice", "Bob", "hi", t0)

		require.NoError(t, err)
		assert.NotZero(t, msg.ID)
		assert.Equal(t, "Alice", msg.Sender)
		assert.Equal(t, "Bob", msg.Receiver)
		assert.Equal(t, "hi", msg.Text)
		assert.True(t, msg.CreatedAt.Equal(t0))
		assert.Equal(t, "10:00 AM", msg.RenderedTime)
	})

	t.Run("history is unordered in its pair", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Append(ctx, "Alice", "Bob", "hi", t0)
		require.NoError(t, err)
		_, err = store.Append(ctx, "Bob", "Alice", "hey", t0.Add(time.Second))
		require.NoError(t, err)

		ab, err := store.History(ctx, "Alice", "Bob")
		require.NoError(t, err)
		ba, err := store.History(ctx, "Bob", "Alice")
		require.NoError(t, err)

		require.Len(t, ab, 2)
		assert.Equal(t, ab, ba)
		assert.Equal(t, "hi", ab[0].Text)
		assert.Equal(t, "hey", ab[1].Text)
	})

	t.Run("history of an empty pair is empty, not nil", func(t *testing.T) {
		store := newStore(t)

		history, err := store.History(ctx, "Carol", "Dave")

		require.NoError(t, err)
		assert.NotNil(t, history)
		assert.Empty(t, history)
	})

	t.Run("pairs are isolated", func(t *testing.T) {
		store := newStore(t)
		_, _ = store.Append(ctx, "Alice", "Bob", "for bob", t0)
		_, _ = store.Append(ctx, "Alice", "Carol", "for carol", t0)

		history, err := store.History(ctx, "Alice", "Carol")

		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "for carol", history[0].Text)
	})

	t.Run("ordered by created at, ids grow", func(t *testing.T) {
		store := newStore(t)
		first, _ := store.Append(ctx, "Alice", "Bob", "1", t0.Add(2*time.Minute))
		second, _ := store.Append(ctx, "Alice", "Bob", "2", t0)
		third, _ := store.Append(ctx, "Bob", "Alice", "3", t0.Add(2*time.Minute))

		history, err := store.History(ctx, "Alice", "Bob")

		require.NoError(t, err)
		assert.Equal(t, []string{"2", "1", "3"}, texts(history))
		assert.Less(t, first.ID, second.ID)
		assert.Less(t, second.ID, third.ID)
	})

	t.Run("same timestamp keeps submission order", func(t *testing.T) {
		store := newStore(t)
		for i := 0; i < 5; i++ {
			_, err := store.Append(ctx, "Alice", "Bob", fmt.Sprint(i), t0)
			require.NoError(t, err)
		}

		history, err := store.History(ctx, "Bob", "Alice")

		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1", "2", "3", "4"}, texts(history))
	})

	t.Run("concurrent appends are all kept with unique ids", func(t *testing.T) {
		store := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.Append(ctx, "Alice", "Bob", fmt.Sprint(i), t0.Add(time.Duration(i)*time.Millisecond))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		history, err := store.History(ctx, "Alice", "Bob")
		require.NoError(t, err)
		require.Len(t, history, 50)
		ids := map[uint64]bool{}
		for i, msg := range history {
			ids[msg.ID] = true
			if i > 0 {
				assert.False(t, msg.CreatedAt.Before(history[i-1].CreatedAt))
			}
		}
		assert.Len(t, ids, 50)
	})
}

// testGraphStore runs the behaviour every GraphStore must share.
func testGraphStore(t *testing.T, newStore func(t *testing.T) storage.GraphStore) {
	ctx := context.Background()

	setup := func(t *testing.T, ids ...string) storage.GraphStore {
		store := newStore(t)
		for _, id := range ids {
			require.NoError(t, store.CreateIdentity(ctx, id))
		}
		return store
	}

	t.Run("create twice fails", func(t *testing.T) {
		store := setup(t, "alice")

		err := store.CreateIdentity(ctx, "alice")

		assert.ErrorIs(t, err, apperr.ErrIdentityExists)
		ok, err := store.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown identity reads as empty", func(t *testing.T) {
		store := setup(t)

		friends, err := store.GetFriends(ctx, "ghost")
		require.NoError(t, err)
		pending, err := store.GetPendingRequests(ctx, "ghost")
		require.NoError(t, err)
		ok, err := store.Exists(ctx, "ghost")
		require.NoError(t, err)

		assert.Empty(t, friends)
		assert.NotNil(t, friends)
		assert.Empty(t, pending)
		assert.False(t, ok)
	})

	t.Run("add pending is idempotent", func(t *testing.T) {
		store := setup(t, "alice", "bob")

		require.NoError(t, store.AddPendingRequest(ctx, "alice", "bob"))
		require.NoError(t, store.AddPendingRequest(ctx, "alice", "bob"))

		pending, err := store.GetPendingRequests(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, pending)
		aliceSide, _ := store.GetPendingRequests(ctx, "alice")
		assert.Empty(t, aliceSide)
	})

	t.Run("add pending on unknown target fails", func(t *testing.T) {
		store := setup(t, "alice")

		err := store.AddPendingRequest(ctx, "alice", "ghost")

		assert.ErrorIs(t, err, apperr.ErrUnknownIdentity)
	})

	t.Run("accept links both sides", func(t *testing.T) {
		store := setup(t, "alice", "bob")
		require.NoError(t, store.AddPendingRequest(ctx, "alice", "bob"))

		require.NoError(t, store.AcceptRequest(ctx, "bob", "alice"))

		assertFriends(t, store, "alice", "bob")
		pending, _ := store.GetPendingRequests(ctx, "bob")
		assert.Empty(t, pending)
	})

	t.Run("add pending after friendship is a no-op", func(t *testing.T) {
		store := setup(t, "alice", "bob")
		require.NoError(t, store.AcceptRequest(ctx, "bob", "alice"))

		require.NoError(t, store.AddPendingRequest(ctx, "alice", "bob"))

		pending, _ := store.GetPendingRequests(ctx, "bob")
		assert.Empty(t, pending)
	})

	t.Run("accept with unknown identity fails without mutation", func(t *testing.T) {
		store := setup(t, "bob")

		err := store.AcceptRequest(ctx, "bob", "ghost")

		assert.ErrorIs(t, err, apperr.ErrUnknownIdentity)
		friends, _ := store.GetFriends(ctx, "bob")
		assert.Empty(t, friends)
	})

	t.Run("crossed requests cleared by the first accept", func(t *testing.T) {
		store := setup(t, "alice", "bob")
		require.NoError(t, store.AddPendingRequest(ctx, "alice", "bob"))
		require.NoError(t, store.AddPendingRequest(ctx, "bob", "alice"))

		require.NoError(t, store.AcceptRequest(ctx, "alice", "bob"))

		assertFriends(t, store, "alice", "bob")
		pa, _ := store.GetPendingRequests(ctx, "alice")
		pb, _ := store.GetPendingRequests(ctx, "bob")
		assert.Empty(t, pa)
		assert.Empty(t, pb)
	})

	t.Run("remove pending", func(t *testing.T) {
		store := setup(t, "alice", "bob")
		require.NoError(t, store.AddPendingRequest(ctx, "alice", "bob"))

		require.NoError(t, store.RemovePendingRequest(ctx, "bob", "alice"))

		pending, _ := store.GetPendingRequests(ctx, "bob")
		assert.Empty(t, pending)
		friends, _ := store.GetFriends(ctx, "bob")
		assert.Empty(t, friends)
	})

	t.Run("concurrent accepts from both directions stay symmetric", func(t *testing.T) {
		ids := []string{"a", "b", "c", "d", "e"}
		store := setup(t, ids...)
		var wg sync.WaitGroup
		for _, x := range ids {
			for _, y := range ids {
				if x == y {
					continue
				}
				wg.Add(1)
				go func(x, y string) {
					defer wg.Done()
					assert.NoError(t, store.AcceptRequest(ctx, x, y))
				}(x, y)
			}
		}
		wg.Wait()

		for _, x := range ids {
			friends, err := store.GetFriends(ctx, x)
			require.NoError(t, err)
			assert.Len(t, friends, len(ids)-1, x)
			for _, y := range friends {
				assertFriends(t, store, x, y)
			}
		}
	})
}

func assertFriends(t *testing.T, store storage.GraphStore, a, b string) {
	t.Helper()
	ctx := context.Background()
	fa, err := store.GetFriends(ctx, a)
	require.NoError(t, err)
	fb, err := store.GetFriends(ctx, b)
	require.NoError(t, err)
	assert.Contains(t, fa, b)
	assert.Contains(t, fb, a)
}

func texts(history []models.Message) []string {
	out := make([]string, len(history))
	for i, m := range history {
		out[i] = m.Text
	}
	return out
}
