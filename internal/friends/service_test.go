package friends_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"raaibar/backend/internal/apperr"
	"raaibar/backend/internal/friends"
	"raaibar/backend/internal/models"
	"raaibar/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(identity, event string, payload any) bool {
	args := m.Called(identity, event, payload)
	return args.Bool(0)
}

// MockGraphStore lets a test fail one store call.
type MockGraphStore struct {
	mock.Mock
}

func (m *MockGraphStore) CreateIdentity(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockGraphStore) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockGraphStore) GetFriends(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGraphStore) GetPendingRequests(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGraphStore) AddPendingRequest(ctx context.Context, from, to string) error {
	return m.Called(ctx, from, to).Error(0)
}

func (m *MockGraphStore) AcceptRequest(ctx context.Context, id, requester string) error {
	return m.Called(ctx, id, requester).Error(0)
}

func (m *MockGraphStore) RemovePendingRequest(ctx context.Context, id, requester string) error {
	return m.Called(ctx, id, requester).Error(0)
}

func newService(t *testing.T, ids ...string) (*friends.Service, *MockNotifier) {
	t.Helper()
	notifier := new(MockNotifier)
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(true).Maybe()
	svc := friends.NewService(storage.NewMemoryGraphStore(), notifier, slog.Default())
	for _, id := range ids {
		require.NoError(t, svc.Register(context.Background(), id))
	}
	return svc, notifier
}

func TestSendRequest_Self(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newService(t, "alice")

	err := svc.SendRequest(ctx, "alice", "alice")

	assert.ErrorIs(t, err, apperr.ErrSelfRequest)
	pending, _ := svc.ListPendingRequests(ctx, "alice")
	assert.Empty(t, pending)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendRequest_UnknownTarget(t *testing.T) {
	svc, _ := newService(t, "alice")

	err := svc.SendRequest(context.Background(), "alice", "ghost")

	assert.ErrorIs(t, err, apperr.ErrUnknownIdentity)
}

func TestSendRequest_NotifiesTarget(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newService(t, "alice", "bob")

	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))

	pending, _ := svc.ListPendingRequests(ctx, "bob")
	assert.Equal(t, []string{"alice"}, pending)
	notifier.AssertCalled(t, "Send", "bob", models.EventFriendRequest, models.FriendNotice{From: "alice"})
}

func TestSendRequest_DuplicatePending(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, "alice", "bob")
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))

	err := svc.SendRequest(ctx, "alice", "bob")

	assert.ErrorIs(t, err, apperr.ErrAlreadyConnected)
	pending, _ := svc.ListPendingRequests(ctx, "bob")
	assert.Equal(t, []string{"alice"}, pending)
}

func TestSendRequest_AlreadyFriends(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, "alice", "bob")
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.Accept(ctx, "bob", "alice"))

	assert.ErrorIs(t, svc.SendRequest(ctx, "alice", "bob"), apperr.ErrAlreadyConnected)
	assert.ErrorIs(t, svc.SendRequest(ctx, "bob", "alice"), apperr.ErrAlreadyConnected)
}

func TestSendRequest_ResendAfterDecline(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, "alice", "bob")
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.Decline(ctx, "bob", "alice"))

	pending, _ := svc.ListPendingRequests(ctx, "bob")
	assert.Empty(t, pending)
	assert.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
}

func TestAccept_LinksBothSidesAndNotifies(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newService(t, "alice", "bob")
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))

	require.NoError(t, svc.Accept(ctx, "bob", "alice"))

	fa, _ := svc.ListFriends(ctx, "alice")
	fb, _ := svc.ListFriends(ctx, "bob")
	assert.Equal(t, []string{"bob"}, fa)
	assert.Equal(t, []string{"alice"}, fb)
	pending, _ := svc.ListPendingRequests(ctx, "bob")
	assert.Empty(t, pending)
	notifier.AssertCalled(t, "Send", "alice", models.EventFriendAccepted, models.FriendNotice{From: "bob"})

	ok, err := svc.AreFriends(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAccept_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, "alice", "bob")
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.Accept(ctx, "bob", "alice"))

	assert.NoError(t, svc.Accept(ctx, "bob", "alice"))
	assert.NoError(t, svc.Accept(ctx, "alice", "bob"))

	fb, _ := svc.ListFriends(ctx, "bob")
	assert.Equal(t, []string{"alice"}, fb)
}

func TestAccept_WithoutRequest(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, "alice", "bob")

	err := svc.Accept(ctx, "bob", "alice")

	assert.ErrorIs(t, err, apperr.ErrNoPendingRequest)
	fb, _ := svc.ListFriends(ctx, "bob")
	assert.Empty(t, fb)
}

func TestAccept_UnknownIdentity(t *testing.T) {
	svc, _ := newService(t, "bob")

	assert.ErrorIs(t, svc.Accept(context.Background(), "ghost", "bob"), apperr.ErrUnknownIdentity)
}

func TestAccept_UnknownRequester(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newService(t, "Bob")

	err := svc.Accept(ctx, "Bob", "Ghost")

	assert.ErrorIs(t, err, apperr.ErrUnknownIdentity)
	fb, _ := svc.ListFriends(ctx, "Bob")
	assert.Empty(t, fb)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

// TestAccept_RequesterVanished covers a pending entry naming an identity the store does not know.
func TestAccept_RequesterVanished(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryGraphStore()
	require.NoError(t, store.CreateIdentity(ctx, "bob"))
	require.NoError(t, store.AddPendingRequest(ctx, "ghost", "bob"))
	svc := friends.NewService(store, nil, slog.Default())

	err := svc.Accept(ctx, "bob", "ghost")

	assert.ErrorIs(t, err, apperr.ErrUnknownIdentity)
	fb, _ := svc.ListFriends(ctx, "bob")
	assert.Empty(t, fb)
}

// TestCrossedRequests: both ask before either accepts.
func TestCrossedRequests(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, "alice", "bob")
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.SendRequest(ctx, "bob", "alice"))

	pa, _ := svc.ListPendingRequests(ctx, "alice")
	pb, _ := svc.ListPendingRequests(ctx, "bob")
	assert.Equal(t, []string{"bob"}, pa)
	assert.Equal(t, []string{"alice"}, pb)

	require.NoError(t, svc.Accept(ctx, "alice", "bob"))

	fa, _ := svc.ListFriends(ctx, "alice")
	fb, _ := svc.ListFriends(ctx, "bob")
	assert.Equal(t, []string{"bob"}, fa)
	assert.Equal(t, []string{"alice"}, fb)
	pa, _ = svc.ListPendingRequests(ctx, "alice")
	pb, _ = svc.ListPendingRequests(ctx, "bob")
	assert.Empty(t, pa)
	assert.Empty(t, pb)

	// The second accept finds the friendship already in place.
	assert.NoError(t, svc.Accept(ctx, "bob", "alice"))
}

func TestCrossedRequests_ConcurrentAccepts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, "alice", "bob")
	require.NoError(t, svc.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, svc.SendRequest(ctx, "bob", "alice"))

	var wg sync.WaitGroup
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		wg.Add(1)
		go func(id, requester string) {
			defer wg.Done()
			assert.NoError(t, svc.Accept(ctx, id, requester))
		}(pair[0], pair[1])
	}
	wg.Wait()

	fa, _ := svc.ListFriends(ctx, "alice")
	fb, _ := svc.ListFriends(ctx, "bob")
	assert.Equal(t, []string{"bob"}, fa)
	assert.Equal(t, []string{"alice"}, fb)
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _ := newService(t, "alice")

	assert.ErrorIs(t, svc.Register(context.Background(), "alice"), apperr.ErrIdentityExists)
}

func TestSendRequest_StorageFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockGraphStore)
	store.On("Exists", ctx, "bob").Return(true, nil)
	store.On("GetPendingRequests", ctx, "bob").Return([]string{}, nil)
	store.On("GetFriends", ctx, "bob").Return([]string{}, nil)
	store.On("AddPendingRequest", ctx, "alice", "bob").Return(apperr.Unavailable("add", errors.New("timeout")))
	notifier := new(MockNotifier)
	svc := friends.NewService(store, notifier, slog.Default())

	err := svc.SendRequest(ctx, "alice", "bob")

	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccept_StorageFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockGraphStore)
	store.On("Exists", ctx, "bob").Return(true, nil)
	store.On("Exists", ctx, "alice").Return(true, nil)
	store.On("GetPendingRequests", ctx, "bob").Return([]string{"alice"}, nil)
	store.On("GetFriends", ctx, "bob").Return([]string{}, nil)
	store.On("AcceptRequest", ctx, "bob", "alice").Return(apperr.Unavailable("accept", errors.New("timeout")))
	svc := friends.NewService(store, nil, slog.Default())

	err := svc.Accept(ctx, "bob", "alice")

	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	store.AssertExpectations(t)
}
