package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"github.com/rafiq-dev/bandmate/backend/internal/repositories"
	"github.com/rafiq-dev/bandmate/backend/pkg/logger"
)

// testEnv wires a ConnectionService over in-memory stores
type testEnv struct {
	service       *ConnectionService
	resolver      *ConnectionResolver
	feed          *ChangeFeed
	requests      *repositories.MemoryConnectionRequestRepository
	accounts      *repositories.MemoryAccountStore
	notifications *repositories.MemoryNotificationRepository
}

func newTestEnv(accountIDs ...string) *testEnv {
	requests := repositories.NewMemoryConnectionRequestRepository()
	accounts := repositories.NewMemoryAccountStore(accountIDs...)
	notifications := repositories.NewMemoryNotificationRepository()
	return newTestEnvWith(requests, accounts, accounts, notifications)
}

func newTestEnvWith(
	requests *repositories.MemoryConnectionRequestRepository,
	friends repositories.FriendListRepository,
	accounts *repositories.MemoryAccountStore,
	notifications *repositories.MemoryNotificationRepository,
) *testEnv {
	zlog := logger.Nop()
	resolver := NewConnectionResolver(requests, friends, zlog)
	dispatcher := NewNotificationDispatcher(notifications, accounts, zlog)
	feed := NewChangeFeed(resolver, requests, friends, zlog)
	service := NewConnectionService(requests, friends, accounts, notifications, resolver, dispatcher, feed, zlog)
	return &testEnv{
		service:       service,
		resolver:      resolver,
		feed:          feed,
		requests:      requests,
		accounts:      accounts,
		notifications: notifications,
	}
}

// faultyFriendList fails AddFriend or RemoveFriend for selected accounts,
// simulating the second write of a dual-write operation dying mid-flight
type faultyFriendList struct {
	repositories.FriendListRepository

	mu         sync.Mutex
	failAddFor map[string]bool
	failRemFor map[string]bool
}

func newFaultyFriendList(inner repositories.FriendListRepository) *faultyFriendList {
	return &faultyFriendList{
		FriendListRepository: inner,
		failAddFor:           make(map[string]bool),
		failRemFor:           make(map[string]bool),
	}
}

func (f *faultyFriendList) AddFriend(ctx context.Context, accountID, friendID string) error {
	f.mu.Lock()
	fail := f.failAddFor[accountID]
	f.mu.Unlock()
	if fail {
		return errors.New("injected write failure")
	}
	return f.FriendListRepository.AddFriend(ctx, accountID, friendID)
}

func (f *faultyFriendList) RemoveFriend(ctx context.Context, accountID, friendID string) error {
	f.mu.Lock()
	fail := f.failRemFor[accountID]
	f.mu.Unlock()
	if fail {
		return errors.New("injected write failure")
	}
	return f.FriendListRepository.RemoveFriend(ctx, accountID, friendID)
}

func (f *faultyFriendList) setFailAdd(accountID string, fail bool) {
	f.mu.Lock()
	f.failAddFor[accountID] = fail
	f.mu.Unlock()
}

func (f *faultyFriendList) setFailRemove(accountID string, fail bool) {
	f.mu.Lock()
	f.failRemFor[accountID] = fail
	f.mu.Unlock()
}

func TestSendCreatesPendingRequest(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	req, created, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, req)
	assert.Equal(t, "u1", req.FromID)
	assert.Equal(t, "u2", req.ToID)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.NotEmpty(t, req.ID)

	state, err := env.service.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionPendingOutgoing, state.Status)
	assert.Equal(t, req.ID, state.RequestID)

	state, err = env.service.Resolve(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionPendingIncoming, state.Status)
}

func TestSendToSelfRejected(t *testing.T) {
	env := newTestEnv("u1")
	ctx := context.Background()

	req, created, err := env.service.Send(ctx, "u1", "u1")
	assert.ErrorIs(t, err, ErrSelfReference)
	assert.False(t, created)
	assert.Nil(t, req)

	// no state change
	incoming, err := env.service.ListIncoming(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestSendToUnknownAccount(t *testing.T) {
	env := newTestEnv("u1")

	_, created, err := env.service.Send(context.Background(), "u1", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, created)
}

func TestSendIsIdempotent(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	first, created, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	outgoing, err := env.service.ListOutgoing(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, outgoing, 1)
}

func TestSymmetricSendIsNoOp(t *testing.T) {
	env := newTestEnv("u3", "u4")
	ctx := context.Background()

	first, created, err := env.service.Send(ctx, "u3", "u4")
	require.NoError(t, err)
	require.True(t, created)

	// The reverse send must not produce a second pending record: the guard
	// is on the unordered pair, not the direction.
	second, created, err := env.service.Send(ctx, "u4", "u3")
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	_, err = env.requests.GetByPair(ctx, "u3", "u4")
	require.NoError(t, err)
	outgoing4, err := env.service.ListOutgoing(ctx, "u4")
	require.NoError(t, err)
	assert.Empty(t, outgoing4)
}

func TestConcurrentSendsProduceOnePendingRequest(t *testing.T) {
	env := newTestEnv("u3", "u4")
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]bool, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0], errs[0] = env.service.Send(ctx, "u3", "u4")
	}()
	go func() {
		defer wg.Done()
		_, results[1], errs[1] = env.service.Send(ctx, "u4", "u3")
	}()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// exactly one creation may win; the pair holds exactly one live record
	assert.False(t, results[0] && results[1], "both sends claimed to create a request")

	req, err := env.requests.GetByPair(ctx, "u3", "u4")
	require.NoError(t, err)

	incoming3, _ := env.service.ListIncoming(ctx, "u3")
	incoming4, _ := env.service.ListIncoming(ctx, "u4")
	assert.Len(t, append(incoming3, incoming4...), 1)
	assert.Equal(t, models.PairKey("u3", "u4"), req.PairKey)
}

func TestAcceptCreatesFriendship(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)

	require.NoError(t, env.service.Accept(ctx, req.ID, "u2"))

	state, err := env.service.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionFriends, state.Status)

	friends1, err := env.service.ListFriends(ctx, "u1")
	require.NoError(t, err)
	assert.Contains(t, friends1, "u2")
	friends2, err := env.service.ListFriends(ctx, "u2")
	require.NoError(t, err)
	assert.Contains(t, friends2, "u1")

	// request record is gone
	_, err = env.requests.GetByID(ctx, req.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestAcceptRequiresRecipient(t *testing.T) {
	env := newTestEnv("u1", "u2", "u3")
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)

	assert.ErrorIs(t, env.service.Accept(ctx, req.ID, "u1"), ErrUnauthorized)
	assert.ErrorIs(t, env.service.Accept(ctx, req.ID, "u3"), ErrUnauthorized)

	// still pending
	state, err := env.service.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionPendingOutgoing, state.Status)
}

func TestAcceptUnknownRequest(t *testing.T) {
	env := newTestEnv("u1")
	assert.ErrorIs(t, env.service.Accept(context.Background(), "missing", "u1"), ErrNotFound)
}

func TestDeclineDeletesRequestAndLeavesListsUntouched(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)

	assert.ErrorIs(t, env.service.Decline(ctx, req.ID, "u1"), ErrUnauthorized)
	require.NoError(t, env.service.Decline(ctx, req.ID, "u2"))

	state, err := env.service.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionNone, state.Status)

	friends1, _ := env.service.ListFriends(ctx, "u1")
	friends2, _ := env.service.ListFriends(ctx, "u2")
	assert.Empty(t, friends1)
	assert.Empty(t, friends2)
}

func TestCancelRequiresSender(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)

	assert.ErrorIs(t, env.service.Cancel(ctx, req.ID, "u2"), ErrUnauthorized)
	require.NoError(t, env.service.Cancel(ctx, req.ID, "u1"))

	state, err := env.service.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionNone, state.Status)
}

func TestUnfriendCleansUpEverything(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, env.service.Accept(ctx, req.ID, "u2"))

	require.NoError(t, env.service.Unfriend(ctx, "u1", "u2", "u1"))

	state, err := env.service.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionNone, state.Status)

	friends1, _ := env.service.ListFriends(ctx, "u1")
	friends2, _ := env.service.ListFriends(ctx, "u2")
	assert.NotContains(t, friends1, "u2")
	assert.NotContains(t, friends2, "u1")

	_, err = env.requests.GetByPair(ctx, "u1", "u2")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestUnfriendRequiresParticipant(t *testing.T) {
	env := newTestEnv("u1", "u2", "u3")
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, env.service.Accept(ctx, req.ID, "u2"))

	assert.ErrorIs(t, env.service.Unfriend(ctx, "u1", "u2", "u3"), ErrUnauthorized)
}

func TestUnfriendWhenNotFriends(t *testing.T) {
	env := newTestEnv("u1", "u2")
	assert.ErrorIs(t, env.service.Unfriend(context.Background(), "u1", "u2", "u1"), ErrNotFriends)
}

func TestAcceptPartialFailureIsRepairedOnRead(t *testing.T) {
	requests := repositories.NewMemoryConnectionRequestRepository()
	accounts := repositories.NewMemoryAccountStore("u1", "u2")
	faulty := newFaultyFriendList(accounts)
	env := newTestEnvWith(requests, faulty, accounts, repositories.NewMemoryNotificationRepository())
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)

	// first list write (u1) succeeds, second (u2) dies
	faulty.setFailAdd("u2", true)
	err = env.service.Accept(ctx, req.ID, "u2")

	var partial *PartialFriendshipError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "accept", partial.Op)
	assert.Equal(t, "u1", partial.CompletedSide)
	assert.Equal(t, "u2", partial.FailedSide)

	// half-friended: u1's list has u2, u2's list does not
	oneSided, err := accounts.Contains(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, oneSided)
	other, err := accounts.Contains(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, other)

	// store recovers; the next read completes the missing side and removes
	// the stray pending record
	faulty.setFailAdd("u2", false)
	state, err := env.service.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionFriends, state.Status)

	repaired, err := accounts.Contains(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.True(t, repaired)
	_, err = requests.GetByID(ctx, req.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestUnfriendPartialFailureSurfaces(t *testing.T) {
	requests := repositories.NewMemoryConnectionRequestRepository()
	accounts := repositories.NewMemoryAccountStore("u1", "u2")
	faulty := newFaultyFriendList(accounts)
	env := newTestEnvWith(requests, faulty, accounts, repositories.NewMemoryNotificationRepository())
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, env.service.Accept(ctx, req.ID, "u2"))

	faulty.setFailRemove("u2", true)
	err = env.service.Unfriend(ctx, "u1", "u2", "u1")

	var partial *PartialFriendshipError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "unfriend", partial.Op)

	// the surviving side is authoritative: repair-on-read re-links the pair,
	// so the caller retries the unfriend once the store recovers
	faulty.setFailRemove("u2", false)
	state, err := env.service.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionFriends, state.Status)

	require.NoError(t, env.service.Unfriend(ctx, "u1", "u2", "u1"))
	state, err = env.service.Resolve(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionNone, state.Status)
}

func TestNotificationLifecycle(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)

	// recipient sees the friend-request notification
	inbox, total, err := env.service.Notifications(ctx, "u2", 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, models.NotificationFriendRequest, inbox[0].Type)
	assert.Equal(t, "u1", inbox[0].ActorID)
	assert.False(t, inbox[0].IsRead)

	unread, err := env.service.UnreadNotificationCount(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	require.NoError(t, env.service.Accept(ctx, req.ID, "u2"))

	// the request notification is swept from u2's inbox; u1 is told the
	// request was accepted
	_, total, err = env.service.Notifications(ctx, "u2", 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	inbox1, total1, err := env.service.Notifications(ctx, "u1", 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, total1)
	assert.Equal(t, models.NotificationRequestAccepted, inbox1[0].Type)

	require.NoError(t, env.service.MarkNotificationRead(ctx, "u1", inbox1[0].ID))
	unread1, err := env.service.UnreadNotificationCount(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread1)
}

func TestMarkNotificationReadIsOwnerScoped(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	_, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)

	inbox, _, err := env.service.Notifications(ctx, "u2", 1, 20)
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	// u1 cannot mark u2's notification
	assert.ErrorIs(t, env.service.MarkNotificationRead(ctx, "u1", inbox[0].ID), ErrNotFound)
}

func TestDeclineRemovesRecipientNotification(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, env.service.Decline(ctx, req.ID, "u2"))

	_, total, err := env.service.Notifications(ctx, "u2", 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	// the sender is not notified of a decline
	_, total1, err := env.service.Notifications(ctx, "u1", 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total1)
}
