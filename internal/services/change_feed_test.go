package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafiq-dev/bandmate/backend/internal/models"
)

// collectEvents drains everything currently buffered on the subscription
func collectEvents(sub *Subscription) []models.ConnectionEvent {
	var events []models.ConnectionEvent
	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestSubscribePairDeliversInitialState(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	sub, err := env.feed.SubscribePair(ctx, "u1", "u2")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case event := <-sub.Events():
		assert.Equal(t, models.ConnectionNone, event.Status)
		assert.Equal(t, models.PairKey("u1", "u2"), event.PairKey)
	case <-time.After(time.Second):
		t.Fatal("no initial event delivered")
	}
}

func TestPairSubscriptionObservesLifecycle(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	sub, err := env.feed.SubscribePair(ctx, "u1", "u2")
	require.NoError(t, err)
	defer sub.Close()

	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, env.service.Accept(ctx, req.ID, "u2"))
	require.NoError(t, env.service.Unfriend(ctx, "u1", "u2", "u2"))

	events := collectEvents(sub)
	require.Len(t, events, 4)
	assert.Equal(t, models.ConnectionNone, events[0].Status) // initial
	assert.Equal(t, models.ConnectionPendingOutgoing, events[1].Status)
	assert.Equal(t, req.ID, events[1].RequestID)
	assert.Equal(t, models.ConnectionFriends, events[2].Status)
	assert.Equal(t, models.ConnectionNone, events[3].Status)
}

func TestAccountSubscriptionSnapshotAndTransitions(t *testing.T) {
	env := newTestEnv("u1", "u2", "u3", "u4")
	ctx := context.Background()

	// existing friendship u1-u2 and incoming request u3 -> u1
	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, env.service.Accept(ctx, req.ID, "u2"))
	incoming, _, err := env.service.Send(ctx, "u3", "u1")
	require.NoError(t, err)

	sub, err := env.feed.SubscribeAccount(ctx, "u1")
	require.NoError(t, err)
	defer sub.Close()

	snapshot := collectEvents(sub)
	require.Len(t, snapshot, 2)
	assert.Equal(t, models.ConnectionFriends, snapshot[0].Status)
	assert.Equal(t, models.PairKey("u1", "u2"), snapshot[0].PairKey)
	assert.Equal(t, models.ConnectionPendingIncoming, snapshot[1].Status)
	assert.Equal(t, incoming.ID, snapshot[1].RequestID)

	// a transition touching u1 reaches the account subscription
	require.NoError(t, env.service.Accept(ctx, incoming.ID, "u1"))
	events := collectEvents(sub)
	require.Len(t, events, 1)
	assert.Equal(t, models.ConnectionFriends, events[0].Status)
	assert.Equal(t, models.PairKey("u1", "u3"), events[0].PairKey)

	// a transition not involving u1 does not
	_, _, err = env.service.Send(ctx, "u3", "u4")
	require.NoError(t, err)
	assert.Empty(t, collectEvents(sub))
}

func TestCloseStopsDeliveryImmediately(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	sub, err := env.feed.SubscribePair(ctx, "u1", "u2")
	require.NoError(t, err)
	collectEvents(sub)

	sub.Close()
	sub.Close() // idempotent

	_, _, err = env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)

	// channel is closed and delivered nothing after Close
	event, ok := <-sub.Events()
	assert.False(t, ok, "expected closed channel, got event %+v", event)
}

func TestSlowConsumerConvergesOnLatestState(t *testing.T) {
	env := newTestEnv("u1", "u2")
	ctx := context.Background()

	sub, err := env.feed.SubscribePair(ctx, "u1", "u2")
	require.NoError(t, err)
	defer sub.Close()

	// churn the pair well past the subscription buffer without reading
	for i := 0; i < subscriptionBuffer*2; i++ {
		req, _, err := env.service.Send(ctx, "u1", "u2")
		require.NoError(t, err)
		require.NoError(t, env.service.Decline(ctx, req.ID, "u2"))
	}
	req, _, err := env.service.Send(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, env.service.Accept(ctx, req.ID, "u2"))

	events := collectEvents(sub)
	require.NotEmpty(t, events)
	assert.LessOrEqual(t, len(events), subscriptionBuffer)
	// intermediate states may be dropped but the latest always survives
	assert.Equal(t, models.ConnectionFriends, events[len(events)-1].Status)
}
