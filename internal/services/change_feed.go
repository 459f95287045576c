package services

import (
	"context"
	"sync"
	"time"

	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"github.com/rafiq-dev/bandmate/backend/internal/repositories"
	"go.uber.org/zap"
)

// subscriptionBuffer bounds each subscriber's event channel. A full buffer
// drops the oldest event in favour of the newest, so slow consumers may miss
// intermediate states but always converge on the latest one.
const subscriptionBuffer = 16

// Subscription is a live observation channel for connection-state
// transitions. Close it when done; after Close returns, no further events are
// delivered.
type Subscription struct {
	topics []string
	events chan models.ConnectionEvent
	feed   *ChangeFeed

	mu     sync.Mutex
	closed bool
}

// Events returns the channel on which transitions are delivered
func (s *Subscription) Events() <-chan models.ConnectionEvent {
	return s.events
}

// Close cancels the subscription. Idempotent; safe to call concurrently with
// event delivery.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.feed.unsubscribe(s)

	s.mu.Lock()
	close(s.events)
	s.mu.Unlock()
}

// deliver enqueues an event, dropping the oldest buffered event when the
// subscriber is not keeping up.
func (s *Subscription) deliver(event models.ConnectionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.events <- event:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// ChangeFeed is an in-process publish/subscribe hub for connection-state
// transitions. The lifecycle manager publishes after every successful
// transition; subscribers observe a pair or an account without polling the
// stores. Delivery is at-least-once: a consumer may briefly see a stale
// intermediate state during the two-write accept but converges on the final
// one.
type ChangeFeed struct {
	resolver *ConnectionResolver
	requests repositories.ConnectionRequestRepository
	friends  repositories.FriendListRepository
	logger   *zap.Logger

	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{} // topic -> subscriptions
}

// NewChangeFeed creates a new ChangeFeed
func NewChangeFeed(
	resolver *ConnectionResolver,
	requests repositories.ConnectionRequestRepository,
	friends repositories.FriendListRepository,
	logger *zap.Logger,
) *ChangeFeed {
	return &ChangeFeed{
		resolver:    resolver,
		requests:    requests,
		friends:     friends,
		logger:      logger,
		subscribers: make(map[string]map[*Subscription]struct{}),
	}
}

// accountTopic namespaces account subscriptions away from pair keys
func accountTopic(accountID string) string {
	return "account:" + accountID
}

// SubscribePair subscribes to transitions for one unordered account pair.
// The first delivered event carries the pair's current resolved state.
func (f *ChangeFeed) SubscribePair(ctx context.Context, a, b string) (*Subscription, error) {
	state, err := f.resolver.Resolve(ctx, a, b)
	if err != nil {
		return nil, err
	}

	sub := f.newSubscription(models.PairKey(a, b))
	sub.deliver(models.ConnectionEvent{
		PairKey:    models.PairKey(a, b),
		AccountA:   a,
		AccountB:   b,
		Status:     state.Status,
		RequestID:  state.RequestID,
		OccurredAt: time.Now(),
	})
	return sub, nil
}

// SubscribeAccount subscribes to every transition touching an account. The
// initial snapshot is one event per current friend and per live pending
// request involving the account.
func (f *ChangeFeed) SubscribeAccount(ctx context.Context, accountID string) (*Subscription, error) {
	friends, err := f.friends.ListFriends(ctx, accountID)
	if err != nil {
		return nil, err
	}
	incoming, err := f.requests.ListIncoming(ctx, accountID)
	if err != nil {
		return nil, err
	}
	outgoing, err := f.requests.ListOutgoing(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sub := f.newSubscription(accountTopic(accountID))

	now := time.Now()
	for _, friendID := range friends {
		sub.deliver(models.ConnectionEvent{
			PairKey:    models.PairKey(accountID, friendID),
			AccountA:   accountID,
			AccountB:   friendID,
			Status:     models.ConnectionFriends,
			OccurredAt: now,
		})
	}
	for _, req := range incoming {
		sub.deliver(models.ConnectionEvent{
			PairKey:    req.PairKey,
			AccountA:   accountID,
			AccountB:   req.FromID,
			Status:     models.ConnectionPendingIncoming,
			RequestID:  req.ID,
			OccurredAt: now,
		})
	}
	for _, req := range outgoing {
		sub.deliver(models.ConnectionEvent{
			PairKey:    req.PairKey,
			AccountA:   accountID,
			AccountB:   req.ToID,
			Status:     models.ConnectionPendingOutgoing,
			RequestID:  req.ID,
			OccurredAt: now,
		})
	}
	return sub, nil
}

func (f *ChangeFeed) newSubscription(topics ...string) *Subscription {
	sub := &Subscription{
		topics: topics,
		events: make(chan models.ConnectionEvent, subscriptionBuffer),
		feed:   f,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		if f.subscribers[topic] == nil {
			f.subscribers[topic] = make(map[*Subscription]struct{})
		}
		f.subscribers[topic][sub] = struct{}{}
	}
	return sub
}

func (f *ChangeFeed) unsubscribe(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range sub.topics {
		delete(f.subscribers[topic], sub)
		if len(f.subscribers[topic]) == 0 {
			delete(f.subscribers, topic)
		}
	}
}

// Publish fans a transition out to the pair topic and both account topics.
// Called by the lifecycle manager after the transition is durable.
func (f *ChangeFeed) Publish(a, b string, status models.ConnectionStatus, requestID string) {
	event := models.ConnectionEvent{
		PairKey:    models.PairKey(a, b),
		AccountA:   a,
		AccountB:   b,
		Status:     status,
		RequestID:  requestID,
		OccurredAt: time.Now(),
	}

	f.mu.RLock()
	targets := make([]*Subscription, 0)
	for _, topic := range []string{event.PairKey, accountTopic(a), accountTopic(b)} {
		for sub := range f.subscribers[topic] {
			targets = append(targets, sub)
		}
	}
	f.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(event)
	}
}
