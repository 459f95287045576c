package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rafiq-dev/bandmate/backend/internal/models"
)

// In-memory implementations of the store interfaces. Used by tests and by
// local development without a database; they follow the same semantics as the
// production backends, including the duplicate-pair guard and the
// denormalized friends array with its independent per-account writes.

// MemoryConnectionRequestRepository implements ConnectionRequestRepository in memory
type MemoryConnectionRequestRepository struct {
	mu     sync.RWMutex
	byID   map[string]*models.ConnectionRequest
	byPair map[string]string // pair key -> request ID
}

// NewMemoryConnectionRequestRepository creates an empty in-memory request store
func NewMemoryConnectionRequestRepository() *MemoryConnectionRequestRepository {
	return &MemoryConnectionRequestRepository{
		byID:   make(map[string]*models.ConnectionRequest),
		byPair: make(map[string]string),
	}
}

func (r *MemoryConnectionRequestRepository) Create(ctx context.Context, req *models.ConnectionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req.PairKey = models.PairKey(req.FromID, req.ToID)
	if _, exists := r.byPair[req.PairKey]; exists {
		return ErrDuplicatePair
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = models.RequestStatusPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	stored := *req
	r.byID[req.ID] = &stored
	r.byPair[req.PairKey] = req.ID
	return nil
}

func (r *MemoryConnectionRequestRepository) GetByID(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *req
	return &out, nil
}

func (r *MemoryConnectionRequestRepository) GetByPair(ctx context.Context, a, b string) (*models.ConnectionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPair[models.PairKey(a, b)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *MemoryConnectionRequestRepository) ListIncoming(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	return r.filter(func(req *models.ConnectionRequest) bool { return req.ToID == accountID })
}

func (r *MemoryConnectionRequestRepository) ListOutgoing(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	return r.filter(func(req *models.ConnectionRequest) bool { return req.FromID == accountID })
}

func (r *MemoryConnectionRequestRepository) filter(keep func(*models.ConnectionRequest) bool) ([]models.ConnectionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ConnectionRequest
	for _, req := range r.byID {
		if keep(req) {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryConnectionRequestRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byPair, req.PairKey)
	return nil
}

func (r *MemoryConnectionRequestRepository) DeleteByPair(ctx context.Context, a, b string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := models.PairKey(a, b)
	id, ok := r.byPair[key]
	if !ok {
		return 0, nil
	}
	delete(r.byID, id)
	delete(r.byPair, key)
	return 1, nil
}

// MemoryAccountStore implements AccountRepository and FriendListRepository
// over account documents held in memory, mirroring the Mongo layout: one
// document per account carrying its denormalized friends array.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

// NewMemoryAccountStore creates an in-memory account store seeded with the
// given account IDs.
func NewMemoryAccountStore(accountIDs ...string) *MemoryAccountStore {
	s := &MemoryAccountStore{accounts: make(map[string]*models.Account)}
	for _, id := range accountIDs {
		s.accounts[id] = &models.Account{ID: id, Name: id, Friends: []string{}, CreatedAt: time.Now()}
	}
	return s
}

func (s *MemoryAccountStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.Friends == nil {
		account.Friends = []string{}
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	stored := *account
	s.accounts[account.ID] = &stored
	return nil
}

func (s *MemoryAccountStore) GetByID(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *account
	out.Friends = append([]string(nil), account.Friends...)
	return &out, nil
}

func (s *MemoryAccountStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[id]
	return ok, nil
}

func (s *MemoryAccountStore) AddFriend(ctx context.Context, accountID, friendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	for _, f := range account.Friends {
		if f == friendID {
			return nil
		}
	}
	account.Friends = append(account.Friends, friendID)
	return nil
}

func (s *MemoryAccountStore) RemoveFriend(ctx context.Context, accountID, friendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	for i, f := range account.Friends {
		if f == friendID {
			account.Friends = append(account.Friends[:i], account.Friends[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryAccountStore) Contains(ctx context.Context, accountID, friendID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return false, nil
	}
	for _, f := range account.Friends {
		if f == friendID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryAccountStore) ListFriends(ctx context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]string(nil), account.Friends...), nil
}

func (s *MemoryAccountStore) ListAccountIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// MemoryNotificationRepository implements NotificationRepository in memory
type MemoryNotificationRepository struct {
	mu            sync.RWMutex
	notifications []models.Notification
}

// NewMemoryNotificationRepository creates an empty in-memory notification store
func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{}
}

func (r *MemoryNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	r.notifications = append(r.notifications, *notification)
	return nil
}

func (r *MemoryNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, page, limit int) ([]models.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []models.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID {
			all = append(all, n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *MemoryNotificationRepository) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MemoryNotificationRepository) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].ID == notificationID && r.notifications[i].RecipientID == recipientID {
			r.notifications[i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryNotificationRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.notifications {
		if r.notifications[i].RecipientID == recipientID {
			r.notifications[i].IsRead = true
		}
	}
	return nil
}

func (r *MemoryNotificationRepository) DeleteForPair(ctx context.Context, recipientID, actorID, notificationType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.notifications[:0]
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && n.ActorID == actorID && n.Type == notificationType {
			continue
		}
		kept = append(kept, n)
	}
	r.notifications = kept
	return nil
}
