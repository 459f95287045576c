package repositories

import (
	"context"
	"errors"

	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresFriendEdgeRepository implements FriendListRepository over a
// dedicated edge table instead of denormalized per-account arrays. A
// friendship is a single canonical row, so the two-write hazard of the array
// representation disappears: AddFriend from either perspective upserts the
// same row and RemoveFriend deletes it, each in one statement. Repair-on-read
// still runs against this backend but never finds anything to fix.
type PostgresFriendEdgeRepository struct {
	db *gorm.DB
}

// NewPostgresFriendEdgeRepository creates a new PostgresFriendEdgeRepository
func NewPostgresFriendEdgeRepository(db *gorm.DB) *PostgresFriendEdgeRepository {
	return &PostgresFriendEdgeRepository{db: db}
}

// AddFriend records the friendship edge for the pair (idempotent upsert)
func (r *PostgresFriendEdgeRepository) AddFriend(ctx context.Context, accountID, friendID string) error {
	edge := models.FriendEdge{AccountA: accountID, AccountB: friendID}
	edge.EnsureCanonicalOrder()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edge).Error
}

// RemoveFriend deletes the friendship edge for the pair (idempotent)
func (r *PostgresFriendEdgeRepository) RemoveFriend(ctx context.Context, accountID, friendID string) error {
	edge := models.FriendEdge{AccountA: accountID, AccountB: friendID}
	edge.EnsureCanonicalOrder()
	return r.db.WithContext(ctx).
		Where("account_a = ? AND account_b = ?", edge.AccountA, edge.AccountB).
		Delete(&models.FriendEdge{}).Error
}

// Contains reports whether the pair's friendship edge exists
func (r *PostgresFriendEdgeRepository) Contains(ctx context.Context, accountID, friendID string) (bool, error) {
	edge := models.FriendEdge{AccountA: accountID, AccountB: friendID}
	edge.EnsureCanonicalOrder()
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FriendEdge{}).
		Where("account_a = ? AND account_b = ?", edge.AccountA, edge.AccountB).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListFriends retrieves the other endpoint of every edge touching the account
func (r *PostgresFriendEdgeRepository) ListFriends(ctx context.Context, accountID string) ([]string, error) {
	var edges []models.FriendEdge
	err := r.db.WithContext(ctx).
		Where("account_a = ? OR account_b = ?", accountID, accountID).
		Find(&edges).Error
	if err != nil {
		return nil, err
	}

	friends := make([]string, 0, len(edges))
	for _, e := range edges {
		if e.AccountA == accountID {
			friends = append(friends, e.AccountB)
		} else {
			friends = append(friends, e.AccountA)
		}
	}
	return friends, nil
}

// ListAccountIDs retrieves every account ID that appears in an edge
func (r *PostgresFriendEdgeRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	var edges []models.FriendEdge
	if err := r.db.WithContext(ctx).Find(&edges).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(edges)*2)
	ids := make([]string, 0, len(edges)*2)
	for _, e := range edges {
		for _, id := range []string{e.AccountA, e.AccountB} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// IsNotFound reports whether err is the gorm record-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
}
