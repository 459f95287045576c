package repositories

import (
	"context"

	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// FriendListRepository defines the interface for the per-account friend set.
// AddFriend and RemoveFriend MUST be idempotent: re-applying a write that
// already took effect is how targeted repair after a partial failure stays
// safe. Only the connection service writes through this interface.
type FriendListRepository interface {
	AddFriend(ctx context.Context, accountID, friendID string) error
	RemoveFriend(ctx context.Context, accountID, friendID string) error
	Contains(ctx context.Context, accountID, friendID string) (bool, error)
	ListFriends(ctx context.Context, accountID string) ([]string, error)
	// ListAccountIDs feeds the reconciliation sweep.
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// MongoFriendListRepository implements FriendListRepository over the
// denormalized `friends` array on the accounts collection.
type MongoFriendListRepository struct {
	collection *mongo.Collection
}

// NewMongoFriendListRepository creates a new MongoFriendListRepository
func NewMongoFriendListRepository(db *mongo.Database) *MongoFriendListRepository {
	return &MongoFriendListRepository{collection: db.Collection("accounts")}
}

// AddFriend adds friendID to the account's friend set ($addToSet, idempotent)
func (r *MongoFriendListRepository) AddFriend(ctx context.Context, accountID, friendID string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": accountID},
		bson.M{"$addToSet": bson.M{"friends": friendID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveFriend removes friendID from the account's friend set ($pull, idempotent)
func (r *MongoFriendListRepository) RemoveFriend(ctx context.Context, accountID, friendID string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": accountID},
		bson.M{"$pull": bson.M{"friends": friendID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Contains reports whether friendID is in the account's friend set
func (r *MongoFriendListRepository) Contains(ctx context.Context, accountID, friendID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": accountID, "friends": friendID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListFriends retrieves the account's friend set
func (r *MongoFriendListRepository) ListFriends(ctx context.Context, accountID string) ([]string, error) {
	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"_id": accountID}).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return account.Friends, nil
}

// ListAccountIDs retrieves every account ID (reconciliation sweep input)
func (r *MongoFriendListRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	cursor, err := r.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}
