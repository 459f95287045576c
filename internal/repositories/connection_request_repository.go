package repositories

import (
	"context"
	"time"

	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectionRequestRepository defines the interface for connection request
// data operations. The store holds only live pending records; transitions
// delete rather than update.
type ConnectionRequestRepository interface {
	// Create inserts a pending request. It must fail with ErrDuplicatePair
	// when a pending request already exists for the same unordered pair, so
	// that two concurrent sends cannot both insert.
	Create(ctx context.Context, req *models.ConnectionRequest) error
	GetByID(ctx context.Context, id string) (*models.ConnectionRequest, error)
	// GetByPair returns the pending request between two accounts regardless
	// of direction, or ErrNotFound.
	GetByPair(ctx context.Context, a, b string) (*models.ConnectionRequest, error)
	ListIncoming(ctx context.Context, accountID string) ([]models.ConnectionRequest, error)
	ListOutgoing(ctx context.Context, accountID string) ([]models.ConnectionRequest, error)
	Delete(ctx context.Context, id string) error
	// DeleteByPair removes every request record for the unordered pair,
	// returning the number deleted. Used for residual cleanup on unfriend.
	DeleteByPair(ctx context.Context, a, b string) (int64, error)
}

// MongoConnectionRequestRepository implements ConnectionRequestRepository for MongoDB
type MongoConnectionRequestRepository struct {
	collection *mongo.Collection
}

// NewMongoConnectionRequestRepository creates a new MongoConnectionRequestRepository
func NewMongoConnectionRequestRepository(db *mongo.Database) *MongoConnectionRequestRepository {
	return &MongoConnectionRequestRepository{collection: db.Collection("connection_requests")}
}

// EnsureIndexes creates the unique pair_key index that backs the
// single-pending-per-pair invariant. The existence check and the insert
// collapse into one atomic operation: the loser of a concurrent send gets a
// duplicate key error instead of a second live record.
func (r *MongoConnectionRequestRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Create inserts a pending connection request
func (r *MongoConnectionRequestRepository) Create(ctx context.Context, req *models.ConnectionRequest) error {
	req.PairKey = models.PairKey(req.FromID, req.ToID)
	req.Status = models.RequestStatusPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, req)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicatePair
	}
	return err
}

// GetByID retrieves a connection request by ID
func (r *MongoConnectionRequestRepository) GetByID(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByPair retrieves the pending request between two accounts, either direction
func (r *MongoConnectionRequestRepository) GetByPair(ctx context.Context, a, b string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.collection.FindOne(ctx, bson.M{"pair_key": models.PairKey(a, b)}).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListIncoming retrieves pending requests addressed to an account
func (r *MongoConnectionRequestRepository) ListIncoming(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	return r.list(ctx, bson.M{"to_id": accountID})
}

// ListOutgoing retrieves pending requests sent by an account
func (r *MongoConnectionRequestRepository) ListOutgoing(ctx context.Context, accountID string) ([]models.ConnectionRequest, error) {
	return r.list(ctx, bson.M{"from_id": accountID})
}

func (r *MongoConnectionRequestRepository) list(ctx context.Context, filter bson.M) ([]models.ConnectionRequest, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var requests []models.ConnectionRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// Delete removes a connection request by ID
func (r *MongoConnectionRequestRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByPair removes all request records for an unordered pair
func (r *MongoConnectionRequestRepository) DeleteByPair(ctx context.Context, a, b string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"pair_key": models.PairKey(a, b)})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
