package repositories

import (
	"context"
	"time"

	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AccountRepository defines the read surface the connection subsystem needs
// from the accounts collection. Profile CRUD proper is owned by the profile
// service and is not part of this repository.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, account *models.Account) error
}

// MongoAccountRepository implements AccountRepository for MongoDB
type MongoAccountRepository struct {
	collection *mongo.Collection
}

// NewMongoAccountRepository creates a new MongoAccountRepository
func NewMongoAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{collection: db.Collection("accounts")}
}

// GetByID retrieves an account by its ID
func (r *MongoAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Exists reports whether an account with the given ID exists
func (r *MongoAccountRepository) Exists(ctx context.Context, id string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new account document
func (r *MongoAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	if account.Friends == nil {
		account.Friends = []string{}
	}
	_, err := r.collection.InsertOne(ctx, account)
	return err
}
