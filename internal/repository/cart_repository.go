package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoCartRepository) GetActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	filter := bson.M{"user_id": userID, "status": domain.CartStatusActive}
	return m.findOne(ctx, filter)
}

func (m *mongoCartRepository) GetCartByID(ctx context.Context, cartID string) (*domain.Cart, error) {
	return m.findOne(ctx, bson.M{"_id": cartID})
}

func (m *mongoCartRepository) findOne(ctx context.Context, filter bson.M) (*domain.Cart, error) {
	var cart domain.Cart
	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

// CreateCart inserts a new active cart. A concurrent insert for the same user hits
// the partial unique index and is reported as a version conflict.
func (m *mongoCartRepository) CreateCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	cart.Version = 1

	_, err := m.collection.InsertOne(ctx, cart)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

// ReplaceCart writes the whole cart if nobody else wrote it since expectedVersion
// was read. On success cart.Version is bumped.
func (m *mongoCartRepository) ReplaceCart(ctx context.Context, cart *domain.Cart, expectedVersion int64) error {
	cart.Version = expectedVersion + 1
	cart.UpdatedAt = time.Now()

	filter := bson.M{"_id": cart.ID, "version": expectedVersion}
	result, err := m.collection.ReplaceOne(ctx, filter, cart)
	if err != nil {
		cart.Version = expectedVersion
		if mongo.IsDuplicateKeyError(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to replace cart: %w", err)
	}
	if result.MatchedCount == 0 {
		cart.Version = expectedVersion
		return ErrVersionConflict
	}
	return nil
}

func (m *mongoCartRepository) MarkConverted(ctx context.Context, cartID string, expectedVersion int64) error {
	filter := bson.M{
		"_id":     cartID,
		"status":  domain.CartStatusActive,
		"version": expectedVersion,
	}
	update := bson.M{
		"$set": bson.M{"status": domain.CartStatusConverted, "updated_at": time.Now()},
		"$inc": bson.M{"version": 1},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to convert cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (m *mongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.CartStatusActive}).
				SetName("one_active_cart_per_user"),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}
