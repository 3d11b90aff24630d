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

type mongoCheckoutRepository struct {
	collection *mongo.Collection
}

func NewCheckoutRepository(db *mongo.Database) CheckoutRepository {
	return &mongoCheckoutRepository{
		collection: db.Collection("checkout_sessions"),
	}
}

func (m *mongoCheckoutRepository) CreateSession(ctx context.Context, session *domain.CheckoutSession) error {
	if _, err := m.collection.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to create checkout session: %w", err)
	}
	return nil
}

func (m *mongoCheckoutRepository) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	var session domain.CheckoutSession
	err := m.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	return &session, nil
}

func (m *mongoCheckoutRepository) UpdateOpenSession(ctx context.Context, session *domain.CheckoutSession) error {
	session.UpdatedAt = time.Now()
	filter := bson.M{"_id": session.ID, "status": domain.CheckoutStatusOpen}

	result, err := m.collection.ReplaceOne(ctx, filter, session)
	if err != nil {
		return fmt.Errorf("failed to update checkout session: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (m *mongoCheckoutRepository) MarkConfirmed(ctx context.Context, sessionID, orderID string, at time.Time) error {
	return m.closeSession(ctx, sessionID, bson.M{
		"status":     domain.CheckoutStatusConfirmed,
		"order_id":   orderID,
		"updated_at": at,
	})
}

func (m *mongoCheckoutRepository) MarkExpired(ctx context.Context, sessionID string, at time.Time) error {
	return m.closeSession(ctx, sessionID, bson.M{
		"status":     domain.CheckoutStatusExpired,
		"updated_at": at,
	})
}

func (m *mongoCheckoutRepository) closeSession(ctx context.Context, sessionID string, set bson.M) error {
	filter := bson.M{"_id": sessionID, "status": domain.CheckoutStatusOpen}
	result, err := m.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update checkout session status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (m *mongoCheckoutRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(7 * 24 * 60 * 60),
		},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create checkout indexes: %w", err)
	}
	return nil
}
