package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type mongoTransactor struct {
	client *mongo.Client
}

// NewTransactor needs a replica set or sharded cluster; standalone servers reject
// transactions.
func NewTransactor(db *mongo.Database) Transactor {
	return &mongoTransactor{client: db.Client()}
}

func (t *mongoTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)
	return err
}

type indexer interface {
	CreateIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes every write path relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, ix := range []indexer{
		NewCartRepository(db).(indexer),
		NewCheckoutRepository(db).(indexer),
		NewOrderRepository(db),
		NewOutboxRepository(db).(indexer),
		NewUserRepository(db).(indexer),
	} {
		if err := ix.CreateIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
