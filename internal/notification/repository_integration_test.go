//go:build integration

package notification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *Repository {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%d user=testuser password=testpass dbname=testdb sslmode=disable", host, port.Int())
	db, err := telemetry.OpenDB("postgres", dsn)
	require.NoError(t, err)

	repo := NewRepository(db)
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.RunMigrations("./migrations"))

	t.Cleanup(func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return repo
}

func TestRepository_InsertIsIdempotent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	n := &Notification{
		EventID:   uuid.NewString(),
		EventType: domain.EventOrderCreated,
		UserID:    "user-1",
		OrderID:   "order-1",
		Title:     "Order placed",
		Body:      "Your order has been placed.",
		CreatedAt: time.Now().UTC(),
	}

	inserted, err := repo.Insert(ctx, n)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, n.ID)

	again := *n
	inserted, err = repo.Insert(ctx, &again)
	require.NoError(t, err)
	assert.False(t, inserted)

	items, err := repo.ListByUser(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRepository_ListNewestFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		_, err := repo.Insert(ctx, &Notification{
			EventID:   uuid.NewString(),
			EventType: domain.EventOrderStatusChanged,
			UserID:    "user-1",
			OrderID:   "order-1",
			Title:     fmt.Sprintf("update %d", i),
			Body:      "body",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := repo.Insert(ctx, &Notification{EventID: uuid.NewString(), UserID: "user-2", OrderID: "o", Title: "x", Body: "y", CreatedAt: base})
	require.NoError(t, err)

	items, err := repo.ListByUser(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "update 2", items[0].Title)
	assert.Equal(t, "update 1", items[1].Title)
}
