package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Store is the notification log.
type Store interface {
	// Insert records n once per event id and reports whether a row was written.
	Insert(ctx context.Context, n *Notification) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
}

type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open pool. The pool is expected to come from
// telemetry.OpenDB so queries are traced.
func NewRepository(db *sql.DB) *Repository {
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	return &Repository{db: db}
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func (r *Repository) RunMigrations(dir string) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "notifications_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, n *Notification) (bool, error) {
	query := `INSERT INTO notifications (event_id, event_type, user_id, order_id, title, body, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (event_id) DO NOTHING
	          RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		n.EventID,
		string(n.EventType),
		n.UserID,
		n.OrderID,
		n.Title,
		n.Body,
		n.CreatedAt,
	).Scan(&n.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return true, nil
}

// ListByUser returns the newest notifications first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	query := `SELECT id, event_id, event_type, user_id, order_id, title, body, created_at
	          FROM notifications WHERE user_id = $1
	          ORDER BY created_at DESC, id DESC
	          LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications by user id: %w", err)
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.EventType, &n.UserID, &n.OrderID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
