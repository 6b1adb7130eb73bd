package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no app matches.
	ErrNotFound = errors.New("app not found")
	// ErrKeyExists is returned when a publishable key collides.
	ErrKeyExists = errors.New("publishable key already exists")
)

// Repository persists apps. PublishableKey is unique across all apps.
type Repository interface {
	Create(ctx context.Context, app App) error
	FindByKey(ctx context.Context, key string) (App, error)
	FindByID(ctx context.Context, id string) (App, error)
	ListByOwner(ctx context.Context, ownerID string) ([]App, error)
}

// PostgresRepository stores apps in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed app repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an app.
func (r *PostgresRepository) Create(ctx context.Context, app App) error {
	id, err := uuid.Parse(app.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO apps (id, owner_id, name, publishable_key, created_at)
        VALUES ($1, $2, $3, $4, $5)`, id, app.OwnerID, app.Name, app.PublishableKey, app.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrKeyExists
	}
	return err
}

// FindByKey resolves a publishable key.
func (r *PostgresRepository) FindByKey(ctx context.Context, key string) (App, error) {
	return scanApp(r.db.QueryRow(ctx, `SELECT id, owner_id, name, publishable_key, created_at
        FROM apps WHERE publishable_key = $1`, key))
}

// FindByID fetches an app by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (App, error) {
	appID, err := uuid.Parse(id)
	if err != nil {
		return App{}, ErrNotFound
	}
	return scanApp(r.db.QueryRow(ctx, `SELECT id, owner_id, name, publishable_key, created_at
        FROM apps WHERE id = $1`, appID))
}

// ListByOwner returns the owner's apps, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]App, error) {
	rows, err := r.db.Query(ctx, `SELECT id, owner_id, name, publishable_key, created_at
        FROM apps WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := []App{}
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func scanApp(row pgx.Row) (App, error) {
	var (
		app       App
		id        uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &app.OwnerID, &app.Name, &app.PublishableKey, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return App{}, ErrNotFound
		}
		return App{}, err
	}
	app.ID = id.String()
	app.CreatedAt = createdAt.UTC()
	return app, nil
}
