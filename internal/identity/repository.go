package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned when no user matches.
var ErrUserNotFound = errors.New("user not found")

// Repository is the user directory.
type Repository interface {
	// Upsert returns the user for (tenantID, email), creating it on first
	// sight and refreshing its last login otherwise.
	Upsert(ctx context.Context, tenantID, email string, now time.Time) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or touches the user row in one statement.
func (r *PostgresRepository) Upsert(ctx context.Context, tenantID, email string, now time.Time) (User, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO users (id, tenant_id, email, created_at, last_login_at)
        VALUES ($1, $2, $3, $4, $4)
        ON CONFLICT (tenant_id, email) DO UPDATE SET last_login_at = EXCLUDED.last_login_at
        RETURNING id, tenant_id, email, created_at, last_login_at`, uuid.New(), tenantID, email, now.UTC())
	return scanUser(row)
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, tenant_id, email, created_at, last_login_at FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id          uuid.UUID
		user        User
		createdAt   time.Time
		lastLoginAt time.Time
	)
	if err := row.Scan(&id, &user.TenantID, &user.Email, &createdAt, &lastLoginAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()
	user.LastLoginAt = lastLoginAt.UTC()
	return user, nil
}
