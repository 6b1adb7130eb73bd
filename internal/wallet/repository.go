package wallet

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
	// ErrNotFound is returned when no wallet exists for the pair.
	ErrNotFound = errors.New("wallet not found")
	// ErrWalletExists is returned when the (tenant, user) pair already has a wallet.
	ErrWalletExists = errors.New("wallet already exists")
)

const uniqueViolation = "23505"

// Repository persists custody wallets. Implementations enforce uniqueness of
// (TenantID, UserIdentifier).
type Repository interface {
	Find(ctx context.Context, tenantID, userID string) (CustodyWallet, error)
	Insert(ctx context.Context, w CustodyWallet) (CustodyWallet, error)
	GetPublicKey(ctx context.Context, tenantID, userID string) (string, error)
	GetEncryptedSecret(ctx context.Context, tenantID, userID string) (EncryptedSecret, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Find fetches the wallet for the pair.
func (r *PostgresRepository) Find(ctx context.Context, tenantID, userID string) (CustodyWallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, tenant_id, user_identifier, public_key, encrypted_secret, iv, created_at
        FROM custody_wallets WHERE tenant_id = $1 AND user_identifier = $2`, tenantID, userID)
	var (
		w         CustodyWallet
		id        uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &w.TenantID, &w.UserIdentifier, &w.PublicKey, &w.EncryptedSecret, &w.IV, &createdAt); err != nil {
		return CustodyWallet{}, notFound(err)
	}
	w.ID = id.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}

// Insert stores a new wallet. A uniqueness violation maps to ErrWalletExists.
func (r *PostgresRepository) Insert(ctx context.Context, w CustodyWallet) (CustodyWallet, error) {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return CustodyWallet{}, err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO custody_wallets (id, tenant_id, user_identifier, public_key, encrypted_secret, iv, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`, id, w.TenantID, w.UserIdentifier, w.PublicKey, w.EncryptedSecret, w.IV, w.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return CustodyWallet{}, ErrWalletExists
		}
		return CustodyWallet{}, err
	}
	return w, nil
}

// GetPublicKey reads only the public key for the pair.
func (r *PostgresRepository) GetPublicKey(ctx context.Context, tenantID, userID string) (string, error) {
	var pub string
	err := r.db.QueryRow(ctx, `SELECT public_key FROM custody_wallets WHERE tenant_id = $1 AND user_identifier = $2`,
		tenantID, userID).Scan(&pub)
	if err != nil {
		return "", notFound(err)
	}
	return pub, nil
}

// GetEncryptedSecret reads only the ciphertext projection for the pair.
func (r *PostgresRepository) GetEncryptedSecret(ctx context.Context, tenantID, userID string) (EncryptedSecret, error) {
	var s EncryptedSecret
	err := r.db.QueryRow(ctx, `SELECT encrypted_secret, iv FROM custody_wallets WHERE tenant_id = $1 AND user_identifier = $2`,
		tenantID, userID).Scan(&s.Ciphertext, &s.IV)
	if err != nil {
		return EncryptedSecret{}, notFound(err)
	}
	return s, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
