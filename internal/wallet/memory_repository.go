package wallet

import (
	"context"
	"sync"
)

type pairKey struct {
	tenantID string
	userID   string
}

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[pairKey]CustodyWallet
}

// NewMemoryRepository constructs an in-memory repository for tests and
// local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[pairKey]CustodyWallet)}
}

func (r *memoryRepository) Find(_ context.Context, tenantID, userID string) (CustodyWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[pairKey{tenantID, userID}]
	if !ok {
		return CustodyWallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) Insert(_ context.Context, w CustodyWallet) (CustodyWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{w.TenantID, w.UserIdentifier}
	if _, exists := r.storage[key]; exists {
		return CustodyWallet{}, ErrWalletExists
	}
	r.storage[key] = w
	return w, nil
}

func (r *memoryRepository) GetPublicKey(ctx context.Context, tenantID, userID string) (string, error) {
	w, err := r.Find(ctx, tenantID, userID)
	if err != nil {
		return "", err
	}
	return w.PublicKey, nil
}

func (r *memoryRepository) GetEncryptedSecret(ctx context.Context, tenantID, userID string) (EncryptedSecret, error) {
	w, err := r.Find(ctx, tenantID, userID)
	if err != nil {
		return EncryptedSecret{}, err
	}
	return EncryptedSecret{Ciphertext: w.EncryptedSecret, IV: w.IV}, nil
}
