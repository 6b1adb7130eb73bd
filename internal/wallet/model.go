package wallet

import "time"

// Get-or-create outcomes.
const (
	StatusActive  = "active"
	StatusCreated = "created"
)

// CustodyWallet is the custodial keypair held for one user of one tenant.
// EncryptedSecret and IV are opaque ciphertext produced by the secret cipher.
type CustodyWallet struct {
	ID              string
	TenantID        string
	UserIdentifier  string
	PublicKey       string
	EncryptedSecret string
	IV              string
	CreatedAt       time.Time
}

// EncryptedSecret is the projection needed to decrypt a wallet key.
type EncryptedSecret struct {
	Ciphertext string
	IV         string
}

// Result is returned by GetOrCreate. TxHash is set only for StatusCreated.
type Result struct {
	Status    string `json:"status"`
	PublicKey string `json:"public_key"`
	TxHash    string `json:"tx_hash,omitempty"`
}

// Balance is a live balance snapshot for a wallet.
type Balance struct {
	PublicKey string            `json:"public_key"`
	Balances  map[string]string `json:"balances"`
	AsOf      time.Time         `json:"as_of"`
}
