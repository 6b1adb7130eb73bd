// Package ledger talks to the Stellar network.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stellar/go/txnbuild"
)

var (
	// ErrAccountNotFound is returned when the account does not exist on chain.
	ErrAccountNotFound = errors.New("account not found")
	// ErrUnavailable wraps transport failures talking to the network.
	ErrUnavailable = errors.New("ledger unavailable")
)

const (
	// DefaultHistoryLimit is used when the caller passes a non-positive limit.
	DefaultHistoryLimit = 10
	// MaxHistoryLimit is the hard upper bound for a history page.
	MaxHistoryLimit = 200
)

// Account is the on-chain state needed to build transactions.
type Account struct {
	ID       string
	Sequence int64
	Balances map[string]string
}

// SubmitError carries the network's rejection codes for a transaction.
type SubmitError struct {
	TransactionCode string
	OperationCodes  []string
	Detail          string
}

func (e *SubmitError) Error() string {
	var b strings.Builder
	b.WriteString("transaction rejected")
	if e.TransactionCode != "" {
		b.WriteString(": ")
		b.WriteString(e.TransactionCode)
	}
	if len(e.OperationCodes) > 0 {
		fmt.Fprintf(&b, " %v", e.OperationCodes)
	}
	if e.TransactionCode == "" && e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// HasOperationCode reports whether any operation failed with code.
func (e *SubmitError) HasOperationCode(code string) bool {
	for _, c := range e.OperationCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Submission is a successfully applied transaction.
type Submission struct {
	Hash   string
	Ledger int32
}

// Payment is one payment-like operation touching an account.
type Payment struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	TransactionHash string    `json:"transaction_hash"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Amount          string    `json:"amount"`
	Asset           string    `json:"asset"`
	CreatedAt       time.Time `json:"created_at"`
	Successful      bool      `json:"transaction_successful"`
}

// History is a bounded page of payments, newest first. Failed is set when
// the network could not be reached; Records is then empty.
type History struct {
	Records []Payment
	Failed  bool
}

// Client is the contract implemented by ledger backends. No method retries.
type Client interface {
	LoadAccount(ctx context.Context, accountID string) (Account, error)
	Submit(ctx context.Context, tx *txnbuild.Transaction) (Submission, error)
	Balances(ctx context.Context, accountID string) (map[string]string, error)
	PaymentsHistory(ctx context.Context, accountID string, limit int) History
}

// ClampLimit bounds a history page size to [1, max].
func ClampLimit(limit, max int) int {
	if max <= 0 || max > MaxHistoryLimit {
		max = MaxHistoryLimit
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > max {
		limit = max
	}
	return limit
}
