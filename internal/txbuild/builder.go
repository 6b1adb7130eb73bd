// Package txbuild constructs unsigned Stellar transactions. It performs no
// I/O: sequence numbers are supplied by the caller.
package txbuild

import (
	"errors"
	"fmt"

	"github.com/stellar/go/txnbuild"

	"github.com/polo-core/polo_core/internal/network"
)

const (
	// BaseFee is the flat per-operation fee in stroops.
	BaseFee = txnbuild.MinBaseFee
	// StartingBalance covers the 1 XLM base reserve plus one 0.5 XLM
	// trustline reserve, with headroom for fees.
	StartingBalance = "2"
)

// ErrUnsupportedAsset is returned for an asset symbol the network does not know.
var ErrUnsupportedAsset = errors.New("unsupported asset")

// Source is the account a transaction is built against.
type Source struct {
	AccountID string
	Sequence  int64
}

// Option adjusts transaction parameters before the transaction is built.
type Option func(*txnbuild.TransactionParams)

// WithTimeout bounds validity to the next seconds from now.
func WithTimeout(seconds int64) Option {
	return func(p *txnbuild.TransactionParams) {
		p.Preconditions.TimeBounds = txnbuild.NewTimeout(seconds)
	}
}

// Builder builds transactions for one network.
type Builder struct {
	net network.Network
}

// New returns a builder for net.
func New(net network.Network) *Builder {
	return &Builder{net: net}
}

// Network returns the network the builder targets.
func (b *Builder) Network() network.Network {
	return b.net
}

// StableAsset returns the platform stable asset.
func (b *Builder) StableAsset() txnbuild.CreditAsset {
	return txnbuild.CreditAsset{Code: b.net.StableCode, Issuer: b.net.StableIssuer}
}

// Asset maps an API asset symbol to a txnbuild asset.
func (b *Builder) Asset(symbol string) (txnbuild.Asset, error) {
	switch symbol {
	case network.NativeSymbol:
		return txnbuild.NativeAsset{}, nil
	case b.net.StableCode:
		return b.StableAsset(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAsset, symbol)
	}
}

// Onboarding funds newAccount from sponsor and opens the stable-asset
// trustline for it in a single transaction. It needs signatures from both
// the sponsor and the new account.
func (b *Builder) Onboarding(sponsor Source, newAccount string, opts ...Option) (*txnbuild.Transaction, error) {
	line, err := b.StableAsset().ToChangeTrustAsset()
	if err != nil {
		return nil, fmt.Errorf("stable trustline asset: %w", err)
	}
	ops := []txnbuild.Operation{
		&txnbuild.CreateAccount{
			Destination:   newAccount,
			Amount:        StartingBalance,
			SourceAccount: sponsor.AccountID,
		},
		&txnbuild.ChangeTrust{
			Line:          line,
			Limit:         txnbuild.MaxTrustlineLimit,
			SourceAccount: newAccount,
		},
	}
	return b.build(sponsor, ops, opts)
}

// Payment moves amount of the asset identified by symbol from source to
// destination. source.Sequence must be the account's current sequence.
func (b *Builder) Payment(source Source, destination, amount, symbol string, opts ...Option) (*txnbuild.Transaction, error) {
	asset, err := b.Asset(symbol)
	if err != nil {
		return nil, err
	}
	ops := []txnbuild.Operation{
		&txnbuild.Payment{
			Destination: destination,
			Amount:      amount,
			Asset:       asset,
		},
	}
	return b.build(source, ops, opts)
}

func (b *Builder) build(source Source, ops []txnbuild.Operation, opts []Option) (*txnbuild.Transaction, error) {
	account := txnbuild.NewSimpleAccount(source.AccountID, source.Sequence)
	params := txnbuild.TransactionParams{
		SourceAccount:        &account,
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              BaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	}
	for _, opt := range opts {
		opt(&params)
	}
	tx, err := txnbuild.NewTransaction(params)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	return tx, nil
}
