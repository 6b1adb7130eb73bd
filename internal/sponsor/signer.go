// Package sponsor holds the platform funding keypair.
package sponsor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	"github.com/polo-core/polo_core/internal/logging"
)

// ErrInvalidSecret reports a missing or malformed sponsor seed.
var ErrInvalidSecret = errors.New("sponsor secret is missing or malformed")

// Signer owns the sponsor keypair. The keypair is parsed once, on first
// use, and shared read-only afterwards.
type Signer struct {
	passphrase string

	once    sync.Once
	seed    string
	kp      *keypair.Full
	initErr error
}

// New returns a signer for the given seed. Parsing is deferred to Init or
// the first signing call.
func New(seed, passphrase string) *Signer {
	return &Signer{seed: seed, passphrase: passphrase}
}

// Init parses the seed. It is idempotent; every caller observes the result
// of the first attempt.
func (s *Signer) Init() error {
	s.once.Do(func() {
		seed := s.seed
		s.seed = ""
		if seed == "" {
			s.initErr = ErrInvalidSecret
			return
		}
		kp, err := keypair.ParseFull(seed)
		if err != nil {
			s.initErr = ErrInvalidSecret
			return
		}
		s.kp = kp
	})
	return s.initErr
}

// PublicKey returns the sponsor account address.
func (s *Signer) PublicKey() (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	return s.kp.Address(), nil
}

// Cosign adds the sponsor signature to tx, keeping existing signatures.
func (s *Signer) Cosign(tx *txnbuild.Transaction) (*txnbuild.Transaction, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	signed, err := tx.Sign(s.passphrase, s.kp)
	if err != nil {
		return nil, fmt.Errorf("sponsor sign: %w", err)
	}
	return signed, nil
}

// String never renders key material.
func (s *Signer) String() string {
	if s == nil {
		return "sponsor(nil)"
	}
	if err := s.Init(); err != nil {
		return "sponsor(invalid)"
	}
	return "sponsor(" + logging.Truncate(s.kp.Address()) + ")"
}

// GoString keeps %#v from dumping the keypair.
func (s *Signer) GoString() string {
	return s.String()
}
