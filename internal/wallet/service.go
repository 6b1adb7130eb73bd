package wallet

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/ledger"
	"github.com/polo-core/polo_core/internal/logging"
	"github.com/polo-core/polo_core/internal/metrics"
	"github.com/polo-core/polo_core/internal/secret"
	"github.com/polo-core/polo_core/internal/txbuild"
)

// Cosigner adds the sponsor signature to onboarding transactions.
type Cosigner interface {
	PublicKey() (string, error)
	Cosign(tx *txnbuild.Transaction) (*txnbuild.Transaction, error)
}

// Sealer encrypts key material for storage.
type Sealer interface {
	Encrypt(plaintext []byte) (secret.Sealed, error)
}

// Service is the wallet manager: it provisions custody wallets and reads
// their on-chain state.
type Service struct {
	repo       Repository
	ledger     ledger.Client
	builder    *txbuild.Builder
	sponsor    Cosigner
	sealer     Sealer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	historyMax int
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHistoryLimit caps history pages at n records.
func WithHistoryLimit(n int) Option {
	return func(s *Service) { s.historyMax = n }
}

// NewService builds a wallet manager.
func NewService(repo Repository, led ledger.Client, builder *txbuild.Builder, sponsor Cosigner, sealer Sealer, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		ledger:     led,
		builder:    builder,
		sponsor:    sponsor,
		sealer:     sealer,
		logger:     logging.Discard(),
		historyMax: ledger.MaxHistoryLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the wallet for (tenantID, userID), provisioning a
// funded on-chain account with a stable-asset trustline when none exists.
// Nothing is persisted unless the onboarding transaction succeeds.
func (s *Service) GetOrCreate(ctx context.Context, tenantID, userID string) (Result, error) {
	if err := checkPair(tenantID, userID); err != nil {
		return Result{}, err
	}

	existing, err := s.repo.Find(ctx, tenantID, userID)
	if err == nil {
		s.metrics.WalletResult(StatusActive)
		return Result{Status: StatusActive, PublicKey: existing.PublicKey}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Result{}, apperr.Wrap(apperr.CodeInternal, "wallet lookup failed", err)
	}

	res, err := s.create(ctx, tenantID, userID)
	if err != nil {
		s.metrics.WalletResult("failed")
		return Result{}, err
	}
	s.metrics.WalletResult(res.Status)
	return res, nil
}

func (s *Service) create(ctx context.Context, tenantID, userID string) (Result, error) {
	user, err := keypair.Random()
	if err != nil {
		return Result{}, apperr.Wrap(apperr.CodeInternal, "keypair generation failed", err)
	}

	tx, err := s.onboardingTx(ctx, user)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	sub, err := s.ledger.Submit(ctx, tx)
	s.metrics.ObserveSubmit("onboarding", start, err)
	if err != nil {
		s.logger.Warn("wallet onboarding rejected",
			logging.Key("tenant_id", tenantID),
			logging.Key("public_key", user.Address()),
			slog.Any("error", err),
		)
		return Result{}, apperr.Wrap(apperr.CodeWalletCreationFailed, "wallet creation failed", err)
	}

	seed := []byte(user.Seed())
	sealed, err := s.sealer.Encrypt(seed)
	secret.Wipe(seed)
	if err != nil {
		s.logOrphan(tenantID, user.Address(), "encrypt")
		return Result{}, apperr.Wrap(apperr.CodeCipherFailure, "wallet secret could not be stored", err)
	}

	record := CustodyWallet{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		UserIdentifier:  userID,
		PublicKey:       user.Address(),
		EncryptedSecret: sealed.Ciphertext,
		IV:              sealed.IV,
		CreatedAt:       s.now(),
	}
	if _, err := s.repo.Insert(ctx, record); err != nil {
		s.logOrphan(tenantID, user.Address(), "insert")
		if errors.Is(err, ErrWalletExists) {
			winner, findErr := s.repo.Find(ctx, tenantID, userID)
			if findErr != nil {
				return Result{}, apperr.Wrap(apperr.CodeInternal, "wallet lookup failed", findErr)
			}
			return Result{Status: StatusActive, PublicKey: winner.PublicKey}, nil
		}
		return Result{}, apperr.Wrap(apperr.CodeInternal, "wallet could not be stored", err)
	}

	s.logger.Info("custody wallet created",
		logging.Key("tenant_id", tenantID),
		logging.Key("public_key", record.PublicKey),
		logging.Key("tx_hash", sub.Hash),
	)
	return Result{Status: StatusCreated, PublicKey: record.PublicKey, TxHash: sub.Hash}, nil
}

func (s *Service) onboardingTx(ctx context.Context, user *keypair.Full) (*txnbuild.Transaction, error) {
	sponsorID, err := s.sponsor.PublicKey()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "sponsor unavailable", err)
	}
	account, err := s.ledger.LoadAccount(ctx, sponsorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeWalletCreationFailed, "sponsor account unavailable", err)
	}
	tx, err := s.builder.Onboarding(txbuild.Source{AccountID: account.ID, Sequence: account.Sequence}, user.Address())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "build onboarding transaction", err)
	}
	if tx, err = s.sponsor.Cosign(tx); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "sponsor signature failed", err)
	}
	if tx, err = tx.Sign(s.builder.Network().Passphrase, user); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "user signature failed", err)
	}
	return tx, nil
}

// logOrphan records a funded account whose wallet row was not kept.
func (s *Service) logOrphan(tenantID, publicKey, stage string) {
	s.logger.Warn("onboarded account not persisted",
		logging.Key("tenant_id", tenantID),
		logging.Key("public_key", publicKey),
		slog.String("stage", stage),
	)
}

// PublicKey returns the wallet address for the pair.
func (s *Service) PublicKey(ctx context.Context, tenantID, userID string) (string, error) {
	if err := checkPair(tenantID, userID); err != nil {
		return "", err
	}
	pub, err := s.repo.GetPublicKey(ctx, tenantID, userID)
	if errors.Is(err, ErrNotFound) {
		return "", apperr.New(apperr.CodeWalletNotFound, "wallet not found; create a wallet first")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "wallet lookup failed", err)
	}
	return pub, nil
}

// Balance returns live balances for the pair's wallet.
func (s *Service) Balance(ctx context.Context, tenantID, userID string) (Balance, error) {
	pub, err := s.PublicKey(ctx, tenantID, userID)
	if err != nil {
		return Balance{}, err
	}
	balances, err := s.ledger.Balances(ctx, pub)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return Balance{}, apperr.Wrap(apperr.CodeAccountNotFound, "wallet account not found on ledger", err)
	case err != nil:
		return Balance{}, apperr.Wrap(apperr.CodeLedgerUnavailable, "balance unavailable", err)
	}
	return Balance{PublicKey: pub, Balances: balances, AsOf: s.now()}, nil
}

// HistoryPage is a bounded, newest-first page of payments. Degraded is set
// when the ledger could not be reached.
type HistoryPage struct {
	PublicKey string           `json:"public_key"`
	Records   []ledger.Payment `json:"records"`
	Degraded  bool             `json:"degraded"`
}

// History returns up to limit recent payments for the pair's wallet.
func (s *Service) History(ctx context.Context, tenantID, userID string, limit int) (HistoryPage, error) {
	pub, err := s.PublicKey(ctx, tenantID, userID)
	if err != nil {
		return HistoryPage{}, err
	}
	h := s.ledger.PaymentsHistory(ctx, pub, ledger.ClampLimit(limit, s.historyMax))
	return HistoryPage{PublicKey: pub, Records: h.Records, Degraded: h.Failed}, nil
}

func checkPair(tenantID, userID string) error {
	if tenantID == "" {
		return apperr.New(apperr.CodeTenantRequired, "tenant is required")
	}
	if strings.TrimSpace(userID) == "" {
		return apperr.New(apperr.CodeInputValidation, "user identifier is required")
	}
	return nil
}
