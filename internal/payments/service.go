// Package payments sends payments from custody wallets.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/ledger"
	"github.com/polo-core/polo_core/internal/logging"
	"github.com/polo-core/polo_core/internal/metrics"
	"github.com/polo-core/polo_core/internal/network"
	"github.com/polo-core/polo_core/internal/notification"
	"github.com/polo-core/polo_core/internal/secret"
	"github.com/polo-core/polo_core/internal/txbuild"
	"github.com/polo-core/polo_core/internal/wallet"
)

const addressLength = 56

// SecretSource reads a wallet's sealed secret.
type SecretSource interface {
	GetEncryptedSecret(ctx context.Context, tenantID, userID string) (wallet.EncryptedSecret, error)
}

// Opener decrypts sealed wallet secrets.
type Opener interface {
	Decrypt(ciphertextHex, ivHex string) ([]byte, error)
}

// Service signs and submits payments with the sender's custodied key.
type Service struct {
	secrets  SecretSource
	opener   Opener
	ledger   ledger.Client
	builder  *txbuild.Builder
	notifier notification.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService constructs a payment service. notifier may be nil.
func NewService(secrets SecretSource, opener Opener, led ledger.Client, builder *txbuild.Builder, notifier notification.Notifier, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		secrets:  secrets,
		opener:   opener,
		ledger:   led,
		builder:  builder,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
	}
}

// SendInput captures a payment request from a custody wallet.
type SendInput struct {
	TenantID       string
	UserIdentifier string
	Destination    string
	Amount         string
	Asset          string
}

// SendResult describes a submitted payment.
type SendResult struct {
	TxHash string `json:"tx_hash"`
	Amount string `json:"amount"`
	Asset  string `json:"asset"`
}

// Send validates the request, then signs a payment with the sender's key
// and submits it. The decrypted key never outlives the call.
func (s *Service) Send(ctx context.Context, input SendInput) (SendResult, error) {
	req, err := s.validate(input)
	if err != nil {
		s.metrics.PaymentResult("unknown", "invalid")
		return SendResult{}, err
	}

	res, err := s.send(ctx, req)
	if err != nil {
		s.metrics.PaymentResult(req.Asset, "failed")
		return SendResult{}, err
	}
	s.metrics.PaymentResult(req.Asset, "sent")
	s.notify(ctx, req, res)
	return res, nil
}

func (s *Service) validate(in SendInput) (SendInput, error) {
	if in.TenantID == "" {
		return in, apperr.New(apperr.CodeTenantRequired, "tenant is required")
	}
	if strings.TrimSpace(in.UserIdentifier) == "" {
		return in, apperr.New(apperr.CodeInputValidation, "user identifier is required")
	}
	in.Destination = strings.TrimSpace(in.Destination)
	if !validAddress(in.Destination) {
		return in, apperr.New(apperr.CodeInputValidation, fmt.Sprintf("invalid destination; must start with G and be %d characters", addressLength))
	}
	stroops, err := amount.ParseInt64(strings.TrimSpace(in.Amount))
	if err != nil || stroops <= 0 {
		return in, apperr.New(apperr.CodeInputValidation, "amount must be a positive number with at most 7 decimals")
	}
	in.Amount = amount.StringFromInt64(stroops)

	in.Asset = strings.ToUpper(strings.TrimSpace(in.Asset))
	if in.Asset == "" {
		in.Asset = network.NativeSymbol
	}
	if _, err := s.builder.Asset(in.Asset); err != nil {
		return in, apperr.New(apperr.CodeInputValidation, "unsupported asset "+in.Asset)
	}
	return in, nil
}

func validAddress(address string) bool {
	if len(address) != addressLength || address[0] != 'G' {
		return false
	}
	_, err := strkey.Decode(strkey.VersionByteAccountID, address)
	return err == nil
}

func (s *Service) send(ctx context.Context, in SendInput) (SendResult, error) {
	sealed, err := s.secrets.GetEncryptedSecret(ctx, in.TenantID, in.UserIdentifier)
	if errors.Is(err, wallet.ErrNotFound) {
		return SendResult{}, apperr.New(apperr.CodeWalletNotFound, "wallet not found; call wallet/create first")
	}
	if err != nil {
		return SendResult{}, apperr.Wrap(apperr.CodeInternal, "wallet lookup failed", err)
	}

	sender, err := s.openKey(sealed, in.TenantID)
	if err != nil {
		return SendResult{}, err
	}

	account, err := s.ledger.LoadAccount(ctx, sender.Address())
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return SendResult{}, apperr.Wrap(apperr.CodeAccountNotFound, "sender account not found on ledger", err)
	case err != nil:
		return SendResult{}, apperr.Wrap(apperr.CodeLedgerUnavailable, "ledger unavailable", err)
	}

	tx, err := s.builder.Payment(txbuild.Source{AccountID: account.ID, Sequence: account.Sequence}, in.Destination, in.Amount, in.Asset)
	if err != nil {
		return SendResult{}, apperr.Wrap(apperr.CodeInputValidation, "payment could not be built", err)
	}
	tx, err = tx.Sign(s.builder.Network().Passphrase, sender)
	if err != nil {
		return SendResult{}, apperr.Wrap(apperr.CodeInternal, "payment signature failed", err)
	}

	start := time.Now()
	sub, err := s.ledger.Submit(ctx, tx)
	s.metrics.ObserveSubmit("payment", start, err)
	if err != nil {
		var rejected *ledger.SubmitError
		if errors.As(err, &rejected) {
			s.logger.Warn("payment rejected",
				logging.Key("tenant_id", in.TenantID),
				logging.Key("source", account.ID),
				slog.String("tx_code", rejected.TransactionCode),
				slog.Any("op_codes", rejected.OperationCodes),
			)
			return SendResult{}, apperr.Wrap(apperr.CodeLedgerRejected, "payment rejected by the network: "+rejected.Error(), err)
		}
		return SendResult{}, apperr.Wrap(apperr.CodeLedgerUnavailable, "payment could not be submitted", err)
	}

	s.logger.Info("payment sent",
		logging.Key("tenant_id", in.TenantID),
		logging.Key("source", account.ID),
		logging.Key("destination", in.Destination),
		slog.String("asset", in.Asset),
		logging.Key("tx_hash", sub.Hash),
	)
	return SendResult{TxHash: sub.Hash, Amount: in.Amount, Asset: in.Asset}, nil
}

// openKey decrypts the sender seed into a keypair. The plaintext buffer is
// wiped before returning.
func (s *Service) openKey(sealed wallet.EncryptedSecret, tenantID string) (*keypair.Full, error) {
	seed, err := s.opener.Decrypt(sealed.Ciphertext, sealed.IV)
	if err != nil {
		s.logger.Error("wallet secret could not be decrypted", logging.Key("tenant_id", tenantID), slog.Any("error", err))
		return nil, apperr.Wrap(apperr.CodeCipherFailure, "wallet secret unavailable", err)
	}
	kp, err := keypair.ParseFull(string(seed))
	secret.Wipe(seed)
	if err != nil {
		s.logger.Error("stored wallet secret is not a valid seed", logging.Key("tenant_id", tenantID))
		return nil, apperr.New(apperr.CodeCipherFailure, "wallet secret unavailable")
	}
	return kp, nil
}

func (s *Service) notify(ctx context.Context, in SendInput, res SendResult) {
	if s.notifier == nil || !strings.Contains(in.UserIdentifier, "@") {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindPaymentSent,
		Destination: in.UserIdentifier,
		Subject:     "Payment sent",
		Body:        fmt.Sprintf("You sent %s %s to %s. Transaction %s.", res.Amount, res.Asset, logging.Truncate(in.Destination), res.TxHash),
	})
	if err != nil {
		s.logger.Warn("payment notification failed", logging.Key("tx_hash", res.TxHash), slog.Any("error", err))
	}
}
