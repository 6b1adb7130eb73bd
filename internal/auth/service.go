package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/identity"
	"github.com/polo-core/polo_core/internal/logging"
	"github.com/polo-core/polo_core/internal/otp"
	"github.com/polo-core/polo_core/internal/wallet"
)

// WalletProvisioner provisions the custody wallet of a new SDK user.
type WalletProvisioner interface {
	GetOrCreate(ctx context.Context, tenantID, userID string) (wallet.Result, error)
}

// Service runs the OTP login flows for SDK users and developers.
type Service struct {
	codes   *otp.Service
	ids     *identity.Service
	wallets WalletProvisioner
	logger  *slog.Logger
}

// NewService wires the login flows.
func NewService(codes *otp.Service, ids *identity.Service, wallets WalletProvisioner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{codes: codes, ids: ids, wallets: wallets, logger: logger}
}

// SDKLogin is the outcome of a successful SDK verify.
type SDKLogin struct {
	User    identity.User
	Session identity.Session
	Wallet  wallet.Result
}

// ConsoleLogin is the outcome of a successful console verify.
type ConsoleLogin struct {
	User    identity.User
	Session identity.Session
}

// SDKChallenge emails an 8-digit code scoped to tenantID.
func (s *Service) SDKChallenge(ctx context.Context, tenantID, email string) (time.Time, error) {
	if tenantID == "" {
		return time.Time{}, apperr.New(apperr.CodeTenantRequired, "publishable key required")
	}
	normalized, err := normalize(email)
	if err != nil {
		return time.Time{}, err
	}
	return s.codes.Challenge(ctx, tenantID, normalized, otp.SDKDigits)
}

// SDKVerify consumes the code, records the user, provisions the wallet and
// issues a tenant-bound session.
func (s *Service) SDKVerify(ctx context.Context, tenantID, email, code string) (SDKLogin, error) {
	if tenantID == "" {
		return SDKLogin{}, apperr.New(apperr.CodeTenantRequired, "publishable key required")
	}
	normalized, err := normalize(email)
	if err != nil {
		return SDKLogin{}, err
	}
	if err := s.codes.Verify(ctx, tenantID, normalized, code); err != nil {
		return SDKLogin{}, err
	}
	user, err := s.ids.Login(ctx, tenantID, normalized)
	if err != nil {
		return SDKLogin{}, apperr.Wrap(apperr.CodeInternal, "user could not be stored", err)
	}
	w, err := s.wallets.GetOrCreate(ctx, tenantID, user.Email)
	if err != nil {
		return SDKLogin{}, err
	}
	session, err := s.ids.IssueSession(user)
	if err != nil {
		return SDKLogin{}, apperr.Wrap(apperr.CodeInternal, "session could not be issued", err)
	}
	s.logger.Info("sdk user signed in",
		logging.Key("tenant_id", tenantID),
		logging.Key("user_id", user.ID),
		slog.String("wallet_status", w.Status),
	)
	return SDKLogin{User: user, Session: session, Wallet: w}, nil
}

// ConsoleChallenge emails a 6-digit developer login code.
func (s *Service) ConsoleChallenge(ctx context.Context, email string) (time.Time, error) {
	normalized, err := normalize(email)
	if err != nil {
		return time.Time{}, err
	}
	return s.codes.Challenge(ctx, "", normalized, otp.ConsoleDigits)
}

// ConsoleVerify consumes the code and issues a developer session.
func (s *Service) ConsoleVerify(ctx context.Context, email, code string) (ConsoleLogin, error) {
	normalized, err := normalize(email)
	if err != nil {
		return ConsoleLogin{}, err
	}
	if err := s.codes.Verify(ctx, "", normalized, code); err != nil {
		return ConsoleLogin{}, err
	}
	user, err := s.ids.Login(ctx, "", normalized)
	if err != nil {
		return ConsoleLogin{}, apperr.Wrap(apperr.CodeInternal, "developer could not be stored", err)
	}
	session, err := s.ids.IssueSession(user)
	if err != nil {
		return ConsoleLogin{}, apperr.Wrap(apperr.CodeInternal, "session could not be issued", err)
	}
	return ConsoleLogin{User: user, Session: session}, nil
}

func normalize(email string) (string, error) {
	normalized, err := identity.NormalizeEmail(email)
	if errors.Is(err, identity.ErrInvalidEmail) {
		return "", apperr.New(apperr.CodeInputValidation, "valid email is required")
	}
	return normalized, err
}
