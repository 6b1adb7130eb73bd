package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/logging"
	"github.com/polo-core/polo_core/internal/metrics"
	"github.com/polo-core/polo_core/internal/notification"
)

// Code lengths per login surface.
const (
	SDKDigits     = 8
	ConsoleDigits = 6
)

// Service issues codes, emails them and verifies them.
type Service struct {
	store    Store
	notifier notification.Notifier
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService builds an OTP service.
func NewService(store Store, notifier notification.Notifier, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Challenge issues a digits-long code for identifier within scope, replacing
// any outstanding code, and sends it by email. It returns the expiry.
func (s *Service) Challenge(ctx context.Context, scope, identifier string, digits int) (time.Time, error) {
	code, err := generate(digits)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.CodeInternal, "code generation failed", err)
	}
	now := s.now()
	record := Code{
		ID:         uuid.NewString(),
		Scope:      scope,
		Identifier: identifier,
		Digest:     digest(scope, identifier, code),
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.store.Issue(ctx, record); err != nil {
		return time.Time{}, apperr.Wrap(apperr.CodeInternal, "code could not be stored", err)
	}

	msg := notification.Message{
		Kind:        notification.KindOTPChallenge,
		Destination: identifier,
		Subject:     "Your verification code",
		Body:        code,
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Error("otp delivery failed", logging.Key("identifier", identifier), slog.Any("error", err))
		return time.Time{}, apperr.Wrap(apperr.CodeInternal, "code could not be delivered", err)
	}
	return record.ExpiresAt, nil
}

// Verify consumes code. A code is accepted at most once and never after
// its expiry.
func (s *Service) Verify(ctx context.Context, scope, identifier, code string) error {
	label := scopeLabel(scope)
	if !numeric(code) {
		s.metrics.OTPResult(label, "malformed")
		return apperr.New(apperr.CodeOTPInvalid, "invalid or expired code")
	}
	ok, err := s.store.Consume(ctx, scope, identifier, digest(scope, identifier, code), s.now())
	if err != nil {
		s.metrics.OTPResult(label, "error")
		return apperr.Wrap(apperr.CodeInternal, "code verification failed", err)
	}
	if !ok {
		s.metrics.OTPResult(label, "rejected")
		return apperr.New(apperr.CodeOTPInvalid, "invalid or expired code")
	}
	s.metrics.OTPResult(label, "accepted")
	return nil
}

func scopeLabel(scope string) string {
	if scope == "" {
		return "console"
	}
	return "sdk"
}

func generate(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("unsupported code length %d", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

func digest(scope, identifier, code string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + identifier + "\x00" + code))
	return hex.EncodeToString(sum[:])
}

func numeric(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
