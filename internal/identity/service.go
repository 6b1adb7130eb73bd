package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "polo-core"

var (
	// ErrInvalidToken reports a malformed, forged or revoked session token.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrTokenExpired reports a well-formed token past its expiry.
	ErrTokenExpired = errors.New("session token expired")
	// ErrNoEmail reports a session whose subject has no email on file.
	ErrNoEmail = errors.New("no email associated with session")
	// ErrProviderUnavailable reports that the user directory could not be reached.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrInvalidEmail reports an unusable email address.
	ErrInvalidEmail = errors.New("invalid email address")
)

type sessionClaims struct {
	Email  string `json:"email"`
	Tenant string `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// Service is the identity provider: it owns the user directory and issues
// and verifies HS256 session tokens.
type Service struct {
	repo       Repository
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewService creates an identity provider.
func NewService(repo Repository, signingKey string, ttl time.Duration) *Service {
	return &Service{
		repo:       repo,
		signingKey: []byte(signingKey),
		ttl:        ttl,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail lower-cases and validates an email address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Login records a successful sign-in for (tenantID, email) and returns the
// user. An empty tenantID denotes a developer account.
func (s *Service) Login(ctx context.Context, tenantID, email string) (User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	return s.repo.Upsert(ctx, tenantID, normalized, s.now())
}

// IssueSession signs a session token for user.
func (s *Service) IssueSession(user User) (Session, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := sessionClaims{
		Email:  user.Email,
		Tenant: user.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks the token signature and expiry, then confirms the subject
// against the user directory.
func (s *Service) Verify(ctx context.Context, raw string) (Verified, error) {
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verified{}, ErrTokenExpired
		}
		return Verified{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Verified{}, ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Verified{}, ErrInvalidToken
		}
		return Verified{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if user.TenantID != claims.Tenant {
		return Verified{}, ErrInvalidToken
	}
	if user.Email == "" {
		return Verified{}, ErrNoEmail
	}
	return Verified{SubjectID: user.ID, Email: user.Email, TenantID: user.TenantID}, nil
}
