package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/identity"
	"github.com/polo-core/polo_core/internal/logging"
	"github.com/polo-core/polo_core/internal/notification"
	"github.com/polo-core/polo_core/internal/otp"
	"github.com/polo-core/polo_core/internal/wallet"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (n *captureNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
	return nil
}

func (n *captureNotifier) last(t *testing.T) notification.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	return n.sent[len(n.sent)-1]
}

type stubWallets struct {
	mu    sync.Mutex
	calls []string
}

func (w *stubWallets) GetOrCreate(_ context.Context, tenantID, userID string) (wallet.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, tenantID+"/"+userID)
	return wallet.Result{Status: wallet.StatusCreated, PublicKey: "GTESTPUBLICKEY", TxHash: "abc"}, nil
}

type authFixture struct {
	svc      *Service
	ids      *identity.Service
	notifier *captureNotifier
	wallets  *stubWallets
}

func newAuthFixture() authFixture {
	notifier := &captureNotifier{}
	codes := otp.NewService(otp.NewMemoryStore(), notifier, 10*time.Minute, nil, nil)
	ids := identity.NewService(identity.NewMemoryRepository(), "auth-test-signing-key-0000000000", time.Hour)
	wallets := &stubWallets{}
	return authFixture{
		svc:      NewService(codes, ids, wallets, logging.Discard()),
		ids:      ids,
		notifier: notifier,
		wallets:  wallets,
	}
}

func TestSDKLoginProvisionsWalletAndTenantSession(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.svc.SDKChallenge(ctx, "T1", " Alice@Example.com ")
	require.NoError(t, err)
	msg := f.notifier.last(t)
	require.Equal(t, "alice@example.com", msg.Destination)
	require.Len(t, msg.Body, otp.SDKDigits)

	login, err := f.svc.SDKVerify(ctx, "T1", "alice@example.com", msg.Body)
	require.NoError(t, err)
	require.Equal(t, "T1", login.User.TenantID)
	require.Equal(t, wallet.StatusCreated, login.Wallet.Status)
	require.Equal(t, []string{"T1/alice@example.com"}, f.wallets.calls)

	verified, err := f.ids.Verify(ctx, login.Session.Token)
	require.NoError(t, err)
	require.Equal(t, "T1", verified.TenantID)
	require.Equal(t, "alice@example.com", verified.Email)

	// Codes are single use.
	_, err = f.svc.SDKVerify(ctx, "T1", "alice@example.com", msg.Body)
	require.True(t, apperr.Is(err, apperr.CodeOTPInvalid))
}

func TestSDKCodeIsBoundToTenant(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.svc.SDKChallenge(ctx, "T1", "alice@example.com")
	require.NoError(t, err)
	code := f.notifier.last(t).Body

	_, err = f.svc.SDKVerify(ctx, "T2", "alice@example.com", code)
	require.True(t, apperr.Is(err, apperr.CodeOTPInvalid))
	require.Empty(t, f.wallets.calls)
}

func TestSDKFlowsRequireTenant(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.SDKChallenge(context.Background(), "", "alice@example.com")
	require.True(t, apperr.Is(err, apperr.CodeTenantRequired))
	_, err = f.svc.SDKVerify(context.Background(), "", "alice@example.com", "12345678")
	require.True(t, apperr.Is(err, apperr.CodeTenantRequired))
}

func TestChallengeRejectsInvalidEmail(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.ConsoleChallenge(context.Background(), "not an email")
	require.True(t, apperr.Is(err, apperr.CodeInputValidation))
}

func TestConsoleLoginIssuesDeveloperSession(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.svc.ConsoleChallenge(ctx, "dev@example.com")
	require.NoError(t, err)
	code := f.notifier.last(t).Body
	require.Len(t, code, otp.ConsoleDigits)

	login, err := f.svc.ConsoleVerify(ctx, "dev@example.com", code)
	require.NoError(t, err)
	require.Empty(t, login.User.TenantID)
	require.Empty(t, f.wallets.calls)

	verified, err := f.ids.Verify(ctx, login.Session.Token)
	require.NoError(t, err)
	require.Empty(t, verified.TenantID)
}

func TestSDKHandlersRequireTenantPrincipal(t *testing.T) {
	f := newAuthFixture()
	h := NewHandler(f.svc)
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler(logging.Discard())})
	withPrincipal := func(p identity.Principal) fiber.Handler {
		return func(c *fiber.Ctx) error {
			identity.SetPrincipal(c, p)
			return c.Next()
		}
	}
	app.Post("/tenant/challenge", withPrincipal(identity.Principal{Kind: identity.KindTenantOnly, TenantID: "T1", Email: "app:T1"}), h.SDKChallenge)
	app.Post("/tenant/verify", withPrincipal(identity.Principal{Kind: identity.KindTenantOnly, TenantID: "T1", Email: "app:T1"}), h.SDKVerify)
	app.Post("/console/challenge", withPrincipal(identity.Principal{Kind: identity.KindConsole, Email: "dev@example.com"}), h.SDKChallenge)

	post := func(path string, body any) *http.Response {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := post("/console/challenge", challengeRequest{Email: "alice@example.com"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post("/tenant/challenge", challengeRequest{Email: "alice@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	code := f.notifier.last(t).Body

	resp = post("/tenant/verify", verifyRequest{Email: "alice@example.com", Code: "00000000x"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post("/tenant/verify", verifyRequest{Email: "alice@example.com", Code: code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Status string `json:"status"`
		Token  string `json:"token"`
		Wallet struct {
			PublicKey string `json:"public_key"`
			Status    string `json:"status"`
		} `json:"wallet"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "success", out.Status)
	require.NotEmpty(t, out.Token)
	require.Equal(t, "GTESTPUBLICKEY", out.Wallet.PublicKey)
}
