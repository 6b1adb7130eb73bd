package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/polo-core/polo_core/internal/auth"
	"github.com/polo-core/polo_core/internal/config"
	"github.com/polo-core/polo_core/internal/identity"
	"github.com/polo-core/polo_core/internal/ledger"
	"github.com/polo-core/polo_core/internal/logging"
	"github.com/polo-core/polo_core/internal/metrics"
	"github.com/polo-core/polo_core/internal/middleware"
	"github.com/polo-core/polo_core/internal/network"
	"github.com/polo-core/polo_core/internal/notification"
	"github.com/polo-core/polo_core/internal/otp"
	"github.com/polo-core/polo_core/internal/payments"
	"github.com/polo-core/polo_core/internal/secret"
	"github.com/polo-core/polo_core/internal/sponsor"
	"github.com/polo-core/polo_core/internal/tenant"
	"github.com/polo-core/polo_core/internal/txbuild"
	"github.com/polo-core/polo_core/internal/wallet"
)

// memorySponsorFunds seeds the sponsor account on the in-process network.
const memorySponsorFunds = "10000"

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Ledger overrides the network client derived from Cfg.
	Ledger ledger.Client
	// Notifier overrides the logging notifier.
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes. It fails when
// the custody key or the sponsor secret is unusable.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	net, err := network.Resolve(d.Cfg.Network, d.Cfg.HorizonURL)
	if err != nil {
		return err
	}
	cipher, err := secret.NewCipher(d.Cfg.EncryptionSecret)
	if err != nil {
		return fmt.Errorf("custody cipher: %w", err)
	}
	signer := sponsor.New(d.Cfg.SponsorSecret, net.Passphrase)
	if err := signer.Init(); err != nil {
		return fmt.Errorf("sponsor signer: %w", err)
	}
	led, err := ledgerFor(d, net, signer)
	if err != nil {
		return err
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(d.Metrics.Middleware())
	app.Use(middleware.Audit(d.Logger))

	// Stores
	var (
		walletRepo   wallet.Repository
		tenantRepo   tenant.Repository
		identityRepo identity.Repository
		otpStore     otp.Store
	)
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
		tenantRepo = tenant.NewPostgresRepository(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		otpStore = otp.NewPostgresStore(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
		tenantRepo = tenant.NewMemoryRepository()
		identityRepo = identity.NewMemoryRepository()
		otpStore = otp.NewMemoryStore()
	}
	if d.Cache != nil {
		tenantRepo = tenant.NewCachedRepository(tenantRepo, d.Cache, d.Cfg.TenantCacheTTL, d.Logger)
	}

	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger, d.Cfg.IsDev())
	}

	// Services and handlers
	builder := txbuild.New(net)
	walletSvc := wallet.NewService(walletRepo, led, builder, signer, cipher,
		wallet.WithLogger(d.Logger),
		wallet.WithMetrics(d.Metrics),
		wallet.WithHistoryLimit(d.Cfg.HistoryMaxLimit),
	)
	paymentSvc := payments.NewService(walletRepo, cipher, led, builder, notifier, d.Logger, d.Metrics)
	tenantSvc := tenant.NewService(tenantRepo)
	identitySvc := identity.NewService(identityRepo, d.Cfg.SessionSigningKey, d.Cfg.SessionTTL)
	otpSvc := otp.NewService(otpStore, notifier, d.Cfg.OTPTTL, d.Logger, d.Metrics)
	authSvc := auth.NewService(otpSvc, identitySvc, walletSvc, d.Logger)
	resolver := auth.NewResolver(tenantSvc, identitySvc, d.Logger, d.Metrics)

	authn := middleware.Authenticate(resolver)
	scoped := []fiber.Handler{authn, middleware.RequireUser(), middleware.TenantScope(tenantSvc)}
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	// API routes
	api := app.Group("/api/v1")
	RegisterHealthRoutes(api, d, net)

	authHandler := auth.NewHandler(authSvc)
	RegisterConsoleRoutes(api, authHandler, identity.NewHandler(identitySvc), authn)
	RegisterAuthRoutes(api, authHandler, authn)
	RegisterAppRoutes(api, tenant.NewHandler(tenantSvc), authn, middleware.RequireConsole())
	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc), scoped, idempotent)
	RegisterPaymentRoutes(api, payments.NewHandler(paymentSvc), scoped, idempotent)

	sponsorID, _ := signer.PublicKey()
	d.Logger.Info("routes ready",
		slog.String("network", net.Name),
		logging.Key("sponsor", sponsorID),
		slog.Bool("postgres", d.DB != nil),
		slog.Bool("redis", d.Cache != nil),
	)
	return nil
}

func ledgerFor(d Deps, net network.Network, signer *sponsor.Signer) (ledger.Client, error) {
	if d.Ledger != nil {
		return d.Ledger, nil
	}
	if net.Name != config.NetworkMemory {
		return ledger.NewHorizon(net.HorizonURL, d.Cfg.HorizonTimeout, d.Cfg.HistoryMaxLimit, d.Logger), nil
	}
	led := ledger.NewInMemory(net)
	sponsorID, err := signer.PublicKey()
	if err != nil {
		return nil, err
	}
	if err := ledger.SeedAccount(led, sponsorID, memorySponsorFunds); err != nil {
		return nil, fmt.Errorf("seed sponsor: %w", err)
	}
	return led, nil
}
