package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/phoneauth/internal/account"
	"github.com/congo-pay/phoneauth/internal/admin"
	"github.com/congo-pay/phoneauth/internal/audit"
	"github.com/congo-pay/phoneauth/internal/auth"
	"github.com/congo-pay/phoneauth/internal/config"
	"github.com/congo-pay/phoneauth/internal/logging"
	"github.com/congo-pay/phoneauth/internal/middleware"
	"github.com/congo-pay/phoneauth/internal/session"
	"github.com/congo-pay/phoneauth/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// credentialPaths answer with secrets or depend on one, so their responses are
// never stored for replay.
var credentialPaths = []string{
	"/signin",
	"/signout/",
	"/add_pin/",
	"/verify_pin/",
	"/user/login",
	"/user/refresh",
	"/create-superuser",
}

// Setup configures middlewares and all application routes. Without a database
// or cache (dev only) the memory implementations are used instead.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(logger))

	RegisterHealthRoutes(app, d)

	var (
		accountRepo account.Repository
		walletRepo  wallet.Repository
		sessions    session.Store
	)
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		accountRepo = account.NewMemoryRepository()
		walletRepo = wallet.NewMemoryRepository()
	}
	if d.Cache != nil {
		sessions = session.NewRedisStore(d.Cache)
	} else {
		sessions = session.NewMemoryStore(nil)
	}

	recorder := audit.NewLoggerRecorder(logger)
	accounts := account.NewService(accountRepo, account.NewHasher(bcrypt.DefaultCost), recorder)
	wallets := wallet.NewService(walletRepo, accounts)
	accounts.AddDependent(account.DependentFunc(sessions.Revoke))
	accounts.AddDependent(wallets)

	gateway := auth.NewGateway(accounts, sessions, session.NewIssuer(), recorder, d.Cfg.SessionTTL)
	tokens := auth.NewTokenService(accounts, auth.TokenConfig{
		AccessSecret:  d.Cfg.JWTSecret,
		RefreshSecret: d.Cfg.RefreshSecret,
		AccessTTL:     d.Cfg.AccessTokenTTL,
		RefreshTTL:    d.Cfg.RefreshTokenTTL,
	}, recorder)
	admins := admin.NewService(accounts, wallets, recorder)

	app.Use(middleware.Authenticate(gateway, tokens))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, logger, credentialPaths...))
	}

	policies := middleware.NewPolicies(middleware.IsAuthenticated, map[string]middleware.Policy{
		"account.create": middleware.AllowAny,
		"wallet.create":  middleware.AllowAny,
	})

	RegisterAuthRoutes(app, auth.NewHandler(gateway, tokens))
	RegisterAdminRoutes(app, admin.NewHandler(admins))
	RegisterAccountRoutes(app, account.NewHandler(accounts, gateway), policies)
	RegisterWalletRoutes(app, wallet.NewHandler(wallets), policies)
	return nil
}
