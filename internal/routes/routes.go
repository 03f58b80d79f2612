package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/unity-gaming/unity_wallet/internal/auth"
	"github.com/unity-gaming/unity_wallet/internal/config"
	"github.com/unity-gaming/unity_wallet/internal/funding"
	"github.com/unity-gaming/unity_wallet/internal/identity"
	"github.com/unity-gaming/unity_wallet/internal/ledger"
	"github.com/unity-gaming/unity_wallet/internal/middleware"
	"github.com/unity-gaming/unity_wallet/internal/notification"
	"github.com/unity-gaming/unity_wallet/internal/tournament"
	"github.com/unity-gaming/unity_wallet/internal/wallet"
)

var errNATSDisconnected = errors.New("nats disconnected")

// Deps aggregates shared dependencies required to wire routes. DB, Cache and
// NATS may be nil in development.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	NATS   *nats.Conn
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	ctx := context.Background()
	var (
		ledgerBackend  ledger.Ledger
		walletRepo     wallet.Repository
		identityRepo   identity.Repository
		tournamentRepo tournament.Repository
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		tournamentRepo = tournament.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		identityRepo = identity.NewMemoryRepository()
		tournamentRepo = tournament.NewMemoryRepository(tournament.SampleCatalog())
	}

	notifiers := notification.Multi{notification.NewLoggerNotifier(d.Logger)}
	if d.Cache != nil {
		notifiers = append(notifiers, notification.NewRedisNotifier(d.Cache, d.Cfg.BalanceChannel))
	}
	if d.NATS != nil {
		notifiers = append(notifiers, notification.NewNATSNotifier(d.NATS, d.Cfg.BalanceChannel))
	}

	walletSvc := wallet.NewService(walletRepo, ledgerBackend, d.Cfg.WelcomeCredit)
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)
	fundingSvc, err := funding.NewService(ctx, ledgerBackend, walletSvc, funding.StaticAcquirer{}, notifiers)
	if err != nil {
		return err
	}
	tournamentSvc := tournament.NewService(tournamentRepo, ledgerBackend, walletSvc, notifiers, d.Logger)

	requireUser := middleware.RequireUser(authSvc)
	idempotency := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	v1 := app.Group("/api/v1")
	v1.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	api := app.Group("/api")
	RegisterAuthRoutes(api, auth.NewHandler(identitySvc, authSvc, walletSvc),
		middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute), requireUser)
	RegisterTournamentRoutes(api, tournament.NewHandler(tournamentSvc), requireUser, idempotency)

	protected := api.Group("", requireUser)
	RegisterIdentityRoutes(protected, identity.NewHandler(identitySvc))
	RegisterMeRoute(protected, identitySvc, walletSvc)
	RegisterWalletRoutes(protected, wallet.NewHandler(walletSvc))
	RegisterFundingRoutes(protected.Group("", idempotency), funding.NewHandler(fundingSvc))

	return nil
}
