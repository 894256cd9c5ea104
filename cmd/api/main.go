package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/tradevault/backend/internal/auth"
	"github.com/tradevault/backend/internal/config"
	"github.com/tradevault/backend/internal/db"
	"github.com/tradevault/backend/internal/events"
	apphttp "github.com/tradevault/backend/internal/http"
	"github.com/tradevault/backend/internal/http/handlers"
	"github.com/tradevault/backend/internal/node"
	"github.com/tradevault/backend/internal/repositories"
	"github.com/tradevault/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.DBMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Ledger node with the contract suite deployed
	n, err := node.New(cfg, log)
	if err != nil {
		log.Fatal("failed to start ledger node", zap.Error(err))
	}

	// Repositories
	escrowRepo := repositories.NewEscrowRepo(pool)
	loanRepo := repositories.NewLoanRepo(pool)
	confRepo := repositories.NewConfirmationRepo(pool)
	collateralRepo := repositories.NewCollateralRepo(pool)
	eventRepo := repositories.NewEventRepo(pool)

	// Events
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	escrowService := services.NewEscrowService(n, escrowRepo, confRepo, log)
	loanService := services.NewLoanService(n, loanRepo, log)

	// Handlers
	challenges := auth.NewChallengeStore(rdb, cfg.AuthNonceTTL)
	authHandler := handlers.NewAuthHandler(cfg, challenges, log)
	escrowHandler := handlers.NewEscrowHandler(escrowService, log)
	loanHandler := handlers.NewLoanHandler(loanService, log)
	collateralHandler := handlers.NewCollateralHandler(n, collateralRepo, log)
	oracleHandler := handlers.NewOracleHandler(n, log)
	rpcHandler := handlers.NewRPCHandler(n, escrowService, loanService, eventRepo, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, escrowHandler, loanHandler, collateralHandler, oracleHandler, rpcHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
