package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/tradevault/backend/internal/config"
	"github.com/tradevault/backend/internal/http/handlers"
	"github.com/tradevault/backend/internal/middleware"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	escrowHandler *handlers.EscrowHandler,
	loanHandler *handlers.LoanHandler,
	collateralHandler *handlers.CollateralHandler,
	oracleHandler *handlers.OracleHandler,
	rpcHandler *handlers.RPCHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Node RPC: the indexer polls the event feed and the worker fires
	// maintenance calls here. Not part of the public API surface.
	rpc := app.Group("/rpc")
	rpc.Get("/status", rpcHandler.Status)
	rpc.Get("/events", rpcHandler.Events)
	rpc.Post("/escrows/:id/refund", rpcHandler.Refund)
	rpc.Post("/loans/:id/default", rpcHandler.MarkDefault)

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/challenge", authHandler.Challenge)
	api.Post("/auth/verify", authHandler.Verify)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Escrows
	protected.Post("/escrows", escrowHandler.CreateEscrow)
	protected.Get("/escrows", escrowHandler.ListEscrows)
	protected.Get("/escrows/:id", escrowHandler.GetEscrow)
	protected.Post("/escrows/:id/release", escrowHandler.Release)
	protected.Post("/escrows/:id/refund", escrowHandler.Refund)
	protected.Get("/escrows/:id/confirmations", escrowHandler.GetConfirmations)
	protected.Get("/escrows/:id/loan", loanHandler.GetLoanByEscrow)

	// Loans
	protected.Post("/loans", loanHandler.IssueLoan)
	protected.Get("/loans", loanHandler.ListLoans)
	protected.Get("/loans/:id", loanHandler.GetLoan)
	protected.Post("/loans/:id/repay", loanHandler.RepayLoan)
	protected.Post("/loans/:id/default", loanHandler.MarkDefault)
	protected.Post("/loans/:id/liquidate", loanHandler.MarkLiquidated)

	// Collateral
	protected.Post("/collateral", collateralHandler.Register)
	protected.Get("/collateral/my", collateralHandler.ListMine)
	protected.Get("/collateral/:id", collateralHandler.Get)

	// Oracle confirmations
	protected.Post("/oracle/confirm", oracleHandler.ConfirmEvent)

	// Indexed event audit
	protected.Get("/events", rpcHandler.AuditEvents)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Post("/oracles", oracleHandler.AddOracle)
	admin.Delete("/oracles/:address", oracleHandler.RemoveOracle)
	admin.Post("/exchange-rate", escrowHandler.SetExchangeRate)
	admin.Post("/fund", rpcHandler.Fund)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
