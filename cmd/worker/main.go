package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradevault/backend/internal/config"
	"github.com/tradevault/backend/internal/db"
	"github.com/tradevault/backend/internal/repositories"
	"github.com/tradevault/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.DBMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	escrowRepo := repositories.NewEscrowRepo(pool)
	loanRepo := repositories.NewLoanRepo(pool)
	client := services.NewNodeClient(cfg.NodeURL, cfg.RPCTimeout, log)

	log.Info("worker started", zap.String("node", cfg.NodeURL))

	expiryTicker := time.NewTicker(cfg.ExpirySweepInterval)
	defaultTicker := time.NewTicker(cfg.DefaultSweepInterval)
	defer expiryTicker.Stop()
	defer defaultTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expiryTicker.C:
			runEscrowExpiry(ctx, escrowRepo, client, log)
		case <-defaultTicker.C:
			runLoanDefaults(ctx, loanRepo, client, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runEscrowExpiry refunds active escrows past their expiry. The contract
// re-checks expiry and status, so a stale mirror row only costs a rejected
// call.
func runEscrowExpiry(ctx context.Context, escrowRepo *repositories.EscrowRepo, client *services.NodeClient, log *zap.Logger) {
	nowTS := uint64(time.Now().Unix())

	escrows, err := escrowRepo.ListExpiredActive(ctx, nowTS, 50)
	if err != nil {
		log.Error("failed to list expired escrows", zap.Error(err))
		return
	}

	for _, esc := range escrows {
		log.Info("refunding expired escrow",
			zap.Uint64("escrow_id", esc.EscrowID),
			zap.Uint64("expiry_ts", esc.ExpiryTS),
		)
		if err := client.RefundEscrow(ctx, esc.EscrowID); err != nil {
			log.Error("refund failed", zap.Uint64("escrow_id", esc.EscrowID), zap.Error(err))
		}
	}
}

// runLoanDefaults marks active loans whose deadline has passed.
func runLoanDefaults(ctx context.Context, loanRepo *repositories.LoanRepo, client *services.NodeClient, log *zap.Logger) {
	nowTS := uint64(time.Now().Unix())

	loans, err := loanRepo.ListOverdueActive(ctx, nowTS, 50)
	if err != nil {
		log.Error("failed to list overdue loans", zap.Error(err))
		return
	}

	for _, l := range loans {
		log.Info("marking overdue loan defaulted",
			zap.Uint64("loan_id", l.LoanID),
			zap.Uint64("deadline", l.Deadline),
		)
		if err := client.MarkLoanDefault(ctx, l.LoanID); err != nil {
			log.Error("default mark failed", zap.Uint64("loan_id", l.LoanID), zap.Error(err))
		}
	}
}
