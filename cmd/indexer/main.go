package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tradevault/backend/internal/config"
	"github.com/tradevault/backend/internal/db"
	"github.com/tradevault/backend/internal/events"
	"github.com/tradevault/backend/internal/indexer"
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

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	escrowRepo := repositories.NewEscrowRepo(pool)
	loanRepo := repositories.NewLoanRepo(pool)
	confRepo := repositories.NewConfirmationRepo(pool)
	collateralRepo := repositories.NewCollateralRepo(pool)
	eventRepo := repositories.NewEventRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	client := services.NewNodeClient(cfg.NodeURL, cfg.RPCTimeout, log)

	ix := indexer.New(client, rdb, escrowRepo, loanRepo, confRepo, collateralRepo, eventRepo, publisher, indexer.Config{
		PollInterval: cfg.IndexerPollInterval,
		MaxBackoff:   cfg.IndexerMaxBackoff,
		BatchSize:    cfg.IndexerBatchSize,
	}, log)

	log.Info("indexer started", zap.String("node", cfg.NodeURL))

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down indexer")
		cancel()
	}()

	ix.Run(ctx)
}
