// Package indexer tails the node's contract event feed and maintains the
// Postgres mirror the read API serves from. Ingestion is idempotent: events
// are deduplicated in Redis and again at the database layer, so crashes and
// cursor replays are safe.
package indexer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tradevault/backend/internal/events"
	"github.com/tradevault/backend/internal/models"
	"github.com/tradevault/backend/internal/repositories"
	"github.com/tradevault/backend/internal/services"
	"go.uber.org/zap"
)

const (
	redisCursorKey = "indexer:cursor"
	redisSeenKey   = "indexer:ev:"
	seenTTL        = 7 * 24 * time.Hour
)

type Indexer struct {
	client         *services.NodeClient
	rdb            *redis.Client
	escrowRepo     *repositories.EscrowRepo
	loanRepo       *repositories.LoanRepo
	confRepo       *repositories.ConfirmationRepo
	collateralRepo *repositories.CollateralRepo
	eventRepo      *repositories.EventRepo
	publisher      events.Publisher
	log            *zap.Logger

	pollInterval time.Duration
	maxBackoff   time.Duration
	batchSize    int
}

type Config struct {
	PollInterval time.Duration
	MaxBackoff   time.Duration
	BatchSize    int
}

func New(
	client *services.NodeClient,
	rdb *redis.Client,
	escrowRepo *repositories.EscrowRepo,
	loanRepo *repositories.LoanRepo,
	confRepo *repositories.ConfirmationRepo,
	collateralRepo *repositories.CollateralRepo,
	eventRepo *repositories.EventRepo,
	publisher events.Publisher,
	cfg Config,
	log *zap.Logger,
) *Indexer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxBackoff < cfg.PollInterval {
		cfg.MaxBackoff = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Indexer{
		client:         client,
		rdb:            rdb,
		escrowRepo:     escrowRepo,
		loanRepo:       loanRepo,
		confRepo:       confRepo,
		collateralRepo: collateralRepo,
		eventRepo:      eventRepo,
		publisher:      publisher,
		log:            log,
		pollInterval:   cfg.PollInterval,
		maxBackoff:     cfg.MaxBackoff,
		batchSize:      cfg.BatchSize,
	}
}

// Run polls until ctx is cancelled. Poll failures back off exponentially up
// to the configured cap and reset after the first clean cycle.
func (ix *Indexer) Run(ctx context.Context) {
	delay := ix.pollInterval

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := ix.poll(ctx); err != nil {
			ix.log.Error("poll cycle failed", zap.Error(err), zap.Duration("retry_in", delay))
			delay *= 2
			if delay > ix.maxBackoff {
				delay = ix.maxBackoff
			}
			continue
		}
		delay = ix.pollInterval
	}
}

func (ix *Indexer) loadCursor(ctx context.Context) uint64 {
	val, err := ix.rdb.Get(ctx, redisCursorKey).Result()
	if err != nil || val == "" {
		return 0
	}
	cursor, _ := strconv.ParseUint(val, 10, 64)
	return cursor
}

func (ix *Indexer) saveCursor(ctx context.Context, cursor uint64) {
	ix.rdb.Set(ctx, redisCursorKey, strconv.FormatUint(cursor, 10), 0)
}

// poll runs one cycle: fetch events after the cursor, apply each one to the
// mirror, republish, then advance the cursor. The cursor is only advanced
// after every event in the page was applied, so a mid-page crash replays the
// page and the dedup keys absorb the duplicates.
func (ix *Indexer) poll(ctx context.Context) error {
	cursor := ix.loadCursor(ctx)

	page, err := ix.client.Events(ctx, cursor, ix.batchSize)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	if len(page.Events) == 0 {
		return nil
	}

	ix.log.Info("found new events", zap.Int("count", len(page.Events)), zap.Uint64("cursor", cursor))

	for _, ev := range page.Events {
		seenKey := fmt.Sprintf("%s%s:%s:%d:%d", redisSeenKey, ev.Contract, ev.TxHash, ev.Ledger, ev.Index)
		if ix.rdb.Exists(ctx, seenKey).Val() > 0 {
			continue
		}

		if err := ix.apply(ctx, ev); err != nil {
			return fmt.Errorf("apply %s event at ledger %d: %w", ev.Topic, ev.Ledger, err)
		}

		inserted, err := ix.eventRepo.Insert(ctx, &models.ChainEvent{
			Contract:   ev.Contract,
			Topic:      ev.Topic,
			TxHash:     ev.TxHash,
			Ledger:     ev.Ledger,
			EventIndex: ev.Index,
			Data:       ev.Data,
		})
		if err != nil {
			return fmt.Errorf("record event: %w", err)
		}

		if inserted {
			ix.publish(ctx, ev)
		}

		ix.rdb.Set(ctx, seenKey, "1", seenTTL)
	}

	ix.saveCursor(ctx, page.Cursor)
	return nil
}

func (ix *Indexer) apply(ctx context.Context, ev services.RawEvent) error {
	switch ev.Topic {
	case "esc_crtd":
		m := &models.EscrowMirror{
			EscrowID:              asUint64(ev.Data["escrow_id"]),
			Buyer:                 asString(ev.Data["buyer"]),
			Seller:                asString(ev.Data["seller"]),
			Lender:                asString(ev.Data["lender"]),
			CollateralID:          asUint64(ev.Data["collateral_id"]),
			Amount:                asString(ev.Data["amount"]),
			Asset:                 asString(ev.Data["asset"]),
			RequiredConfirmation:  int(asUint64(ev.Data["required_confirmation"])),
			RequiredConfirmations: int(asUint64(ev.Data["required_confirmations"])),
			Status:                models.EscrowStatusActive,
			ExpiryTS:              asUint64(ev.Data["expiry_ts"]),
			CreateTxHash:          ev.TxHash,
			CreatedLedger:         ev.Ledger,
			UpdatedLedger:         ev.Ledger,
		}
		if v := asString(ev.Data["destination_asset"]); v != "" {
			m.DestinationAsset = &v
		}
		if v := asString(ev.Data["min_destination_amount"]); v != "" {
			m.MinDestinationAmount = &v
		}
		return ix.escrowRepo.Upsert(ctx, m)

	case "esc_rel":
		return ix.escrowRepo.MarkReleased(ctx, asUint64(ev.Data["escrow_id"]), nil, ev.TxHash, ev.Ledger)

	case "esc_rfnd":
		return ix.escrowRepo.MarkRefunded(ctx, asUint64(ev.Data["escrow_id"]), ev.TxHash, ev.Ledger)

	case "fee_col":
		return ix.escrowRepo.SetFeeAmount(ctx, asUint64(ev.Data["escrow_id"]), asString(ev.Data["amount"]), ev.Ledger)

	case "confirmed":
		return ix.confRepo.Insert(ctx, &models.ConfirmationMirror{
			EscrowID:  asUint64(ev.Data["escrow_id"]),
			Oracle:    asString(ev.Data["oracle"]),
			EventType: int(asUint64(ev.Data["event_type"])),
			Result:    asString(ev.Data["result"]),
			Verified:  true,
			TxHash:    ev.TxHash,
			Ledger:    ev.Ledger,
		})

	case "coll_reg":
		return ix.collateralRepo.Upsert(ctx, &models.CollateralMirror{
			CollateralID:  asUint64(ev.Data["collateral_id"]),
			Owner:         asString(ev.Data["owner"]),
			AssetType:     asString(ev.Data["asset_type"]),
			Value:         asString(ev.Data["value"]),
			Status:        models.CollateralStatusActive,
			UpdatedLedger: ev.Ledger,
		})

	case "coll_lock":
		return ix.collateralRepo.SetStatus(ctx, asUint64(ev.Data["collateral_id"]), models.CollateralStatusLocked, ev.Ledger)

	case "coll_unlk":
		return ix.collateralRepo.SetStatus(ctx, asUint64(ev.Data["collateral_id"]), models.CollateralStatusActive, ev.Ledger)

	case "loan_iss":
		return ix.loanRepo.Upsert(ctx, &models.LoanMirror{
			LoanID:        asUint64(ev.Data["loan_id"]),
			EscrowID:      asUint64(ev.Data["escrow_id"]),
			Lender:        asString(ev.Data["lender"]),
			Borrower:      asString(ev.Data["borrower"]),
			Amount:        asString(ev.Data["amount"]),
			InterestBPS:   int(asUint64(ev.Data["interest_bps"])),
			Deadline:      asUint64(ev.Data["deadline"]),
			Status:        models.LoanStatusActive,
			IssueTxHash:   ev.TxHash,
			CreatedLedger: ev.Ledger,
		})

	case "loan_rep":
		return ix.loanRepo.Finalize(ctx, asUint64(ev.Data["loan_id"]), models.LoanStatusRepaid, nil, ev.TxHash, ev.Ledger)

	case "loan_def":
		return ix.loanRepo.Finalize(ctx, asUint64(ev.Data["loan_id"]), models.LoanStatusDefaulted, nil, ev.TxHash, ev.Ledger)

	case "loan_liq":
		var liquidator *string
		if v := asString(ev.Data["liquidator"]); v != "" {
			liquidator = &v
		}
		return ix.loanRepo.Finalize(ctx, asUint64(ev.Data["loan_id"]), models.LoanStatusLiquidated, liquidator, ev.TxHash, ev.Ledger)

	default:
		// Init and admin events only land in the audit table.
		return nil
	}
}

func (ix *Indexer) publish(ctx context.Context, ev services.RawEvent) {
	var typ string
	switch ev.Topic {
	case "esc_crtd", "esc_rel", "esc_rfnd":
		typ = events.EventEscrowStatusChanged
	case "loan_iss", "loan_rep", "loan_def", "loan_liq":
		typ = events.EventLoanStatusChanged
	case "confirmed":
		typ = events.EventOracleConfirmed
	default:
		typ = events.EventContractRaw
	}

	payload := map[string]any{
		"contract": ev.Contract,
		"topic":    ev.Topic,
		"tx_hash":  ev.TxHash,
		"ledger":   ev.Ledger,
	}
	for k, v := range ev.Data {
		payload[k] = v
	}

	if err := ix.publisher.Publish(ctx, events.StreamContracts, events.Event{Type: typ, Payload: payload}); err != nil {
		ix.log.Warn("event publish failed", zap.String("topic", ev.Topic), zap.Error(err))
	}
}

// asUint64 tolerates the numeric shapes JSON decoding produces. The float64
// branch is exact only up to 2^53, so it must carry counter ids, never
// amounts; amounts travel as decimal strings.
func asUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case float64:
		return uint64(n)
	case int:
		return uint64(n)
	case int64:
		return uint64(n)
	case uint32:
		return uint64(n)
	case string:
		u, _ := strconv.ParseUint(n, 10, 64)
		return u
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
