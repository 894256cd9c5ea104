package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradevault/backend/internal/models"
)

type ConfirmationRepo struct {
	pool *pgxpool.Pool
}

func NewConfirmationRepo(pool *pgxpool.Pool) *ConfirmationRepo {
	return &ConfirmationRepo{pool: pool}
}

// Insert records an oracle confirmation. One row per (escrow, oracle);
// replayed events are dropped silently, matching the contract's own replay
// protection.
func (r *ConfirmationRepo) Insert(ctx context.Context, c *models.ConfirmationMirror) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO oracle_confirmations (escrow_id, oracle, event_type, result, verified, tx_hash, ledger)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (escrow_id, oracle) DO NOTHING
	`, c.EscrowID, c.Oracle, c.EventType, c.Result, c.Verified, c.TxHash, c.Ledger)
	return err
}

func (r *ConfirmationRepo) ListByEscrow(ctx context.Context, escrowID uint64) ([]models.ConfirmationMirror, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT escrow_id, oracle, event_type, result, verified, tx_hash, ledger, created_at
		FROM oracle_confirmations WHERE escrow_id = $1
		ORDER BY ledger ASC
	`, escrowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ConfirmationMirror
	for rows.Next() {
		var c models.ConfirmationMirror
		if err := rows.Scan(&c.EscrowID, &c.Oracle, &c.EventType, &c.Result, &c.Verified,
			&c.TxHash, &c.Ledger, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
