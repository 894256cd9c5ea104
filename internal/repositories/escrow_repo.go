package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradevault/backend/internal/models"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

// Upsert writes the mirror row from an esc_crtd event. Replayed events are
// absorbed by the conflict clause.
func (r *EscrowRepo) Upsert(ctx context.Context, e *models.EscrowMirror) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO escrows (escrow_id, buyer, seller, lender, collateral_id, amount, asset,
		                     required_confirmation, required_confirmations, status, expiry_ts,
		                     destination_asset, min_destination_amount,
		                     create_tx_hash, created_ledger, updated_ledger)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (escrow_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_ledger = GREATEST(escrows.updated_ledger, EXCLUDED.updated_ledger),
			updated_at = now()
	`, e.EscrowID, e.Buyer, e.Seller, e.Lender, e.CollateralID, e.Amount, e.Asset,
		e.RequiredConfirmation, e.RequiredConfirmations, e.Status, e.ExpiryTS,
		e.DestinationAsset, e.MinDestinationAmount,
		e.CreateTxHash, e.CreatedLedger)
	return err
}

// MarkReleased finalizes the mirror row from an esc_rel event.
func (r *EscrowRepo) MarkReleased(ctx context.Context, escrowID uint64, feeAmount *string, txHash string, ledger uint64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrows SET status = 'released', fee_amount = $1, final_tx_hash = $2,
		                   updated_ledger = $3, updated_at = now()
		WHERE escrow_id = $4 AND status = 'active'
	`, feeAmount, txHash, ledger, escrowID)
	return err
}

// SetFeeAmount records the protocol fee from a fee_col event.
func (r *EscrowRepo) SetFeeAmount(ctx context.Context, escrowID uint64, feeAmount string, ledger uint64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrows SET fee_amount = $1, updated_ledger = GREATEST(updated_ledger, $2), updated_at = now()
		WHERE escrow_id = $3
	`, feeAmount, ledger, escrowID)
	return err
}

// MarkRefunded finalizes the mirror row from an esc_rfnd event.
func (r *EscrowRepo) MarkRefunded(ctx context.Context, escrowID uint64, txHash string, ledger uint64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrows SET status = 'refunded', final_tx_hash = $1,
		                   updated_ledger = $2, updated_at = now()
		WHERE escrow_id = $3 AND status = 'active'
	`, txHash, ledger, escrowID)
	return err
}

type EscrowFilter struct {
	Status  *string
	Address *string // matches buyer, seller or lender
	Limit   int
	Offset  int
}

func (r *EscrowRepo) List(ctx context.Context, f EscrowFilter) ([]models.EscrowMirror, error) {
	query := `
		SELECT escrow_id, buyer, seller, lender, collateral_id, amount, asset,
		       required_confirmation, required_confirmations, status, expiry_ts,
		       destination_asset, min_destination_amount, fee_amount,
		       create_tx_hash, final_tx_hash, created_ledger, updated_ledger,
		       created_at, updated_at
		FROM escrows`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.Address != nil {
		where = append(where, fmt.Sprintf("(buyer = $%d OR seller = $%d OR lender = $%d)", argIdx, argIdx, argIdx))
		args = append(args, *f.Address)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY escrow_id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EscrowMirror
	for rows.Next() {
		var e models.EscrowMirror
		if err := rows.Scan(&e.EscrowID, &e.Buyer, &e.Seller, &e.Lender, &e.CollateralID, &e.Amount, &e.Asset,
			&e.RequiredConfirmation, &e.RequiredConfirmations, &e.Status, &e.ExpiryTS,
			&e.DestinationAsset, &e.MinDestinationAmount, &e.FeeAmount,
			&e.CreateTxHash, &e.FinalTxHash, &e.CreatedLedger, &e.UpdatedLedger,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ListExpiredActive returns active escrows whose expiry timestamp has passed.
// The worker uses this to trigger refunds.
func (r *EscrowRepo) ListExpiredActive(ctx context.Context, nowTS uint64, limit int) ([]models.EscrowMirror, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT escrow_id, buyer, seller, lender, collateral_id, amount, asset,
		       required_confirmation, required_confirmations, status, expiry_ts,
		       destination_asset, min_destination_amount, fee_amount,
		       create_tx_hash, final_tx_hash, created_ledger, updated_ledger,
		       created_at, updated_at
		FROM escrows WHERE status = 'active' AND expiry_ts < $1
		ORDER BY expiry_ts ASC LIMIT $2
	`, nowTS, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EscrowMirror
	for rows.Next() {
		var e models.EscrowMirror
		if err := rows.Scan(&e.EscrowID, &e.Buyer, &e.Seller, &e.Lender, &e.CollateralID, &e.Amount, &e.Asset,
			&e.RequiredConfirmation, &e.RequiredConfirmations, &e.Status, &e.ExpiryTS,
			&e.DestinationAsset, &e.MinDestinationAmount, &e.FeeAmount,
			&e.CreateTxHash, &e.FinalTxHash, &e.CreatedLedger, &e.UpdatedLedger,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
