package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradevault/backend/internal/models"
)

type CollateralRepo struct {
	pool *pgxpool.Pool
}

func NewCollateralRepo(pool *pgxpool.Pool) *CollateralRepo {
	return &CollateralRepo{pool: pool}
}

func (r *CollateralRepo) Upsert(ctx context.Context, c *models.CollateralMirror) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO collateral (collateral_id, owner, asset_type, value, status, updated_ledger)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (collateral_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_ledger = GREATEST(collateral.updated_ledger, EXCLUDED.updated_ledger),
			updated_at = now()
	`, c.CollateralID, c.Owner, c.AssetType, c.Value, c.Status, c.UpdatedLedger)
	return err
}

// SetStatus flips the lock flag mirror from coll_lock / coll_unlk events.
func (r *CollateralRepo) SetStatus(ctx context.Context, collateralID uint64, status string, ledger uint64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE collateral SET status = $1, updated_ledger = $2, updated_at = now()
		WHERE collateral_id = $3
	`, status, ledger, collateralID)
	return err
}

func (r *CollateralRepo) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]models.CollateralMirror, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT collateral_id, owner, asset_type, value, status, updated_ledger, created_at, updated_at
		FROM collateral WHERE owner = $1
		ORDER BY collateral_id DESC LIMIT $2 OFFSET $3
	`, owner, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CollateralMirror
	for rows.Next() {
		var c models.CollateralMirror
		if err := rows.Scan(&c.CollateralID, &c.Owner, &c.AssetType, &c.Value, &c.Status,
			&c.UpdatedLedger, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
