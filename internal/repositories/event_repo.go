package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradevault/backend/internal/models"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Insert stores a raw contract event for audit. Returns false when the event
// was already recorded.
func (r *EventRepo) Insert(ctx context.Context, e *models.ChainEvent) (bool, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO chain_events (contract, topic, tx_hash, ledger, event_index, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contract, tx_hash, ledger, event_index) DO NOTHING
	`, e.Contract, e.Topic, e.TxHash, e.Ledger, e.EventIndex, data)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *EventRepo) List(ctx context.Context, contract *string, limit, offset int) ([]models.ChainEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, contract, topic, tx_hash, ledger, event_index, data, created_at
		FROM chain_events`
	args := []any{}
	if contract != nil {
		query += " WHERE contract = $1 ORDER BY ledger DESC, event_index DESC LIMIT $2 OFFSET $3"
		args = append(args, *contract, limit, offset)
	} else {
		query += " ORDER BY ledger DESC, event_index DESC LIMIT $1 OFFSET $2"
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChainEvent
	for rows.Next() {
		var e models.ChainEvent
		var data []byte
		if err := rows.Scan(&e.ID, &e.Contract, &e.Topic, &e.TxHash, &e.Ledger,
			&e.EventIndex, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			var v any
			if err := json.Unmarshal(data, &v); err == nil {
				e.Data = v
			}
		}
		out = append(out, e)
	}
	return out, nil
}
