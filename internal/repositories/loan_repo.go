package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradevault/backend/internal/models"
)

type LoanRepo struct {
	pool *pgxpool.Pool
}

func NewLoanRepo(pool *pgxpool.Pool) *LoanRepo {
	return &LoanRepo{pool: pool}
}

func (r *LoanRepo) Upsert(ctx context.Context, l *models.LoanMirror) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO loans (loan_id, escrow_id, lender, borrower, amount, interest_bps,
		                   deadline, status, issue_tx_hash, created_ledger, updated_ledger)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (loan_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_ledger = GREATEST(loans.updated_ledger, EXCLUDED.updated_ledger),
			updated_at = now()
	`, l.LoanID, l.EscrowID, l.Lender, l.Borrower, l.Amount, l.InterestBPS,
		l.Deadline, l.Status, l.IssueTxHash, l.CreatedLedger)
	return err
}

// Finalize records a terminal loan status. liquidator is non-nil only for
// liquidations.
func (r *LoanRepo) Finalize(ctx context.Context, loanID uint64, status string, liquidator *string, txHash string, ledger uint64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE loans SET status = $1, liquidator = $2, final_tx_hash = $3,
		                 updated_ledger = $4, updated_at = now()
		WHERE loan_id = $5 AND status = 'active'
	`, status, liquidator, txHash, ledger, loanID)
	return err
}

type LoanFilter struct {
	Status  *string
	Address *string // matches lender or borrower
	Limit   int
	Offset  int
}

func (r *LoanRepo) List(ctx context.Context, f LoanFilter) ([]models.LoanMirror, error) {
	query := `
		SELECT loan_id, escrow_id, lender, borrower, amount, interest_bps,
		       deadline, status, liquidator, issue_tx_hash, final_tx_hash,
		       created_ledger, updated_ledger, created_at, updated_at
		FROM loans`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.Address != nil {
		where = append(where, fmt.Sprintf("(lender = $%d OR borrower = $%d)", argIdx, argIdx))
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
	query += fmt.Sprintf(" ORDER BY loan_id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LoanMirror
	for rows.Next() {
		var l models.LoanMirror
		if err := rows.Scan(&l.LoanID, &l.EscrowID, &l.Lender, &l.Borrower, &l.Amount, &l.InterestBPS,
			&l.Deadline, &l.Status, &l.Liquidator, &l.IssueTxHash, &l.FinalTxHash,
			&l.CreatedLedger, &l.UpdatedLedger, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// ListOverdueActive returns active loans whose deadline has passed. The
// worker uses this to mark defaults.
func (r *LoanRepo) ListOverdueActive(ctx context.Context, nowTS uint64, limit int) ([]models.LoanMirror, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT loan_id, escrow_id, lender, borrower, amount, interest_bps,
		       deadline, status, liquidator, issue_tx_hash, final_tx_hash,
		       created_ledger, updated_ledger, created_at, updated_at
		FROM loans WHERE status = 'active' AND deadline < $1
		ORDER BY deadline ASC LIMIT $2
	`, nowTS, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LoanMirror
	for rows.Next() {
		var l models.LoanMirror
		if err := rows.Scan(&l.LoanID, &l.EscrowID, &l.Lender, &l.Borrower, &l.Amount, &l.InterestBPS,
			&l.Deadline, &l.Status, &l.Liquidator, &l.IssueTxHash, &l.FinalTxHash,
			&l.CreatedLedger, &l.UpdatedLedger, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
