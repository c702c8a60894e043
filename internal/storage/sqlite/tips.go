package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platemate/order-ledger/internal/ledger/app"
	"github.com/platemate/order-ledger/internal/ledger/domain"
)

var _ app.Repository = (*TipRepository)(nil)

// TipRepository is the SQLite implementation of the tip ledger. Rows are
// appended pending and settled in place exactly once; nothing is deleted.
type TipRepository struct {
	db *sql.DB
}

func NewTipRepository(db *sql.DB) *TipRepository {
	return &TipRepository{db: db}
}

const tipColumns = `id, from_user_id, recipient_id, recipient_type, amount,
		message, order_id, status, reference, created_at, settled_at`

func (r *TipRepository) Append(ctx context.Context, t *domain.TipTransaction) error {
	const q = `
		INSERT INTO tips
			(id, from_user_id, recipient_id, recipient_type, amount,
			 message, order_id, status, reference, created_at, settled_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err := r.db.ExecContext(ctx, q,
		t.ID, t.FromUserID, t.RecipientID, string(t.RecipientType), t.Amount,
		t.Message, t.OrderID, string(t.Status), t.Reference, formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert tip %q: %w", t.ID, err)
	}
	return nil
}

func (r *TipRepository) Get(ctx context.Context, id string) (*domain.TipTransaction, error) {
	q := `SELECT ` + tipColumns + ` FROM tips WHERE id = ?`
	t, err := scanTip(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: tip %q: %w", id, domain.ErrTipNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get tip %q: %w", id, err)
	}
	return t, nil
}

// Settle flips a pending transaction to completed or failed. The update is
// guarded on status = 'pending' so a duplicate callback loses cleanly, and
// completion is refused inside the same transaction if another completed tip
// already exists for the (order, recipient type) pair.
func (r *TipRepository) Settle(ctx context.Context, id string, status domain.TipStatus, reference string, settledAt time.Time) (*domain.TipTransaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: settle tip %q: %w", id, err)
	}
	defer tx.Rollback()

	cur, err := scanTip(tx.QueryRowContext(ctx, `SELECT `+tipColumns+` FROM tips WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: tip %q: %w", id, domain.ErrTipNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: settle tip %q: %w", id, err)
	}
	if cur.Status != domain.TipPending {
		return nil, fmt.Errorf("sqlite: tip %q is %s: %w", id, cur.Status, domain.ErrAlreadySettled)
	}

	if status == domain.TipCompleted {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tips WHERE order_id = ? AND recipient_type = ? AND status = ? AND id != ?`,
			cur.OrderID, string(cur.RecipientType), string(domain.TipCompleted), id,
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("sqlite: settle tip %q: %w", id, err)
		}
		if n > 0 {
			return nil, fmt.Errorf("sqlite: order %q already has a completed %s tip: %w",
				cur.OrderID, cur.RecipientType, domain.ErrInvalidTip)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tips SET status = ?, reference = ?, settled_at = ? WHERE id = ? AND status = ?`,
		string(status), reference, formatTime(settledAt), id, string(domain.TipPending),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: settle tip %q: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: settle tip %q: %w", id, err)
	}

	cur.Status = status
	cur.Reference = reference
	cur.SettledAt = settledAt
	return cur, nil
}

func (r *TipRepository) HasCompleted(ctx context.Context, orderID string, rt domain.RecipientType) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tips WHERE order_id = ? AND recipient_type = ? AND status = ?`,
		orderID, string(rt), string(domain.TipCompleted),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: completed tips for order %q: %w", orderID, err)
	}
	return n > 0, nil
}

func (r *TipRepository) ListByRecipient(ctx context.Context, userID string, status domain.TipStatus) ([]*domain.TipTransaction, error) {
	q := `SELECT ` + tipColumns + ` FROM tips WHERE recipient_id = ? AND status = ? ORDER BY created_at`
	return r.list(ctx, q, userID, string(status))
}

func (r *TipRepository) ListBySender(ctx context.Context, userID string, status domain.TipStatus) ([]*domain.TipTransaction, error) {
	q := `SELECT ` + tipColumns + ` FROM tips WHERE from_user_id = ? AND status = ? ORDER BY created_at`
	return r.list(ctx, q, userID, string(status))
}

func (r *TipRepository) SumCompletedByRecipient(ctx context.Context, userID string, since time.Time) (float64, error) {
	q := `SELECT COALESCE(SUM(amount), 0) FROM tips WHERE recipient_id = ? AND status = ?`
	args := []any{userID, string(domain.TipCompleted)}
	if !since.IsZero() {
		q += ` AND created_at >= ?`
		args = append(args, formatTime(since))
	}

	var total float64
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sqlite: sum tips for %q: %w", userID, err)
	}
	return total, nil
}

func (r *TipRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.TipTransaction, error) {
	q := `SELECT ` + tipColumns + ` FROM tips WHERE status = ? AND created_at < ? ORDER BY created_at`
	return r.list(ctx, q, string(domain.TipPending), formatTime(cutoff))
}

func (r *TipRepository) list(ctx context.Context, q string, args ...any) ([]*domain.TipTransaction, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tips: %w", err)
	}
	defer rows.Close()

	var out []*domain.TipTransaction
	for rows.Next() {
		t, err := scanTip(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list tips: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTip(s scanner) (*domain.TipTransaction, error) {
	var t domain.TipTransaction
	var rt, status, createdAt string
	var settledAt sql.NullString
	err := s.Scan(
		&t.ID, &t.FromUserID, &t.RecipientID, &rt, &t.Amount,
		&t.Message, &t.OrderID, &status, &t.Reference, &createdAt, &settledAt,
	)
	if err != nil {
		return nil, err
	}
	t.RecipientType = domain.RecipientType(rt)
	t.Status = domain.TipStatus(status)
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if settledAt.Valid {
		if t.SettledAt, err = parseTime(settledAt.String); err != nil {
			return nil, err
		}
	}
	return &t, nil
}
