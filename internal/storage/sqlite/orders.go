package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/platemate/order-ledger/internal/order/app"
	"github.com/platemate/order-ledger/internal/order/domain"
)

var _ app.Repository = (*OrderRepository)(nil)

// OrderRepository is the SQLite implementation of the order store.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// itemRow is the JSON shape line items are stored in.
type itemRow struct {
	MenuItemID string  `json:"menu_item_id"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	items, err := marshalItems(o.Items)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO orders
			(id, customer_id, chef_id, delivery_person_id, items, total_amount,
			 status, delivery_address, penalty, version, created_at, status_changed_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, q,
		o.ID, o.CustomerID, o.ChefID, o.DeliveryPersonID, items, o.TotalAmount,
		string(o.Status), o.DeliveryAddress, o.CancellationPenalty, o.Version,
		formatTime(o.CreatedAt), formatTime(o.StatusChangedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert order %q: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	const q = `
		SELECT id, customer_id, chef_id, delivery_person_id, items, total_amount,
		       status, delivery_address, penalty, version, created_at, status_changed_at
		FROM   orders
		WHERE  id = ?`

	row := r.db.QueryRowContext(ctx, q, id)

	var o domain.Order
	var items, status, createdAt, changedAt string
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.ChefID, &o.DeliveryPersonID, &items, &o.TotalAmount,
		&status, &o.DeliveryAddress, &o.CancellationPenalty, &o.Version, &createdAt, &changedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: order %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order %q: %w", id, err)
	}

	o.Status = domain.Status(status)
	if o.Items, err = unmarshalItems(items); err != nil {
		return nil, fmt.Errorf("sqlite: order %q items: %w", id, err)
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.StatusChangedAt, err = parseTime(changedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// Update applies o only if the stored row is still at prevVersion. A stale
// caller gets domain.ErrVersionConflict, never a silent overwrite.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order, prevVersion int64) error {
	const q = `
		UPDATE orders
		SET    status = ?, penalty = ?, delivery_person_id = ?, version = ?, status_changed_at = ?
		WHERE  id = ? AND version = ?`

	res, err := r.db.ExecContext(ctx, q,
		string(o.Status), o.CancellationPenalty, o.DeliveryPersonID, o.Version,
		formatTime(o.StatusChangedAt), o.ID, prevVersion,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update order %q: %w", o.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update order %q: %w", o.ID, err)
	}
	if n == 0 {
		// Distinguish a missing row from a lost race.
		var v int64
		err := r.db.QueryRowContext(ctx, `SELECT version FROM orders WHERE id = ?`, o.ID).Scan(&v)
		if err == sql.ErrNoRows {
			return fmt.Errorf("sqlite: order %q: %w", o.ID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("sqlite: update order %q: %w", o.ID, err)
		}
		return fmt.Errorf("sqlite: order %q is at version %d, not %d: %w",
			o.ID, v, prevVersion, domain.ErrVersionConflict)
	}
	return nil
}

func (r *OrderRepository) AppendStatusChange(ctx context.Context, c *domain.StatusChange) error {
	const q = `
		INSERT INTO order_status_history
			(order_id, from_status, to_status, actor, penalty, changed_at)
		VALUES
			(?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		c.OrderID, string(c.From), string(c.To), string(c.Actor), c.Penalty, formatTime(c.ChangedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append status history for %q: %w", c.OrderID, err)
	}
	return nil
}

// History returns the audit rows for an order, oldest first.
func (r *OrderRepository) History(ctx context.Context, orderID string) ([]*domain.StatusChange, error) {
	const q = `
		SELECT order_id, from_status, to_status, actor, penalty, changed_at
		FROM   order_status_history
		WHERE  order_id = ?
		ORDER  BY changed_at, id`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: history for %q: %w", orderID, err)
	}
	defer rows.Close()

	var out []*domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		var from, to, actor, changedAt string
		if err := rows.Scan(&c.OrderID, &from, &to, &actor, &c.Penalty, &changedAt); err != nil {
			return nil, fmt.Errorf("sqlite: history for %q: %w", orderID, err)
		}
		c.From = domain.Status(from)
		c.To = domain.Status(to)
		c.Actor = domain.ActorRole(actor)
		if c.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func marshalItems(items []domain.OrderItem) (string, error) {
	rows := make([]itemRow, len(items))
	for i, it := range items {
		rows[i] = itemRow{MenuItemID: it.MenuItemID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal items: %w", err)
	}
	return string(b), nil
}

func unmarshalItems(s string) ([]domain.OrderItem, error) {
	var rows []itemRow
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, err
	}
	items := make([]domain.OrderItem, len(rows))
	for i, r := range rows {
		items[i] = domain.OrderItem{MenuItemID: r.MenuItemID, Quantity: r.Quantity, UnitPrice: r.UnitPrice}
	}
	return items, nil
}
