package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type OptionInput struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type ItemInput struct {
	ProductID       int64         `json:"productId"`
	Quantity        int           `json:"quantity"`
	SelectedOptions []OptionInput `json:"selectedOptions,omitempty"`
}

type CreateOrderInput struct {
	Items       []ItemInput     `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Notes       *string         `json:"notes,omitempty"`
}

type ListFilter struct {
	Status Status     // zero value = all
	From   *time.Time // createdAt >= From
	To     *time.Time // createdAt < To
	Search string     // order id or item product name
}

type Repo struct{ DB *pgxpool.Pool }

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so hydration helpers can
// run inside or outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateOrder inserts the order, its items, their option snapshots, and the
// initial PENDING history row in one transaction.
func (r *Repo) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(total_amount, notes, status)
		VALUES ($1, $2, 'PENDING')
		RETURNING id
	`, in.TotalAmount, in.Notes).Scan(&orderID)
	if err != nil {
		return nil, err
	}

	for _, it := range in.Items {
		var itemID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity)
			VALUES ($1, $2, $3)
			RETURNING id
		`, orderID, it.ProductID, it.Quantity).Scan(&itemID)
		if err != nil {
			return nil, err
		}
		for _, op := range it.SelectedOptions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_item_options(order_item_id, name, price)
				VALUES ($1, $2, $3)
			`, itemID, op.Name, op.Price); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_history(order_id, from_status, to_status)
		VALUES ($1, NULL, 'PENDING')
	`, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

func (r *Repo) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return hydrateOrder(ctx, r.DB, id)
}

// UpdateStatus moves an order forward. The order row is locked for the whole
// read-validate-write-append sequence, so concurrent transitions on the same
// order serialize on the row lock.
func (r *Repo) UpdateStatus(ctx context.Context, id int64, target Status, note *string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !CanTransition(current, target) {
		return nil, ErrConflict
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, target); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_history(order_id, from_status, to_status, note)
		VALUES ($1, $2, $3, $4)
	`, id, current, target, note); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, id)
}

// CancelOrder is UpdateStatus specialised for CANCELED: it also stamps
// cancel_reason and canceled_at and carries the reason into the history row.
func (r *Repo) CancelOrder(ctx context.Context, id int64, reason string, note *string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !CanTransition(current, StatusCanceled) {
		return nil, ErrConflict
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status='CANCELED', cancel_reason=$2, canceled_at=now() WHERE id=$1
	`, id, reason); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_history(order_id, from_status, to_status, reason, note)
		VALUES ($1, $2, 'CANCELED', $3, $4)
	`, id, current, reason, note); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, id)
}

func (r *Repo) ListOrders(ctx context.Context, f ListFilter) ([]*Order, error) {
	q := `SELECT id FROM orders WHERE 1=1`
	args := []any{}
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if f.Status != "" {
		q += ` AND status=` + arg(f.Status)
	}
	if f.From != nil {
		q += ` AND created_at >= ` + arg(*f.From)
	}
	if f.To != nil {
		q += ` AND created_at < ` + arg(*f.To)
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		q += ` AND (id::text LIKE ` + p + ` OR EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = orders.id AND p.name ILIKE ` + p + `))`
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Order, 0, len(ids))
	for _, id := range ids {
		o, err := hydrateOrder(ctx, r.DB, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *Repo) ListHistory(ctx context.Context, orderID int64) ([]StatusHistoryEntry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, from_status, to_status, reason, note, created_at
		FROM order_status_history
		WHERE order_id=$1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StatusHistoryEntry{}
	for rows.Next() {
		var e StatusHistoryEntry
		var from *string
		if err := rows.Scan(&e.ID, &e.OrderID, &from, &e.ToStatus, &e.Reason, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		if from != nil {
			s := Status(*from)
			e.FromStatus = &s
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func hydrateOrder(ctx context.Context, q querier, id int64) (*Order, error) {
	var o Order
	var status string
	err := q.QueryRow(ctx, `
		SELECT id, total_amount, notes, status, cancel_reason, canceled_at, created_at
		FROM orders WHERE id=$1
	`, id).Scan(&o.ID, &o.TotalAmount, &o.Notes, &status, &o.CancelReason, &o.CanceledAt, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)

	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity,
		       p.id, p.name, p.description, p.price, p.image_url, p.category_id, p.created_at
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id=$1
		ORDER BY oi.id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	o.Items = []OrderItem{}
	for rows.Next() {
		var it OrderItem
		var pid *int64
		var pname, pdesc, pimg *string
		var pprice *decimal.Decimal
		var pcat *int64
		var pcreated *time.Time
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
			&pid, &pname, &pdesc, &pprice, &pimg, &pcat, &pcreated); err != nil {
			return nil, err
		}
		if pid != nil {
			it.Product = &Product{
				ID: *pid, Name: *pname, Description: *pdesc,
				Price: *pprice, ImageURL: *pimg, CategoryID: pcat, CreatedAt: *pcreated,
			}
		}
		it.Options = []SelectedOption{}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range o.Items {
		oprows, err := q.Query(ctx, `
			SELECT id, order_item_id, name, price
			FROM order_item_options WHERE order_item_id=$1 ORDER BY id
		`, o.Items[i].ID)
		if err != nil {
			return nil, err
		}
		for oprows.Next() {
			var op SelectedOption
			if err := oprows.Scan(&op.ID, &op.OrderItemID, &op.Name, &op.Price); err != nil {
				oprows.Close()
				return nil, err
			}
			o.Items[i].Options = append(o.Items[i].Options, op)
		}
		if err := oprows.Err(); err != nil {
			oprows.Close()
			return nil, err
		}
		oprows.Close()
	}
	return &o, nil
}
