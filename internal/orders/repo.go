package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-unique-checkout/internal/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres Store. Row locks (SELECT ... FOR UPDATE) give the
// per-product and per-order mutual exclusion; there is no table lock.
type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `order_id, order_number, customer_name, customer_phone, customer_address, customer_pincode,
	locked_product_ids, items, subtotal, shipping, total, payment_status,
	COALESCE(reserved_at, created_at), COALESCE(reservation_expires_at, created_at),
	COALESCE(payment_reference, ''), COALESCE(payment_payer_name, ''), COALESCE(payment_proof_url, ''),
	payment_submitted_at, settled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.Customer.Name, &o.Customer.Phone, &o.Customer.Address, &o.Customer.Pincode,
		&o.LockedProductIDs, &o.Items, &o.Subtotal, &o.Shipping, &o.Total, &status,
		&o.ReservedAt, &o.ReservationExpiresAt,
		&o.Payment.Reference, &o.Payment.PayerName, &o.Payment.ProofURL,
		&o.Payment.SubmittedAt, &o.SettledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if o.Status, err = ParseStatus(status); err != nil {
		return Order{}, fmt.Errorf("order %s: %w", o.ID, err)
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID, phone string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id=$1 AND customer_phone=$2`, orderID, phone))
}

func (r *Repo) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR payment_status = $1)
		ORDER BY order_number DESC
		LIMIT $2`, string(f.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) ProductStates(ctx context.Context, ids []string) ([]inventory.ProductState, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, state, COALESCE(locked_by_order_id, ''), COALESCE(sold_order_id, ''), updated_at
		FROM products WHERE id = ANY($1) ORDER BY id`, sortedUnique(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.ProductState
	for rows.Next() {
		var (
			p     inventory.ProductState
			state string
		)
		if err := rows.Scan(&p.ProductID, &state, &p.LockedBy, &p.SoldTo, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.State = inventory.State(state)
		if !p.State.Valid() {
			return nil, fmt.Errorf("product %s: unknown state %q", p.ProductID, state)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ExpiredHolders(ctx context.Context, productIDs []string, now time.Time) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT DISTINCT o.order_id
		FROM products p JOIN orders o ON o.order_id = p.locked_by_order_id
		WHERE p.id = ANY($1) AND p.state = 'locked'
		  AND o.payment_status = 'locked' AND o.reservation_expires_at <= $2`,
		sortedUnique(productIDs), now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *Repo) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id FROM orders
		WHERE payment_status = 'locked' AND reservation_expires_at <= $1
		ORDER BY reservation_expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// UpsertProduct registers a catalog product as available (seeding, tests).
// Existing rows keep their availability state.
func (r *Repo) UpsertProduct(ctx context.Context, id, name string, price decimal.Decimal) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, price) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, updated_at = now()`,
		id, name, price)
	return err
}

// DelistProducts hides sold products from the storefront catalog.
func (r *Repo) DelistProducts(ctx context.Context, ids []string) (int, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET listed = FALSE, updated_at = now()
		WHERE id = ANY($1) AND state = 'sold' AND listed`, sortedUnique(ids))
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}
