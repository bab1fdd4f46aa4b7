package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-unique-checkout/internal/inventory"
	"github.com/jackc/pgx/v5"
)

// Reserve: lock every requested product (FOR UPDATE, ascending id) ->
// re-check state -> insert order + flip all to locked, or roll back.
func (r *Repo) Reserve(ctx context.Context, o Order) (Order, []UnavailableProduct, error) {
	ids := sortedUnique(o.LockedProductIDs)
	if len(ids) == 0 {
		return Order{}, nil, &ValidationError{Field: "product_ids", Reason: "required"}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, err
	}
	defer tx.Rollback(ctx)

	var unavailable []UnavailableProduct
	for _, id := range ids {
		var state string
		err := tx.QueryRow(ctx, `SELECT state FROM products WHERE id=$1 FOR UPDATE`, id).Scan(&state)
		if errors.Is(err, pgx.ErrNoRows) {
			unavailable = append(unavailable, UnavailableProduct{ID: id})
			continue
		}
		if err != nil {
			return Order{}, nil, fmt.Errorf("lock product %s: %w", id, err)
		}
		if inventory.State(state) != inventory.StateAvailable {
			unavailable = append(unavailable, UnavailableProduct{ID: id})
		}
	}
	if len(unavailable) > 0 {
		return Order{}, unavailable, nil // rollback via defer
	}

	o.LockedProductIDs = ids
	o.Status = StatusLocked
	o.CreatedAt, o.UpdatedAt = o.ReservedAt, o.ReservedAt
	if o.Items == nil {
		o.Items = []Item{}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(order_id, customer_name, customer_phone, customer_address, customer_pincode,
			locked_product_ids, items, subtotal, shipping, total, payment_status,
			reserved_at, reservation_expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$12,$12)
		RETURNING order_number`,
		o.ID, o.Customer.Name, o.Customer.Phone, o.Customer.Address, o.Customer.Pincode,
		o.LockedProductIDs, o.Items, o.Subtotal, o.Shipping, o.Total, string(o.Status),
		o.ReservedAt, o.ReservationExpiresAt,
	).Scan(&o.Number)
	if err != nil {
		return Order{}, nil, fmt.Errorf("insert order: %w", err)
	}

	ct, err := tx.Exec(ctx, `
		UPDATE products SET state='locked', locked_by_order_id=$2, updated_at=$3
		WHERE id = ANY($1) AND state='available'`, ids, o.ID, o.ReservedAt)
	if err != nil {
		return Order{}, nil, err
	}
	if ct.RowsAffected() != int64(len(ids)) {
		return Order{}, nil, fmt.Errorf("lock products: %d of %d rows updated", ct.RowsAffected(), len(ids))
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, err
	}
	return o, nil, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (Order, error) {
	return scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id=$1 FOR UPDATE`, orderID))
}

// moveProducts flips the products still locked by orderID to sold or back to
// available. Rows are locked one by one in ascending id order first so the
// lock order matches Reserve.
func moveProducts(ctx context.Context, tx pgx.Tx, orderID string, ids []string, sell bool, now time.Time) error {
	ids = sortedUnique(ids)
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM products WHERE id=$1 FOR UPDATE`, id); err != nil {
			return fmt.Errorf("lock product %s: %w", id, err)
		}
	}

	q := `UPDATE products SET state='available', locked_by_order_id=NULL, updated_at=$3
		WHERE id = ANY($1) AND state='locked' AND locked_by_order_id=$2`
	if sell {
		q = `UPDATE products SET state='sold', sold_order_id=$2, locked_by_order_id=NULL, updated_at=$3
		WHERE id = ANY($1) AND state='locked' AND locked_by_order_id=$2`
	}
	_, err := tx.Exec(ctx, q, ids, orderID, now)
	return err
}

func (r *Repo) ExpireOrder(ctx context.Context, orderID string, now time.Time) (Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, false, err
	}
	next, err := o.Status.Expire(now, o.ReservationExpiresAt)
	if errors.Is(err, ErrNotLocked) || errors.Is(err, ErrNotExpired) {
		return o, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}

	if err := moveProducts(ctx, tx, o.ID, o.LockedProductIDs, false, now); err != nil {
		return Order{}, false, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET payment_status=$2, updated_at=$3 WHERE order_id=$1`,
		o.ID, string(next), now); err != nil {
		return Order{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	o.Status, o.UpdatedAt = next, now
	return o, true, nil
}

// SubmitPayment is the check-and-set "locked and now < expires_at" ->
// payment_submitted. Products stay locked.
func (r *Repo) SubmitPayment(ctx context.Context, orderID, phone string, p Payment, now time.Time) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id=$1 AND customer_phone=$2 FOR UPDATE`,
		orderID, phone))
	if err != nil {
		return Order{}, err
	}
	next, err := o.Status.Submit(now, o.ReservationExpiresAt)
	if err != nil {
		return o, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET payment_status=$2, payment_reference=$3, payment_payer_name=$4,
			payment_proof_url=$5, payment_submitted_at=$6, updated_at=$6
		WHERE order_id=$1`,
		o.ID, string(next), p.Reference, p.PayerName, p.ProofURL, now); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	p.SubmittedAt = &now
	o.Payment, o.Status, o.UpdatedAt = p, next, now
	return o, nil
}

func (r *Repo) Settle(ctx context.Context, orderID string, d Decision, now time.Time) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	next, err := o.Status.Settle(d)
	if err != nil {
		return o, err
	}

	if err := moveProducts(ctx, tx, o.ID, o.LockedProductIDs, next.Sells(), now); err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET payment_status=$2, settled_at=$3, updated_at=$3 WHERE order_id=$1`,
		o.ID, string(next), now); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	o.Status, o.SettledAt, o.UpdatedAt = next, &now, now
	return o, nil
}
