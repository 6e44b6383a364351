package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/payimport/internal/core"
	"github.com/JonMunkholm/payimport/internal/store"
)

const paymentColumns = `number, status, mode, gateway, total, tax, subtotal, currency,
	payment_date, email, first_name, last_name, customer_id, user_id, discounts,
	transaction_id, ip, parent_payment_id, line1, line2, city, state, zip, country`

func paymentArgs(p *core.Payment) []any {
	return []any{
		p.Number, p.Status, p.Mode, p.Gateway,
		p.Total.String(), p.Tax.String(), p.Subtotal.String(), p.Currency,
		p.Date, p.Email, p.FirstName, p.LastName, p.CustomerID, p.UserID, p.Discounts,
		p.TransactionID, p.IP, p.ParentPaymentID,
		p.Address.Line1, p.Address.Line2, p.Address.City, p.Address.State, p.Address.Zip, p.Address.Country,
	}
}

// SavePayment inserts a payment when p.ID is zero, otherwise updates it,
// and replaces its line items. Entering a completed status adds product
// stats and, unless suppressed, queues the sale notifications, all in the
// same transaction.
func (s *Store) SavePayment(ctx context.Context, p *core.Payment, opts core.SaveOptions) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var prev string
		if p.ID == 0 {
			err := tx.QueryRow(ctx, `INSERT INTO payments (`+paymentColumns+`)
				VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12,
					$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
				RETURNING id`, paymentArgs(p)...).Scan(&p.ID)
			if err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
		} else {
			err := tx.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1 FOR UPDATE`, p.ID).Scan(&prev)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("update payment %d: %w", p.ID, core.ErrPaymentNotFound)
			}
			if err != nil {
				return fmt.Errorf("lock payment %d: %w", p.ID, err)
			}
			args := append(paymentArgs(p), p.ID)
			_, err = tx.Exec(ctx, `UPDATE payments SET
				number = $1, status = $2, mode = $3, gateway = $4,
				total = $5::numeric, tax = $6::numeric, subtotal = $7::numeric, currency = $8,
				payment_date = $9, email = $10, first_name = $11, last_name = $12,
				customer_id = $13, user_id = $14, discounts = $15, transaction_id = $16,
				ip = $17, parent_payment_id = $18, line1 = $19, line2 = $20, city = $21,
				state = $22, zip = $23, country = $24, updated_at = now()
				WHERE id = $25`, args...)
			if err != nil {
				return fmt.Errorf("update payment %d: %w", p.ID, err)
			}
		}

		if err := replaceLineItems(ctx, tx, p); err != nil {
			return err
		}

		if !store.EntersCompleted(prev, p.Status) {
			return nil
		}
		for _, inc := range store.SaleIncrements(p) {
			_, err := tx.Exec(ctx, `INSERT INTO product_stats (product_id, sales, earnings)
				VALUES ($1, $2, $3::numeric)
				ON CONFLICT (product_id) DO UPDATE
				SET sales = product_stats.sales + EXCLUDED.sales,
					earnings = product_stats.earnings + EXCLUDED.earnings`,
				inc.ProductID, inc.Sales, inc.Earnings.String())
			if err != nil {
				return fmt.Errorf("update product stats %d: %w", inc.ProductID, err)
			}
		}
		if opts.SuppressSideEffects {
			return nil
		}
		for _, n := range store.SaleNotifications(p, s.clock()) {
			_, err := tx.Exec(ctx, `INSERT INTO notifications (payment_id, kind, email, queued_at)
				VALUES ($1, $2, $3, $4)`, n.PaymentID, string(n.Kind), n.Email, n.QueuedAt)
			if err != nil {
				return fmt.Errorf("queue %s: %w", n.Kind, err)
			}
		}
		return nil
	})
}

func replaceLineItems(ctx context.Context, tx pgx.Tx, p *core.Payment) error {
	if _, err := tx.Exec(ctx, `DELETE FROM payment_line_items WHERE payment_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clear line items: %w", err)
	}
	if len(p.LineItems) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, item := range p.LineItems {
		batch.Queue(`INSERT INTO payment_line_items (payment_id, position, product_id, product_title, unit_price, tax)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)`,
			p.ID, i, item.ProductID, item.ProductTitle, item.UnitPrice.String(), item.Tax.String())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert line items: %w", err)
	}
	return nil
}

// GetPayment loads a payment with its line items.
func (s *Store) GetPayment(ctx context.Context, id int64) (*core.Payment, error) {
	var (
		p                    core.Payment
		total, tax, subtotal string
	)
	p.ID = id
	err := s.pool.QueryRow(ctx, `SELECT number, status, mode, gateway,
			total::text, tax::text, subtotal::text, currency, payment_date, email,
			first_name, last_name, customer_id, user_id, discounts, transaction_id, ip,
			parent_payment_id, line1, line2, city, state, zip, country
		FROM payments WHERE id = $1`, id).Scan(
		&p.Number, &p.Status, &p.Mode, &p.Gateway,
		&total, &tax, &subtotal, &p.Currency, &p.Date, &p.Email,
		&p.FirstName, &p.LastName, &p.CustomerID, &p.UserID, &p.Discounts, &p.TransactionID, &p.IP,
		&p.ParentPaymentID, &p.Address.Line1, &p.Address.Line2, &p.Address.City,
		&p.Address.State, &p.Address.Zip, &p.Address.Country,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", id, core.ErrPaymentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	if p.Total, err = parseDecimal(total); err != nil {
		return nil, err
	}
	if p.Tax, err = parseDecimal(tax); err != nil {
		return nil, err
	}
	if p.Subtotal, err = parseDecimal(subtotal); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT product_id, product_title, unit_price::text, tax::text
		FROM payment_line_items WHERE payment_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get line items %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item       core.LineItem
			price, itx string
		)
		if err := rows.Scan(&item.ProductID, &item.ProductTitle, &price, &itx); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if item.Tax, err = parseDecimal(itx); err != nil {
			return nil, err
		}
		p.LineItems = append(p.LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProductStats returns the sales counters of a product.
func (s *Store) ProductStats(ctx context.Context, productID int64) (store.ProductStats, error) {
	st := store.ProductStats{ProductID: productID, Earnings: decimal.Zero}
	var earnings string
	err := s.pool.QueryRow(ctx, `SELECT sales, earnings::text FROM product_stats WHERE product_id = $1`, productID).
		Scan(&st.Sales, &earnings)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("get product stats %d: %w", productID, err)
	}
	st.Earnings, err = parseDecimal(earnings)
	return st, err
}

// ----------------------------------------------------------------------------
// Meta
// ----------------------------------------------------------------------------

// AddMeta adds key to a payment. It reports false for an empty key, an
// unknown payment, or a unique add of an existing key.
func (s *Store) AddMeta(ctx context.Context, paymentID int64, key, value string, unique bool) (bool, error) {
	if key == "" || paymentID <= 0 {
		return false, nil
	}
	query := `INSERT INTO payment_meta (payment_id, meta_key, meta_value) VALUES ($1, $2, $3)
		ON CONFLICT (payment_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value`
	if unique {
		query = `INSERT INTO payment_meta (payment_id, meta_key, meta_value) VALUES ($1, $2, $3)
			ON CONFLICT (payment_id, meta_key) DO NOTHING`
	}
	tag, err := s.pool.Exec(ctx, query, paymentID, key, value)
	if isConstraintError(err, codeForeignKeyViolation, "") {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add meta %s to payment %d: %w", key, paymentID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateMeta sets key, adding it when missing.
func (s *Store) UpdateMeta(ctx context.Context, paymentID int64, key, value string) (bool, error) {
	return s.AddMeta(ctx, paymentID, key, value, false)
}

// GetMeta returns the value of key.
func (s *Store) GetMeta(ctx context.Context, paymentID int64, key string) (string, bool, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT meta_value FROM payment_meta WHERE payment_id = $1 AND meta_key = $2`,
		paymentID, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %s of payment %d: %w", key, paymentID, err)
	}
	return v, true, nil
}

// DeleteMeta removes key. It reports false when the key is empty or missing.
func (s *Store) DeleteMeta(ctx context.Context, paymentID int64, key string) (bool, error) {
	if key == "" || paymentID <= 0 {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM payment_meta WHERE payment_id = $1 AND meta_key = $2`, paymentID, key)
	if err != nil {
		return false, fmt.Errorf("delete meta %s of payment %d: %w", key, paymentID, err)
	}
	return tag.RowsAffected() > 0, nil
}
