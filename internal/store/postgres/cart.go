package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
)

func (s *Store) GetOrCreateCart(ctx context.Context, customerID int64) (*domain.Cart, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, customerID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("customer %w", store.ErrNotFound)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO carts (customer_id, created_at)
		VALUES ($1, now())
		ON CONFLICT (customer_id) DO NOTHING
	`, customerID); err != nil {
		return nil, err
	}

	var cartID int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM carts WHERE customer_id = $1`, customerID).Scan(&cartID); err != nil {
		return nil, err
	}
	return s.loadCart(ctx, s.db, cartID, customerID)
}

func (s *Store) GetCart(ctx context.Context, cartID int64) (*domain.Cart, error) {
	var customerID int64
	err := s.db.QueryRowContext(ctx, `SELECT customer_id FROM carts WHERE id = $1`, cartID).Scan(&customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.loadCart(ctx, s.db, cartID, customerID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) loadCart(ctx context.Context, q querier, cartID int64, customerID int64) (*domain.Cart, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ci.product_id, p.name, p.brand, ci.quantity, p.unit_price_cents, p.stock, COALESCE(p.image_url, '')
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cart := &domain.Cart{ID: cartID, CustomerID: customerID, Items: make([]domain.CartLine, 0, 8)}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Brand, &line.Quantity, &line.UnitPriceCents, &line.Stock, &line.ImageURL); err != nil {
			return nil, err
		}
		line.TotalPriceCents = int64(line.Quantity) * line.UnitPriceCents
		cart.Items = append(cart.Items, line)
		cart.TotalCents += line.TotalPriceCents
		cart.Count += line.Quantity
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cart, nil
}

// lockCart takes the cart row lock that serialises every mutation of one cart.
func lockCart(ctx context.Context, tx *sql.Tx, cartID int64) (int64, error) {
	var customerID int64
	err := tx.QueryRowContext(ctx, `SELECT customer_id FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrCartNotFound
	}
	return customerID, err
}

// shareProduct reads the product under FOR SHARE so stock cannot drop until commit.
func shareProduct(ctx context.Context, tx *sql.Tx, productID int64) (string, int, error) {
	var name string
	var stock int
	err := tx.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1 FOR SHARE`, productID).Scan(&name, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, fmt.Errorf("product %w", store.ErrNotFound)
	}
	return name, stock, err
}

func (s *Store) withCartTx(ctx context.Context, cartID int64, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := lockCart(ctx, tx, cartID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// AddCartItem merges qty into the line, checking the combined quantity against live stock.
func (s *Store) AddCartItem(ctx context.Context, cartID int64, productID int64, qty int) error {
	if qty < 1 {
		return store.ErrInvalidTransaction
	}
	return s.withCartTx(ctx, cartID, func(tx *sql.Tx) error {
		name, stock, err := shareProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		existing := 0
		err = tx.QueryRowContext(ctx, `SELECT quantity FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID).Scan(&existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		wanted := existing + qty
		if wanted > stock {
			return &store.InsufficientStockError{ProductID: productID, ProductName: name, Requested: wanted, Available: stock}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
		`, cartID, productID, wanted)
		return err
	})
}

func (s *Store) UpdateCartItem(ctx context.Context, cartID int64, productID int64, qty int) error {
	return s.withCartTx(ctx, cartID, func(tx *sql.Tx) error {
		var existing int
		err := tx.QueryRowContext(ctx, `SELECT quantity FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("cart item %w", store.ErrNotFound)
		}
		if err != nil {
			return err
		}

		if qty <= 0 {
			_, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
			return err
		}

		name, stock, err := shareProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if qty > stock {
			return &store.InsufficientStockError{ProductID: productID, ProductName: name, Requested: qty, Available: stock}
		}
		_, err = tx.ExecContext(ctx, `UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`, cartID, productID, qty)
		return err
	})
}

func (s *Store) RemoveCartItem(ctx context.Context, cartID int64, productID int64) error {
	return s.withCartTx(ctx, cartID, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("cart item %w", store.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) ClearCart(ctx context.Context, cartID int64) error {
	return s.withCartTx(ctx, cartID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
		return err
	})
}

type finalizeLine struct {
	productID int64
	name      string
	qty       int
	price     int64
	stock     int
}

// FinalizeCart converts the cart into a sale inside one read-committed
// transaction. The cart row and then the product rows (ascending id) are
// locked FOR UPDATE, so concurrent checkouts touching the same products queue
// up and re-read stock after the first commits.
func (s *Store) FinalizeCart(ctx context.Context, req domain.FinalizeRequest) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	customerID, err := lockCart(ctx, tx, req.CartID)
	if err != nil {
		return nil, err
	}

	if req.EmployeeID != nil {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)`, *req.EmployeeID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: employee %d not found", store.ErrInvalidTransaction, *req.EmployeeID)
		}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT ci.product_id, p.name, ci.quantity, p.unit_price_cents, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
		FOR UPDATE OF p
	`, req.CartID)
	if err != nil {
		return nil, err
	}
	lines := make([]finalizeLine, 0, 8)
	for rows.Next() {
		var line finalizeLine
		if err := rows.Scan(&line.productID, &line.name, &line.qty, &line.price, &line.stock); err != nil {
			_ = rows.Close()
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(lines) == 0 {
		return nil, store.ErrCartEmpty
	}

	total := int64(0)
	for _, line := range lines {
		if line.qty > line.stock {
			return nil, &store.InsufficientStockError{
				ProductID:   line.productID,
				ProductName: line.name,
				Requested:   line.qty,
				Available:   line.stock,
			}
		}
		total += int64(line.qty) * line.price
	}

	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	sale := domain.Sale{
		CustomerID:      customerID,
		EmployeeID:      req.EmployeeID,
		PaymentMode:     req.PaymentMode,
		AmountPaidCents: total,
		SaleDate:        at,
		Items:           make([]domain.SaleLine, 0, len(lines)),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (customer_id, employee_id, payment_mode, amount_paid_cents, sale_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, customerID, nullInt64(req.EmployeeID), req.PaymentMode, total, at).Scan(&sale.ID)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_products (sale_id, product_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4)
		`, sale.ID, line.productID, line.qty, line.price); err != nil {
			return nil, err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND stock >= $1
		`, line.qty, line.productID)
		if err != nil {
			return nil, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, &store.InsufficientStockError{ProductID: line.productID, ProductName: line.name, Requested: line.qty, Available: line.stock}
		}

		sale.Items = append(sale.Items, domain.SaleLine{
			ProductID:      line.productID,
			ProductName:    line.name,
			Quantity:       line.qty,
			UnitPriceCents: line.price,
		})
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, req.CartID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}
