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

const saleSelect = `
	SELECT s.id, s.customer_id, ` + customerNameSQL + `, s.employee_id, ` + employeeNameSQL + `,
		s.payment_mode, s.amount_paid_cents, s.sale_date
	FROM sales s
	JOIN customers c ON c.id = s.customer_id
	LEFT JOIN employees e ON e.id = s.employee_id
`

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var employeeID sql.NullInt64
	if err := row.Scan(&sale.ID, &sale.CustomerID, &sale.CustomerName, &employeeID, &sale.EmployeeName,
		&sale.PaymentMode, &sale.AmountPaidCents, &sale.SaleDate); err != nil {
		return domain.Sale{}, err
	}
	if employeeID.Valid {
		id := employeeID.Int64
		sale.EmployeeID = &id
	}
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, saleSelect+` WHERE s.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.product_id, p.name, sp.quantity, sp.unit_price_cents
		FROM sale_products sp
		JOIN products p ON p.id = sp.product_id
		WHERE sp.sale_id = $1
		ORDER BY sp.product_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sale.Items = make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPriceCents); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, saleSelect+` ORDER BY s.sale_date DESC, s.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) SalesRevenue(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_paid_cents), 0) FROM sales`).Scan(&total)
	return total, err
}

// CreateBill snapshots the sale lines into a bill. A sale is billed at most once.
func (s *Store) CreateBill(ctx context.Context, saleID int64, totalCents int64, billDate time.Time) (*domain.Bill, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var saleTotal int64
	err = tx.QueryRowContext(ctx, `SELECT amount_paid_cents FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(&saleTotal)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}

	var billed bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bills WHERE sale_id = $1)`, saleID).Scan(&billed); err != nil {
		return nil, err
	}
	if billed {
		return nil, store.ErrAlreadyBilled
	}
	if totalCents != saleTotal {
		return nil, fmt.Errorf("%w: bill total must equal sale total", store.ErrInvalidTransaction)
	}

	var billID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO bills (sale_id, bill_date, total_amount_cents, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id
	`, saleID, nowDateUTC(billDate), totalCents).Scan(&billID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyBilled
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bill_items (bill_id, product_id, quantity, unit_price_cents)
		SELECT $1, product_id, quantity, unit_price_cents
		FROM sale_products
		WHERE sale_id = $2
	`, billID, saleID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetBill(ctx, billID)
}

const billSelect = `
	SELECT b.id, b.sale_id, s.customer_id, ` + customerNameSQL + `, s.payment_mode, b.bill_date, b.total_amount_cents
	FROM bills b
	JOIN sales s ON s.id = b.sale_id
	JOIN customers c ON c.id = s.customer_id
`

func scanBill(row rowScanner) (domain.Bill, error) {
	var bill domain.Bill
	err := row.Scan(&bill.ID, &bill.SaleID, &bill.CustomerID, &bill.CustomerName, &bill.PaymentMode, &bill.BillDate, &bill.TotalAmountCents)
	return bill, err
}

func (s *Store) GetBill(ctx context.Context, id int64) (*domain.Bill, error) {
	bill, err := scanBill(s.db.QueryRowContext(ctx, billSelect+` WHERE b.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bill %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bi.product_id, p.name, bi.quantity, bi.unit_price_cents
		FROM bill_items bi
		JOIN products p ON p.id = bi.product_id
		WHERE bi.bill_id = $1
		ORDER BY bi.product_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bill.Items = make([]domain.BillLine, 0, 8)
	for rows.Next() {
		var line domain.BillLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPriceCents); err != nil {
			return nil, err
		}
		line.TotalCents = int64(line.Quantity) * line.UnitPriceCents
		bill.Items = append(bill.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &bill, nil
}

func (s *Store) ListBills(ctx context.Context, customerID *int64) ([]domain.Bill, error) {
	rows, err := s.db.QueryContext(ctx, billSelect+`
		WHERE $1::bigint IS NULL OR s.customer_id = $1
		ORDER BY b.id DESC
	`, nullInt64(customerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 32)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}
