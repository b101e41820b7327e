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

func (s *Store) GetDashboardStats(ctx context.Context, from time.Time, to time.Time, lowStockThreshold int) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(amount_paid_cents), 0) FROM sales),
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM sales),
			(SELECT COUNT(*) FROM sales WHERE sale_date >= $1 AND sale_date < $2),
			(SELECT COALESCE(SUM(amount_paid_cents), 0) FROM sales WHERE sale_date >= $1 AND sale_date < $2),
			(SELECT COUNT(*) FROM products WHERE stock < $3),
			(SELECT COALESCE(SUM(amount_paid_cents), 0) FROM memberships)
	`, from, to, lowStockThreshold).Scan(
		&stats.TotalRevenueCents,
		&stats.TotalProducts,
		&stats.TotalCustomers,
		&stats.TotalSales,
		&stats.TodaySales,
		&stats.TodayRevenueCents,
		&stats.LowStockProducts,
		&stats.MembershipRevenueCents,
	)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	return stats, nil
}

func (s *Store) GetSalesSeries(ctx context.Context, from time.Time, to time.Time) ([]domain.SalesPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(sale_date AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*),
			COALESCE(SUM(amount_paid_cents), 0)
		FROM sales
		WHERE sale_date >= $1 AND sale_date < $2
		GROUP BY day
		ORDER BY day
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.SalesPoint, 0, 8)
	for rows.Next() {
		var point domain.SalesPoint
		if err := rows.Scan(&point.Date, &point.Sales, &point.RevenueCents); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

// TopProducts ranks products by units sold. A nil since covers all time and an
// empty category covers every category.
func (s *Store) TopProducts(ctx context.Context, since *time.Time, category string, limit int) ([]domain.ProductSales, error) {
	if limit <= 0 {
		limit = 100
	}
	var sinceArg any
	if since != nil {
		sinceArg = *since
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`,
			SUM(sp.quantity) AS qty,
			SUM(sp.quantity * sp.unit_price_cents) AS revenue
		FROM sale_products sp
		JOIN sales s ON s.id = sp.sale_id
		JOIN products p ON p.id = sp.product_id
		WHERE ($1::timestamptz IS NULL OR s.sale_date >= $1::timestamptz)
			AND ($2::text = '' OR p.category = $2::text)
		GROUP BY p.id
		ORDER BY qty DESC, revenue DESC, p.id
		LIMIT $3
	`, sinceArg, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranked := make([]domain.ProductSales, 0, limit)
	for rows.Next() {
		var entry domain.ProductSales
		p, err := scanProduct(rows, &entry.QuantitySold, &entry.RevenueCents)
		if err != nil {
			return nil, err
		}
		entry.Product = p
		ranked = append(ranked, entry)
	}
	return ranked, rows.Err()
}

func (s *Store) TopCategoryForCustomer(ctx context.Context, customerID int64, since time.Time) (string, error) {
	var category string
	err := s.db.QueryRowContext(ctx, `
		SELECT p.category
		FROM sale_products sp
		JOIN sales s ON s.id = sp.sale_id
		JOIN products p ON p.id = sp.product_id
		WHERE s.customer_id = $1 AND s.sale_date >= $2 AND p.category <> ''
		GROUP BY p.category
		ORDER BY SUM(sp.quantity) DESC, p.category
		LIMIT 1
	`, customerID, since).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("category %w", store.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return category, nil
}
