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

const membershipColumns = `id, customer_id, membership_type, start_date, end_date, amount_paid_cents, payment_mode, created_at`

func scanMembership(row rowScanner) (domain.Membership, error) {
	var m domain.Membership
	err := row.Scan(&m.ID, &m.CustomerID, &m.Type, &m.StartDate, &m.EndDate, &m.AmountPaidCents, &m.PaymentMode, &m.CreatedAt)
	return m, err
}

func (s *Store) CreateMembership(ctx context.Context, membership domain.Membership) (*domain.Membership, error) {
	if membership.Type == "" || membership.EndDate.Before(membership.StartDate) {
		return nil, store.ErrInvalidTransaction
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, membership.CustomerID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("customer %w", store.ErrNotFound)
	}

	created, err := scanMembership(s.db.QueryRowContext(ctx, `
		INSERT INTO memberships (customer_id, membership_type, start_date, end_date, amount_paid_cents, payment_mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+membershipColumns,
		membership.CustomerID, membership.Type, nowDateUTC(membership.StartDate), nowDateUTC(membership.EndDate),
		membership.AmountPaidCents, membership.PaymentMode))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) ActiveMembership(ctx context.Context, customerID int64, today time.Time) (*domain.Membership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships
		WHERE customer_id = $1 AND end_date >= $2
		ORDER BY end_date DESC, id DESC
		LIMIT 1
	`, customerID, nowDateUTC(today)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) LatestMembership(ctx context.Context, customerID int64) (*domain.Membership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships
		WHERE customer_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMemberships(ctx context.Context, customerID int64) ([]domain.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+membershipColumns+`
		FROM memberships
		WHERE customer_id = $1
		ORDER BY id DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Membership, 0, 4)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// CancelMemberships ends every active membership of the customer yesterday.
func (s *Store) CancelMemberships(ctx context.Context, customerID int64, today time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE memberships
		SET end_date = $2::date - 1,
			start_date = LEAST(start_date, $2::date - 1)
		WHERE customer_id = $1 AND end_date >= $2::date
	`, customerID, nowDateUTC(today))
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) MembershipStats(ctx context.Context, today time.Time) ([]domain.MembershipStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT membership_type,
			COUNT(*),
			COUNT(*) FILTER (WHERE end_date >= $1),
			COUNT(*) FILTER (WHERE end_date < $1),
			COALESCE(SUM(amount_paid_cents), 0)
		FROM memberships
		GROUP BY membership_type
		ORDER BY membership_type
	`, nowDateUTC(today))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]domain.MembershipStat, 0, 3)
	for rows.Next() {
		var stat domain.MembershipStat
		if err := rows.Scan(&stat.Type, &stat.Total, &stat.Active, &stat.Expired, &stat.RevenueCents); err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}
