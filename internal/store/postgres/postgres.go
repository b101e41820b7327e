package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const productColumns = `p.id, p.name, p.brand, p.category, p.unit_price_cents, p.stock, COALESCE(p.image_url, ''), p.created_at`

const customerNameSQL = `CONCAT_WS(' ', c.first_name, NULLIF(c.middle_name, ''), NULLIF(c.last_name, ''))`

const employeeNameSQL = `CONCAT_WS(' ', e.first_name, NULLIF(e.last_name, ''))`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, extra ...any) (domain.Product, error) {
	var p domain.Product
	dest := []any{&p.ID, &p.Name, &p.Brand, &p.Category, &p.UnitPriceCents, &p.Stock, &p.ImageURL, &p.CreatedAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products p
		ORDER BY p.category, p.name
	`)
}

func (s *Store) ListInStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.stock > 0
		ORDER BY p.id
	`)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.UnitPriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidTransaction
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, brand, category, unit_price_cents, stock, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, created_at
	`, product.Name, product.Brand, product.Category, product.UnitPriceCents, product.Stock, nullIfEmpty(product.ImageURL)).
		Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct rewrites catalog fields. Stock is owned by checkout and is left untouched.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.UnitPriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE products p
		SET name = $2, brand = $3, category = $4, unit_price_cents = $5, image_url = $6, updated_at = now()
		WHERE p.id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Brand, product.Category, product.UnitPriceCents, nullIfEmpty(product.ImageURL))
	updated, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer, passwordHash string) (*domain.Customer, error) {
	if customer.Phone == "" || customer.FirstName == "" || passwordHash == "" {
		return nil, store.ErrInvalidTransaction
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (first_name, middle_name, last_name, phone, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, created_at
	`, customer.FirstName, nullIfEmpty(customer.MiddleName), customer.LastName, customer.Phone, nullIfEmpty(customer.Email), passwordHash).
		Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: phone number already registered", store.ErrConflict)
		}
		return nil, err
	}
	customer.MembershipType = ""
	return &customer, nil
}

const customerSelect = `
	SELECT c.id, c.first_name, COALESCE(c.middle_name, ''), c.last_name, c.phone, COALESCE(c.email, ''),
		COALESCE(am.membership_type, ''), c.created_at
	FROM customers c
	LEFT JOIN LATERAL (
		SELECT m.membership_type
		FROM memberships m
		WHERE m.customer_id = c.id AND m.end_date >= $1
		ORDER BY m.end_date DESC, m.id DESC
		LIMIT 1
	) am ON true
`

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.MiddleName, &c.LastName, &c.Phone, &c.Email, &c.MembershipType, &c.CreatedAt)
	return c, err
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, customerSelect+` WHERE c.id = $2`, nowDateUTC(time.Now()), id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, customerSelect+` ORDER BY c.id`, nowDateUTC(time.Now()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee, passwordHash string) (*domain.Employee, error) {
	employee.Email = strings.ToLower(strings.TrimSpace(employee.Email))
	if employee.Email == "" || employee.FirstName == "" || employee.Role == "" || passwordHash == "" {
		return nil, store.ErrInvalidTransaction
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO employees (first_name, last_name, email, phone_number, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, created_at
	`, employee.FirstName, employee.LastName, employee.Email, nullIfEmpty(employee.PhoneNumber), employee.Role, passwordHash).
		Scan(&employee.ID, &employee.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email already registered", store.ErrConflict)
		}
		return nil, err
	}
	return &employee, nil
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (*domain.Employee, error) {
	var e domain.Employee
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, COALESCE(phone_number, ''), role, created_at
		FROM employees
		WHERE id = $1
	`, id).Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.PhoneNumber, &e.Role, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FindCredential resolves a customer phone number or an employee email.
func (s *Store) FindCredential(ctx context.Context, identifier string) (*domain.Credential, error) {
	identifier = strings.TrimSpace(identifier)

	cred := domain.Credential{PrincipalType: domain.PrincipalCustomer, Role: domain.RoleCustomer}
	err := s.db.QueryRowContext(ctx, `SELECT id, password_hash FROM customers WHERE phone = $1`, identifier).
		Scan(&cred.PrincipalID, &cred.PasswordHash)
	if err == nil {
		return &cred, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	cred = domain.Credential{PrincipalType: domain.PrincipalEmployee}
	err = s.db.QueryRowContext(ctx, `SELECT id, role, password_hash FROM employees WHERE email = $1`, strings.ToLower(identifier)).
		Scan(&cred.PrincipalID, &cred.Role, &cred.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_type, actor_id, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.ActorType, entry.ActorID, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_type, actor_id, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorType, &entry.ActorID, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}
