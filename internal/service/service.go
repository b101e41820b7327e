package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/recommendation"
	"storefront/backend/internal/store"
	"storefront/backend/internal/xid"
)

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidPaymentMode = errors.New("payment mode must be Cash, Card or UPI")
)

type principalContextKey struct{}

func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	return principal, ok
}

type Service struct {
	repo              store.Repository
	recommender       *recommendation.Engine
	lowStockThreshold int
	now               func() time.Time
}

func New(repo store.Repository, recommender *recommendation.Engine, lowStockThreshold int) *Service {
	if recommender == nil {
		recommender = recommendation.NewEngine(repo, nil, 0)
	}
	if lowStockThreshold < 1 {
		lowStockThreshold = 50
	}

	return &Service{
		repo:              repo,
		recommender:       recommender,
		lowStockThreshold: lowStockThreshold,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the wall clock; tests use it to pin "today".
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) today() time.Time {
	return dateOf(s.now())
}

func currentPrincipal(ctx context.Context) (domain.Principal, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return domain.Principal{}, ErrUnauthenticated
	}
	return principal, nil
}

func requireStaff(ctx context.Context) (domain.Principal, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return domain.Principal{}, err
	}
	if !principal.IsStaff() {
		return domain.Principal{}, ErrForbidden
	}
	return principal, nil
}

func requireCustomerAccess(ctx context.Context, customerID int64) (domain.Principal, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return domain.Principal{}, err
	}
	if !principal.CanAccessCustomer(customerID) {
		return domain.Principal{}, ErrForbidden
	}
	return principal, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if _, err := currentPrincipal(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if _, err := currentPrincipal(ctx); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if !principal.CanManageCatalog() {
		return domain.Product{}, ErrForbidden
	}

	product := domain.Product{
		Name:           strings.TrimSpace(req.Name),
		Brand:          strings.TrimSpace(req.Brand),
		Category:       strings.TrimSpace(req.Category),
		UnitPriceCents: req.UnitPriceCents,
		Stock:          req.InitialStock,
		ImageURL:       strings.TrimSpace(req.ImageURL),
	}
	if product.Name == "" || product.UnitPriceCents < 1 || product.Stock < 0 {
		return domain.Product{}, store.ErrInvalidTransaction
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.UnitPriceCents, created.Stock))
	return *created, nil
}

// UpdateProduct patches catalog fields. Stock is not editable here.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if !principal.CanManageCatalog() {
		return domain.Product{}, ErrForbidden
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.Name = name
	}
	if req.Brand != nil {
		updated.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.UnitPriceCents != nil {
		if *req.UnitPriceCents < 1 {
			return domain.Product{}, store.ErrInvalidTransaction
		}
		updated.UnitPriceCents = *req.UnitPriceCents
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	detail := fmt.Sprintf("name=%s,price=%d", saved.Name, saved.UnitPriceCents)
	if existing.UnitPriceCents != saved.UnitPriceCents {
		detail += fmt.Sprintf(",old_price=%d", existing.UnitPriceCents)
	}
	s.logAudit(ctx, "product_update", "product", saved.ID, detail)
	return *saved, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	if _, err := requireCustomerAccess(ctx, id); err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

// FindCredential resolves a login identifier; it needs no principal.
func (s *Service) FindCredential(ctx context.Context, identifier string) (*domain.Credential, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, store.ErrNotFound
	}
	return s.repo.FindCredential(ctx, identifier)
}

// RegisterCustomer is public. Names are NFC-normalised so visually equal
// names compare equal.
func (s *Service) RegisterCustomer(ctx context.Context, req domain.CustomerRegisterRequest, passwordHash string) (domain.Customer, error) {
	customer := domain.Customer{
		FirstName:  cleanName(req.FirstName),
		MiddleName: cleanName(req.MiddleName),
		LastName:   cleanName(req.LastName),
		Phone:      strings.TrimSpace(req.Phone),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
	}
	if customer.FirstName == "" || !validPhone(customer.Phone) {
		return domain.Customer{}, fmt.Errorf("%w: first name and a valid phone number are required", store.ErrInvalidTransaction)
	}
	if customer.Email != "" && !validEmail(customer.Email) {
		return domain.Customer{}, fmt.Errorf("%w: invalid email", store.ErrInvalidTransaction)
	}

	created, err := s.repo.CreateCustomer(ctx, customer, passwordHash)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(ctx, "customer_register", "customer", created.ID, "phone="+maskPhone(created.Phone))
	return *created, nil
}

// RegisterEmployee is restricted to Admin employees.
func (s *Service) RegisterEmployee(ctx context.Context, req domain.EmployeeRegisterRequest, passwordHash string) (domain.Employee, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return domain.Employee{}, err
	}
	if !principal.IsAdmin() {
		return domain.Employee{}, ErrForbidden
	}

	role, ok := domain.NormalizeRole(req.Role)
	if !ok {
		return domain.Employee{}, fmt.Errorf("%w: role must be Admin, Manager or Cashier", store.ErrInvalidTransaction)
	}
	employee := domain.Employee{
		FirstName:   cleanName(req.FirstName),
		LastName:    cleanName(req.LastName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Role:        role,
	}
	if employee.FirstName == "" || !validEmail(employee.Email) {
		return domain.Employee{}, fmt.Errorf("%w: first name and a valid email are required", store.ErrInvalidTransaction)
	}

	created, err := s.repo.CreateEmployee(ctx, employee, passwordHash)
	if err != nil {
		return domain.Employee{}, err
	}
	s.logAudit(ctx, "employee_register", "employee", created.ID, fmt.Sprintf("email=%s,role=%s", created.Email, created.Role))
	return *created, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() {
		return nil, ErrForbidden
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID int64, detail string) {
	entry := domain.AuditLog{
		ID:         xid.New("audit"),
		ActorType:  "anonymous",
		ActorRole:  "none",
		Action:     action,
		EntityType: entityType,
		EntityID:   strconv.FormatInt(entityID, 10),
		Detail:     detail,
		CreatedAt:  s.now(),
	}
	if principal, ok := PrincipalFromContext(ctx); ok {
		entry.ActorType = string(principal.Type)
		entry.ActorID = principal.ID
		entry.ActorRole = principal.Role
	}

	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entry.EntityID, err)
	}
}

func cleanName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

func validPhone(phone string) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
