package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
	"storefront/backend/internal/xid"
)

type customerRecord struct {
	customer     domain.Customer
	passwordHash string
}

type employeeRecord struct {
	employee     domain.Employee
	passwordHash string
}

type cartRecord struct {
	id         int64
	customerID int64
	items      map[int64]int
}

// Store keeps every table in process memory. All mutations, including cart
// finalization, run under a single mutex.
type Store struct {
	mu             sync.RWMutex
	seq            map[string]int64
	products       map[int64]domain.Product
	customers      map[int64]customerRecord
	employees      map[int64]employeeRecord
	carts          map[int64]*cartRecord
	cartByCustomer map[int64]int64
	sales          map[int64]domain.Sale
	bills          map[int64]domain.Bill
	billBySale     map[int64]int64
	memberships    []domain.Membership
	auditLogs      []domain.AuditLog
	now            func() time.Time
}

func New() *Store {
	return &Store{
		seq:            make(map[string]int64),
		products:       make(map[int64]domain.Product),
		customers:      make(map[int64]customerRecord),
		employees:      make(map[int64]employeeRecord),
		carts:          make(map[int64]*cartRecord),
		cartByCustomer: make(map[int64]int64),
		sales:          make(map[int64]domain.Sale),
		bills:          make(map[int64]domain.Bill),
		billBySale:     make(map[int64]int64),
		memberships:    make([]domain.Membership, 0, 16),
		auditLogs:      make([]domain.AuditLog, 0, 128),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// DemoProducts is the starter catalog used by the in-memory store and the seed command.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{Name: "Basmati Rice 5kg", Brand: "India Gate", Category: "Staples", UnitPriceCents: 64500, Stock: 80},
		{Name: "Whole Wheat Atta 10kg", Brand: "Aashirvaad", Category: "Staples", UnitPriceCents: 49900, Stock: 60},
		{Name: "Toor Dal 1kg", Brand: "Tata Sampann", Category: "Staples", UnitPriceCents: 17900, Stock: 120},
		{Name: "Sunflower Oil 1L", Brand: "Fortune", Category: "Staples", UnitPriceCents: 15500, Stock: 90},
		{Name: "Full Cream Milk 1L", Brand: "Amul", Category: "Dairy", UnitPriceCents: 6800, Stock: 40},
		{Name: "Paneer 200g", Brand: "Amul", Category: "Dairy", UnitPriceCents: 9000, Stock: 35},
		{Name: "Salted Butter 500g", Brand: "Amul", Category: "Dairy", UnitPriceCents: 28500, Stock: 45},
		{Name: "Masala Chai 250g", Brand: "Tata Tea", Category: "Beverages", UnitPriceCents: 14500, Stock: 70},
		{Name: "Instant Coffee 100g", Brand: "Nescafe", Category: "Beverages", UnitPriceCents: 32000, Stock: 30},
		{Name: "Potato Chips 90g", Brand: "Lay's", Category: "Snacks", UnitPriceCents: 5000, Stock: 150},
		{Name: "Glucose Biscuits 800g", Brand: "Parle-G", Category: "Snacks", UnitPriceCents: 9500, Stock: 100},
		{Name: "Detergent Powder 1kg", Brand: "Surf Excel", Category: "Household", UnitPriceCents: 14000, Stock: 55},
		{Name: "Dishwash Bar 500g", Brand: "Vim", Category: "Household", UnitPriceCents: 5500, Stock: 20},
		{Name: "Bath Soap 4x100g", Brand: "Dove", Category: "Personal Care", UnitPriceCents: 21500, Stock: 65},
	}
}

type seedAccount struct {
	label    string
	password string
	hash     string
}

// seedHashes hashes the demo credentials once per process. Passwords come from
// SEED_ADMIN_PASSWORD, SEED_CASHIER_PASSWORD and SEED_CUSTOMER_PASSWORD with dev
// defaults when unset. Production runs against Postgres and never uses these.
var seedHashes = sync.OnceValue(func() map[string]seedAccount {
	accounts := map[string]seedAccount{
		"admin":    {label: "admin", password: envOr("SEED_ADMIN_PASSWORD", "admin123")},
		"cashier":  {label: "cashier", password: envOr("SEED_CASHIER_PASSWORD", "cashier123")},
		"customer": {label: "customer", password: envOr("SEED_CUSTOMER_PASSWORD", "customer123")},
	}
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}
	for key, acc := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(acc.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", acc.label, err)
		}
		acc.hash = string(hash)
		accounts[key] = acc
	}
	return accounts
})

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with the demo catalog, an Admin (admin@metro.local),
// a Cashier (cashier@metro.local) and one customer (phone 9000000001).
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()
	for _, p := range DemoProducts() {
		if _, err := s.CreateProduct(ctx, p); err != nil {
			log.Fatalf("[memory-store] seed product %s: %v", p.Name, err)
		}
	}

	hashes := seedHashes()
	seeds := []struct {
		employee domain.Employee
		hash     string
	}{
		{domain.Employee{FirstName: "Store", LastName: "Admin", Email: "admin@metro.local", Role: domain.RoleAdmin}, hashes["admin"].hash},
		{domain.Employee{FirstName: "Front", LastName: "Cashier", Email: "cashier@metro.local", Role: domain.RoleCashier}, hashes["cashier"].hash},
	}
	for _, seed := range seeds {
		if _, err := s.CreateEmployee(ctx, seed.employee, seed.hash); err != nil {
			log.Fatalf("[memory-store] seed employee %s: %v", seed.employee.Email, err)
		}
	}
	customer := domain.Customer{FirstName: "Asha", LastName: "Rao", Phone: "9000000001", Email: "asha@example.com"}
	if _, err := s.CreateCustomer(ctx, customer, hashes["customer"].hash); err != nil {
		log.Fatalf("[memory-store] seed customer: %v", err)
	}
	return s
}

// SetClock overrides the wall clock used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.UnitPriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidTransaction
	}

	product.ID = s.nextID("products")
	product.CreatedAt = s.now()
	s.products[product.ID] = product
	created := product
	return &created, nil
}

// UpdateProduct rewrites catalog fields. Stock is owned by checkout and is left untouched.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.UnitPriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListInStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Stock > 0 {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int { return cmpInt64(a.ID, b.ID) })
	return products, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer, passwordHash string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.Phone == "" || customer.FirstName == "" || passwordHash == "" {
		return nil, store.ErrInvalidTransaction
	}
	for _, existing := range s.customers {
		if existing.customer.Phone == customer.Phone {
			return nil, fmt.Errorf("%w: phone number already registered", store.ErrConflict)
		}
	}

	customer.ID = s.nextID("customers")
	customer.CreatedAt = s.now()
	customer.MembershipType = ""
	s.customers[customer.ID] = customerRecord{customer: customer, passwordHash: passwordHash}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	customer := record.customer
	customer.MembershipType = s.activeMembershipTypeLocked(id)
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for id, record := range s.customers {
		customer := record.customer
		customer.MembershipType = s.activeMembershipTypeLocked(id)
		customers = append(customers, customer)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int { return cmpInt64(a.ID, b.ID) })
	return customers, nil
}

func (s *Store) CreateEmployee(_ context.Context, employee domain.Employee, passwordHash string) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	employee.Email = strings.ToLower(strings.TrimSpace(employee.Email))
	if employee.Email == "" || employee.FirstName == "" || employee.Role == "" || passwordHash == "" {
		return nil, store.ErrInvalidTransaction
	}
	for _, existing := range s.employees {
		if existing.employee.Email == employee.Email {
			return nil, fmt.Errorf("%w: email already registered", store.ErrConflict)
		}
	}

	employee.ID = s.nextID("employees")
	employee.CreatedAt = s.now()
	s.employees[employee.ID] = employeeRecord{employee: employee, passwordHash: passwordHash}
	created := employee
	return &created, nil
}

func (s *Store) GetEmployee(_ context.Context, id int64) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.employees[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	employee := record.employee
	return &employee, nil
}

// FindCredential resolves a customer phone number or an employee email.
func (s *Store) FindCredential(_ context.Context, identifier string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identifier = strings.TrimSpace(identifier)
	for id, record := range s.customers {
		if record.customer.Phone == identifier {
			return &domain.Credential{
				PrincipalID:   id,
				PrincipalType: domain.PrincipalCustomer,
				Role:          domain.RoleCustomer,
				PasswordHash:  record.passwordHash,
			}, nil
		}
	}
	email := strings.ToLower(identifier)
	for id, record := range s.employees {
		if record.employee.Email == email {
			return &domain.Credential{
				PrincipalID:   id,
				PrincipalType: domain.PrincipalEmployee,
				Role:          record.employee.Role,
				PasswordHash:  record.passwordHash,
			}, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetOrCreateCart(_ context.Context, customerID int64) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[customerID]; !exists {
		return nil, fmt.Errorf("customer %w", store.ErrNotFound)
	}
	cartID, exists := s.cartByCustomer[customerID]
	if !exists {
		cartID = s.nextID("carts")
		s.carts[cartID] = &cartRecord{id: cartID, customerID: customerID, items: make(map[int64]int)}
		s.cartByCustomer[customerID] = cartID
	}
	return s.cartViewLocked(s.carts[cartID]), nil
}

func (s *Store) GetCart(_ context.Context, cartID int64) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return nil, store.ErrCartNotFound
	}
	return s.cartViewLocked(cart), nil
}

// AddCartItem merges qty into the line, checking the combined quantity against live stock.
func (s *Store) AddCartItem(_ context.Context, cartID int64, productID int64, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty < 1 {
		return store.ErrInvalidTransaction
	}
	cart, exists := s.carts[cartID]
	if !exists {
		return store.ErrCartNotFound
	}
	product, exists := s.products[productID]
	if !exists {
		return fmt.Errorf("product %w", store.ErrNotFound)
	}
	wanted := cart.items[productID] + qty
	if wanted > product.Stock {
		return &store.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   wanted,
			Available:   product.Stock,
		}
	}
	cart.items[productID] = wanted
	return nil
}

func (s *Store) UpdateCartItem(_ context.Context, cartID int64, productID int64, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return store.ErrCartNotFound
	}
	if _, exists := cart.items[productID]; !exists {
		return fmt.Errorf("cart item %w", store.ErrNotFound)
	}
	if qty <= 0 {
		delete(cart.items, productID)
		return nil
	}
	product, exists := s.products[productID]
	if !exists {
		return fmt.Errorf("product %w", store.ErrNotFound)
	}
	if qty > product.Stock {
		return &store.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   qty,
			Available:   product.Stock,
		}
	}
	cart.items[productID] = qty
	return nil
}

func (s *Store) RemoveCartItem(_ context.Context, cartID int64, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return store.ErrCartNotFound
	}
	if _, exists := cart.items[productID]; !exists {
		return fmt.Errorf("cart item %w", store.ErrNotFound)
	}
	delete(cart.items, productID)
	return nil
}

func (s *Store) ClearCart(_ context.Context, cartID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return store.ErrCartNotFound
	}
	cart.items = make(map[int64]int)
	return nil
}

// FinalizeCart turns the cart into a sale. Nothing is written unless every
// line is covered by live stock.
func (s *Store) FinalizeCart(_ context.Context, req domain.FinalizeRequest) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[req.CartID]
	if !exists {
		return nil, store.ErrCartNotFound
	}
	if len(cart.items) == 0 {
		return nil, store.ErrCartEmpty
	}
	if req.EmployeeID != nil {
		if _, exists := s.employees[*req.EmployeeID]; !exists {
			return nil, fmt.Errorf("%w: employee %d not found", store.ErrInvalidTransaction, *req.EmployeeID)
		}
	}

	productIDs := sortedKeys(cart.items)
	lines := make([]domain.SaleLine, 0, len(productIDs))
	total := int64(0)
	for _, productID := range productIDs {
		qty := cart.items[productID]
		product, exists := s.products[productID]
		if !exists {
			return nil, fmt.Errorf("product %d %w", productID, store.ErrNotFound)
		}
		if qty > product.Stock {
			return nil, &store.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   qty,
				Available:   product.Stock,
			}
		}
		lines = append(lines, domain.SaleLine{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       qty,
			UnitPriceCents: product.UnitPriceCents,
		})
		total += int64(qty) * product.UnitPriceCents
	}

	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	sale := domain.Sale{
		ID:              s.nextID("sales"),
		CustomerID:      cart.customerID,
		EmployeeID:      cloneInt64Ptr(req.EmployeeID),
		PaymentMode:     req.PaymentMode,
		AmountPaidCents: total,
		SaleDate:        at,
		Items:           lines,
	}
	for _, line := range lines {
		product := s.products[line.ProductID]
		product.Stock -= line.Quantity
		s.products[line.ProductID] = product
	}
	s.sales[sale.ID] = sale
	cart.items = make(map[int64]int)

	return s.saleViewLocked(sale, true), nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrSaleNotFound
	}
	return s.saleViewLocked(sale, true), nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, *s.saleViewLocked(sale, false))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if !a.SaleDate.Equal(b.SaleDate) {
			return b.SaleDate.Compare(a.SaleDate)
		}
		return cmpInt64(b.ID, a.ID)
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) SalesRevenue(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, sale := range s.sales {
		total += sale.AmountPaidCents
	}
	return total, nil
}

// CreateBill snapshots the sale lines into a bill. A sale is billed at most once.
func (s *Store) CreateBill(_ context.Context, saleID int64, totalCents int64, billDate time.Time) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, store.ErrSaleNotFound
	}
	if _, billed := s.billBySale[saleID]; billed {
		return nil, store.ErrAlreadyBilled
	}
	if totalCents != sale.AmountPaidCents {
		return nil, fmt.Errorf("%w: bill total must equal sale total", store.ErrInvalidTransaction)
	}

	items := make([]domain.BillLine, 0, len(sale.Items))
	for _, line := range sale.Items {
		items = append(items, domain.BillLine{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     int64(line.Quantity) * line.UnitPriceCents,
		})
	}
	bill := domain.Bill{
		ID:               s.nextID("bills"),
		SaleID:           saleID,
		CustomerID:       sale.CustomerID,
		PaymentMode:      sale.PaymentMode,
		BillDate:         dateOf(billDate),
		TotalAmountCents: totalCents,
		Items:            items,
	}
	s.bills[bill.ID] = bill
	s.billBySale[saleID] = bill.ID
	return s.billViewLocked(bill, true), nil
}

func (s *Store) GetBill(_ context.Context, id int64) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, exists := s.bills[id]
	if !exists {
		return nil, fmt.Errorf("bill %w", store.ErrNotFound)
	}
	return s.billViewLocked(bill, true), nil
}

func (s *Store) ListBills(_ context.Context, customerID *int64) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.Bill, 0, len(s.bills))
	for _, bill := range s.bills {
		if customerID != nil && bill.CustomerID != *customerID {
			continue
		}
		bills = append(bills, *s.billViewLocked(bill, false))
	}
	slices.SortFunc(bills, func(a, b domain.Bill) int { return cmpInt64(b.ID, a.ID) })
	return bills, nil
}

func (s *Store) CreateMembership(_ context.Context, membership domain.Membership) (*domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[membership.CustomerID]; !exists {
		return nil, fmt.Errorf("customer %w", store.ErrNotFound)
	}
	if membership.Type == "" || membership.EndDate.Before(membership.StartDate) {
		return nil, store.ErrInvalidTransaction
	}

	membership.ID = s.nextID("memberships")
	membership.StartDate = dateOf(membership.StartDate)
	membership.EndDate = dateOf(membership.EndDate)
	membership.CreatedAt = s.now()
	s.memberships = append(s.memberships, membership)
	created := membership
	return &created, nil
}

// ActiveMembership returns the membership with the furthest end date that is still >= today.
func (s *Store) ActiveMembership(_ context.Context, customerID int64, today time.Time) (*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active, ok := s.activeMembershipLocked(customerID, dateOf(today))
	if !ok {
		return nil, fmt.Errorf("membership %w", store.ErrNotFound)
	}
	return &active, nil
}

func (s *Store) LatestMembership(_ context.Context, customerID int64) (*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Membership
	for i := range s.memberships {
		m := s.memberships[i]
		if m.CustomerID != customerID {
			continue
		}
		if latest == nil || m.ID > latest.ID {
			latest = &m
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("membership %w", store.ErrNotFound)
	}
	return latest, nil
}

func (s *Store) ListMemberships(_ context.Context, customerID int64) ([]domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Membership, 0, 4)
	for _, m := range s.memberships {
		if m.CustomerID == customerID {
			result = append(result, m)
		}
	}
	slices.SortFunc(result, func(a, b domain.Membership) int { return cmpInt64(b.ID, a.ID) })
	return result, nil
}

// CancelMemberships ends every active membership of the customer yesterday.
func (s *Store) CancelMemberships(_ context.Context, customerID int64, today time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today = dateOf(today)
	yesterday := today.AddDate(0, 0, -1)
	cancelled := 0
	for i := range s.memberships {
		m := &s.memberships[i]
		if m.CustomerID != customerID || m.EndDate.Before(today) {
			continue
		}
		m.EndDate = yesterday
		if m.StartDate.After(yesterday) {
			m.StartDate = yesterday
		}
		cancelled++
	}
	return cancelled, nil
}

func (s *Store) MembershipStats(_ context.Context, today time.Time) ([]domain.MembershipStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today = dateOf(today)
	byType := make(map[string]*domain.MembershipStat)
	for _, m := range s.memberships {
		stat, ok := byType[m.Type]
		if !ok {
			stat = &domain.MembershipStat{Type: m.Type}
			byType[m.Type] = stat
		}
		stat.Total++
		stat.RevenueCents += m.AmountPaidCents
		if m.EndDate.Before(today) {
			stat.Expired++
		} else {
			stat.Active++
		}
	}
	stats := make([]domain.MembershipStat, 0, len(byType))
	for _, stat := range byType {
		stats = append(stats, *stat)
	}
	slices.SortFunc(stats, func(a, b domain.MembershipStat) int { return strings.Compare(a.Type, b.Type) })
	return stats, nil
}

func (s *Store) GetDashboardStats(_ context.Context, from time.Time, to time.Time, lowStockThreshold int) (domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.DashboardStats{
		TotalProducts:  len(s.products),
		TotalCustomers: len(s.customers),
		TotalSales:     len(s.sales),
	}
	for _, sale := range s.sales {
		stats.TotalRevenueCents += sale.AmountPaidCents
		if !sale.SaleDate.Before(from) && sale.SaleDate.Before(to) {
			stats.TodaySales++
			stats.TodayRevenueCents += sale.AmountPaidCents
		}
	}
	for _, p := range s.products {
		if p.Stock < lowStockThreshold {
			stats.LowStockProducts++
		}
	}
	for _, m := range s.memberships {
		stats.MembershipRevenueCents += m.AmountPaidCents
	}
	return stats, nil
}

func (s *Store) GetSalesSeries(_ context.Context, from time.Time, to time.Time) ([]domain.SalesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := make(map[string]*domain.SalesPoint)
	for _, sale := range s.sales {
		if sale.SaleDate.Before(from) || !sale.SaleDate.Before(to) {
			continue
		}
		key := sale.SaleDate.UTC().Format(time.DateOnly)
		point, ok := byDate[key]
		if !ok {
			point = &domain.SalesPoint{Date: key}
			byDate[key] = point
		}
		point.Sales++
		point.RevenueCents += sale.AmountPaidCents
	}
	points := make([]domain.SalesPoint, 0, len(byDate))
	for _, point := range byDate {
		points = append(points, *point)
	}
	slices.SortFunc(points, func(a, b domain.SalesPoint) int { return strings.Compare(a.Date, b.Date) })
	return points, nil
}

// TopProducts ranks products by units sold. A nil since covers all time and an
// empty category covers every category.
func (s *Store) TopProducts(_ context.Context, since *time.Time, category string, limit int) ([]domain.ProductSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := make(map[int64]*domain.ProductSales)
	for _, sale := range s.sales {
		if since != nil && sale.SaleDate.Before(*since) {
			continue
		}
		for _, line := range sale.Items {
			product, exists := s.products[line.ProductID]
			if !exists {
				continue
			}
			if category != "" && product.Category != category {
				continue
			}
			entry, ok := byProduct[product.ID]
			if !ok {
				entry = &domain.ProductSales{Product: product}
				byProduct[product.ID] = entry
			}
			entry.QuantitySold += line.Quantity
			entry.RevenueCents += int64(line.Quantity) * line.UnitPriceCents
		}
	}

	ranked := make([]domain.ProductSales, 0, len(byProduct))
	for _, entry := range byProduct {
		ranked = append(ranked, *entry)
	}
	slices.SortFunc(ranked, func(a, b domain.ProductSales) int {
		if a.QuantitySold != b.QuantitySold {
			return b.QuantitySold - a.QuantitySold
		}
		if a.RevenueCents != b.RevenueCents {
			return cmpInt64(b.RevenueCents, a.RevenueCents)
		}
		return cmpInt64(a.ID, b.ID)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *Store) TopCategoryForCustomer(_ context.Context, customerID int64, since time.Time) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCategory := make(map[string]int)
	for _, sale := range s.sales {
		if sale.CustomerID != customerID || sale.SaleDate.Before(since) {
			continue
		}
		for _, line := range sale.Items {
			if product, exists := s.products[line.ProductID]; exists && product.Category != "" {
				byCategory[product.Category] += line.Quantity
			}
		}
	}
	best, bestQty := "", 0
	for category, qty := range byCategory {
		if qty > bestQty || (qty == bestQty && category < best) {
			best, bestQty = category, qty
		}
	}
	if best == "" {
		return "", fmt.Errorf("category %w", store.ErrNotFound)
	}
	return best, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, len(s.auditLogs))
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		result = append(result, s.auditLogs[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) activeMembershipLocked(customerID int64, today time.Time) (domain.Membership, bool) {
	var best domain.Membership
	found := false
	for _, m := range s.memberships {
		if m.CustomerID != customerID || m.EndDate.Before(today) {
			continue
		}
		if !found || m.EndDate.After(best.EndDate) || (m.EndDate.Equal(best.EndDate) && m.ID > best.ID) {
			best = m
			found = true
		}
	}
	return best, found
}

func (s *Store) activeMembershipTypeLocked(customerID int64) string {
	if m, ok := s.activeMembershipLocked(customerID, dateOf(s.now())); ok {
		return m.Type
	}
	return ""
}

func (s *Store) cartViewLocked(cart *cartRecord) *domain.Cart {
	view := &domain.Cart{
		ID:         cart.id,
		CustomerID: cart.customerID,
		Items:      make([]domain.CartLine, 0, len(cart.items)),
	}
	for _, productID := range sortedKeys(cart.items) {
		product, exists := s.products[productID]
		if !exists {
			continue
		}
		qty := cart.items[productID]
		line := domain.CartLine{
			ProductID:       product.ID,
			ProductName:     product.Name,
			Brand:           product.Brand,
			Quantity:        qty,
			UnitPriceCents:  product.UnitPriceCents,
			TotalPriceCents: int64(qty) * product.UnitPriceCents,
			Stock:           product.Stock,
			ImageURL:        product.ImageURL,
		}
		view.Items = append(view.Items, line)
		view.TotalCents += line.TotalPriceCents
		view.Count += qty
	}
	return view
}

func (s *Store) saleViewLocked(sale domain.Sale, withItems bool) *domain.Sale {
	view := sale
	view.EmployeeID = cloneInt64Ptr(sale.EmployeeID)
	if record, exists := s.customers[sale.CustomerID]; exists {
		view.CustomerName = record.customer.FullName()
	}
	if sale.EmployeeID != nil {
		if record, exists := s.employees[*sale.EmployeeID]; exists {
			view.EmployeeName = record.employee.FullName()
		}
	}
	if withItems {
		view.Items = slices.Clone(sale.Items)
	} else {
		view.Items = nil
	}
	return &view
}

func (s *Store) billViewLocked(bill domain.Bill, withItems bool) *domain.Bill {
	view := bill
	if record, exists := s.customers[bill.CustomerID]; exists {
		view.CustomerName = record.customer.FullName()
	}
	if withItems {
		view.Items = slices.Clone(bill.Items)
	} else {
		view.Items = nil
	}
	return &view
}

func sortedKeys(items map[int64]int) []int64 {
	keys := make([]int64, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func cloneInt64Ptr(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
