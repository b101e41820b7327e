package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrCartNotFound       = fmt.Errorf("cart %w", ErrNotFound)
	ErrSaleNotFound       = fmt.Errorf("sale %w", ErrNotFound)
	ErrCartEmpty          = errors.New("cart is empty")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrAlreadyBilled      = errors.New("sale already billed")
	ErrConflict           = errors.New("already exists")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// InsufficientStockError names the product whose live stock cannot cover a request.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d items available in stock for %s (requested %d)", e.Available, e.ProductName, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListInStockProducts(ctx context.Context) ([]domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer, passwordHash string) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateEmployee(ctx context.Context, employee domain.Employee, passwordHash string) (*domain.Employee, error)
	GetEmployee(ctx context.Context, id int64) (*domain.Employee, error)
	FindCredential(ctx context.Context, identifier string) (*domain.Credential, error)

	GetOrCreateCart(ctx context.Context, customerID int64) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID int64) (*domain.Cart, error)
	AddCartItem(ctx context.Context, cartID int64, productID int64, qty int) error
	UpdateCartItem(ctx context.Context, cartID int64, productID int64, qty int) error
	RemoveCartItem(ctx context.Context, cartID int64, productID int64) error
	ClearCart(ctx context.Context, cartID int64) error
	FinalizeCart(ctx context.Context, req domain.FinalizeRequest) (*domain.Sale, error)

	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)
	SalesRevenue(ctx context.Context) (int64, error)

	CreateBill(ctx context.Context, saleID int64, totalCents int64, billDate time.Time) (*domain.Bill, error)
	GetBill(ctx context.Context, id int64) (*domain.Bill, error)
	ListBills(ctx context.Context, customerID *int64) ([]domain.Bill, error)

	CreateMembership(ctx context.Context, membership domain.Membership) (*domain.Membership, error)
	ActiveMembership(ctx context.Context, customerID int64, today time.Time) (*domain.Membership, error)
	LatestMembership(ctx context.Context, customerID int64) (*domain.Membership, error)
	ListMemberships(ctx context.Context, customerID int64) ([]domain.Membership, error)
	CancelMemberships(ctx context.Context, customerID int64, today time.Time) (int, error)
	MembershipStats(ctx context.Context, today time.Time) ([]domain.MembershipStat, error)

	GetDashboardStats(ctx context.Context, from time.Time, to time.Time, lowStockThreshold int) (domain.DashboardStats, error)
	GetSalesSeries(ctx context.Context, from time.Time, to time.Time) ([]domain.SalesPoint, error)
	TopProducts(ctx context.Context, since *time.Time, category string, limit int) ([]domain.ProductSales, error)
	TopCategoryForCustomer(ctx context.Context, customerID int64, since time.Time) (string, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}
