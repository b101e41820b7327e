package domain

import "time"

const (
	PaymentCash = "Cash"
	PaymentCard = "Card"
	PaymentUPI  = "UPI"
)

type Product struct {
	ID             int64     `json:"product_id"`
	Name           string    `json:"product_name"`
	Brand          string    `json:"brand"`
	Category       string    `json:"category"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Stock          int       `json:"stock"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name           string `json:"product_name"`
	Brand          string `json:"brand"`
	Category       string `json:"category"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	InitialStock   int    `json:"initial_stock"`
	ImageURL       string `json:"image_url"`
}

type ProductUpdateRequest struct {
	Name           *string `json:"product_name,omitempty"`
	Brand          *string `json:"brand,omitempty"`
	Category       *string `json:"category,omitempty"`
	UnitPriceCents *int64  `json:"unit_price_cents,omitempty"`
	ImageURL       *string `json:"image_url,omitempty"`
}

type Customer struct {
	ID             int64     `json:"customer_id"`
	FirstName      string    `json:"first_name"`
	MiddleName     string    `json:"middle_name,omitempty"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email,omitempty"`
	MembershipType string    `json:"membership_type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (c Customer) FullName() string {
	return joinName(c.FirstName, c.MiddleName, c.LastName)
}

type Employee struct {
	ID          int64     `json:"employee_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e Employee) FullName() string {
	return joinName(e.FirstName, "", e.LastName)
}

// Credential is what the directory returns for a login lookup.
type Credential struct {
	PrincipalID   int64
	PrincipalType PrincipalType
	Role          string
	PasswordHash  string
}

type CustomerRegisterRequest struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type EmployeeRegisterRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Role        string `json:"role"`
	AccessLevel string `json:"access_level"`
	ExpiresAt   string `json:"expires_at"`
}

type Cart struct {
	ID         int64      `json:"cart_id"`
	CustomerID int64      `json:"customer_id"`
	Items      []CartLine `json:"items"`
	TotalCents int64      `json:"total_cents"`
	Count      int        `json:"count"`
}

type CartLine struct {
	ProductID       int64  `json:"product_id"`
	ProductName     string `json:"product_name"`
	Brand           string `json:"brand"`
	Quantity        int    `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	TotalPriceCents int64  `json:"total_price_cents"`
	Stock           int    `json:"stock"`
	ImageURL        string `json:"image_url,omitempty"`
}

type CartAddRequest struct {
	CustomerID int64 `json:"customer_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int   `json:"quantity"`
}

type CartUpdateRequest struct {
	CartID    int64 `json:"cart_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CartRemoveRequest struct {
	CartID    int64 `json:"cart_id"`
	ProductID int64 `json:"product_id"`
}

type CartMutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	CartID  int64  `json:"cart_id,omitempty"`
}

type CheckoutRequest struct {
	CartID      int64  `json:"cart_id"`
	EmployeeID  *int64 `json:"employee_id,omitempty"`
	PaymentMode string `json:"payment_mode"`
}

type CheckoutResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	SaleID     int64  `json:"sale_id"`
	TotalCents int64  `json:"total_cents"`
}

// FinalizeRequest is the repository-level input of a checkout.
type FinalizeRequest struct {
	CartID      int64
	EmployeeID  *int64
	PaymentMode string
	At          time.Time
}

type Sale struct {
	ID              int64      `json:"sale_id"`
	CustomerID      int64      `json:"customer_id"`
	CustomerName    string     `json:"customer_name,omitempty"`
	EmployeeID      *int64     `json:"employee_id,omitempty"`
	EmployeeName    string     `json:"employee_name,omitempty"`
	PaymentMode     string     `json:"payment_mode"`
	AmountPaidCents int64      `json:"amount_paid_cents"`
	SaleDate        time.Time  `json:"sale_date"`
	Items           []SaleLine `json:"items,omitempty"`
}

type SaleLine struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Bill struct {
	ID               int64      `json:"bill_id"`
	SaleID           int64      `json:"sale_id"`
	CustomerID       int64      `json:"customer_id"`
	CustomerName     string     `json:"customer_name"`
	PaymentMode      string     `json:"payment_mode"`
	BillDate         time.Time  `json:"bill_date"`
	TotalAmountCents int64      `json:"total_amount_cents"`
	Items            []BillLine `json:"items,omitempty"`
}

type BillLine struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

type BillCreateRequest struct {
	SaleID           int64 `json:"sale_id"`
	TotalAmountCents int64 `json:"total_amount_cents"`
}

type BillCreateResponse struct {
	Message string `json:"message"`
	BillID  int64  `json:"bill_id"`
}

type Membership struct {
	ID              int64     `json:"membership_id"`
	CustomerID      int64     `json:"customer_id"`
	Type            string    `json:"membership_type"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	AmountPaidCents int64     `json:"amount_paid_cents"`
	PaymentMode     string    `json:"payment_mode"`
	CreatedAt       time.Time `json:"created_at"`
}

type MembershipView struct {
	Membership
	DaysRemaining   int     `json:"days_remaining"`
	Status          string  `json:"status"`
	DiscountPercent float64 `json:"discount_percent"`
}

type MembershipSummary struct {
	HasMembership bool            `json:"has_membership"`
	Membership    *MembershipView `json:"membership,omitempty"`
	Message       string          `json:"message,omitempty"`
}

type MembershipPlan struct {
	Type            string   `json:"type"`
	PriceCents      int64    `json:"price_cents"`
	DurationDays    int      `json:"duration_days"`
	DiscountPercent float64  `json:"discount_percent"`
	Features        []string `json:"features"`
}

type MembershipPurchaseRequest struct {
	CustomerID  int64  `json:"customer_id"`
	Type        string `json:"membership_type"`
	PaymentMode string `json:"payment_mode"`
}

type MembershipPurchaseResponse struct {
	Message    string     `json:"message"`
	Membership Membership `json:"membership"`
	Extended   bool       `json:"extended"`
}

type MembershipCheck struct {
	CustomerID      int64   `json:"customer_id"`
	HasMembership   bool    `json:"has_membership"`
	Type            string  `json:"membership_type,omitempty"`
	DiscountPercent float64 `json:"discount_percent"`
}

type MembershipStat struct {
	Type         string `json:"membership_type"`
	Total        int    `json:"total"`
	Active       int    `json:"active"`
	Expired      int    `json:"expired"`
	RevenueCents int64  `json:"revenue_cents"`
}

type DashboardStats struct {
	TotalRevenueCents      int64 `json:"total_revenue_cents"`
	TotalProducts          int   `json:"total_products"`
	TotalCustomers         int   `json:"total_customers"`
	TotalSales             int   `json:"total_sales"`
	TodaySales             int   `json:"today_sales"`
	TodayRevenueCents      int64 `json:"today_revenue_cents"`
	LowStockProducts       int   `json:"low_stock_products"`
	MembershipRevenueCents int64 `json:"membership_revenue_cents"`
}

type SalesPoint struct {
	Date         string `json:"date"`
	Sales        int    `json:"sales"`
	RevenueCents int64  `json:"revenue_cents"`
}

type ProductSales struct {
	Product
	QuantitySold int   `json:"quantity_sold"`
	RevenueCents int64 `json:"revenue_cents"`
}

type RecommendationResponse struct {
	Strategy string    `json:"strategy"`
	Category string    `json:"category,omitempty"`
	Products []Product `json:"products"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorType  string    `json:"actor_type"`
	ActorID    int64     `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

func joinName(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
