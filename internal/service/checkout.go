package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/metrics"
	"storefront/backend/internal/store"
)

func (s *Service) GetCart(ctx context.Context, customerID int64) (domain.Cart, error) {
	if _, err := requireCustomerAccess(ctx, customerID); err != nil {
		return domain.Cart{}, err
	}
	cart, err := s.repo.GetOrCreateCart(ctx, customerID)
	if err != nil {
		return domain.Cart{}, err
	}
	return *cart, nil
}

// authorizeCart loads the cart and checks that the caller owns it or is staff.
func (s *Service) authorizeCart(ctx context.Context, cartID int64) (*domain.Cart, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if cartID < 1 {
		return nil, store.ErrCartNotFound
	}
	cart, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !principal.CanAccessCustomer(cart.CustomerID) {
		return nil, ErrForbidden
	}
	return cart, nil
}

func (s *Service) AddToCart(ctx context.Context, req domain.CartAddRequest) (domain.CartMutationResponse, error) {
	if req.ProductID < 1 || req.Quantity < 1 {
		return domain.CartMutationResponse{}, fmt.Errorf("%w: product_id and a positive quantity are required", store.ErrInvalidTransaction)
	}
	if _, err := requireCustomerAccess(ctx, req.CustomerID); err != nil {
		return domain.CartMutationResponse{}, err
	}

	cart, err := s.repo.GetOrCreateCart(ctx, req.CustomerID)
	if err != nil {
		return domain.CartMutationResponse{}, err
	}
	if err := s.repo.AddCartItem(ctx, cart.ID, req.ProductID, req.Quantity); err != nil {
		return domain.CartMutationResponse{}, err
	}
	return domain.CartMutationResponse{Success: true, Message: "Product added to cart", CartID: cart.ID}, nil
}

// UpdateCartItem sets the line quantity; zero or less removes the line.
func (s *Service) UpdateCartItem(ctx context.Context, req domain.CartUpdateRequest) (domain.CartMutationResponse, error) {
	if req.ProductID < 1 {
		return domain.CartMutationResponse{}, fmt.Errorf("%w: product_id is required", store.ErrInvalidTransaction)
	}
	cart, err := s.authorizeCart(ctx, req.CartID)
	if err != nil {
		return domain.CartMutationResponse{}, err
	}
	if err := s.repo.UpdateCartItem(ctx, cart.ID, req.ProductID, req.Quantity); err != nil {
		return domain.CartMutationResponse{}, err
	}

	message := "Cart updated"
	if req.Quantity <= 0 {
		message = "Item removed from cart"
	}
	return domain.CartMutationResponse{Success: true, Message: message, CartID: cart.ID}, nil
}

func (s *Service) RemoveFromCart(ctx context.Context, req domain.CartRemoveRequest) (domain.CartMutationResponse, error) {
	cart, err := s.authorizeCart(ctx, req.CartID)
	if err != nil {
		return domain.CartMutationResponse{}, err
	}
	if err := s.repo.RemoveCartItem(ctx, cart.ID, req.ProductID); err != nil {
		return domain.CartMutationResponse{}, err
	}
	return domain.CartMutationResponse{Success: true, Message: "Item removed from cart", CartID: cart.ID}, nil
}

func (s *Service) ClearCart(ctx context.Context, cartID int64) (domain.CartMutationResponse, error) {
	cart, err := s.authorizeCart(ctx, cartID)
	if err != nil {
		return domain.CartMutationResponse{}, err
	}
	if err := s.repo.ClearCart(ctx, cart.ID); err != nil {
		return domain.CartMutationResponse{}, err
	}
	return domain.CartMutationResponse{Success: true, Message: "Cart cleared", CartID: cart.ID}, nil
}

// Checkout finalizes the cart into a sale. Staff checking out without an
// explicit employee_id are recorded as the handler.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	mode, ok := domain.NormalizePaymentMode(req.PaymentMode)
	if !ok {
		return domain.CheckoutResponse{}, ErrInvalidPaymentMode
	}
	cart, err := s.authorizeCart(ctx, req.CartID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	principal, _ := PrincipalFromContext(ctx)

	handler := req.EmployeeID
	switch {
	case handler != nil:
		if _, err := s.repo.GetEmployee(ctx, *handler); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.CheckoutResponse{}, fmt.Errorf("%w: employee %d not found", store.ErrInvalidTransaction, *handler)
			}
			return domain.CheckoutResponse{}, err
		}
	case principal.IsStaff():
		id := principal.ID
		handler = &id
	}

	sale, err := s.repo.FinalizeCart(ctx, domain.FinalizeRequest{
		CartID:      cart.ID,
		EmployeeID:  handler,
		PaymentMode: mode,
		At:          s.now(),
	})
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues(checkoutOutcome(err)).Inc()
		return domain.CheckoutResponse{}, err
	}

	units := 0
	for _, line := range sale.Items {
		units += line.Quantity
	}
	metrics.CheckoutTotal.WithLabelValues("success").Inc()
	metrics.UnitsSold.Add(float64(units))
	metrics.RevenueCents.Add(float64(sale.AmountPaidCents))

	s.logAudit(ctx, "checkout", "sale", sale.ID, fmt.Sprintf("cart=%d,total=%d,payment=%s,lines=%d,units=%d", cart.ID, sale.AmountPaidCents, sale.PaymentMode, len(sale.Items), units))
	return domain.CheckoutResponse{
		Success:    true,
		Message:    "Checkout successful",
		SaleID:     sale.ID,
		TotalCents: sale.AmountPaidCents,
	}, nil
}

func checkoutOutcome(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrCartEmpty):
		return "empty_cart"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// CreateBill bills a sale once. A zero total means "the sale total".
func (s *Service) CreateBill(ctx context.Context, req domain.BillCreateRequest) (domain.BillCreateResponse, error) {
	if _, err := requireStaff(ctx); err != nil {
		return domain.BillCreateResponse{}, err
	}
	if req.SaleID < 1 || req.TotalAmountCents < 0 {
		return domain.BillCreateResponse{}, fmt.Errorf("%w: sale_id is required", store.ErrInvalidTransaction)
	}

	sale, err := s.repo.GetSale(ctx, req.SaleID)
	if err != nil {
		return domain.BillCreateResponse{}, err
	}
	total := req.TotalAmountCents
	if total == 0 {
		total = sale.AmountPaidCents
	}

	bill, err := s.repo.CreateBill(ctx, sale.ID, total, s.now())
	if err != nil {
		return domain.BillCreateResponse{}, err
	}
	metrics.BillsCreated.Inc()

	s.logAudit(ctx, "bill_create", "bill", bill.ID, fmt.Sprintf("sale=%d,total=%d", sale.ID, bill.TotalAmountCents))
	return domain.BillCreateResponse{Message: "Bill generated successfully", BillID: bill.ID}, nil
}

// ListBills returns every bill to staff and only their own bills to customers.
func (s *Service) ListBills(ctx context.Context) ([]domain.Bill, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case principal.IsStaff():
		return s.repo.ListBills(ctx, nil)
	case principal.IsCustomer():
		id := principal.ID
		return s.repo.ListBills(ctx, &id)
	default:
		return nil, ErrForbidden
	}
}

func (s *Service) GetBill(ctx context.Context, id int64) (domain.Bill, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return domain.Bill{}, err
	}
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return domain.Bill{}, err
	}
	if !principal.CanAccessCustomer(bill.CustomerID) {
		log.Printf("[service] WARN: principal %s/%d denied bill %d", principal.Type, principal.ID, id)
		return domain.Bill{}, ErrForbidden
	}
	return *bill, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListSales(ctx, limit)
}

func (s *Service) SalesRevenue(ctx context.Context) (int64, error) {
	if _, err := requireStaff(ctx); err != nil {
		return 0, err
	}
	return s.repo.SalesRevenue(ctx)
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	if !principal.CanAccessCustomer(sale.CustomerID) {
		return domain.Sale{}, ErrForbidden
	}
	return *sale, nil
}
