package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
	"storefront/backend/internal/store/memory"
)

const (
	seedAdminID    int64 = 1
	seedCashierID  int64 = 2
	seedCustomerID int64 = 1
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, nil, 50)
}

func asAdmin() context.Context {
	return WithPrincipal(context.Background(), domain.Principal{ID: seedAdminID, Type: domain.PrincipalEmployee, Role: domain.RoleAdmin})
}

func asCashier() context.Context {
	return WithPrincipal(context.Background(), domain.Principal{ID: seedCashierID, Type: domain.PrincipalEmployee, Role: domain.RoleCashier})
}

func asCustomer(id int64) context.Context {
	return WithPrincipal(context.Background(), domain.Principal{ID: id, Type: domain.PrincipalCustomer, Role: domain.RoleCustomer})
}

func mustProduct(t *testing.T, svc *Service, name string, priceCents int64, stock int) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(asAdmin(), domain.ProductCreateRequest{Name: name, Category: "Test", UnitPriceCents: priceCents, InitialStock: stock})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return product
}

func mustCustomer(t *testing.T, svc *Service, phone string) domain.Customer {
	t.Helper()
	customer, err := svc.RegisterCustomer(context.Background(), domain.CustomerRegisterRequest{FirstName: "Test", LastName: phone, Phone: phone}, "$2a$10$hash")
	if err != nil {
		t.Fatalf("register customer %s: %v", phone, err)
	}
	return customer
}

func mustAdd(t *testing.T, svc *Service, ctx context.Context, customerID int64, productID int64, qty int) int64 {
	t.Helper()
	resp, err := svc.AddToCart(ctx, domain.CartAddRequest{CustomerID: customerID, ProductID: productID, Quantity: qty})
	if err != nil {
		t.Fatalf("add product %d x%d: %v", productID, qty, err)
	}
	return resp.CartID
}

func stockOf(t *testing.T, svc *Service, productID int64) int {
	t.Helper()
	product, err := svc.GetProduct(asAdmin(), productID)
	if err != nil {
		t.Fatalf("get product %d: %v", productID, err)
	}
	return product.Stock
}

func TestCheckoutByCashierRecordsHandler(t *testing.T) {
	svc := newTestService()
	a := mustProduct(t, svc, "Product A", 1000, 5)
	cartID := mustAdd(t, svc, asCustomer(seedCustomerID), seedCustomerID, a.ID, 3)

	resp, err := svc.Checkout(asCashier(), domain.CheckoutRequest{CartID: cartID, PaymentMode: "upi"})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !resp.Success || resp.TotalCents != 3000 {
		t.Fatalf("unexpected checkout response: %+v", resp)
	}

	sale, err := svc.GetSale(asCashier(), resp.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if sale.EmployeeID == nil || *sale.EmployeeID != seedCashierID {
		t.Fatalf("expected cashier %d as handler, got %v", seedCashierID, sale.EmployeeID)
	}
	if sale.PaymentMode != domain.PaymentUPI {
		t.Fatalf("expected canonical UPI, got %q", sale.PaymentMode)
	}
	if got := stockOf(t, svc, a.ID); got != 2 {
		t.Fatalf("expected stock 2, got %d", got)
	}

	cart, err := svc.GetCart(asCustomer(seedCustomerID), seedCustomerID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if cart.ID != cartID || len(cart.Items) != 0 {
		t.Fatalf("expected same empty cart after checkout, got %+v", cart)
	}

	logs, err := svc.ListAuditLogs(asAdmin(), 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) == 0 || logs[0].Action != "checkout" || logs[0].ActorID != seedCashierID {
		t.Fatalf("expected checkout audit entry first, got %+v", logs)
	}
}

func TestCustomerCheckoutHasNoHandler(t *testing.T) {
	svc := newTestService()
	a := mustProduct(t, svc, "Product A", 1000, 5)
	ctx := asCustomer(seedCustomerID)
	cartID := mustAdd(t, svc, ctx, seedCustomerID, a.ID, 1)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{CartID: cartID, PaymentMode: "Cash"})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	sale, err := svc.GetSale(ctx, resp.SaleID)
	if err != nil {
		t.Fatalf("customer should read own sale: %v", err)
	}
	if sale.EmployeeID != nil {
		t.Fatalf("expected no handler, got %d", *sale.EmployeeID)
	}
}

func TestCheckoutValidation(t *testing.T) {
	svc := newTestService()
	a := mustProduct(t, svc, "Product A", 1000, 5)
	cartID := mustAdd(t, svc, asCashier(), seedCustomerID, a.ID, 1)

	if _, err := svc.Checkout(asCashier(), domain.CheckoutRequest{CartID: cartID, PaymentMode: "cheque"}); !errors.Is(err, ErrInvalidPaymentMode) {
		t.Fatalf("expected ErrInvalidPaymentMode, got %v", err)
	}

	ghost := int64(404)
	if _, err := svc.Checkout(asCashier(), domain.CheckoutRequest{CartID: cartID, EmployeeID: &ghost, PaymentMode: "Cash"}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected unknown employee to be rejected, got %v", err)
	}

	if _, err := svc.Checkout(asCashier(), domain.CheckoutRequest{CartID: 999, PaymentMode: "Cash"}); !errors.Is(err, store.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}

	if _, err := svc.Checkout(context.Background(), domain.CheckoutRequest{CartID: cartID, PaymentMode: "Cash"}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	if got := stockOf(t, svc, a.ID); got != 5 {
		t.Fatalf("failed checkouts must not touch stock, got %d", got)
	}
}

func TestCheckoutExplicitEmployee(t *testing.T) {
	svc := newTestService()
	a := mustProduct(t, svc, "Product A", 1000, 5)
	cartID := mustAdd(t, svc, asCashier(), seedCustomerID, a.ID, 1)

	admin := seedAdminID
	resp, err := svc.Checkout(asCashier(), domain.CheckoutRequest{CartID: cartID, EmployeeID: &admin, PaymentMode: "card"})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	sale, err := svc.GetSale(asAdmin(), resp.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if sale.EmployeeID == nil || *sale.EmployeeID != seedAdminID {
		t.Fatalf("expected admin as handler, got %v", sale.EmployeeID)
	}
}

func TestCheckoutAllOrNothing(t *testing.T) {
	svc := newTestService()
	a := mustProduct(t, svc, "Product A", 1000, 5)
	b := mustProduct(t, svc, "Product B", 2500, 1)
	other := mustCustomer(t, svc, "9811111111")

	cartID := mustAdd(t, svc, asCustomer(seedCustomerID), seedCustomerID, a.ID, 5)
	mustAdd(t, svc, asCustomer(seedCustomerID), seedCustomerID, b.ID, 1)

	otherCart := mustAdd(t, svc, asCustomer(other.ID), other.ID, b.ID, 1)
	if _, err := svc.Checkout(asCustomer(other.ID), domain.CheckoutRequest{CartID: otherCart, PaymentMode: "Cash"}); err != nil {
		t.Fatalf("other checkout failed: %v", err)
	}

	_, err := svc.Checkout(asCustomer(seedCustomerID), domain.CheckoutRequest{CartID: cartID, PaymentMode: "Cash"})
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductID != b.ID || stockErr.Available != 0 || stockErr.Requested != 1 {
		t.Fatalf("unexpected stock error detail: %+v", stockErr)
	}
	if got := stockOf(t, svc, a.ID); got != 5 {
		t.Fatalf("expected A stock unchanged at 5, got %d", got)
	}
	cart, err := svc.GetCart(asCustomer(seedCustomerID), seedCustomerID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected cart to keep both lines, got %d", len(cart.Items))
	}
}

func TestCartOwnership(t *testing.T) {
	svc := newTestService()
	a := mustProduct(t, svc, "Product A", 1000, 5)
	intruder := mustCustomer(t, svc, "9822222222")
	cartID := mustAdd(t, svc, asCustomer(seedCustomerID), seedCustomerID, a.ID, 1)

	if _, err := svc.AddToCart(asCustomer(intruder.ID), domain.CartAddRequest{CustomerID: seedCustomerID, ProductID: a.ID, Quantity: 1}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on add, got %v", err)
	}
	if _, err := svc.ClearCart(asCustomer(intruder.ID), cartID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on clear, got %v", err)
	}
	if _, err := svc.Checkout(asCustomer(intruder.ID), domain.CheckoutRequest{CartID: cartID, PaymentMode: "Cash"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on checkout, got %v", err)
	}
}

func TestCartMutations(t *testing.T) {
	svc := newTestService()
	a := mustProduct(t, svc, "Product A", 1000, 5)
	ctx := asCustomer(seedCustomerID)
	cartID := mustAdd(t, svc, ctx, seedCustomerID, a.ID, 2)

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{CustomerID: seedCustomerID, ProductID: a.ID, Quantity: 4}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for 6 of 5, got %v", err)
	}
	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{CustomerID: seedCustomerID, ProductID: 999, Quantity: 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}

	resp, err := svc.UpdateCartItem(ctx, domain.CartUpdateRequest{CartID: cartID, ProductID: a.ID, Quantity: 5})
	if err != nil || !resp.Success {
		t.Fatalf("update failed: %v", err)
	}
	resp, err = svc.UpdateCartItem(ctx, domain.CartUpdateRequest{CartID: cartID, ProductID: a.ID, Quantity: 0})
	if err != nil || resp.Message != "Item removed from cart" {
		t.Fatalf("expected zero quantity to remove the line, got %+v %v", resp, err)
	}
	if _, err := svc.RemoveFromCart(ctx, domain.CartRemoveRequest{CartID: cartID, ProductID: a.ID}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected repeated remove to be not found, got %v", err)
	}
}

func TestCreateBillOncePerSale(t *testing.T) {
	svc := newTestService()
	a := mustProduct(t, svc, "Product A", 1000, 5)
	cartID := mustAdd(t, svc, asCashier(), seedCustomerID, a.ID, 2)
	checkout, err := svc.Checkout(asCashier(), domain.CheckoutRequest{CartID: cartID, PaymentMode: "Cash"})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if _, err := svc.CreateBill(asCustomer(seedCustomerID), domain.BillCreateRequest{SaleID: checkout.SaleID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected customers to be forbidden from billing, got %v", err)
	}
	if _, err := svc.CreateBill(asCashier(), domain.BillCreateRequest{SaleID: checkout.SaleID, TotalAmountCents: 1}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected mismatched total to be rejected, got %v", err)
	}

	created, err := svc.CreateBill(asCashier(), domain.BillCreateRequest{SaleID: checkout.SaleID})
	if err != nil {
		t.Fatalf("create bill failed: %v", err)
	}
	bill, err := svc.GetBill(asCustomer(seedCustomerID), created.BillID)
	if err != nil {
		t.Fatalf("customer should read own bill: %v", err)
	}
	if bill.TotalAmountCents != 2000 || len(bill.Items) != 1 || bill.Items[0].TotalCents != 2000 {
		t.Fatalf("unexpected bill: %+v", bill)
	}

	if _, err := svc.CreateBill(asCashier(), domain.BillCreateRequest{SaleID: checkout.SaleID}); !errors.Is(err, store.ErrAlreadyBilled) {
		t.Fatalf("expected ErrAlreadyBilled, got %v", err)
	}
	if _, err := svc.CreateBill(asCashier(), domain.BillCreateRequest{SaleID: 999}); !errors.Is(err, store.ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}

func TestCustomersOnlySeeOwnBills(t *testing.T) {
	svc := newTestService()
	a := mustProduct(t, svc, "Product A", 1000, 10)
	other := mustCustomer(t, svc, "9833333333")

	billFor := func(customerID int64) int64 {
		cartID := mustAdd(t, svc, asCashier(), customerID, a.ID, 1)
		checkout, err := svc.Checkout(asCashier(), domain.CheckoutRequest{CartID: cartID, PaymentMode: "Cash"})
		if err != nil {
			t.Fatalf("checkout failed: %v", err)
		}
		bill, err := svc.CreateBill(asCashier(), domain.BillCreateRequest{SaleID: checkout.SaleID})
		if err != nil {
			t.Fatalf("bill failed: %v", err)
		}
		return bill.BillID
	}
	mine := billFor(seedCustomerID)
	theirs := billFor(other.ID)

	bills, err := svc.ListBills(asCustomer(seedCustomerID))
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(bills) != 1 || bills[0].ID != mine {
		t.Fatalf("expected only own bill %d, got %+v", mine, bills)
	}
	if _, err := svc.GetBill(asCustomer(seedCustomerID), theirs); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden reading another customer's bill, got %v", err)
	}
	if _, err := svc.GetBill(asCustomer(seedCustomerID), 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	all, err := svc.ListBills(asCashier())
	if err != nil {
		t.Fatalf("staff list bills: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected staff to see 2 bills, got %d", len(all))
	}
}

func TestMembershipPurchaseExtendsAndCancels(t *testing.T) {
	svc := newTestService()
	svc.SetClock(func() time.Time { return time.Date(2026, 1, 10, 15, 0, 0, 0, time.UTC) })
	ctx := asCustomer(seedCustomerID)

	first, err := svc.PurchaseMembership(ctx, domain.MembershipPurchaseRequest{CustomerID: seedCustomerID, Type: "gold", PaymentMode: "Card"})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if first.Extended || first.Membership.Type != "Gold" || first.Membership.AmountPaidCents != 99900 {
		t.Fatalf("unexpected first purchase: %+v", first)
	}
	if want := time.Date(2027, 1, 10, 0, 0, 0, 0, time.UTC); !first.Membership.EndDate.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, first.Membership.EndDate)
	}

	second, err := svc.PurchaseMembership(ctx, domain.MembershipPurchaseRequest{CustomerID: seedCustomerID, Type: "Silver", PaymentMode: "UPI"})
	if err != nil {
		t.Fatalf("second purchase failed: %v", err)
	}
	if !second.Extended {
		t.Fatalf("expected second purchase to extend")
	}
	if want := time.Date(2028, 1, 10, 0, 0, 0, 0, time.UTC); !second.Membership.EndDate.Equal(want) {
		t.Fatalf("expected extended end %s, got %s", want, second.Membership.EndDate)
	}

	check, err := svc.CheckMembership(ctx, seedCustomerID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.HasMembership || check.Type != "Silver" || check.DiscountPercent != 5 {
		t.Fatalf("unexpected check: %+v", check)
	}

	cancelled, err := svc.CancelMembership(ctx, seedCustomerID)
	if err != nil || cancelled != 2 {
		t.Fatalf("expected 2 memberships cancelled, got %d (%v)", cancelled, err)
	}
	if _, err := svc.CancelMembership(ctx, seedCustomerID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected second cancel to be not found, got %v", err)
	}
	check, err = svc.CheckMembership(ctx, seedCustomerID)
	if err != nil || check.HasMembership {
		t.Fatalf("expected no membership after cancel, got %+v (%v)", check, err)
	}

	history, err := svc.MembershipHistory(ctx, seedCustomerID)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d (%v)", len(history), err)
	}
	for _, row := range history {
		if row.Status != MembershipExpired {
			t.Fatalf("expected cancelled rows to be expired, got %s", row.Status)
		}
	}
}

func TestMembershipValidation(t *testing.T) {
	svc := newTestService()
	ctx := asCustomer(seedCustomerID)

	if _, err := svc.PurchaseMembership(ctx, domain.MembershipPurchaseRequest{CustomerID: seedCustomerID, Type: "Diamond", PaymentMode: "Cash"}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected unknown plan to be rejected, got %v", err)
	}
	if _, err := svc.PurchaseMembership(ctx, domain.MembershipPurchaseRequest{CustomerID: seedCustomerID, Type: "Gold", PaymentMode: "IOU"}); !errors.Is(err, ErrInvalidPaymentMode) {
		t.Fatalf("expected ErrInvalidPaymentMode, got %v", err)
	}
	if _, err := svc.PurchaseMembership(ctx, domain.MembershipPurchaseRequest{CustomerID: 77, Type: "Gold", PaymentMode: "Cash"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another customer, got %v", err)
	}
	if _, err := svc.PurchaseMembership(asCashier(), domain.MembershipPurchaseRequest{CustomerID: 77, Type: "Gold", PaymentMode: "Cash"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown customer, got %v", err)
	}
	if _, err := svc.MembershipStats(ctx); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected stats to be staff only, got %v", err)
	}
}

func TestMembershipStatusOverTime(t *testing.T) {
	svc := newTestService()
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })
	ctx := asCustomer(seedCustomerID)

	if _, err := svc.PurchaseMembership(ctx, domain.MembershipPurchaseRequest{CustomerID: seedCustomerID, Type: "Platinum", PaymentMode: "Cash"}); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	cases := []struct {
		at     time.Time
		status string
		days   int
	}{
		{time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), MembershipActive, 365},
		{time.Date(2026, 12, 20, 9, 0, 0, 0, time.UTC), MembershipExpiringSoon, 21},
		{time.Date(2027, 2, 1, 9, 0, 0, 0, time.UTC), MembershipExpired, 0},
	}
	for _, tc := range cases {
		now = tc.at
		summary, err := svc.CurrentMembership(ctx, seedCustomerID)
		if err != nil {
			t.Fatalf("current membership: %v", err)
		}
		if !summary.HasMembership || summary.Membership.Status != tc.status || summary.Membership.DaysRemaining != tc.days {
			t.Fatalf("at %s expected %s/%d, got %+v", tc.at.Format(time.DateOnly), tc.status, tc.days, summary.Membership)
		}
	}
}

func TestMembershipStatsOrderedByTier(t *testing.T) {
	svc := newTestService()
	for i, plan := range []string{"Silver", "Platinum", "Gold"} {
		customer := mustCustomer(t, svc, fmt.Sprintf("970000000%d", i))
		if _, err := svc.PurchaseMembership(asCashier(), domain.MembershipPurchaseRequest{CustomerID: customer.ID, Type: plan, PaymentMode: "Cash"}); err != nil {
			t.Fatalf("purchase %s: %v", plan, err)
		}
	}

	stats, err := svc.MembershipStats(asAdmin())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 3 || stats[0].Type != "Platinum" || stats[1].Type != "Gold" || stats[2].Type != "Silver" {
		t.Fatalf("expected Platinum, Gold, Silver ordering, got %+v", stats)
	}
	dash, err := svc.DashboardStats(asAdmin())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.MembershipRevenueCents != 49900+99900+199900 {
		t.Fatalf("unexpected membership revenue %d", dash.MembershipRevenueCents)
	}
}

func TestSalesChartFillsMissingDays(t *testing.T) {
	svc := newTestService()
	now := time.Date(2026, 4, 20, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })
	a := mustProduct(t, svc, "Product A", 1000, 10)

	for _, at := range []time.Time{now.AddDate(0, 0, -3), now, now} {
		now = at
		cartID := mustAdd(t, svc, asCashier(), seedCustomerID, a.ID, 1)
		if _, err := svc.Checkout(asCashier(), domain.CheckoutRequest{CartID: cartID, PaymentMode: "Cash"}); err != nil {
			t.Fatalf("checkout: %v", err)
		}
	}
	now = time.Date(2026, 4, 20, 12, 0, 0, 0, time.UTC)

	series, err := svc.SalesChart(asAdmin())
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if len(series) != 7 || series[0].Date != "2026-04-14" || series[6].Date != "2026-04-20" {
		t.Fatalf("unexpected series window: %+v", series)
	}
	if series[3].Sales != 1 || series[6].Sales != 2 || series[6].RevenueCents != 2000 || series[5].Sales != 0 {
		t.Fatalf("unexpected series values: %+v", series)
	}

	stats, err := svc.DashboardStats(asAdmin())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TodaySales != 2 || stats.TotalSales != 3 || stats.TotalRevenueCents != 3000 {
		t.Fatalf("unexpected dashboard stats: %+v", stats)
	}
	if _, err := svc.DashboardStats(asCustomer(seedCustomerID)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected dashboard to be staff only, got %v", err)
	}
}

func TestCatalogRequiresManager(t *testing.T) {
	svc := newTestService()
	if _, err := svc.CreateProduct(asCashier(), domain.ProductCreateRequest{Name: "X", UnitPriceCents: 100}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier to be forbidden, got %v", err)
	}
	if _, err := svc.CreateProduct(asAdmin(), domain.ProductCreateRequest{Name: "X", UnitPriceCents: 0}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected zero price to be rejected, got %v", err)
	}

	product := mustProduct(t, svc, "Product A", 1000, 7)
	price := int64(1500)
	updated, err := svc.UpdateProduct(asAdmin(), product.ID, domain.ProductUpdateRequest{UnitPriceCents: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UnitPriceCents != 1500 || updated.Stock != 7 {
		t.Fatalf("expected price change with stock kept, got %+v", updated)
	}
}

func TestRegisterCustomerNormalizesInput(t *testing.T) {
	svc := newTestService()
	customer, err := svc.RegisterCustomer(context.Background(), domain.CustomerRegisterRequest{
		FirstName: "  Zoë  ",
		LastName:  "Das",
		Phone:     "9844444444",
		Email:     " Zoe@Example.COM ",
	}, "$2a$10$hash")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if customer.FirstName != "Zo\u00eb" {
		t.Fatalf("expected NFC name, got %q", customer.FirstName)
	}
	if customer.Email != "zoe@example.com" {
		t.Fatalf("expected lowercased email, got %q", customer.Email)
	}

	if _, err := svc.RegisterCustomer(context.Background(), domain.CustomerRegisterRequest{FirstName: "Dup", Phone: "9844444444"}, "$2a$10$hash"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate phone conflict, got %v", err)
	}
	if _, err := svc.RegisterCustomer(context.Background(), domain.CustomerRegisterRequest{FirstName: "Bad", Phone: "12ab"}, "$2a$10$hash"); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid phone to be rejected, got %v", err)
	}
}

func TestRegisterEmployeeRequiresAdmin(t *testing.T) {
	svc := newTestService()
	req := domain.EmployeeRegisterRequest{FirstName: "New", LastName: "Manager", Email: "manager@metro.local", Role: "manager"}

	if _, err := svc.RegisterEmployee(asCashier(), req, "$2a$10$hash"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier to be forbidden, got %v", err)
	}
	employee, err := svc.RegisterEmployee(asAdmin(), req, "$2a$10$hash")
	if err != nil {
		t.Fatalf("register employee: %v", err)
	}
	if employee.Role != domain.RoleManager {
		t.Fatalf("expected Manager role, got %s", employee.Role)
	}

	req.Role = "owner"
	req.Email = "owner@metro.local"
	if _, err := svc.RegisterEmployee(asAdmin(), req, "$2a$10$hash"); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}
}

func TestAuditLogsAdminOnly(t *testing.T) {
	svc := newTestService()
	if _, err := svc.ListAuditLogs(asCashier(), 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier to be forbidden, got %v", err)
	}
	mustProduct(t, svc, "Audited", 100, 1)
	logs, err := svc.ListAuditLogs(asAdmin(), 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "product_create" || logs[0].ActorRole != domain.RoleAdmin {
		t.Fatalf("unexpected audit logs: %+v", logs)
	}
}

func TestRecommendedNeedsPrincipal(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Recommended(context.Background(), 3); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	resp, err := svc.Recommended(asCustomer(seedCustomerID), 3)
	if err != nil {
		t.Fatalf("recommended: %v", err)
	}
	if resp.Strategy != "random" || len(resp.Products) != 3 {
		t.Fatalf("expected 3 random products on a fresh store, got %+v", resp)
	}
}
