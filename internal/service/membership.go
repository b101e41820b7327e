package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/metrics"
	"storefront/backend/internal/store"
)

const (
	MembershipActive       = "Active"
	MembershipExpiringSoon = "Expiring Soon"
	MembershipExpired      = "Expired"

	expiringSoonDays = 30
)

var membershipPlans = []domain.MembershipPlan{
	{Type: "Silver", PriceCents: 49900, DurationDays: 365, DiscountPercent: 5},
	{Type: "Gold", PriceCents: 99900, DurationDays: 365, DiscountPercent: 10},
	{Type: "Platinum", PriceCents: 199900, DurationDays: 365, DiscountPercent: 15},
}

func planFeatures(plan domain.MembershipPlan) []string {
	features := []string{
		fmt.Sprintf("%g%% discount on all purchases", plan.DiscountPercent),
		"Priority customer support",
	}
	if plan.Type == "Platinum" {
		features = append(features, "Free home delivery")
	} else {
		features = append(features, "Reduced delivery charges")
	}
	if plan.Type != "Silver" {
		features = append(features, "Early access to sales")
	}
	if plan.Type == "Platinum" {
		features = append(features, "Exclusive member-only deals")
	}
	return features
}

// lookupPlan matches a plan name case-insensitively.
func lookupPlan(name string) (domain.MembershipPlan, bool) {
	name = strings.TrimSpace(name)
	for _, plan := range membershipPlans {
		if strings.EqualFold(plan.Type, name) {
			return plan, true
		}
	}
	return domain.MembershipPlan{}, false
}

func (s *Service) MembershipPlans() []domain.MembershipPlan {
	plans := make([]domain.MembershipPlan, 0, len(membershipPlans))
	for _, plan := range membershipPlans {
		plan.Features = planFeatures(plan)
		plans = append(plans, plan)
	}
	return plans
}

func (s *Service) CurrentMembership(ctx context.Context, customerID int64) (domain.MembershipSummary, error) {
	if _, err := requireCustomerAccess(ctx, customerID); err != nil {
		return domain.MembershipSummary{}, err
	}
	latest, err := s.repo.LatestMembership(ctx, customerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.MembershipSummary{HasMembership: false, Message: "No active membership found"}, nil
	}
	if err != nil {
		return domain.MembershipSummary{}, err
	}
	view := s.viewMembership(*latest)
	return domain.MembershipSummary{HasMembership: true, Membership: &view}, nil
}

// PurchaseMembership records a new membership row. An active membership is
// extended: the new row ends plan.DurationDays after the later of today and
// the current end date.
func (s *Service) PurchaseMembership(ctx context.Context, req domain.MembershipPurchaseRequest) (domain.MembershipPurchaseResponse, error) {
	plan, ok := lookupPlan(req.Type)
	if !ok {
		return domain.MembershipPurchaseResponse{}, fmt.Errorf("%w: membership type must be Silver, Gold or Platinum", store.ErrInvalidTransaction)
	}
	mode, ok := domain.NormalizePaymentMode(req.PaymentMode)
	if !ok {
		return domain.MembershipPurchaseResponse{}, ErrInvalidPaymentMode
	}
	if _, err := requireCustomerAccess(ctx, req.CustomerID); err != nil {
		return domain.MembershipPurchaseResponse{}, err
	}
	if _, err := s.repo.GetCustomer(ctx, req.CustomerID); err != nil {
		return domain.MembershipPurchaseResponse{}, err
	}

	today := s.today()
	base := today
	extended := false
	active, err := s.repo.ActiveMembership(ctx, req.CustomerID, today)
	switch {
	case err == nil:
		extended = true
		if active.EndDate.After(base) {
			base = dateOf(active.EndDate)
		}
	case !errors.Is(err, store.ErrNotFound):
		return domain.MembershipPurchaseResponse{}, err
	}

	created, err := s.repo.CreateMembership(ctx, domain.Membership{
		CustomerID:      req.CustomerID,
		Type:            plan.Type,
		StartDate:       today,
		EndDate:         base.AddDate(0, 0, plan.DurationDays),
		AmountPaidCents: plan.PriceCents,
		PaymentMode:     mode,
	})
	if err != nil {
		return domain.MembershipPurchaseResponse{}, err
	}
	metrics.MembershipPurchases.WithLabelValues(plan.Type).Inc()

	s.logAudit(ctx, "membership_purchase", "membership", created.ID, fmt.Sprintf("customer=%d,type=%s,end=%s,extended=%t", created.CustomerID, created.Type, created.EndDate.Format(time.DateOnly), extended))
	return domain.MembershipPurchaseResponse{
		Message:    fmt.Sprintf("%s membership activated successfully", plan.Type),
		Membership: *created,
		Extended:   extended,
	}, nil
}

func (s *Service) CancelMembership(ctx context.Context, customerID int64) (int, error) {
	if _, err := requireCustomerAccess(ctx, customerID); err != nil {
		return 0, err
	}
	cancelled, err := s.repo.CancelMemberships(ctx, customerID, s.today())
	if err != nil {
		return 0, err
	}
	if cancelled == 0 {
		return 0, fmt.Errorf("active membership %w", store.ErrNotFound)
	}
	s.logAudit(ctx, "membership_cancel", "customer", customerID, fmt.Sprintf("cancelled=%d", cancelled))
	return cancelled, nil
}

func (s *Service) MembershipHistory(ctx context.Context, customerID int64) ([]domain.MembershipView, error) {
	if _, err := requireCustomerAccess(ctx, customerID); err != nil {
		return nil, err
	}
	memberships, err := s.repo.ListMemberships(ctx, customerID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.MembershipView, 0, len(memberships))
	for _, m := range memberships {
		views = append(views, s.viewMembership(m))
	}
	return views, nil
}

func (s *Service) CheckMembership(ctx context.Context, customerID int64) (domain.MembershipCheck, error) {
	if _, err := requireCustomerAccess(ctx, customerID); err != nil {
		return domain.MembershipCheck{}, err
	}
	check := domain.MembershipCheck{CustomerID: customerID}
	active, err := s.repo.ActiveMembership(ctx, customerID, s.today())
	if errors.Is(err, store.ErrNotFound) {
		return check, nil
	}
	if err != nil {
		return domain.MembershipCheck{}, err
	}
	check.HasMembership = true
	check.Type = active.Type
	if plan, ok := lookupPlan(active.Type); ok {
		check.DiscountPercent = plan.DiscountPercent
	}
	return check, nil
}

// MembershipStats lists per-plan counts, highest tier first.
func (s *Service) MembershipStats(ctx context.Context) ([]domain.MembershipStat, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	stats, err := s.repo.MembershipStats(ctx, s.today())
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(stats, func(a, b domain.MembershipStat) int {
		return planRank(a.Type) - planRank(b.Type)
	})
	return stats, nil
}

func planRank(membershipType string) int {
	for i, plan := range membershipPlans {
		if plan.Type == membershipType {
			return len(membershipPlans) - i
		}
	}
	return len(membershipPlans) + 1
}

func (s *Service) viewMembership(m domain.Membership) domain.MembershipView {
	today := s.today()
	days := int(dateOf(m.EndDate).Sub(today).Hours() / 24)

	view := domain.MembershipView{Membership: m, DaysRemaining: days}
	switch {
	case days < 0:
		view.Status = MembershipExpired
		view.DaysRemaining = 0
	case days <= expiringSoonDays:
		view.Status = MembershipExpiringSoon
	default:
		view.Status = MembershipActive
	}
	if plan, ok := lookupPlan(m.Type); ok {
		view.DiscountPercent = plan.DiscountPercent
	}
	return view
}
