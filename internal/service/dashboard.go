package service

import (
	"context"
	"time"

	"storefront/backend/internal/domain"
)

const chartDays = 7

func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if _, err := requireStaff(ctx); err != nil {
		return domain.DashboardStats{}, err
	}
	today := s.today()
	return s.repo.GetDashboardStats(ctx, today, today.AddDate(0, 0, 1), s.lowStockThreshold)
}

func (s *Service) RecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.repo.ListSales(ctx, limit)
}

// SalesChart returns one point per day for the last seven days, today
// included; days without sales are zero.
func (s *Service) SalesChart(ctx context.Context) ([]domain.SalesPoint, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	today := s.today()
	from := today.AddDate(0, 0, -(chartDays - 1))
	points, err := s.repo.GetSalesSeries(ctx, from, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]domain.SalesPoint, len(points))
	for _, p := range points {
		byDate[p.Date] = p
	}
	series := make([]domain.SalesPoint, 0, chartDays)
	for day := from; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		point, ok := byDate[key]
		if !ok {
			point = domain.SalesPoint{Date: key}
		}
		series = append(series, point)
	}
	return series, nil
}

func (s *Service) TopProducts(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		limit = 5
	}
	return s.repo.TopProducts(ctx, nil, "", limit)
}

// Recommended is open to any signed-in principal.
func (s *Service) Recommended(ctx context.Context, limit int) (domain.RecommendationResponse, error) {
	principal, err := currentPrincipal(ctx)
	if err != nil {
		return domain.RecommendationResponse{}, err
	}
	return s.recommender.Recommend(ctx, principal, limit)
}
