package recommendation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"storefront/backend/internal/cache"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/metrics"
	"storefront/backend/internal/store"
)

const (
	StrategyPersonal = "personal"
	StrategyTrending = "trending"
	StrategyRandom   = "random"

	window       = 30 * 24 * time.Hour
	defaultLimit = 6
	maxLimit     = 50
)

// Source is the slice of the repository the engine reads from.
type Source interface {
	TopCategoryForCustomer(ctx context.Context, customerID int64, since time.Time) (string, error)
	TopProducts(ctx context.Context, since *time.Time, category string, limit int) ([]domain.ProductSales, error)
	ListInStockProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Engine struct {
	source   Source
	cache    cache.RecommendationCache
	cacheTTL time.Duration
	now      func() time.Time
	shuffle  func(n int, swap func(i, j int))
}

func NewEngine(source Source, cacheStore cache.RecommendationCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopRecommendationCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 20 * time.Second
	}

	return &Engine{
		source:   source,
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		now:      time.Now,
		shuffle:  rand.Shuffle,
	}
}

// Recommend picks products for the principal from the last 30 days of sales:
// the customer's favourite category first, then global best sellers, then a
// random slice of in-stock products.
func (e *Engine) Recommend(ctx context.Context, principal domain.Principal, limit int) (domain.RecommendationResponse, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	key := cacheKey(principal, limit)
	cached, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Printf("[recommendation] WARN: cache read failed: %v", err)
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return e.hydrate(ctx, cached)
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	resp, err := e.compute(ctx, principal, limit)
	if err != nil {
		return domain.RecommendationResponse{}, err
	}

	entry := &cache.RecommendationEntry{Strategy: resp.Strategy, Category: resp.Category, ProductIDs: make([]int64, 0, len(resp.Products))}
	for _, p := range resp.Products {
		entry.ProductIDs = append(entry.ProductIDs, p.ID)
	}
	if err := e.cache.Set(ctx, key, entry, e.cacheTTL); err != nil {
		log.Printf("[recommendation] WARN: cache write failed: %v", err)
	}
	return resp, nil
}

func (e *Engine) compute(ctx context.Context, principal domain.Principal, limit int) (domain.RecommendationResponse, error) {
	since := e.now().UTC().Add(-window)

	if principal.IsCustomer() {
		category, err := e.source.TopCategoryForCustomer(ctx, principal.ID, since)
		switch {
		case err == nil:
			ranked, err := e.source.TopProducts(ctx, &since, category, limit)
			if err != nil {
				return domain.RecommendationResponse{}, err
			}
			if len(ranked) > 0 {
				return domain.RecommendationResponse{Strategy: StrategyPersonal, Category: category, Products: unwrap(ranked)}, nil
			}
		case !errors.Is(err, store.ErrNotFound):
			return domain.RecommendationResponse{}, err
		}
	}

	ranked, err := e.source.TopProducts(ctx, &since, "", limit)
	if err != nil {
		return domain.RecommendationResponse{}, err
	}
	if len(ranked) > 0 {
		return domain.RecommendationResponse{Strategy: StrategyTrending, Products: unwrap(ranked)}, nil
	}

	inStock, err := e.source.ListInStockProducts(ctx)
	if err != nil {
		return domain.RecommendationResponse{}, err
	}
	e.shuffle(len(inStock), func(i, j int) { inStock[i], inStock[j] = inStock[j], inStock[i] })
	if len(inStock) > limit {
		inStock = inStock[:limit]
	}
	return domain.RecommendationResponse{Strategy: StrategyRandom, Products: inStock}, nil
}

// hydrate re-reads cached product ids; products removed since are skipped.
func (e *Engine) hydrate(ctx context.Context, entry *cache.RecommendationEntry) (domain.RecommendationResponse, error) {
	resp := domain.RecommendationResponse{
		Strategy: entry.Strategy,
		Category: entry.Category,
		Products: make([]domain.Product, 0, len(entry.ProductIDs)),
	}
	for _, id := range entry.ProductIDs {
		p, err := e.source.GetProduct(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.RecommendationResponse{}, err
		}
		resp.Products = append(resp.Products, *p)
	}
	return resp, nil
}

func unwrap(ranked []domain.ProductSales) []domain.Product {
	products := make([]domain.Product, 0, len(ranked))
	for _, entry := range ranked {
		products = append(products, entry.Product)
	}
	return products
}

func cacheKey(principal domain.Principal, limit int) string {
	if principal.IsCustomer() {
		return fmt.Sprintf("storefront:recommendation:customer:%d:%d", principal.ID, limit)
	}
	return fmt.Sprintf("storefront:recommendation:global:%d", limit)
}
