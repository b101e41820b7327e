package recommendation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/backend/internal/cache"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/store/memory"
)

type shopFixture struct {
	repo   *memory.Store
	alice  *domain.Customer
	bob    *domain.Customer
	milk   *domain.Product
	paneer *domain.Product
	rice   *domain.Product
	chips  *domain.Product
}

func newShop(t *testing.T) shopFixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	mustProduct := func(name, category string, stock int) *domain.Product {
		p, err := repo.CreateProduct(ctx, domain.Product{Name: name, Category: category, UnitPriceCents: 1000, Stock: stock})
		require.NoError(t, err)
		return p
	}
	mustCustomer := func(name, phone string) *domain.Customer {
		c, err := repo.CreateCustomer(ctx, domain.Customer{FirstName: name, Phone: phone}, "hash")
		require.NoError(t, err)
		return c
	}

	return shopFixture{
		repo:   repo,
		alice:  mustCustomer("Alice", "9400000001"),
		bob:    mustCustomer("Bob", "9400000002"),
		milk:   mustProduct("Milk", "Dairy", 50),
		paneer: mustProduct("Paneer", "Dairy", 50),
		rice:   mustProduct("Rice", "Staples", 50),
		chips:  mustProduct("Chips", "Snacks", 50),
	}
}

func (f shopFixture) buy(t *testing.T, customerID int64, lines map[int64]int) {
	t.Helper()
	ctx := context.Background()
	cart, err := f.repo.GetOrCreateCart(ctx, customerID)
	require.NoError(t, err)
	for productID, qty := range lines {
		require.NoError(t, f.repo.AddCartItem(ctx, cart.ID, productID, qty))
	}
	_, err = f.repo.FinalizeCart(ctx, domain.FinalizeRequest{CartID: cart.ID, PaymentMode: domain.PaymentCash})
	require.NoError(t, err)
}

func customer(id int64) domain.Principal {
	return domain.Principal{ID: id, Type: domain.PrincipalCustomer, Role: domain.RoleCustomer}
}

func productIDs(products []domain.Product) []int64 {
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestRecommendPersonalCategory(t *testing.T) {
	f := newShop(t)
	f.buy(t, f.alice.ID, map[int64]int{f.milk.ID: 1, f.rice.ID: 1, f.paneer.ID: 1})
	f.buy(t, f.bob.ID, map[int64]int{f.paneer.ID: 4, f.rice.ID: 9})

	engine := NewEngine(f.repo, nil, 0)
	resp, err := engine.Recommend(context.Background(), customer(f.alice.ID), 6)
	require.NoError(t, err)

	assert.Equal(t, StrategyPersonal, resp.Strategy)
	assert.Equal(t, "Dairy", resp.Category)
	assert.Equal(t, []int64{f.paneer.ID, f.milk.ID}, productIDs(resp.Products))
}

func TestRecommendFallsBackToTrending(t *testing.T) {
	f := newShop(t)
	f.buy(t, f.bob.ID, map[int64]int{f.chips.ID: 5, f.rice.ID: 2})

	engine := NewEngine(f.repo, nil, 0)
	resp, err := engine.Recommend(context.Background(), customer(f.alice.ID), 1)
	require.NoError(t, err)
	assert.Equal(t, StrategyTrending, resp.Strategy)
	assert.Equal(t, []int64{f.chips.ID}, productIDs(resp.Products))

	staff := domain.Principal{ID: 1, Type: domain.PrincipalEmployee, Role: domain.RoleCashier}
	resp, err = engine.Recommend(context.Background(), staff, 6)
	require.NoError(t, err)
	assert.Equal(t, StrategyTrending, resp.Strategy)
	assert.Len(t, resp.Products, 2)
}

func TestRecommendIgnoresSalesOutsideWindow(t *testing.T) {
	f := newShop(t)
	f.buy(t, f.bob.ID, map[int64]int{f.chips.ID: 5})

	engine := NewEngine(f.repo, nil, 0)
	engine.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	engine.shuffle = func(int, func(i, j int)) {}

	resp, err := engine.Recommend(context.Background(), customer(f.bob.ID), 3)
	require.NoError(t, err)
	assert.Equal(t, StrategyRandom, resp.Strategy)
	assert.Len(t, resp.Products, 3)
}

func TestRecommendRandomSkipsOutOfStock(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	_, err := repo.CreateProduct(ctx, domain.Product{Name: "Empty", UnitPriceCents: 100, Stock: 0})
	require.NoError(t, err)
	full, err := repo.CreateProduct(ctx, domain.Product{Name: "Full", UnitPriceCents: 100, Stock: 3})
	require.NoError(t, err)

	resp, err := NewEngine(repo, nil, 0).Recommend(ctx, customer(42), 6)
	require.NoError(t, err)
	assert.Equal(t, StrategyRandom, resp.Strategy)
	assert.Equal(t, []int64{full.ID}, productIDs(resp.Products))
}

func TestRecommendCacheServesLiveStock(t *testing.T) {
	f := newShop(t)
	f.buy(t, f.bob.ID, map[int64]int{f.chips.ID: 5})

	engine := NewEngine(f.repo, cache.NewMemoryRecommendationCache(), time.Minute)
	ctx := context.Background()
	first, err := engine.Recommend(ctx, customer(f.bob.ID), 6)
	require.NoError(t, err)
	require.Len(t, first.Products, 1)
	assert.Equal(t, 45, first.Products[0].Stock)

	f.buy(t, f.alice.ID, map[int64]int{f.chips.ID: 10, f.rice.ID: 20})

	second, err := engine.Recommend(ctx, customer(f.bob.ID), 6)
	require.NoError(t, err)
	assert.Equal(t, first.Strategy, second.Strategy, "ranking comes from cache")
	require.Len(t, second.Products, 1)
	assert.Equal(t, 35, second.Products[0].Stock, "stock is re-read on every hit")
}
