package invoice

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/backend/internal/domain"
)

func sampleBill() domain.Bill {
	return domain.Bill{
		ID:               12,
		SaleID:           7,
		CustomerID:       3,
		CustomerName:     "Ravi Kumar",
		PaymentMode:      domain.PaymentUPI,
		BillDate:         time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		TotalAmountCents: 5500,
		Items: []domain.BillLine{
			{ProductID: 1, ProductName: "Product A", Quantity: 3, UnitPriceCents: 1000, TotalCents: 3000},
			{ProductID: 2, ProductName: "Product B (500g pack, family size)", Quantity: 1, UnitPriceCents: 2500, TotalCents: 2500},
		},
	}
}

func TestRenderTextGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer("").RenderText(&buf, sampleBill()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "TestRenderTextGolden", buf.Bytes())
}

func TestRenderHTMLEscapesNames(t *testing.T) {
	bill := sampleBill()
	bill.CustomerName = `<script>alert("x")</script>`

	var buf bytes.Buffer
	require.NoError(t, NewRenderer("Corner Shop").RenderHTML(&buf, bill))
	out := buf.String()

	assert.Contains(t, out, "<h1>Corner Shop</h1>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "<td>Product A</td><td>3</td><td>10.00</td><td>30.00</td>")
	assert.Contains(t, out, "<th>55.00</th>")
}

func TestAmount(t *testing.T) {
	r := NewRenderer("")
	assert.Equal(t, "0.05", r.Amount(5))
	assert.Equal(t, "499.00", r.Amount(49900))
	assert.Equal(t, "-12.30", r.Amount(-1230))
}
