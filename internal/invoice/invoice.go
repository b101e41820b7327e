// Package invoice renders printable bills.
package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"storefront/backend/internal/domain"
)

const (
	nameWidth   = 20
	qtyWidth    = 4
	amountWidth = 10
	lineWidth   = nameWidth + 1 + qtyWidth + 1 + amountWidth + 1 + amountWidth
)

type Renderer struct {
	storeName string
	printer   *message.Printer
}

func NewRenderer(storeName string) *Renderer {
	if strings.TrimSpace(storeName) == "" {
		storeName = "Metro Storefront"
	}
	return &Renderer{
		storeName: storeName,
		printer:   message.NewPrinter(language.MustParse("en-IN")),
	}
}

// Amount formats paise as rupees with locale grouping, e.g. 123450 -> "1,234.50".
func (r *Renderer) Amount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + r.printer.Sprintf("%d", cents/100) + fmt.Sprintf(".%02d", cents%100)
}

// RenderText writes a fixed-width receipt suitable for a plain printer.
func (r *Renderer) RenderText(w io.Writer, bill domain.Bill) error {
	var buf bytes.Buffer
	rule := strings.Repeat("-", lineWidth)

	fmt.Fprintln(&buf, r.storeName)
	fmt.Fprintln(&buf, "TAX INVOICE")
	fmt.Fprintln(&buf, rule)
	fmt.Fprintf(&buf, "Bill No : %d\n", bill.ID)
	fmt.Fprintf(&buf, "Sale No : %d\n", bill.SaleID)
	fmt.Fprintf(&buf, "Date    : %s\n", bill.BillDate.Format("02 Jan 2006"))
	fmt.Fprintf(&buf, "Customer: %s\n", bill.CustomerName)
	fmt.Fprintf(&buf, "Payment : %s\n", bill.PaymentMode)
	fmt.Fprintln(&buf, rule)
	fmt.Fprintf(&buf, "%-*s %*s %*s %*s\n", nameWidth, "Item", qtyWidth, "Qty", amountWidth, "Rate", amountWidth, "Amount")
	fmt.Fprintln(&buf, rule)
	for _, line := range bill.Items {
		fmt.Fprintf(&buf, "%-*s %*d %*s %*s\n",
			nameWidth, truncate(line.ProductName, nameWidth),
			qtyWidth, line.Quantity,
			amountWidth, r.Amount(line.UnitPriceCents),
			amountWidth, r.Amount(line.TotalCents))
	}
	fmt.Fprintln(&buf, rule)
	fmt.Fprintf(&buf, "%-*s %*s\n", lineWidth-amountWidth-1, "TOTAL (INR)", amountWidth, r.Amount(bill.TotalAmountCents))
	fmt.Fprintln(&buf, rule)
	fmt.Fprintln(&buf, "Thank you for shopping with us!")

	_, err := w.Write(buf.Bytes())
	return err
}

var htmlTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"date": func(bill domain.Bill) string { return bill.BillDate.Format("02 Jan 2006") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Invoice #{{.Bill.ID}}</title></head>
<body>
<h1>{{.StoreName}}</h1>
<p>Bill No {{.Bill.ID}} &middot; Sale No {{.Bill.SaleID}} &middot; {{date .Bill}}</p>
<p>Customer: {{.Bill.CustomerName}} &middot; Payment: {{.Bill.PaymentMode}}</p>
<table>
<thead><tr><th>Item</th><th>Qty</th><th>Rate</th><th>Amount</th></tr></thead>
<tbody>
{{- range .Lines}}
<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.Rate}}</td><td>{{.Amount}}</td></tr>
{{- end}}
</tbody>
<tfoot><tr><th colspan="3">Total (INR)</th><th>{{.Total}}</th></tr></tfoot>
</table>
</body>
</html>
`))

type htmlLine struct {
	Name     string
	Quantity int
	Rate     string
	Amount   string
}

// RenderHTML writes the same invoice as an HTML page.
func (r *Renderer) RenderHTML(w io.Writer, bill domain.Bill) error {
	lines := make([]htmlLine, 0, len(bill.Items))
	for _, line := range bill.Items {
		lines = append(lines, htmlLine{
			Name:     line.ProductName,
			Quantity: line.Quantity,
			Rate:     r.Amount(line.UnitPriceCents),
			Amount:   r.Amount(line.TotalCents),
		})
	}
	return htmlTemplate.Execute(w, struct {
		StoreName string
		Bill      domain.Bill
		Lines     []htmlLine
		Total     string
	}{
		StoreName: r.storeName,
		Bill:      bill,
		Lines:     lines,
		Total:     r.Amount(bill.TotalAmountCents),
	})
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width])
}
