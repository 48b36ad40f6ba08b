package report

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // встроенная база поясов

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	receiptWidth = 40
	nameWidth    = 16
)

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// RenderReceipt печатает счёт моноширинным текстом.
func RenderReceipt(profile BusinessProfile, invoice domain.Invoice) (string, error) {
	loc, err := loadLocation(profile.Location)
	if err != nil {
		return "", fmt.Errorf("receipt location: %w", err)
	}

	var b strings.Builder
	rule := strings.Repeat("-", receiptWidth)

	center(&b, profile.Name)
	center(&b, profile.Address)
	if profile.Phone != "" {
		center(&b, "Tel: "+profile.Phone)
	}
	if profile.TaxID != "" {
		center(&b, "RTN: "+profile.TaxID)
	}
	b.WriteString(rule + "\n")
	center(&b, "FACTURA #"+invoice.Number)
	b.WriteString(rule + "\n")

	if invoice.Customer != nil {
		fmt.Fprintf(&b, "Cliente: %s\n", invoice.Customer.Name)
		if invoice.Customer.TaxID != "" {
			fmt.Fprintf(&b, "RTN: %s\n", invoice.Customer.TaxID)
		}
	} else {
		fmt.Fprintf(&b, "Cliente: %s\n", domain.WalkInCustomerName)
	}
	if invoice.CashierID != "" {
		fmt.Fprintf(&b, "Cajero: %s\n", invoice.CashierID)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%-*s %4s %8s %9s\n", nameWidth, "Desc.", "Cant", "Precio", "Total")
	for _, item := range invoice.Items {
		fmt.Fprintf(&b, "%-*s %4d %8s %9s\n",
			nameWidth, truncate(item.Name, nameWidth),
			item.Quantity,
			money(item.UnitPrice),
			money(item.LineTotal()),
		)
	}
	b.WriteString(rule + "\n")

	symbol := profile.CurrencySymbol
	totalLine(&b, "SUBTOTAL:", symbol, invoice.Subtotal)
	totalLine(&b, fmt.Sprintf("ISV (%s%%):", invoice.TaxRate.Mul(decimal.NewFromInt(100)).String()), symbol, invoice.Tax)
	totalLine(&b, "TOTAL:", symbol, invoice.Total)
	b.WriteString("\n")

	if profile.Footer != "" {
		center(&b, profile.Footer)
	}
	center(&b, "Fecha: "+invoice.CreatedAt.In(loc).Format("02/01/2006 15:04"))

	return b.String(), nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyPlaces)
}

func totalLine(b *strings.Builder, label, symbol string, amount decimal.Decimal) {
	value := strings.TrimSpace(symbol + " " + money(amount))
	fmt.Fprintf(b, "%-*s%*s\n", receiptWidth/2, label, receiptWidth/2, value)
}

func center(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	pad := (receiptWidth - len([]rune(text))) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + text + "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
