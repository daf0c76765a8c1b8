package discount

import (
	"context"
	"strings"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"github.com/shopspring/decimal"
)

// codeLookup is the interface for discount code lookup
type codeLookup interface {
	Lookup(ctx context.Context, code string) (decimal.Decimal, bool)
}

// Pricer renders the price shown on the order form for a discount input
type Pricer struct {
	codes    codeLookup
	base     decimal.Decimal
	currency string
}

// NewPricer creates a new Pricer
func NewPricer(codes codeLookup, basePrice int64, currency string) *Pricer {
	return &Pricer{
		codes:    codes,
		base:     decimal.NewFromInt(basePrice),
		currency: currency,
	}
}

// Quote returns the price for the raw discount input. Unknown codes get the base price.
func (p *Pricer) Quote(ctx context.Context, raw string) models.PriceQuote {
	code := models.NormalizeDiscountCode(raw)
	price := p.base
	discount := decimal.Zero

	amount, ok := p.codes.Lookup(ctx, code)
	if ok {
		discount = amount
		price = p.base.Sub(amount)
		if price.IsNegative() {
			price = decimal.Zero
		}
	}

	return models.PriceQuote{
		Code:     code,
		Applied:  ok,
		Discount: discount.StringFixed(0),
		Price:    price.StringFixed(0),
		Display:  p.FormatDisplay(price),
	}
}

// FormatDisplay renders a price the way the page shows it, e.g. ฿135
func (p *Pricer) FormatDisplay(price decimal.Decimal) string {
	return p.currency + price.StringFixed(0)
}

// Offer describes the product at its base price
func (p *Pricer) Offer(title string) models.Offer {
	return models.Offer{
		Title:        title,
		BasePrice:    p.base.StringFixed(0),
		DisplayPrice: p.FormatDisplay(p.base),
		Currency:     p.currency,
	}
}

// Currency returns the currency marker
func (p *Pricer) Currency() string {
	return p.currency
}

// StripMarker removes the first currency marker from a displayed price
func StripMarker(display, currency string) string {
	return strings.TrimSpace(strings.Replace(display, currency, "", 1))
}
