package service

import (
	"context"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
)

// Quoter prices the offer for a discount input
type Quoter interface {
	Quote(ctx context.Context, raw string) models.PriceQuote
	Offer(title string) models.Offer
}

// CatalogStats reports discount catalog statistics
type CatalogStats interface {
	GetStats() map[string]interface{}
}

// OfferService handles business logic for the e-book offer
type OfferService struct {
	title   string
	pricer  Quoter
	catalog CatalogStats
}

// NewOfferService creates a new offer service
func NewOfferService(title string, pricer Quoter, catalog CatalogStats) *OfferService {
	return &OfferService{
		title:   title,
		pricer:  pricer,
		catalog: catalog,
	}
}

// GetOffer returns the offer at its base price
func (s *OfferService) GetOffer(ctx context.Context) models.Offer {
	return s.pricer.Offer(s.title)
}

// QuoteDiscount returns the price for a discount input
func (s *OfferService) QuoteDiscount(ctx context.Context, code string) models.PriceQuote {
	return s.pricer.Quote(ctx, code)
}

// BasePrice returns the price display shown before any code is entered
func (s *OfferService) BasePrice(ctx context.Context) string {
	return s.pricer.Offer(s.title).DisplayPrice
}

// DiscountStats returns statistics about the loaded discount codes
func (s *OfferService) DiscountStats(ctx context.Context) map[string]interface{} {
	return s.catalog.GetStats()
}
