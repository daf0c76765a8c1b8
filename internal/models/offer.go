package models

// Offer represents the single digital product sold on the landing page
type Offer struct {
	Title        string `json:"title"`
	BasePrice    string `json:"basePrice"`
	DisplayPrice string `json:"displayPrice"`
	Currency     string `json:"currency"`
}

// PriceQuote is the price shown for a given discount input
type PriceQuote struct {
	Code     string `json:"code"`
	Applied  bool   `json:"applied"`
	Discount string `json:"discount"`
	Price    string `json:"price"`
	Display  string `json:"display"`
}
