package models

// ShowcaseSnapshot is the current social-proof display state
type ShowcaseSnapshot struct {
	Viewers      int              `json:"viewers"`
	Sales        int              `json:"sales"`
	SalesDisplay string           `json:"salesDisplay"`
	Stock        int              `json:"stock"`
	Countdown    CountdownDisplay `json:"countdown"`
	Purchase     *PurchaseDisplay `json:"purchase,omitempty"`
}

// CountdownDisplay is the zero-padded countdown
type CountdownDisplay struct {
	Hours   string `json:"hours"`
	Minutes string `json:"minutes"`
	Seconds string `json:"seconds"`
	Sticky  string `json:"sticky"`
}

// PurchaseDisplay is the currently visible "recent purchase" toast
type PurchaseDisplay struct {
	Buyer string `json:"buyer"`
	When  string `json:"when"`
}
