// Package showcase runs the landing page's social-proof counters.
// Each task owns one piece of display state and nothing else; none of them touch orders.
package showcase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	initialViewers = 127
	minViewers     = 100
	maxViewers     = 200
	initialSales   = 847
	initialStock   = 23
)

var (
	buyerNames = []string{"คุณสมชาย", "คุณวิภา", "คุณปิยะ", "คุณนิรันดร์", "คุณสุภาพ", "คุณมานะ"}
	buyerTimes = []string{"เมื่อ 2 นาทีที่แล้ว", "เมื่อ 5 นาทีที่แล้ว", "เมื่อ 8 นาทีที่แล้ว"}

	numberPrinter = message.NewPrinter(language.English)
)

// Task is one timer-driven display task
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// every calls step on each tick until ctx ends
func every(ctx context.Context, interval time.Duration, step func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			step()
		}
	}
}

// ViewerCounter drifts the "people viewing now" figure within [100, 200]
type ViewerCounter struct {
	mu       sync.Mutex
	value    int
	rng      *rand.Rand
	interval time.Duration
}

func NewViewerCounter(rng *rand.Rand, interval time.Duration) *ViewerCounter {
	return &ViewerCounter{value: initialViewers, rng: rng, interval: interval}
}

func (c *ViewerCounter) Name() string { return "viewers" }

// Step changes the count by a random amount in [-5, 4]
func (c *ViewerCounter) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	change := c.rng.IntN(10) - 5
	c.value = max(minViewers, min(maxViewers, c.value+change))
}

func (c *ViewerCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *ViewerCounter) Run(ctx context.Context) error {
	return every(ctx, c.interval, c.Step)
}

// SalesCounter slowly increases the "sold so far" figure
type SalesCounter struct {
	mu       sync.Mutex
	value    int
	rng      *rand.Rand
	interval time.Duration
}

func NewSalesCounter(rng *rand.Rand, interval time.Duration) *SalesCounter {
	return &SalesCounter{value: initialSales, rng: rng, interval: interval}
}

func (c *SalesCounter) Name() string { return "sales" }

// Step increments with probability 0.3
func (c *SalesCounter) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rng.Float64() < 0.3 {
		c.value++
	}
}

func (c *SalesCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Display renders the count with thousands separators, e.g. 1,024
func (c *SalesCounter) Display() string {
	return numberPrinter.Sprintf("%d", c.Value())
}

func (c *SalesCounter) Run(ctx context.Context) error {
	return every(ctx, c.interval, c.Step)
}

// StockCounter lowers the "copies left" figure, faster as it runs out. It never goes below 0.
type StockCounter struct {
	mu       sync.Mutex
	value    int
	rng      *rand.Rand
	interval time.Duration
}

func NewStockCounter(rng *rand.Rand, interval time.Duration) *StockCounter {
	return &StockCounter{value: initialStock, rng: rng, interval: interval}
}

func (c *StockCounter) Name() string { return "stock" }

func (c *StockCounter) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.value > 5:
		if c.rng.Float64() < 0.1 {
			c.value--
		}
	case c.value > 1:
		if c.rng.Float64() < 0.3 {
			c.value--
		}
	case c.value == 1:
		if c.rng.Float64() < 0.5 {
			c.value--
		}
	}
}

func (c *StockCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *StockCounter) Run(ctx context.Context) error {
	return every(ctx, c.interval, c.Step)
}

// Countdown ticks down once a second and starts over when it reaches zero
type Countdown struct {
	mu        sync.Mutex
	total     int
	remaining int
	display   int
}

func NewCountdown(total time.Duration) *Countdown {
	secs := int(total / time.Second)
	return &Countdown{total: secs, remaining: secs, display: secs}
}

func (c *Countdown) Name() string { return "countdown" }

// Step shows the next second; after showing zero the next tick starts from the top
func (c *Countdown) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remaining--
	c.display = max(c.remaining, 0)
	if c.remaining <= 0 {
		c.remaining = c.total
	}
}

// Display returns zero-padded hours, minutes, seconds and the sticky HH:MM form
func (c *Countdown) Display() (hours, minutes, seconds, sticky string) {
	c.mu.Lock()
	secs := c.display
	c.mu.Unlock()

	hours = fmt.Sprintf("%02d", secs/3600)
	minutes = fmt.Sprintf("%02d", (secs%3600)/60)
	seconds = fmt.Sprintf("%02d", secs%60)
	return hours, minutes, seconds, hours + ":" + minutes
}

func (c *Countdown) Run(ctx context.Context) error {
	return every(ctx, time.Second, c.Step)
}

// Purchase is one "someone just bought" notification
type Purchase struct {
	Buyer   string
	When    string
	ShownAt time.Time
}

// PurchaseFeed shows a random recent purchase every interval, visible for a few seconds
type PurchaseFeed struct {
	mu       sync.Mutex
	current  *Purchase
	rng      *rand.Rand
	interval time.Duration
	visible  time.Duration
	now      func() time.Time
}

func NewPurchaseFeed(rng *rand.Rand, interval, visible time.Duration) *PurchaseFeed {
	return &PurchaseFeed{rng: rng, interval: interval, visible: visible, now: time.Now}
}

func (f *PurchaseFeed) Name() string { return "purchases" }

func (f *PurchaseFeed) Step() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = &Purchase{
		Buyer:   buyerNames[f.rng.IntN(len(buyerNames))],
		When:    "เพิ่งสั่งซื้อ" + buyerTimes[f.rng.IntN(len(buyerTimes))],
		ShownAt: f.now(),
	}
}

// Visible returns the notification on screen, or nil once it has been shown long enough
func (f *PurchaseFeed) Visible() *Purchase {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil || f.now().Sub(f.current.ShownAt) >= f.visible {
		return nil
	}
	p := *f.current
	return &p
}

func (f *PurchaseFeed) Run(ctx context.Context) error {
	return every(ctx, f.interval, f.Step)
}
