package showcase

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"golang.org/x/sync/errgroup"
)

// Intervals configures how often each task ticks
type Intervals struct {
	Counter         time.Duration
	Stock           time.Duration
	Purchase        time.Duration
	PurchaseVisible time.Duration
	CountdownFrom   time.Duration
}

// Board groups the showcase tasks and reads their current display
type Board struct {
	Viewers   *ViewerCounter
	Sales     *SalesCounter
	Stock     *StockCounter
	Countdown *Countdown
	Purchases *PurchaseFeed

	log *slog.Logger
}

// NewBoard creates the tasks, each with its own random source
func NewBoard(iv Intervals, log *slog.Logger) *Board {
	if log == nil {
		log = slog.Default()
	}
	return &Board{
		Viewers:   NewViewerCounter(newRand(), iv.Counter),
		Sales:     NewSalesCounter(newRand(), iv.Counter),
		Stock:     NewStockCounter(newRand(), iv.Stock),
		Countdown: NewCountdown(iv.CountdownFrom),
		Purchases: NewPurchaseFeed(newRand(), iv.Purchase, iv.PurchaseVisible),
		log:       log,
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (b *Board) tasks() []Task {
	return []Task{b.Viewers, b.Sales, b.Stock, b.Countdown, b.Purchases}
}

// Run runs every task until ctx ends
func (b *Board) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range b.tasks() {
		g.Go(func() error {
			b.log.Debug("showcase task started", "task", task.Name())
			return task.Run(ctx)
		})
	}
	err := g.Wait()
	b.log.Info("showcase stopped")
	return err
}

// Snapshot reads each task's current display
func (b *Board) Snapshot() models.ShowcaseSnapshot {
	hours, minutes, seconds, sticky := b.Countdown.Display()

	snap := models.ShowcaseSnapshot{
		Viewers:      b.Viewers.Value(),
		Sales:        b.Sales.Value(),
		SalesDisplay: b.Sales.Display(),
		Stock:        b.Stock.Value(),
		Countdown: models.CountdownDisplay{
			Hours:   hours,
			Minutes: minutes,
			Seconds: seconds,
			Sticky:  sticky,
		},
	}
	if p := b.Purchases.Visible(); p != nil {
		snap.Purchase = &models.PurchaseDisplay{Buyer: p.Buyer, When: p.When}
	}
	return snap
}
