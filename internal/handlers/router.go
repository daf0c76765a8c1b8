package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Lixing-Zhang/ebook-landing/internal/config"
	"github.com/Lixing-Zhang/ebook-landing/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router holds everything the HTTP surface is built from
type Router struct {
	Config   *config.Config
	Logger   *slog.Logger
	Health   *HealthHandler
	Offer    *OfferHandler
	Order    *OrderHandler
	Showcase *ShowcaseHandler
	Sample   *SampleHandler
	Metrics  http.Handler
	Recorder middleware.RequestRecorder
}

// Handler builds the chi router
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Trace)
	r.Use(middleware.Logger(rt.Logger, rt.Recorder))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.APIKeyHeader, FormSessionHeader},
		ExposedHeaders:   []string{FormSessionHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", rt.Health.ServeHTTP)

	requireKey := middleware.APIKeyAuth(rt.Config.Auth)
	r.With(requireKey).Handle("/metrics", rt.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/offer", rt.Offer.GetOffer)
		r.With(requireKey).Get("/discount/stats", rt.Offer.GetDiscountStats)
		r.Get("/discount/{code}", rt.Offer.QuoteDiscount)

		r.Post("/order/session", rt.Order.OpenSession)
		r.Get("/order/session/{sessionId}", rt.Order.GetSession)
		r.Post("/order", rt.Order.Submit)

		r.Get("/showcase", rt.Showcase.GetShowcase)
		r.Post("/sample", rt.Sample.RequestSample)
	})

	return r
}
