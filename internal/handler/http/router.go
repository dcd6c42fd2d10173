package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridianshop/reviews-service/pkg/health"
	"github.com/meridianshop/reviews-service/pkg/middleware"

	"github.com/meridianshop/reviews-service/internal/service"
)

// RouterConfig carries the router's cross-cutting dependencies.
type RouterConfig struct {
	ReviewService  *service.ReviewService
	HealthHandler  *health.Handler
	TokenValidator middleware.TokenValidator
	PprofCIDRs     []string
	ServiceName    string
	CORS           middleware.CORSConfig
	Logger         *slog.Logger
}

// NewRouter creates a chi router with all reviews service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	corsCfg := cfg.CORS
	if len(corsCfg.AllowedOrigins) == 0 {
		corsCfg = middleware.DefaultCORSConfig()
	}

	// Global middleware
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health and operational endpoints
	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	reviewHandler := NewReviewHandler(cfg.ReviewService, cfg.Logger)
	authn := middleware.Auth(cfg.TokenValidator)

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", reviewHandler.ListAllReviews)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Use(middleware.RequireRole("admin"))
			r.Delete("/{id}", reviewHandler.RetractReview)
		})
	})

	r.Route("/api/v1/products/{slug}/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", reviewHandler.ListProductReviews)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Use(middleware.RequireRole("customer"))
			r.Post("/", reviewHandler.SubmitReview)
		})
	})

	return r
}
