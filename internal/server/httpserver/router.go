package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/AgenciaV10/wsnap/internal/server/httpserver/handler"
	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Service handles snapshot operations.
	Service handler.SnapshotService

	// Ready backs GET /ready. Nil means always ready.
	Ready handler.ReadyFunc

	Logger  *slog.Logger
	Metrics *metric.Registry

	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64
	RateBurst int

	// Tracing wraps requests in OpenTelemetry spans.
	Tracing bool
}

// NewRouter builds the API handler with its middleware chain.
//
// Order, outermost first: RequestID, Tracing, Recover, RateLimit,
// AccessLog, mux. /health, /ready and /metrics are not rate limited.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	var opts []handler.Option
	if cfg.Ready != nil {
		opts = append(opts, handler.WithReady(cfg.Ready))
	}
	api := handler.New(cfg.Service, log, opts...)

	mux := http.NewServeMux()
	mux.Handle("GET /health", api)
	mux.Handle("GET /ready", api)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	var business http.Handler = api
	if cfg.RateLimit > 0 {
		business = NewRateLimiter(cfg.RateLimit, cfg.RateBurst, 0).Middleware()(business)
	}
	mux.Handle("/v1/", business)

	chain := []Middleware{RequestID()}
	if cfg.Tracing {
		chain = append(chain, Tracing("wsnapd"))
	}
	chain = append(chain, Recover(log), AccessLog(log, cfg.Metrics))

	return Chain(mux, chain...)
}
