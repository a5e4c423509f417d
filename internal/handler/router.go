package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/observability"
	"github.com/boddenberg/boleto-pix-go/internal/port"
	"github.com/boddenberg/boleto-pix-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("handler")

// QRRenderer rasterizes a payload into a PNG.
type QRRenderer interface {
	PNG(payload string, size int) ([]byte, error)
}

// HealthCheck is one backend reported by /healthz.
type HealthCheck struct {
	Name   string
	Pinger port.Pinger
}

// Services groups what the router serves. Nil services get their routes
// answered with 503.
type Services struct {
	Pix     *service.PixChargeService
	Preview *service.InstallmentPreviewService
	Tokens  *service.TokenService
	QR      QRRenderer
	Health  []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Health, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/pix", pixMetricsHandler(metrics))

		if svc.Pix == nil || svc.Tokens == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "pix service unavailable: store not configured")
			}))
			return
		}

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svc.Tokens, logger))

			// =============================================
			// Pix charge
			// POST|GET /v1/boletos/{boletoId}/pix
			// GET      /v1/boletos/{boletoId}/pix/qrcode.png
			// =============================================
			r.Post("/boletos/{boletoId}/pix", generatePixHandler(svc.Pix, logger))
			r.Get("/boletos/{boletoId}/pix", generatePixHandler(svc.Pix, logger))
			if svc.QR != nil {
				r.Get("/boletos/{boletoId}/pix/qrcode.png", pixQRCodeHandler(svc.Pix, svc.QR, logger))
			}

			// =============================================
			// Admin
			// =============================================
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin(logger))
				r.Get("/boletos/{boletoId}/pix/ledger", pixLedgerHandler(svc.Pix, logger))
				if svc.Preview != nil {
					r.Post("/installments/preview", installmentPreviewHandler(svc.Preview, logger))
				}
			})
		})
	})

	return r
}

// ============================================================
// Health: GET /healthz, GET /readyz
// ============================================================

const pingTimeout = 2 * time.Second

func healthzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := make([]domain.ServiceHealth, len(checks)+1)
		services[0] = domain.ServiceHealth{Name: "boletopix-api", Status: "healthy", LastChecked: now}

		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		// Each goroutine owns one slot; a failing backend never cancels the others.
		var g errgroup.Group
		for i, c := range checks {
			i, c := i, c
			g.Go(func() error {
				start := time.Now()
				err := c.Pinger.Ping(ctx)
				sh := domain.ServiceHealth{
					Name:        c.Name,
					Status:      "healthy",
					LatencyMs:   time.Since(start).Milliseconds(),
					LastChecked: now,
				}
				if err != nil {
					sh.Status = "unhealthy"
					sh.Error = err.Error()
					logger.Warn("health check failed", zap.String("backend", c.Name), zap.Error(err))
				}
				services[i+1] = sh
				return nil
			})
		}
		_ = g.Wait()

		overall, status := "healthy", http.StatusOK
		for _, s := range services {
			if s.Status != "healthy" {
				overall, status = "degraded", http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, status, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// Metrics: GET /v1/metrics/pix
// ============================================================

func pixMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetPixSnapshot())
	}
}
