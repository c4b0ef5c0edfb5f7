package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/amitayhanson-cloud/salon-platform-sub007/internal/http/middleware"
	"github.com/amitayhanson-cloud/salon-platform-sub007/internal/tenant"
	"github.com/amitayhanson-cloud/salon-platform-sub007/pkg/logging"
)

type siteSource interface {
	Get(ctx context.Context, siteID string) (*tenant.Site, error)
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	Logger          *logging.Logger
	WebhookHandler  http.Handler
	AdminHandler    *AdminHandler
	Sites           siteSource
	AdminAuthSecret string
	MetricsHandler  http.Handler
	WebhookRate     float64
	WebhookBurst    int
}

// NewRouter creates the chi router with all routes configured.
func NewRouter(cfg *RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WebhookHandler != nil {
			rate, burst := cfg.WebhookRate, cfg.WebhookBurst
			if rate <= 0 {
				rate = 5
			}
			if burst <= 0 {
				burst = 10
			}
			public.With(httpmiddleware.RateLimit(rate, burst, httpmiddleware.KeyBySender)).
				Post("/webhooks/twilio/sms", cfg.WebhookHandler.ServeHTTP)
		}
	})

	if cfg.AdminHandler != nil {
		r.Route("/admin/sites/{siteID}", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(requireSiteOwner(cfg.Sites))
			admin.Post("/bookings/{bookingID}/cascade-cancel", cfg.AdminHandler.CascadeCancel)
			admin.Post("/archive/dedupe", cfg.AdminHandler.Dedupe)
			admin.Post("/archive/purge", cfg.AdminHandler.Purge)
			admin.Post("/cleanup", cfg.AdminHandler.Cleanup)
			admin.Post("/recurrence/preview", cfg.AdminHandler.RecurrencePreview)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireSiteOwner verifies that the authenticated admin owns the site named
// in the URL. Runs after AdminJWT, so verified claims are on the context.
func requireSiteOwner(sites siteSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sites == nil {
				writeError(w, http.StatusInternalServerError, CodeServerError, "site store unavailable")
				return
			}
			claims, ok := httpmiddleware.AdminClaimsFromContext(r.Context())
			if !ok || claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing admin identity")
				return
			}
			siteID := chi.URLParam(r, "siteID")
			site, err := sites.Get(r.Context(), siteID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			if site.OwnerID != claims.Subject {
				writeError(w, http.StatusForbidden, CodeForbidden, "not the site owner")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
