package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/optica-erp/optica-erp/internal/auth"
	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/invoice"
	"github.com/optica-erp/optica-erp/internal/quote"
	"github.com/optica-erp/optica-erp/internal/report"
	"github.com/optica-erp/optica-erp/internal/shared"
)

const rateWindow = time.Minute

// RouterDeps collects the module handlers that mount onto the HTTP router.
type RouterDeps struct {
	Config   *Config
	Logger   *slog.Logger
	Sessions *shared.SessionManager

	Auth      *auth.Handler
	Inventory *inventory.Handler
	Quotes    *quote.Handler
	Invoices  *invoice.Handler
	Reports   *report.Handler
}

// NewRouter assembles the HTTP routing tree.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Config.AppRequestTimeout))
	r.Use(middleware.Compress(5))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IsDevelopment:      !deps.Config.IsProduction(),
	})
	r.Use(secureMiddleware.Handler)

	if deps.Config.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(deps.Config.RateLimitPerMinute, rateWindow))
	}

	r.Use(sessionMiddleware(deps.Sessions, deps.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/auth", func(r chi.Router) {
		deps.Auth.MountRoutes(r, RequireAuth(deps.Logger))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(deps.Logger))

		r.Route("/products", deps.Inventory.MountRoutes)
		r.Route("/quotes", deps.Quotes.MountRoutes)
		r.Route("/invoices", deps.Invoices.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(RequireManager())
			r.Route("/reports", deps.Reports.MountRoutes)
		})
	})

	return r
}
