package report

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Handler exposes the reporting HTTP surface. Money summaries carry a
// display string rendered for the shop's locale next to the raw value.
type Handler struct {
	service *Service
	printer *message.Printer
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		printer: message.NewPrinter(language.French),
		logger:  logger,
	}
}

// MountRoutes attaches report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/sales", h.sales)
}

func (h *Handler) formatAmount(v float64) string {
	return h.printer.Sprintf("%.2f €", v)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	stats, err := h.service.Dashboard(r.Context(), actor)
	if err != nil {
		h.logger.Error("dashboard stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"formatted": map[string]string{
			"revenueToday":       h.formatAmount(stats.RevenueToday),
			"revenueMonth":       h.formatAmount(stats.RevenueMonth),
			"outstandingBalance": h.formatAmount(stats.OutstandingBalance),
		},
	})
}

func (h *Handler) sales(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	q := r.URL.Query()
	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD")
		return
	}

	rows, err := h.service.Sales(r.Context(), from, to.AddDate(0, 0, 1), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var invoiced, collected float64
	for _, row := range rows {
		invoiced += row.Invoiced
		collected += row.Collected
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"rows": rows,
		"totals": map[string]any{
			"invoiced":           invoiced,
			"collected":          collected,
			"invoicedFormatted":  h.formatAmount(invoiced),
			"collectedFormatted": h.formatAmount(collected),
		},
	})
}
