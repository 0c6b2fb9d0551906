package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/russellmoss/guest-count-check/internal/domain"
	"github.com/russellmoss/guest-count-check/internal/guestcount"
	"github.com/russellmoss/guest-count-check/internal/platform/httpx"
	"github.com/russellmoss/guest-count-check/internal/services"
)

// OrderHandlers serves the audit list, associate list and single-order lookup.
type OrderHandlers struct {
	reports      services.ReportService
	exposeDetail bool
}

// NewOrderHandlers constructs OrderHandlers. exposeDetail attaches upstream error bodies to
// error responses and must be false in production.
func NewOrderHandlers(reports services.ReportService, exposeDetail bool) *OrderHandlers {
	return &OrderHandlers{reports: reports, exposeDetail: exposeDetail}
}

// Routes registers the endpoints relative to the /api mount.
func (h *OrderHandlers) Routes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Get("/order/{orderId}", h.getOrder)
	r.Get("/associates", h.listAssociates)
}

type ordersResponse struct {
	Orders    []domain.Order   `json:"orders"`
	Total     int              `json:"total"`
	DateRange domain.DateRange `json:"dateRange"`
}

type associatesResponse struct {
	Associates []string         `json:"associates"`
	Total      int              `json:"total"`
	DateRange  domain.DateRange `json:"dateRange"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.reports.MissingGuestCounts(ctx, reportQuery(r.URL.Query()))
	if err != nil {
		writeServiceError(ctx, w, err, h.exposeDetail)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ordersResponse{
		Orders:    report.Orders,
		Total:     report.Total,
		DateRange: report.DateRange,
	})
}

func (h *OrderHandlers) listAssociates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	report, err := h.reports.Associates(ctx, services.ReportQuery{From: query.Get("from"), To: query.Get("to")})
	if err != nil {
		writeServiceError(ctx, w, err, h.exposeDetail)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, associatesResponse{
		Associates: report.Associates,
		Total:      report.Total,
		DateRange:  report.DateRange,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.reports.OrderDetail(ctx, chi.URLParam(r, "orderId"))
	if err != nil {
		writeServiceError(ctx, w, err, h.exposeDetail)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func reportQuery(values url.Values) services.ReportQuery {
	return services.ReportQuery{
		From:       values.Get("from"),
		To:         values.Get("to"),
		Associates: guestcount.ParseAssociates(values.Get("associates")),
		Search:     values.Get("search"),
	}
}
