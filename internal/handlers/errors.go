package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/commerce"
	"github.com/russellmoss/guest-count-check/internal/dates"
	"github.com/russellmoss/guest-count-check/internal/export"
	"github.com/russellmoss/guest-count-check/internal/platform/httpx"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
	"github.com/russellmoss/guest-count-check/internal/services"
)

// detailer is implemented by upstream errors that carry the response body.
type detailer interface {
	Detail() string
}

// toHTTPError maps service errors onto the stable error envelope. Upstream bodies and raw error
// text are attached as detail only when exposeDetail is set, which is never the case in
// production.
func toHTTPError(err error, exposeDetail bool) httpx.Error {
	var out httpx.Error
	switch {
	case errors.Is(err, dates.ErrRangeRequired):
		out = httpx.NewError("invalid_request", "at least one of from or to is required", http.StatusBadRequest)
	case errors.Is(err, dates.ErrRangeInverted):
		out = httpx.NewError("invalid_request", "from must not be after to", http.StatusBadRequest)
	case errors.Is(err, dates.ErrInvalidDate):
		out = httpx.NewError("invalid_request", "from and to must be valid dates", http.StatusBadRequest)
	case errors.Is(err, commerce.ErrInvalidOrderID):
		out = httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest)
	case errors.Is(err, commerce.ErrOrderNotFound):
		out = httpx.NewError("order_not_found", "order not found", http.StatusNotFound)
	case errors.Is(err, services.ErrNoOrders):
		out = httpx.NewError("no_orders", "no orders found for the selected date range", http.StatusBadRequest)
	case errors.Is(err, export.ErrEmptyExport):
		out = httpx.NewError("empty_export", "no orders missing a guest count to export", http.StatusBadRequest)
	case errors.Is(err, commerce.ErrUpstream):
		out = httpx.NewError("upstream_error", "failed to fetch orders from the commerce API", http.StatusInternalServerError)
	default:
		out = httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError)
	}

	if exposeDetail {
		var d detailer
		if errors.As(err, &d) && strings.TrimSpace(d.Detail()) != "" {
			out = out.WithDetail(d.Detail())
		} else {
			out = out.WithDetail(err.Error())
		}
	}
	return out
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, err error, exposeDetail bool) {
	httpErr := toHTTPError(err, exposeDetail)
	logger := requestctx.Logger(ctx)
	if httpErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", httpErr.Code), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.String("code", httpErr.Code), zap.Error(err))
	}
	httpx.WriteError(ctx, w, httpErr)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
