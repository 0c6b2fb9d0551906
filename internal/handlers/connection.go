package handlers

import (
	"errors"
	"net/http"

	"github.com/russellmoss/guest-count-check/internal/platform/httpx"
	"github.com/russellmoss/guest-count-check/internal/services"
)

// ConnectionHandlers serves the upstream connectivity check.
type ConnectionHandlers struct {
	connection   services.ConnectionService
	exposeDetail bool
}

// NewConnectionHandlers constructs ConnectionHandlers.
func NewConnectionHandlers(connection services.ConnectionService, exposeDetail bool) *ConnectionHandlers {
	return &ConnectionHandlers{connection: connection, exposeDetail: exposeDetail}
}

type connectionResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	OrderCount *int   `json:"orderCount,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TestConnection answers 200 with the upstream order total, or 500 when the credentials or
// network fail.
func (h *ConnectionHandlers) TestConnection(w http.ResponseWriter, r *http.Request) {
	status := h.connection.Check(r.Context())
	if status.Success {
		count := status.OrderCount
		httpx.WriteJSON(w, http.StatusOK, connectionResponse{
			Success:    true,
			Message:    "Successfully connected to the commerce API",
			OrderCount: &count,
		})
		return
	}

	resp := connectionResponse{
		Success: false,
		Message: "Failed to connect to the commerce API",
		Error:   "upstream request failed",
	}
	if h.exposeDetail && status.Err != nil {
		var d detailer
		if errors.As(status.Err, &d) && d.Detail() != "" {
			resp.Error = httpx.SanitizeDetail(d.Detail())
		} else {
			resp.Error = httpx.SanitizeDetail(status.Err.Error())
		}
	}
	httpx.WriteJSON(w, http.StatusInternalServerError, resp)
}
