package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/pkg/notify"
	"github.com/jcmexdev/campify/internal/shop/app/cart"
	"github.com/jcmexdev/campify/internal/shop/app/catalog"
	"github.com/jcmexdev/campify/internal/shop/app/order"
	"github.com/jcmexdev/campify/internal/shop/app/session"
	"github.com/jcmexdev/campify/internal/shop/app/stats"
	"github.com/jcmexdev/campify/internal/shop/app/users"
)

// Services are the providers the gateway exposes. Users and Stats are only
// needed by the admin build.
type Services struct {
	Session       *session.Service
	Catalog       *catalog.Service
	Cart          *cart.Service
	Orders        *order.Service
	Users         *users.Service
	Stats         *stats.Service
	Notifications *notify.Dispatcher
}

// Handler translates gateway requests into provider calls.
type Handler struct {
	Services
	logger *slog.Logger
}

// NewHandler initializes the handler with the composed services.
func NewHandler(svc Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Services: svc, logger: logger}
}

// Healthz answers liveness checks.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListNotifications returns the visible notifications, oldest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, _ *http.Request) {
	items := h.Notifications.Items()
	if items == nil {
		items = []notify.Item{}
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{Items: items})
}

// DismissNotification removes a notification before its timer fires.
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	if !h.Notifications.Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "notification_not_found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

// writeBackendError maps a provider error onto a gateway status: backend
// client errors keep their status, anything else is a bad gateway.
func writeBackendError(w http.ResponseWriter, err error, code, fallback string) {
	status := http.StatusBadGateway
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		status = apiErr.StatusCode
	}
	writeError(w, status, code, apiclient.Message(err, fallback))
}
