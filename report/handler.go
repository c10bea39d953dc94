package report

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marvenixx/pos-console/internal/platform/httpx"
)

// Handler reports whether the PDF renderer is reachable.
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers the renderer health route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pdf", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.client.Ping(ctx); err != nil {
		h.logger.Warn("pdf renderer unreachable", slog.Any("error", err))
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "detail": "PDF export is temporarily unavailable."})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
