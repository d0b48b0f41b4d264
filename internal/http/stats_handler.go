package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/fieldservice/internal/application"
)

type statsService interface {
	UserStats(ctx context.Context, principal application.Principal) (application.UserStats, error)
}

// StatsHandler exposes the principal's daily and weekly rollups.
type StatsHandler struct {
	service   statsService
	responder responder
}

// NewStatsHandler creates the handler for rollup queries.
func NewStatsHandler(service statsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{service: service, responder: newResponder(defaultLogger(logger))}
}

// Get handles GET /stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	stats, err := h.service.UserStats(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := statsResponse{
		HoursToday:    stats.HoursToday,
		HoursThisWeek: stats.HoursThisWeek,
		KmToday:       stats.KmToday,
		KmThisWeek:    stats.KmThisWeek,
		KmOverall:     stats.KmOverall,
	}
	if stats.ActivePunch != nil {
		dto := toPunchDTO(*stats.ActivePunch)
		payload.ActivePunch = &dto
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

type statsResponse struct {
	HoursToday    float64   `json:"hours_today"`
	HoursThisWeek float64   `json:"hours_this_week"`
	KmToday       float64   `json:"km_today"`
	KmThisWeek    float64   `json:"km_this_week"`
	KmOverall     float64   `json:"km_overall"`
	ActivePunch   *punchDTO `json:"active_punch,omitempty"`
}
