package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/fieldservice/internal/application"
)

type punchService interface {
	ClockIn(ctx context.Context, params application.ClockInParams) (application.TimePunch, error)
	ClockOut(ctx context.Context, params application.ClockOutParams) (application.TimePunch, error)
	ToggleTaskPunch(ctx context.Context, params application.ToggleTaskPunchParams) (application.TimePunch, bool, error)
	RecordBreak(ctx context.Context, params application.RecordBreakParams) (application.TimePunch, error)
	EditPunch(ctx context.Context, params application.EditPunchParams) (application.TimePunch, []application.OverlapWarning, error)
	DeletePunch(ctx context.Context, principal application.Principal, punchID string) error
	ActivePunch(ctx context.Context, principal application.Principal) (*application.TimePunch, error)
	ListPunches(ctx context.Context, principal application.Principal, filter application.PunchFilter) ([]application.TimePunch, error)
}

// PunchHandler exposes the punch lifecycle endpoints.
type PunchHandler struct {
	service   punchService
	responder responder
	logger    *slog.Logger
}

// NewPunchHandler creates the handler for punch operations.
func NewPunchHandler(service punchService, logger *slog.Logger) *PunchHandler {
	base := defaultLogger(logger)
	return &PunchHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PunchHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PunchHandler", operation, attrs...)
}

// ClockIn handles POST /punches/clock-in.
func (h *PunchHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req clockInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	at, err := parseTimestamp(req.At)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, invalidTimestampError("at"))
		return
	}

	punch, err := h.service.ClockIn(r.Context(), application.ClockInParams{
		Principal: principal,
		Kind:      application.PunchKind(strings.TrimSpace(req.Kind)),
		Target:    req.target(),
		At:        at,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "ClockIn").InfoContext(r.Context(), "punch opened", "punch_id", punch.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, punchResponse{Punch: toPunchDTO(punch)})
}

// ClockOut handles POST /punches/clock-out.
func (h *PunchHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req clockOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	at, err := parseTimestamp(req.At)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, invalidTimestampError("at"))
		return
	}

	punch, err := h.service.ClockOut(r.Context(), application.ClockOutParams{
		Principal:  principal,
		Target:     req.target(),
		At:         at,
		Kilometers: req.Kilometers,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, punchResponse{Punch: toPunchDTO(punch)})
}

// ToggleTask handles POST /punches/toggle-task.
func (h *PunchHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req toggleTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.TaskID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTaskID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	punch, opened, err := h.service.ToggleTaskPunch(r.Context(), application.ToggleTaskPunchParams{
		Principal:   principal,
		TaskID:      strings.TrimSpace(req.TaskID),
		WorkOrderID: strings.TrimSpace(req.WorkOrderID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if opened {
		status = http.StatusCreated
	}
	h.responder.writeJSON(r.Context(), w, status, toggleResponse{
		Punch:  toPunchDTO(punch),
		Opened: opened,
	})
}

// RecordBreak handles POST /punches/break.
func (h *PunchHandler) RecordBreak(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req breakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	punch, err := h.service.RecordBreak(r.Context(), application.RecordBreakParams{
		Principal: principal,
		Minutes:   req.Minutes,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, punchResponse{Punch: toPunchDTO(punch)})
}

// Edit handles PUT /punches/{id}.
func (h *PunchHandler) Edit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	punchID, ok := PunchIDFromContext(r.Context())
	if !ok || strings.TrimSpace(punchID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPunchID)
		return
	}

	var req editPunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var badFields []string
	clockIn, err := parseTimestamp(req.ClockIn)
	if err != nil {
		badFields = append(badFields, "clock_in")
	}
	clockOut, err := parseTimestamp(req.ClockOut)
	if err != nil {
		badFields = append(badFields, "clock_out")
	}
	if len(badFields) > 0 {
		h.responder.handleServiceError(r.Context(), w, invalidTimestampError(badFields...))
		return
	}

	punch, warnings, err := h.service.EditPunch(r.Context(), application.EditPunchParams{
		Principal:  principal,
		PunchID:    punchID,
		ClockIn:    clockIn,
		ClockOut:   clockOut,
		Kilometers: req.Kilometers,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, punchResponse{
		Punch:    toPunchDTO(punch),
		Warnings: toOverlapDTOs(warnings),
	})
}

// Delete handles DELETE /punches/{id}.
func (h *PunchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	punchID, ok := PunchIDFromContext(r.Context())
	if !ok || strings.TrimSpace(punchID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPunchID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeletePunch(r.Context(), principal, punchID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Active handles GET /punches/active.
func (h *PunchHandler) Active(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	punch, err := h.service.ActivePunch(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var payload activePunchResponse
	if punch != nil {
		dto := toPunchDTO(*punch)
		payload.Punch = &dto
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// List handles GET /punches.
func (h *PunchHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	filter, err := buildPunchFilter(r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	punches, err := h.service.ListPunches(r.Context(), principal, filter)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPunchesResponse{Punches: toPunchDTOs(punches)})
}

func buildPunchFilter(values url.Values) (application.PunchFilter, error) {
	filter := application.PunchFilter{}

	if userID := strings.TrimSpace(values.Get("user_id")); userID != "" {
		filter.UserID = userID
	}
	if workOrderID := strings.TrimSpace(values.Get("work_order_id")); workOrderID != "" {
		filter.WorkOrderID = &workOrderID
	}
	if kind := strings.TrimSpace(values.Get("kind")); kind != "" {
		filter.Kind = application.PunchKind(kind)
	}

	from, err := parseTimestamp(values.Get("from"))
	if err != nil {
		return application.PunchFilter{}, invalidTimestampError("from")
	}
	if !from.IsZero() {
		filter.From = &from
	}
	to, err := parseTimestamp(values.Get("to"))
	if err != nil {
		return application.PunchFilter{}, invalidTimestampError("to")
	}
	if !to.IsZero() {
		filter.To = &to
	}

	return filter, nil
}

type clockInRequest struct {
	Kind        string  `json:"kind"`
	WorkOrderID *string `json:"work_order_id"`
	TaskID      *string `json:"task_id"`
	At          string  `json:"at"`
}

func (r clockInRequest) target() application.PunchTarget {
	return application.PunchTarget{WorkOrderID: r.WorkOrderID, TaskID: r.TaskID}
}

type clockOutRequest struct {
	WorkOrderID *string  `json:"work_order_id"`
	TaskID      *string  `json:"task_id"`
	At          string   `json:"at"`
	Kilometers  *float64 `json:"kilometers"`
}

func (r clockOutRequest) target() application.PunchTarget {
	return application.PunchTarget{WorkOrderID: r.WorkOrderID, TaskID: r.TaskID}
}

type toggleTaskRequest struct {
	WorkOrderID string `json:"work_order_id"`
	TaskID      string `json:"task_id"`
}

type breakRequest struct {
	Minutes int `json:"minutes"`
}

type editPunchRequest struct {
	ClockIn    string   `json:"clock_in"`
	ClockOut   string   `json:"clock_out"`
	Kilometers *float64 `json:"kilometers"`
}

type punchResponse struct {
	Punch    punchDTO            `json:"punch"`
	Warnings []overlapWarningDTO `json:"warnings,omitempty"`
}

type toggleResponse struct {
	Punch  punchDTO `json:"punch"`
	Opened bool     `json:"opened"`
}

type activePunchResponse struct {
	Punch *punchDTO `json:"punch"`
}

type listPunchesResponse struct {
	Punches []punchDTO `json:"punches"`
}

type punchDTO struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	WorkOrderID *string  `json:"work_order_id,omitempty"`
	TaskID      *string  `json:"task_id,omitempty"`
	Kind        string   `json:"kind"`
	ClockIn     string   `json:"clock_in"`
	ClockOut    *string  `json:"clock_out,omitempty"`
	Kilometers  *float64 `json:"kilometers,omitempty"`
	PunchDate   string   `json:"punch_date"`
	Hours       float64  `json:"hours"`
}

func toPunchDTO(punch application.TimePunch) punchDTO {
	dto := punchDTO{
		ID:          punch.ID,
		UserID:      punch.UserID,
		WorkOrderID: punch.WorkOrderID,
		TaskID:      punch.TaskID,
		Kind:        string(punch.Kind),
		ClockIn:     punch.ClockIn.UTC().Format(time.RFC3339Nano),
		Kilometers:  punch.Kilometers,
		PunchDate:   punch.PunchDate,
		Hours:       punch.Hours(),
	}
	if punch.ClockOut != nil {
		clockOut := punch.ClockOut.UTC().Format(time.RFC3339Nano)
		dto.ClockOut = &clockOut
	}
	return dto
}

func toPunchDTOs(punches []application.TimePunch) []punchDTO {
	if len(punches) == 0 {
		return nil
	}
	out := make([]punchDTO, 0, len(punches))
	for _, punch := range punches {
		out = append(out, toPunchDTO(punch))
	}
	return out
}

type overlapWarningDTO struct {
	PunchID     string `json:"punch_id"`
	WithPunchID string `json:"with_punch_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

func toOverlapDTOs(warnings []application.OverlapWarning) []overlapWarningDTO {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]overlapWarningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, overlapWarningDTO{
			PunchID:     warning.PunchID,
			WithPunchID: warning.WithPunchID,
			Start:       warning.Start.UTC().Format(time.RFC3339Nano),
			End:         warning.End.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

// parseTimestamp accepts RFC 3339 timestamps. An empty value parses to the
// zero time; anything else that fails to parse is an error so a typo'd
// timestamp cannot silently fall back to "now" or "missing".
func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

func invalidTimestampError(fields ...string) error {
	fieldErrors := make(map[string]string, len(fields))
	for _, field := range fields {
		fieldErrors[field] = "must be an RFC 3339 timestamp"
	}
	return &application.ValidationError{FieldErrors: fieldErrors}
}
