package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/fieldservice/internal/application"
)

type workOrderService interface {
	CreateWorkOrder(ctx context.Context, params application.CreateWorkOrderParams) (application.WorkOrder, error)
	GetWorkOrder(ctx context.Context, id string) (application.WorkOrder, error)
	ListWorkOrders(ctx context.Context) ([]application.WorkOrder, error)
	Assign(ctx context.Context, params application.AssignWorkOrderParams) (application.WorkOrder, error)
	SubmitForReview(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	Close(ctx context.Context, principal application.Principal, workOrderID string) (application.WorkOrder, error)
	AddTask(ctx context.Context, params application.AddTaskParams) (application.WorkOrderTask, error)
	UpdateTaskHours(ctx context.Context, params application.UpdateTaskHoursParams) (application.WorkOrderTask, error)
}

// WorkOrderHandler exposes work order lifecycle and task budgeting endpoints.
type WorkOrderHandler struct {
	service   workOrderService
	responder responder
	logger    *slog.Logger
}

// NewWorkOrderHandler creates the handler for work order operations.
func NewWorkOrderHandler(service workOrderService, logger *slog.Logger) *WorkOrderHandler {
	base := defaultLogger(logger)
	return &WorkOrderHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *WorkOrderHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WorkOrderHandler", operation, attrs...)
}

// Create handles POST /work-orders.
func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req workOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	order, err := h.service.CreateWorkOrder(r.Context(), application.CreateWorkOrderParams{
		Principal: principal,
		Input:     application.WorkOrderInput{Title: strings.TrimSpace(req.Title)},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create").InfoContext(r.Context(), "work order created", "work_order_id", order.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, workOrderResponse{WorkOrder: toWorkOrderDTO(order)})
}

// Get handles GET /work-orders/{id}.
func (h *WorkOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workOrderID, ok := WorkOrderIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workOrderID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkOrderID)
		return
	}

	order, err := h.service.GetWorkOrder(r.Context(), workOrderID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, workOrderResponse{WorkOrder: toWorkOrderDTO(order)})
}

// List handles GET /work-orders.
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	orders, err := h.service.ListWorkOrders(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listWorkOrdersResponse{WorkOrders: toWorkOrderDTOs(orders)})
}

// Assign handles POST /work-orders/{id}/assign.
func (h *WorkOrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workOrderID, ok := WorkOrderIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workOrderID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkOrderID)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	order, err := h.service.Assign(r.Context(), application.AssignWorkOrderParams{
		Principal:   principal,
		WorkOrderID: workOrderID,
		AssigneeID:  strings.TrimSpace(req.AssigneeID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, workOrderResponse{WorkOrder: toWorkOrderDTO(order)})
}

// SubmitForReview handles POST /work-orders/{id}/review.
func (h *WorkOrderHandler) SubmitForReview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workOrderID, ok := WorkOrderIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workOrderID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkOrderID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	order, err := h.service.SubmitForReview(r.Context(), principal, workOrderID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, workOrderResponse{WorkOrder: toWorkOrderDTO(order)})
}

// Close handles POST /work-orders/{id}/close.
func (h *WorkOrderHandler) Close(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workOrderID, ok := WorkOrderIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workOrderID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkOrderID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	order, err := h.service.Close(r.Context(), principal, workOrderID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Close").InfoContext(r.Context(), "work order closed", "work_order_id", workOrderID)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, workOrderResponse{WorkOrder: toWorkOrderDTO(order)})
}

// AddTask handles POST /work-orders/{id}/tasks.
func (h *WorkOrderHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workOrderID, ok := WorkOrderIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workOrderID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkOrderID)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	task, err := h.service.AddTask(r.Context(), application.AddTaskParams{
		Principal:   principal,
		WorkOrderID: workOrderID,
		Input: application.TaskInput{
			Title:         strings.TrimSpace(req.Title),
			Description:   req.Description,
			BudgetedHours: req.BudgetedHours,
			SortOrder:     req.SortOrder,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, taskResponse{Task: toTaskDTO(task)})
}

// UpdateTaskHours handles PUT /work-orders/{id}/tasks/{taskID}.
func (h *WorkOrderHandler) UpdateTaskHours(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workOrderID, ok := WorkOrderIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workOrderID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkOrderID)
		return
	}
	taskID, ok := TaskIDFromContext(r.Context())
	if !ok || strings.TrimSpace(taskID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTaskID)
		return
	}

	var req taskHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	task, err := h.service.UpdateTaskHours(r.Context(), application.UpdateTaskHoursParams{
		Principal:     principal,
		WorkOrderID:   workOrderID,
		TaskID:        taskID,
		BudgetedHours: req.BudgetedHours,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, taskResponse{Task: toTaskDTO(task)})
}

type workOrderRequest struct {
	Title string `json:"title"`
}

type assignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

type taskRequest struct {
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	BudgetedHours float64 `json:"budgeted_hours"`
	SortOrder     int     `json:"sort_order"`
}

type taskHoursRequest struct {
	BudgetedHours float64 `json:"budgeted_hours"`
}

type workOrderResponse struct {
	WorkOrder workOrderDTO `json:"work_order"`
}

type listWorkOrdersResponse struct {
	WorkOrders []workOrderDTO `json:"work_orders"`
}

type taskResponse struct {
	Task taskDTO `json:"task"`
}

type workOrderDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	AssignedTo  *string   `json:"assigned_to,omitempty"`
	ActualHours float64   `json:"actual_hours"`
	Efficiency  *float64  `json:"efficiency,omitempty"`
	CompletedAt *string   `json:"completed_at,omitempty"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
	Tasks       []taskDTO `json:"tasks,omitempty"`
}

func toWorkOrderDTO(order application.WorkOrder) workOrderDTO {
	dto := workOrderDTO{
		ID:          order.ID,
		Title:       order.Title,
		Status:      string(order.Status),
		AssignedTo:  order.AssignedTo,
		ActualHours: order.ActualHours,
		Efficiency:  order.Efficiency,
		CreatedAt:   order.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   order.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if order.CompletedAt != nil {
		completed := order.CompletedAt.UTC().Format(time.RFC3339Nano)
		dto.CompletedAt = &completed
	}
	for _, task := range order.Tasks {
		dto.Tasks = append(dto.Tasks, toTaskDTO(task))
	}
	return dto
}

func toWorkOrderDTOs(orders []application.WorkOrder) []workOrderDTO {
	if len(orders) == 0 {
		return nil
	}
	out := make([]workOrderDTO, 0, len(orders))
	for _, order := range orders {
		out = append(out, toWorkOrderDTO(order))
	}
	return out
}

type taskDTO struct {
	ID            string  `json:"id"`
	WorkOrderID   string  `json:"work_order_id"`
	Title         string  `json:"title"`
	Description   *string `json:"description,omitempty"`
	BudgetedHours float64 `json:"budgeted_hours"`
	SortOrder     int     `json:"sort_order"`
}

func toTaskDTO(task application.WorkOrderTask) taskDTO {
	return taskDTO{
		ID:            task.ID,
		WorkOrderID:   task.WorkOrderID,
		Title:         task.Title,
		Description:   task.Description,
		BudgetedHours: task.BudgetedHours,
		SortOrder:     task.SortOrder,
	}
}
