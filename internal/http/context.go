package http

import (
	"context"

	"github.com/example/fieldservice/internal/application"
)

type contextKey string

const (
	principalContextKey   contextKey = "principal"
	punchIDContextKey     contextKey = "punch_id"
	workOrderIDContextKey contextKey = "work_order_id"
	taskIDContextKey      contextKey = "task_id"
	userIDContextKey      contextKey = "user_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithPunchID injects the punch identifier resolved from the request path.
func ContextWithPunchID(ctx context.Context, punchID string) context.Context {
	return context.WithValue(ctx, punchIDContextKey, punchID)
}

// PunchIDFromContext extracts a punch identifier previously associated with the context.
func PunchIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(punchIDContextKey).(string)
	return id, ok
}

// ContextWithWorkOrderID injects the work order identifier resolved from the request path.
func ContextWithWorkOrderID(ctx context.Context, workOrderID string) context.Context {
	return context.WithValue(ctx, workOrderIDContextKey, workOrderID)
}

// WorkOrderIDFromContext extracts a work order identifier previously associated with the context.
func WorkOrderIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(workOrderIDContextKey).(string)
	return id, ok
}

// ContextWithTaskID injects the task identifier resolved from the request path.
func ContextWithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDContextKey, taskID)
}

// TaskIDFromContext extracts a task identifier previously associated with the context.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(taskIDContextKey).(string)
	return id, ok
}

// ContextWithUserID injects the user identifier resolved from the request path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier previously associated with the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}
