package application

import (
	"errors"
	"testing"
)

func TestCanMutatePunch_Matrix(t *testing.T) {
	t.Parallel()

	owner := "tech-1"
	assignee := "tech-2"
	stranger := "tech-3"

	punch := TimePunch{ID: "punch-1", UserID: owner}

	openOrder := &WorkOrder{ID: "wo-1", Status: WorkOrderStatusInProgress, AssignedTo: &assignee}
	closedOrder := &WorkOrder{ID: "wo-2", Status: WorkOrderStatusCompleted, AssignedTo: &assignee}
	reviewOrder := &WorkOrder{ID: "wo-3", Status: WorkOrderStatusClosedForReview, AssignedTo: &assignee}

	cases := []struct {
		name    string
		actor   Principal
		order   *WorkOrder
		allowed bool
		reason  DenyReason
	}{
		{name: "admin always allowed", actor: Principal{UserID: stranger, Role: RoleAdmin}, order: closedOrder, allowed: true},
		{name: "advisor always allowed", actor: Principal{UserID: stranger, Role: RoleTechnicalAdvisor}, order: reviewOrder, allowed: true},
		{name: "owner on open order", actor: Principal{UserID: owner, Role: RoleTechnician}, order: openOrder, allowed: true},
		{name: "assignee on open order", actor: Principal{UserID: assignee, Role: RoleTechnician}, order: openOrder, allowed: true},
		{name: "stranger on open order", actor: Principal{UserID: stranger, Role: RoleTechnician}, order: openOrder, reason: DenyForbidden},
		{name: "owner on completed order", actor: Principal{UserID: owner, Role: RoleTechnician}, order: closedOrder, reason: DenyWorkOrderClosed},
		{name: "assignee on review order", actor: Principal{UserID: assignee, Role: RoleTechnician}, order: reviewOrder, reason: DenyWorkOrderClosed},
		{name: "owner of standalone punch", actor: Principal{UserID: owner, Role: RoleTechnician}, order: nil, allowed: true},
		{name: "stranger on standalone punch", actor: Principal{UserID: stranger, Role: RoleTechnician}, order: nil, reason: DenyForbidden},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			decision := CanMutatePunch(tc.actor, punch, tc.order)
			if decision.Allowed != tc.allowed {
				t.Fatalf("expected allowed=%v, got %+v", tc.allowed, decision)
			}
			if !tc.allowed && decision.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, decision.Reason)
			}
		})
	}
}

func TestDecision_Err(t *testing.T) {
	t.Parallel()

	if err := allow().Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := deny(DenyWorkOrderClosed).Err(); !errors.Is(err, ErrWorkOrderClosed) {
		t.Fatalf("expected ErrWorkOrderClosed, got %v", err)
	}
	if err := deny(DenyForbidden).Err(); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
