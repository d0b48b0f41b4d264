package application

// DenyReason explains why a punch mutation was refused.
type DenyReason string

const (
	// DenyForbidden means the actor is neither privileged, the punch owner,
	// nor the work order's assignee.
	DenyForbidden DenyReason = "forbidden"
	// DenyWorkOrderClosed means the punch belongs to a completed or
	// closed-for-review work order, which only privileged roles may touch.
	DenyWorkOrderClosed DenyReason = "work_order_closed"
)

// Decision is the outcome of the punch mutation policy.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Err maps a denial to its sentinel error, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == DenyWorkOrderClosed {
		return ErrWorkOrderClosed
	}
	return ErrForbidden
}

// CanMutatePunch decides whether the actor may edit or delete the punch.
// It is a pure function of (actor, punch, work order-or-nil) and must be
// evaluated fresh on every request: role, assignment, and status can all
// change between requests.
//
// Rules, in order:
//  1. Admins and technical advisors are always permitted.
//  2. A punch linked to a closed work order is immutable to everyone else,
//     including its owner.
//  3. On an open work order, the punch owner and the work order's assignee
//     are permitted.
//  4. A standalone punch is mutable only by its owner.
func CanMutatePunch(actor Principal, punch TimePunch, order *WorkOrder) Decision {
	if actor.Privileged() {
		return allow()
	}

	if order != nil {
		if order.Status.Closed() {
			return deny(DenyWorkOrderClosed)
		}
		if punch.UserID == actor.UserID {
			return allow()
		}
		if order.AssignedTo != nil && *order.AssignedTo == actor.UserID {
			return allow()
		}
		return deny(DenyForbidden)
	}

	if punch.UserID == actor.UserID {
		return allow()
	}
	return deny(DenyForbidden)
}
