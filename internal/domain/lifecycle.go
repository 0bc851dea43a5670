package domain

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a QueueEntry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReserved  Status = "reserved"
	StatusInService Status = "in_service"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusWithdrawn Status = "withdrawn"
)

// OpenStatuses lists the non-terminal states in display order.
var OpenStatuses = []Status{StatusPending, StatusReserved, StatusInService}

// Terminal reports whether no further transition is allowed from s
// (expired entries may still be reactivated).
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusExpired, StatusWithdrawn:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReserved, StatusInService, StatusCompleted, StatusExpired, StatusWithdrawn:
		return true
	}
	return false
}

// Action is a requested lifecycle transition.
type Action string

const (
	ActionReserve       Action = "reserve"
	ActionCancelReserve Action = "cancel_reserve"
	ActionBeginService  Action = "begin_service"
	ActionComplete      Action = "complete"
	ActionExpire        Action = "expire"
	ActionWithdraw      Action = "withdraw"
	ActionReactivate    Action = "reactivate"
)

// ParseAction maps a wire name to an Action. Both snake_case and camelCase
// spellings are accepted.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "reserve":
		return ActionReserve, true
	case "cancel_reserve", "cancelReserve":
		return ActionCancelReserve, true
	case "begin_service", "beginService":
		return ActionBeginService, true
	case "complete":
		return ActionComplete, true
	case "expire":
		return ActionExpire, true
	case "withdraw":
		return ActionWithdraw, true
	case "reactivate":
		return ActionReactivate, true
	}
	return "", false
}

// ErrInvalidTransition is returned when an action is not permitted from the
// entry's current status.
var ErrInvalidTransition = errors.New("invalid transition")

// transitions is the allowed (from, action) -> to table.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionReserve:      StatusReserved,
		ActionBeginService: StatusInService,
		ActionExpire:       StatusExpired,
		ActionWithdraw:     StatusWithdrawn,
	},
	StatusReserved: {
		ActionCancelReserve: StatusPending,
		ActionBeginService:  StatusInService,
		ActionExpire:        StatusExpired,
		ActionWithdraw:      StatusWithdrawn,
	},
	StatusInService: {
		ActionComplete: StatusCompleted,
		ActionWithdraw: StatusWithdrawn,
	},
	StatusExpired: {
		ActionReactivate: StatusReserved,
	},
}

// Next returns the status reached by applying a to from.
func Next(from Status, a Action) (Status, error) {
	to, ok := transitions[from][a]
	if !ok {
		return from, ErrInvalidTransition
	}
	return to, nil
}

// Apply mutates e according to a at instant now. It returns changed=false
// without error for a repeated begin_service on an entry already in service.
// Terminal results clear EstimatedServiceAt; all other ETA writes belong to
// the propagation pass.
func Apply(e *QueueEntry, a Action, now time.Time) (changed bool, err error) {
	if a == ActionBeginService && e.Status == StatusInService {
		return false, nil
	}
	to, err := Next(e.Status, a)
	if err != nil {
		return false, err
	}

	ts := now
	switch a {
	case ActionReserve, ActionReactivate:
		e.ReservedAt = &ts
	case ActionBeginService:
		if e.ServiceStartedAt == nil {
			e.ServiceStartedAt = &ts
		}
	case ActionComplete:
		e.CompletedAt = &ts
		var d int64
		if e.ServiceStartedAt != nil {
			d = now.Sub(*e.ServiceStartedAt).Milliseconds()
		}
		if d < 0 {
			d = 0
		}
		e.ServiceDurationMs = &d
	case ActionExpire:
		e.ExpiredAt = &ts
	case ActionWithdraw:
		e.WithdrawnAt = &ts
	}

	e.Status = to
	if to.Terminal() {
		e.EstimatedServiceAt = nil
	}
	e.UpdatedAt = now
	return true, nil
}
