package membership

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the status of one rider inside one ride
type Status string

const (
	StatusNone     Status = ""
	StatusDriver   Status = "driver"
	StatusProvider Status = "provider"
	StatusOwner    Status = "owner"
	StatusAdmin    Status = "admin"
	StatusJoined   Status = "joined"
	StatusApplied  Status = "applied"
	StatusDenied   Status = "denied"
	StatusSaved    Status = "saved"
	StatusLeft     Status = "left"
)

var ErrIllegalTransition = errors.New("illegal membership status transition")

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusDriver, StatusProvider, StatusOwner, StatusAdmin,
		StatusJoined, StatusApplied, StatusDenied, StatusSaved, StatusLeft:
		return true
	}
	return false
}

// IsKey reports whether departure of the holder requires ownership transfer
func (s Status) IsKey() bool {
	switch s {
	case StatusDriver, StatusProvider, StatusOwner:
		return true
	}
	return false
}

// IsActive reports whether the holder is travelling in the ride
func (s Status) IsActive() bool {
	return s.IsKey() || s == StatusAdmin || s == StatusJoined
}

// IsAdminEligible reports whether the holder may review applications
func (s Status) IsAdminEligible() bool {
	return s.IsKey() || s == StatusAdmin
}

// IsTerminal reports whether the status no longer counts toward the ride
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDenied, StatusLeft:
		return true
	}
	return false
}

// Event names a membership transition trigger
type Event string

const (
	EventCreate  Event = "create"
	EventApply   Event = "apply"
	EventAdmit   Event = "admit"
	EventDeny    Event = "deny"
	EventLeave   Event = "leave"
	EventSave    Event = "save"
	EventUnsave  Event = "unsave"
	EventCancel  Event = "cancel"
	EventPromote Event = "promote"
	EventDropKey Event = "drop_key"
)

// CanTransition reports whether event may move a membership from `from` to `to`.
func CanTransition(from Status, event Event, to Status) bool {
	switch event {
	case EventCreate:
		return from == StatusNone && to.IsKey()
	case EventApply:
		return (from == StatusNone || from == StatusSaved || from == StatusLeft) && to == StatusApplied
	case EventAdmit:
		return from == StatusApplied && (to == StatusJoined || to == StatusAdmin)
	case EventDeny:
		return (from == StatusApplied || from == StatusDenied) && to == StatusDenied
	case EventLeave:
		return (from == StatusJoined || from == StatusAdmin) && (to == StatusLeft || to == StatusDenied)
	case EventSave:
		return from == StatusNone && to == StatusSaved
	case EventUnsave:
		return from == StatusSaved && to == StatusNone
	case EventCancel:
		return from == StatusApplied && to == StatusNone
	case EventPromote:
		return (from == StatusJoined || from == StatusAdmin) && to.IsKey()
	case EventDropKey:
		return from.IsKey() && (to == StatusNone || to == StatusLeft)
	}
	return false
}

// Membership links one rider to one ride
type Membership struct {
	ID             uuid.UUID  `json:"id"`
	RideID         uuid.UUID  `json:"ride_id"`
	RiderID        uuid.UUID  `json:"rider_id"`
	Status         Status     `json:"status"`
	JoinedAt       *time.Time `json:"joined_at,omitempty"`
	RequestID      *uuid.UUID `json:"request_id,omitempty"`
	CounterID      *uuid.UUID `json:"counter_id,omitempty"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// New creates a membership in the given starting status
func New(rideID, riderID uuid.UUID, status Status, now time.Time) *Membership {
	m := &Membership{
		ID:        uuid.New(),
		RideID:    rideID,
		RiderID:   riderID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status.IsActive() {
		joined := now
		m.JoinedAt = &joined
	}
	return m
}

// Transition moves the membership to `to` if the table allows it.
func (m *Membership) Transition(event Event, to Status, now time.Time) error {
	if !CanTransition(m.Status, event, to) {
		return ErrIllegalTransition
	}
	if to.IsActive() && !m.Status.IsActive() {
		joined := now
		m.JoinedAt = &joined
	}
	m.Status = to
	m.UpdatedAt = now
	return nil
}

// HasNegotiation reports whether a request or counter is attached
func (m *Membership) HasNegotiation() bool {
	return m.RequestID != nil || m.CounterID != nil
}

// ClearNegotiation detaches request and counter references
func (m *Membership) ClearNegotiation() {
	m.RequestID = nil
	m.CounterID = nil
}
