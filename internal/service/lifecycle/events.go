package lifecycle

import (
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/google/uuid"
)

// EventType names what happened to a ride or membership
type EventType string

const (
	EventRideCreated      EventType = "ride.created"
	EventRideDeleted      EventType = "ride.deleted"
	EventRideSuspended    EventType = "ride.suspended"
	EventRideReactivated  EventType = "ride.reactivated"
	EventRideReset        EventType = "ride.reset"
	EventMemberApplied    EventType = "membership.applied"
	EventMemberUpdated    EventType = "membership.updated"
	EventMemberCancelled  EventType = "membership.cancelled"
	EventMemberAdmitted   EventType = "membership.admitted"
	EventMemberDenied     EventType = "membership.denied"
	EventMemberLeft       EventType = "membership.left"
	EventMemberExpelled   EventType = "membership.expelled"
	EventMemberPromoted   EventType = "membership.promoted"
	EventMemberRemoved    EventType = "membership.removed"
	EventMemberSaved      EventType = "membership.saved"
	EventMemberUnsaved    EventType = "membership.unsaved"
	EventCounterProposed  EventType = "negotiation.countered"
	EventCounterAgreed    EventType = "negotiation.agreed"
	EventRequestDiscarded EventType = "negotiation.discarded"
)

// Event is a committed state change. Notices and real-time updates are
// derived from events after the transaction commits.
type Event struct {
	Type         EventType         `json:"type"`
	RideID       uuid.UUID         `json:"ride_id"`
	MembershipID *uuid.UUID        `json:"membership_id,omitempty"`
	RiderID      *uuid.UUID        `json:"rider_id,omitempty"`
	Status       membership.Status `json:"status,omitempty"`
	At           time.Time         `json:"at"`
}

func (s *session) emit(t EventType, rideID uuid.UUID, m *membership.Membership) {
	ev := Event{Type: t, RideID: rideID, At: s.now}
	if m != nil {
		mid, rid := m.ID, m.RiderID
		ev.MembershipID = &mid
		ev.RiderID = &rid
		ev.Status = m.Status
	}
	s.events = append(s.events, ev)
}
