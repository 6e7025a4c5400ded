package lifecycle

import (
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/google/uuid"
)

// Actor is the authenticated caller of a lifecycle operation
type Actor struct {
	UserID uuid.UUID
	// System marks administrative and test tooling callers
	System bool
}

// SystemActor acts on behalf of the platform itself
func SystemActor() Actor {
	return Actor{System: true}
}

// Owns reports whether the actor may act on behalf of the rider
func (a Actor) Owns(rd *rider.Rider) bool {
	if a.System {
		return true
	}
	return rd != nil && rd.CreatorID == a.UserID
}

// adminOf returns the actor's admin-eligible member in the ride, or nil
func (a Actor) adminOf(agg *Aggregate) *Member {
	for _, m := range agg.Active() {
		if m.Membership.Status.IsAdminEligible() && a.Owns(m.Rider) {
			return m
		}
	}
	return nil
}
