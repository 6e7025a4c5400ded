package lifecycle

import (
	"context"
	"sort"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

// Member is one membership together with its rider and pending negotiation
type Member struct {
	Membership *membership.Membership     `json:"membership"`
	Rider      *rider.Rider               `json:"rider"`
	Request    *negotiation.ChangeRequest `json:"request,omitempty"`
	Counter    *negotiation.ChangeRequest `json:"counter,omitempty"`
}

// Aggregate is a ride with everything hanging off it. Entities refer to each
// other by ID only.
type Aggregate struct {
	Ride    *ride.Ride  `json:"ride"`
	Members []*Member   `json:"members"`
	Stops   []ride.Stop `json:"stops"`
}

// LoadAggregate assembles the ride aggregate from the transaction
func LoadAggregate(ctx context.Context, tx Tx, rideID uuid.UUID) (*Aggregate, error) {
	r, err := tx.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	stops, err := tx.ListStops(ctx, rideID)
	if err != nil {
		return nil, err
	}
	ms, err := tx.ListMemberships(ctx, rideID)
	if err != nil {
		return nil, err
	}
	agg := &Aggregate{Ride: r, Stops: stops}
	for _, m := range ms {
		member, err := loadMember(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		agg.Members = append(agg.Members, member)
	}
	sort.SliceStable(agg.Members, func(i, j int) bool {
		return agg.Members[i].Membership.CreatedAt.Before(agg.Members[j].Membership.CreatedAt)
	})
	return agg, nil
}

func loadMember(ctx context.Context, tx Tx, m *membership.Membership) (*Member, error) {
	rd, err := tx.GetRider(ctx, m.RiderID)
	if err != nil {
		return nil, err
	}
	member := &Member{Membership: m, Rider: rd}
	if m.RequestID != nil {
		if member.Request, err = tx.GetRequest(ctx, *m.RequestID); err != nil {
			return nil, err
		}
	}
	if m.CounterID != nil {
		if member.Counter, err = tx.GetRequest(ctx, *m.CounterID); err != nil {
			return nil, err
		}
	}
	return member, nil
}

// Member returns the member holding the membership, or nil
func (a *Aggregate) Member(membershipID uuid.UUID) *Member {
	for _, m := range a.Members {
		if m.Membership.ID == membershipID {
			return m
		}
	}
	return nil
}

// MemberOf returns the member for the rider, or nil
func (a *Aggregate) MemberOf(riderID uuid.UUID) *Member {
	for _, m := range a.Members {
		if m.Membership.RiderID == riderID {
			return m
		}
	}
	return nil
}

// Active returns members travelling in the ride, oldest first
func (a *Aggregate) Active() []*Member {
	var out []*Member
	for _, m := range a.Members {
		if m.Membership.Status.IsActive() {
			out = append(out, m)
		}
	}
	return out
}

// Key returns the member whose status is a key status, or nil
func (a *Aggregate) Key() *Member {
	for _, m := range a.Members {
		if m.Membership.Status.IsKey() {
			return m
		}
	}
	return nil
}

// Needs lists the resource needs of the active members
func (a *Aggregate) Needs() []rider.Resources {
	var out []rider.Resources
	for _, m := range a.Active() {
		out = append(out, m.Rider.Needs)
	}
	return out
}

// ActiveRiders lists the riders of the active members, skipping one membership
func (a *Aggregate) ActiveRiders(except uuid.UUID) []*rider.Rider {
	var out []*rider.Rider
	for _, m := range a.Active() {
		if m.Membership.ID == except {
			continue
		}
		out = append(out, m.Rider)
	}
	return out
}

func (a *Aggregate) remove(membershipID uuid.UUID) {
	kept := a.Members[:0]
	for _, m := range a.Members {
		if m.Membership.ID != membershipID {
			kept = append(kept, m)
		}
	}
	a.Members = kept
}

// Recount recomputes availability and status from the active members
func (a *Aggregate) Recount(closeRide bool) error {
	needs := a.Needs()
	if err := a.Ride.UpdateUsage(needs, closeRide); err != nil {
		dim := a.Ride.Total.Sub(ride.Usage(needs)).Negative()
		return apperrors.ErrCapacityExceeded.WithDetail("resource", dim)
	}
	return nil
}

func (a *Aggregate) persist(ctx context.Context, tx Tx) error {
	if err := tx.UpdateRide(ctx, a.Ride); err != nil {
		return err
	}
	return tx.ReplaceStops(ctx, a.Ride.ID, a.Stops)
}
