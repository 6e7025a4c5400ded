package lifecycle

import (
	"context"
	"sort"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

// CreateRider stores a new rider and gives it a ride of its own
func (m *Manager) CreateRider(ctx context.Context, actor Actor, rd *rider.Rider) (*Outcome, error) {
	return m.run(ctx, "create_rider", func(s *session) (*Outcome, error) {
		if rd.ID == uuid.Nil {
			rd.ID = uuid.New()
		}
		if !actor.System {
			rd.CreatorID = actor.UserID
		}
		rd.CreatedAt, rd.UpdatedAt = s.now, s.now
		if err := s.resolvePlaces(rd); err != nil {
			return nil, err
		}
		if err := rd.IsValid(); err != nil {
			return nil, apperrors.Validation("Invalid rider", err)
		}
		if err := s.tx.SaveRider(s.ctx, rd); err != nil {
			return nil, err
		}
		agg, err := s.saveInitial(rd, false)
		if err != nil {
			return nil, err
		}
		return outcome(agg.Ride.ID, agg.Members[0].Membership), nil
	})
}

// UpdateRider stores new specs for a rider and propagates them to every
// ride the rider belongs to
func (m *Manager) UpdateRider(ctx context.Context, actor Actor, rd *rider.Rider) (*Outcome, error) {
	return m.run(ctx, "update_rider", func(s *session) (*Outcome, error) {
		current, err := s.tx.GetRider(s.ctx, rd.ID)
		if err != nil {
			return nil, err
		}
		if !actor.Owns(current) {
			return nil, apperrors.ErrForbidden
		}
		rd.CreatorID = current.CreatorID
		rd.CreatedAt = current.CreatedAt
		rd.UpdatedAt = s.now
		if err := s.resolvePlaces(rd); err != nil {
			return nil, err
		}
		if err := rd.IsValid(); err != nil {
			return nil, apperrors.Validation("Invalid rider", err)
		}
		if err := s.tx.SaveRider(s.ctx, rd); err != nil {
			return nil, err
		}
		if err := s.propagate([]*rider.Rider{rd}); err != nil {
			return nil, err
		}
		return &Outcome{}, nil
	})
}

// DeleteRiders removes riders together with their memberships, handing
// over or dissolving the rides they held
func (m *Manager) DeleteRiders(ctx context.Context, actor Actor, riderIDs []uuid.UUID) (*Outcome, error) {
	return m.run(ctx, "delete_riders", func(s *session) (*Outcome, error) {
		for _, id := range riderIDs {
			rd, err := s.tx.GetRider(s.ctx, id)
			if err != nil {
				return nil, err
			}
			if !actor.Owns(rd) {
				return nil, apperrors.ErrForbidden
			}
		}
		if err := s.cascade(riderIDs); err != nil {
			return nil, err
		}
		for _, id := range riderIDs {
			if err := s.tx.DeleteRider(s.ctx, id); err != nil {
				return nil, err
			}
		}
		return &Outcome{}, nil
	})
}

// ResetRide realigns a ride to its key member's current specs
func (m *Manager) ResetRide(ctx context.Context, actor Actor, rideID uuid.UUID) (*Outcome, error) {
	return m.run(ctx, "reset_ride", func(s *session) (*Outcome, error) {
		agg, err := LoadAggregate(s.ctx, s.tx, rideID)
		if err != nil {
			return nil, err
		}
		if actor.adminOf(agg) == nil {
			return nil, apperrors.ErrForbidden
		}
		key := agg.Key()
		if key == nil {
			return nil, apperrors.ErrInvalidState.WithDetail("reason", "ride has no key member")
		}
		if err := s.realign(agg, key); err != nil {
			return nil, err
		}
		return outcome(rideID, key.Membership), nil
	})
}

// resolvePlaces derives the metro area from the airport and checks the
// terminal and neighborhood belong to them
func (s *session) resolvePlaces(rd *rider.Rider) error {
	places := s.m.places
	if places == nil {
		return nil
	}
	metro, err := places.MetroAreaOfAirport(s.ctx, rd.AirportID)
	if err != nil {
		return err
	}
	rd.MetroAreaID = metro
	if rd.TerminalID != uuid.Nil {
		airport, err := places.AirportOfTerminal(s.ctx, rd.TerminalID)
		if err != nil {
			return err
		}
		if airport != rd.AirportID {
			return apperrors.ErrValidation.WithDetail("field", "terminal_id")
		}
	}
	if rd.Location.NeighborhoodID != uuid.Nil {
		area, err := places.MetroAreaOfNeighborhood(s.ctx, rd.Location.NeighborhoodID)
		if err != nil {
			return err
		}
		if area != metro {
			return apperrors.ErrValidation.WithDetail("field", "location.neighborhood_id")
		}
	}
	return nil
}

// propagate brings every ride the riders belong to in line with their
// current specs. Rides they hold are realigned and shed members that no
// longer fit; rides they merely travel in keep them only while they still
// fit, and otherwise they fall back to their suspended ride.
func (s *session) propagate(riders []*rider.Rider) error {
	for _, rd := range riders {
		ms, err := s.tx.MembershipsOfRider(s.ctx, rd.ID)
		if err != nil {
			return err
		}
		for _, m := range ms {
			if !m.Status.IsActive() {
				continue
			}
			agg, member, err := s.loadFor(m.ID)
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			member.Rider = rd
			if m.Status.IsKey() {
				err = s.realign(agg, member)
			} else {
				err = s.refit(agg, member)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// realign resets the ride to its key member, then drops members that no
// longer fit, latest to join first when capacity runs short
func (s *session) realign(agg *Aggregate, key *Member) error {
	if err := s.resetRide(agg, key); err != nil {
		return err
	}
	var dropped []*Member
	for _, m := range agg.Active() {
		if m == key || MayKeep(agg.Ride, m.Rider).OK() {
			continue
		}
		if err := s.detach(agg, m, membership.StatusLeft); err != nil {
			return err
		}
		dropped = append(dropped, m)
	}
	for agg.Recount(false) != nil {
		m := latestJoined(agg, key)
		if m == nil {
			return agg.Recount(false)
		}
		if err := s.detach(agg, m, membership.StatusLeft); err != nil {
			return err
		}
		dropped = append(dropped, m)
	}
	if err := s.resetRideStops(agg); err != nil {
		return err
	}
	if err := agg.persist(s.ctx, s.tx); err != nil {
		return err
	}
	for _, m := range dropped {
		if _, err := s.reactivateSuspendedRide(m.Rider.ID, true); err != nil {
			return err
		}
	}
	return nil
}

// refit re-checks a non-key member after its own specs changed
func (s *session) refit(agg *Aggregate, member *Member) error {
	if !MayKeep(agg.Ride, member.Rider).OK() {
		return s.dropOut(agg, member, membership.StatusLeft, true, true)
	}
	agg.dropMemberStops(member.Membership.ID)
	if err := agg.addMemberStops(member); err != nil {
		return err
	}
	if err := agg.Recount(false); err != nil {
		if !apperrors.Is(err, apperrors.ErrCapacityExceeded) {
			return err
		}
		return s.dropOut(agg, member, membership.StatusLeft, true, true)
	}
	return agg.persist(s.ctx, s.tx)
}

func latestJoined(agg *Aggregate, key *Member) *Member {
	var candidates []*Member
	for _, m := range agg.Active() {
		if m != key {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Membership, candidates[j].Membership
		if a.JoinedAt != nil && b.JoinedAt != nil && !a.JoinedAt.Equal(*b.JoinedAt) {
			return a.JoinedAt.After(*b.JoinedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return candidates[0]
}

// cascade removes the riders' memberships ahead of their deletion. Rides
// they hold are handed over or dissolved; the riders never inherit anything.
func (s *session) cascade(riderIDs []uuid.UUID) error {
	for _, id := range riderIDs {
		s.doomed[id] = true
	}
	for _, id := range riderIDs {
		ms, err := s.tx.MembershipsOfRider(s.ctx, id)
		if err != nil {
			return err
		}
		for _, m := range ms {
			agg, member, err := s.loadFor(m.ID)
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			status := member.Membership.Status
			switch {
			case status.IsKey() && agg.Ride.IsSuspended():
				err = s.deleteRide(agg)
			case status.IsKey():
				err = s.dropOwner(agg, member, false)
			case status.IsActive():
				if err = s.removeMember(agg, member); err == nil {
					if err = agg.Recount(false); err == nil {
						err = agg.persist(s.ctx, s.tx)
					}
				}
			default:
				err = s.tx.DeleteMembership(s.ctx, m.ID)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
