package lifecycle

import (
	"sort"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

// memberStops are the terminal and city stops a rider brings to a ride
func memberStops(rd *rider.Rider, membershipID uuid.UUID) []ride.StopAddition {
	id := membershipID
	var add []ride.StopAddition
	if rd.TerminalID != uuid.Nil {
		add = append(add, ride.StopAddition{Kind: ride.StopTerminal, Ordinal: -1, PlaceID: rd.TerminalID, MembershipID: &id})
	}
	if rd.Location.NeighborhoodID != uuid.Nil {
		add = append(add, ride.StopAddition{Kind: ride.StopCity, Ordinal: -1, PlaceID: rd.Location.NeighborhoodID, MembershipID: &id})
	}
	return add
}

func (a *Aggregate) addMemberStops(m *Member) error {
	stops, err := ride.UpdateStops(a.Ride.ID, a.Stops, memberStops(m.Rider, m.Membership.ID), nil)
	if err != nil {
		return apperrors.Validation("Invalid stop", err)
	}
	a.Stops = stops
	return nil
}

// dropMemberStops removes the stops tagged with the membership. Places other
// active members still need come back tagged with them.
func (a *Aggregate) dropMemberStops(membershipID uuid.UUID) {
	a.Stops = ride.RemoveMemberStops(a.Ride.ID, a.Stops, membershipID)
	for _, m := range a.Active() {
		if m.Membership.ID == membershipID {
			continue
		}
		// additions of known kinds never fail
		if stops, err := ride.UpdateStops(a.Ride.ID, a.Stops, memberStops(m.Rider, m.Membership.ID), nil); err == nil {
			a.Stops = stops
		}
	}
}

// activeElsewhere returns the rider's active membership in a non-suspended
// ride other than exclude, or nil.
func (s *session) activeElsewhere(riderID, exclude uuid.UUID) (*membership.Membership, error) {
	ms, err := s.tx.MembershipsOfRider(s.ctx, riderID)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		if m.RideID == exclude || !m.Status.IsActive() {
			continue
		}
		r, err := s.tx.GetRide(s.ctx, m.RideID)
		if err != nil {
			return nil, err
		}
		if !r.IsSuspended() {
			return m, nil
		}
	}
	return nil, nil
}

// saveInitial persists a new ride shaped after the rider with the rider as
// its key member. A suspended ride starts closed and is parked for the rider.
func (s *session) saveInitial(rd *rider.Rider, suspend bool) (*Aggregate, error) {
	if !suspend {
		other, err := s.activeElsewhere(rd.ID, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, apperrors.ErrConstraint.WithDetail("rider_id", rd.ID.String()).
				WithDetail("reason", "rider already travels in an active ride")
		}
	}

	r := ride.NewFromRider(rd, s.now)
	if suspend {
		r.Suspend(rd.ID)
	}
	if err := s.tx.InsertRide(s.ctx, r); err != nil {
		return nil, err
	}
	m := membership.New(r.ID, rd.ID, membership.StatusNone, s.now)
	if err := m.Transition(membership.EventCreate, r.Kind.KeyStatus(), s.now); err != nil {
		return nil, err
	}
	if err := s.tx.InsertMembership(s.ctx, m); err != nil {
		return nil, err
	}

	agg := &Aggregate{Ride: r, Members: []*Member{{Membership: m, Rider: rd}}}
	if err := agg.addMemberStops(agg.Members[0]); err != nil {
		return nil, err
	}
	if err := agg.Recount(false); err != nil {
		return nil, err
	}
	if err := agg.persist(s.ctx, s.tx); err != nil {
		return nil, err
	}

	s.emit(EventRideCreated, r.ID, m)
	if suspend {
		s.emit(EventRideSuspended, r.ID, m)
	}
	return agg, nil
}

// successor picks who inherits a ride: admins before plain members, then
// the earliest to join.
func successor(candidates []*Member) *Member {
	if len(candidates) == 0 {
		return nil
	}
	sorted := append([]*Member(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Membership, sorted[j].Membership
		if (a.Status == membership.StatusAdmin) != (b.Status == membership.StatusAdmin) {
			return a.Status == membership.StatusAdmin
		}
		if a.JoinedAt != nil && b.JoinedAt != nil && !a.JoinedAt.Equal(*b.JoinedAt) {
			return a.JoinedAt.Before(*b.JoinedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return sorted[0]
}

func (s *session) promote(agg *Aggregate, m *Member) error {
	if err := m.Membership.Transition(membership.EventPromote, agg.Ride.Kind.KeyStatus(), s.now); err != nil {
		return apperrors.ErrInvalidState.WithDetail("status", string(m.Membership.Status))
	}
	if err := s.tx.UpdateMembership(s.ctx, m.Membership); err != nil {
		return err
	}
	s.emit(EventMemberPromoted, agg.Ride.ID, m.Membership)
	return nil
}

// removeMember deletes the membership row and its stops from the aggregate
func (s *session) removeMember(agg *Aggregate, m *Member) error {
	if err := s.tx.DeleteMembership(s.ctx, m.Membership.ID); err != nil {
		return err
	}
	agg.dropMemberStops(m.Membership.ID)
	agg.remove(m.Membership.ID)
	s.emit(EventMemberRemoved, agg.Ride.ID, m.Membership)
	return nil
}

func (s *session) deleteRide(agg *Aggregate) error {
	if err := s.tx.DeleteRide(s.ctx, agg.Ride.ID); err != nil {
		return err
	}
	s.emit(EventRideDeleted, agg.Ride.ID, nil)
	return nil
}

// heirs are the active members other than the departing one who are not
// themselves being deleted
func (s *session) heirs(agg *Aggregate, departing uuid.UUID) []*Member {
	var out []*Member
	for _, m := range agg.Active() {
		if m.Membership.ID == departing || s.doomed[m.Membership.RiderID] {
			continue
		}
		out = append(out, m)
	}
	return out
}

// dropOwner removes the key member from its ride. The remaining members keep
// the ride when there are enough of them and the kind allows sharing; a lone
// remaining member falls back to its suspended ride when it has one. With
// suspend the departing member ends up holding a suspended ride of its own;
// without it a ride it had already parked goes back into service.
func (s *session) dropOwner(agg *Aggregate, key *Member, suspend bool) error {
	if !key.Membership.Status.IsKey() {
		return apperrors.ErrInvalidState.WithDetail("status", string(key.Membership.Status))
	}
	heirs := s.heirs(agg, key.Membership.ID)
	departing := key.Rider
	parked, err := s.parkedRide(departing.ID)
	if err != nil {
		return err
	}

	// spin settles the departing member once it no longer travels in agg.
	// A rider holds at most one parked ride.
	spin := func() error {
		switch {
		case parked != nil && !suspend && !s.doomed[departing.ID]:
			_, err := s.reactivateSuspendedRide(departing.ID, true)
			return err
		case parked != nil || !suspend:
			return nil
		}
		_, err := s.saveInitial(departing, true)
		return err
	}

	switch {
	case len(heirs) == 0:
		if suspend && parked == nil {
			return s.suspendInPlace(agg, key)
		}
		if err := s.deleteRide(agg); err != nil {
			return err
		}
		return spin()

	case len(heirs) == 1:
		heir := heirs[0]
		fallback, err := s.parkedRide(heir.Rider.ID)
		if err != nil {
			return err
		}
		if fallback != nil {
			if err := s.deleteRide(agg); err != nil {
				return err
			}
			if _, err := s.reactivateSuspendedRide(heir.Rider.ID, true); err != nil {
				return err
			}
			return spin()
		}
		if agg.Ride.Kind.AllowsSharing() {
			return s.spinOff(agg, key, spin)
		}
		if err := s.rehome(agg, heirs); err != nil {
			return err
		}
		return spin()

	default:
		if agg.Ride.Kind.AllowsSharing() {
			return s.spinOff(agg, key, spin)
		}
		if err := s.rehome(agg, heirs); err != nil {
			return err
		}
		return spin()
	}
}

// parkedRide returns the rider's suspended ride, or nil
func (s *session) parkedRide(riderID uuid.UUID) (*ride.Ride, error) {
	r, err := s.tx.SuspendedRideOf(s.ctx, riderID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

// suspendInPlace parks a ride whose key member is its only traveller
func (s *session) suspendInPlace(agg *Aggregate, key *Member) error {
	for _, m := range append([]*Member(nil), agg.Members...) {
		if m.Membership.ID == key.Membership.ID {
			continue
		}
		if err := s.removeMember(agg, m); err != nil {
			return err
		}
	}
	agg.Ride.Suspend(key.Rider.ID)
	if err := s.resetRide(agg, key); err != nil {
		return err
	}
	if err := agg.Recount(false); err != nil {
		return err
	}
	if err := agg.persist(s.ctx, s.tx); err != nil {
		return err
	}
	s.emit(EventRideSuspended, agg.Ride.ID, key.Membership)
	return nil
}

// spinOff keeps the ride for the remaining members under a promoted owner
// and runs post inside the same transaction to give the departing key
// member its replacement ride.
func (s *session) spinOff(agg *Aggregate, departing *Member, post func() error) error {
	heir := successor(s.heirs(agg, departing.Membership.ID))
	if heir == nil {
		return apperrors.ErrInvalidState.WithDetail("reason", "no member can inherit the ride")
	}
	if err := s.removeMember(agg, departing); err != nil {
		return err
	}
	if err := s.promote(agg, heir); err != nil {
		return err
	}
	if err := agg.Recount(false); err != nil {
		return err
	}
	if err := agg.persist(s.ctx, s.tx); err != nil {
		return err
	}
	if post != nil {
		return post()
	}
	return nil
}

// rehome dissolves a ride nobody can inherit: every remaining member goes
// back to its suspended ride or gets a fresh one.
func (s *session) rehome(agg *Aggregate, heirs []*Member) error {
	if err := s.deleteRide(agg); err != nil {
		return err
	}
	for _, h := range heirs {
		r, err := s.reactivateSuspendedRide(h.Rider.ID, true)
		if err != nil {
			return err
		}
		if r != nil {
			continue
		}
		if _, err := s.saveInitial(h.Rider, false); err != nil {
			return err
		}
	}
	return nil
}

// reactivateSuspendedRide puts the rider's parked ride back into service.
// With reset the ride is realigned to the rider's current specs. It returns
// nil when the rider has no suspended ride.
func (s *session) reactivateSuspendedRide(riderID uuid.UUID, reset bool) (*Aggregate, error) {
	parked, err := s.parkedRide(riderID)
	if err != nil || parked == nil {
		return nil, err
	}
	other, err := s.activeElsewhere(riderID, parked.ID)
	if err != nil {
		return nil, err
	}
	if other != nil {
		return nil, apperrors.ErrConstraint.WithDetail("rider_id", riderID.String()).
			WithDetail("reason", "rider still travels in another ride")
	}

	agg, err := LoadAggregate(s.ctx, s.tx, parked.ID)
	if err != nil {
		return nil, err
	}
	agg.Ride.Reactivate()
	key := agg.Key()
	if reset && key != nil {
		if err := s.resetRide(agg, key); err != nil {
			return nil, err
		}
	}
	if err := agg.Recount(false); err != nil {
		return nil, err
	}
	if err := agg.persist(s.ctx, s.tx); err != nil {
		return nil, err
	}
	s.emit(EventRideReactivated, agg.Ride.ID, nil)
	return agg, nil
}

// resetRide realigns the ride's schedule, route, policies and stop ledger
// to its key member. Capacity is recounted by the caller.
func (s *session) resetRide(agg *Aggregate, key *Member) error {
	agg.Ride.ApplySpecs(key.Rider)
	if key.Rider.Offer != nil && !agg.Ride.Kind.AllowsSharing() {
		agg.Ride.Total = *key.Rider.Offer
	}
	agg.Ride.UpdatedAt = s.now
	if err := s.resetRideStops(agg); err != nil {
		return err
	}
	s.emit(EventRideReset, agg.Ride.ID, key.Membership)
	return nil
}

// resetRideStops drops stops of members that no longer travel in the ride
// or no longer use the place, and makes sure every active member's own stops
// are present.
func (s *session) resetRideStops(agg *Aggregate) error {
	wanted := map[uuid.UUID][]ride.StopAddition{}
	for _, m := range agg.Active() {
		wanted[m.Membership.ID] = memberStops(m.Rider, m.Membership.ID)
	}
	var remove []ride.StopRemoval
	kept := map[ride.StopKind]map[uuid.UUID]bool{}
	for _, st := range agg.Stops {
		if st.MembershipID != nil && !wants(wanted[*st.MembershipID], st) {
			remove = append(remove, ride.StopRemoval{Kind: st.Kind, Ordinal: st.Ordinal})
			continue
		}
		if kept[st.Kind] == nil {
			kept[st.Kind] = map[uuid.UUID]bool{}
		}
		kept[st.Kind][st.PlaceID] = true
	}
	var add []ride.StopAddition
	for _, m := range agg.Active() {
		for _, a := range wanted[m.Membership.ID] {
			if !kept[a.Kind][a.PlaceID] {
				add = append(add, a)
			}
		}
	}
	stops, err := ride.UpdateStops(agg.Ride.ID, agg.Stops, add, remove)
	if err != nil {
		return apperrors.Validation("Invalid stop", err)
	}
	agg.Stops = stops
	return nil
}

func wants(adds []ride.StopAddition, st ride.Stop) bool {
	for _, a := range adds {
		if a.Kind == st.Kind && a.PlaceID == st.PlaceID {
			return true
		}
	}
	return false
}
