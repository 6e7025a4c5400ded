package lifecycle

import (
	"context"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

// AdmitOptions selects how an application is admitted
type AdmitOptions struct {
	// AcceptRequest applies the applicant's change request to the ride
	AcceptRequest bool
	// AsAdmin admits the applicant with admin rights
	AsAdmin bool
}

// Admit moves an applied membership into the ride
func (m *Manager) Admit(ctx context.Context, actor Actor, membershipID uuid.UUID, opts AdmitOptions) (*Outcome, error) {
	return m.run(ctx, "admit", func(s *session) (*Outcome, error) {
		agg, applicant, err := s.loadFor(membershipID)
		if err != nil {
			return nil, err
		}
		if actor.adminOf(agg) == nil {
			return nil, apperrors.ErrForbidden
		}
		var accept *negotiation.ChangeRequest
		if opts.AcceptRequest {
			accept = applicant.Request
		}
		if err := s.admit(agg, applicant, accept, nil, opts.AsAdmin); err != nil {
			return nil, err
		}
		return outcome(agg.Ride.ID, applicant.Membership), nil
	})
}

// Deny rejects an application. Denying a denied membership is a no-op.
func (m *Manager) Deny(ctx context.Context, actor Actor, membershipID uuid.UUID) (*Outcome, error) {
	return m.run(ctx, "deny", func(s *session) (*Outcome, error) {
		agg, applicant, err := s.loadFor(membershipID)
		if err != nil {
			return nil, err
		}
		if actor.adminOf(agg) == nil {
			return nil, apperrors.ErrForbidden
		}
		if err := s.deny(agg, applicant); err != nil {
			return nil, err
		}
		return outcome(agg.Ride.ID, applicant.Membership), nil
	})
}

// Expel removes a non-key member on an admin's behalf. The status is
// either left or denied.
func (m *Manager) Expel(ctx context.Context, actor Actor, membershipID uuid.UUID, status membership.Status) (*Outcome, error) {
	if status == membership.StatusNone {
		status = membership.StatusLeft
	}
	if status != membership.StatusLeft && status != membership.StatusDenied {
		return nil, apperrors.ErrValidation.WithDetail("status", string(status))
	}
	return m.run(ctx, "expel", func(s *session) (*Outcome, error) {
		agg, target, err := s.loadFor(membershipID)
		if err != nil {
			return nil, err
		}
		if actor.adminOf(agg) == nil {
			return nil, apperrors.ErrForbidden
		}
		if err := s.dropOut(agg, target, status, true, false); err != nil {
			return nil, err
		}
		return outcome(agg.Ride.ID, target.Membership), nil
	})
}

// Leave is a member's own departure from a ride, whatever its status
func (m *Manager) Leave(ctx context.Context, actor Actor, membershipID uuid.UUID) (*Outcome, error) {
	return m.run(ctx, "leave", func(s *session) (*Outcome, error) {
		agg, member, err := s.loadFor(membershipID)
		if err != nil {
			return nil, err
		}
		if !actor.Owns(member.Rider) {
			return nil, apperrors.ErrForbidden
		}
		status := member.Membership.Status
		switch {
		case status.IsKey():
			err = s.dropOwner(agg, member, false)
		case status.IsActive():
			err = s.dropOut(agg, member, membership.StatusLeft, true, true)
		case status == membership.StatusApplied:
			err = s.cancel(agg, member)
		case status == membership.StatusSaved:
			err = s.unsave(agg, member)
		default:
			err = apperrors.ErrInvalidState.WithDetail("status", string(status))
		}
		if err != nil {
			return nil, err
		}
		return outcome(agg.Ride.ID, member.Membership), nil
	})
}

// KillOff forcibly removes a membership. Reserved for system callers.
func (m *Manager) KillOff(ctx context.Context, actor Actor, membershipID uuid.UUID) (*Outcome, error) {
	if !actor.System {
		return nil, apperrors.ErrForbidden
	}
	return m.run(ctx, "kill_off", func(s *session) (*Outcome, error) {
		agg, member, err := s.loadFor(membershipID)
		if err != nil {
			return nil, err
		}
		if member.Membership.Status.IsKey() {
			if err := s.dropOwner(agg, member, false); err != nil {
				return nil, err
			}
			return outcome(agg.Ride.ID, member.Membership), nil
		}
		if err := s.removeMember(agg, member); err != nil {
			return nil, err
		}
		if len(agg.Active()) == 0 {
			if err := s.deleteRide(agg); err != nil {
				return nil, err
			}
			return outcome(agg.Ride.ID, member.Membership), nil
		}
		if err := agg.Recount(false); err != nil {
			return nil, err
		}
		if err := agg.persist(s.ctx, s.tx); err != nil {
			return nil, err
		}
		return outcome(agg.Ride.ID, member.Membership), nil
	})
}

func (s *session) loadFor(membershipID uuid.UUID) (*Aggregate, *Member, error) {
	ms, err := s.tx.GetMembership(s.ctx, membershipID)
	if err != nil {
		return nil, nil, err
	}
	agg, err := LoadAggregate(s.ctx, s.tx, ms.RideID)
	if err != nil {
		return nil, nil, err
	}
	member := agg.Member(membershipID)
	if member == nil {
		return nil, nil, apperrors.ErrMembershipNotFound
	}
	return agg, member, nil
}

// admit validates compatibility, applies accepted terms, moves the applicant
// out of any other ride it travels in and recounts capacity. When a counter
// is given the applicant's request is first rewritten to the counter's terms;
// the counter must still answer the request as it stands.
func (s *session) admit(agg *Aggregate, applicant *Member, accept, counter *negotiation.ChangeRequest, asAdmin bool) error {
	ms := applicant.Membership
	if ms.Status != membership.StatusApplied {
		return apperrors.ErrInvalidState.WithDetail("status", string(ms.Status))
	}
	r := agg.Ride
	if r.IsSuspended() || r.Status == ride.StatusClosed || r.Status == ride.StatusDisabled {
		return apperrors.ErrInvalidState.WithDetail("ride_status", string(r.Status))
	}
	if err := MayAdmit(r, applicant.Rider, agg.ActiveRiders(ms.ID)).Err(); err != nil {
		return err
	}

	if counter != nil {
		if stale := counter.StaleFields(accept); len(stale) > 0 {
			return conflict(stale)
		}
		if accept == nil {
			accept = negotiation.New(ms.ID, false, counter.Terms, s.now)
		} else {
			accept.Replace(counter.Terms, s.now)
		}
		if err := s.tx.SaveRequest(s.ctx, accept); err != nil {
			return err
		}
		id := accept.ID
		ms.RequestID = &id
		applicant.Request = accept
		s.emit(EventCounterAgreed, r.ID, ms)
	}

	closeRide := false
	if accept != nil {
		if err := s.checkTerms(agg, accept.Terms); err != nil {
			return err
		}
		if err := MayAcceptChange(r, agg.Stops, accept.Terms).Err(); err != nil {
			return err
		}
		if err := agg.applyTerms(accept.Terms, ms.ID); err != nil {
			return err
		}
		closeRide = accept.CloseRide
	}

	if other, err := s.activeElsewhere(applicant.Rider.ID, r.ID); err != nil {
		return err
	} else if other != nil {
		if err := s.relocate(other); err != nil {
			return err
		}
	}

	to := membership.StatusJoined
	if asAdmin {
		to = membership.StatusAdmin
	}
	if err := ms.Transition(membership.EventAdmit, to, s.now); err != nil {
		return apperrors.ErrInvalidState.WithDetail("status", string(ms.Status))
	}
	if err := agg.addMemberStops(applicant); err != nil {
		return err
	}
	if err := agg.Recount(closeRide); err != nil {
		return err
	}
	if err := s.discardNegotiation(agg, applicant); err != nil {
		return err
	}
	if err := s.tx.UpdateMembership(s.ctx, ms); err != nil {
		return err
	}
	if err := agg.persist(s.ctx, s.tx); err != nil {
		return err
	}
	s.emit(EventMemberAdmitted, r.ID, ms)
	return nil
}

// applyTerms writes accepted terms onto the ride. Stops added by the terms
// are tagged with the requesting membership.
func (a *Aggregate) applyTerms(t negotiation.Terms, membershipID uuid.UUID) error {
	if t.StartAt != nil {
		a.Ride.StartAt = *t.StartAt
	}
	if t.Total != nil {
		a.Ride.Total = *t.Total
	}
	if t.Policies != nil {
		a.Ride.Policies = *t.Policies
	}
	if len(t.AddStops) == 0 && len(t.RemoveStops) == 0 {
		return nil
	}
	id := membershipID
	add := make([]ride.StopAddition, 0, len(t.AddStops))
	for _, s := range t.AddStops {
		s.MembershipID = &id
		add = append(add, s)
	}
	stops, err := ride.UpdateStops(a.Ride.ID, a.Stops, add, t.RemoveStops)
	if err != nil {
		return apperrors.Validation("Invalid stop change", err).WithDetail("field", "remove_stops")
	}
	a.Stops = stops
	return nil
}

// relocate takes a rider out of the ride it travels in so it can join
// another one. A key member keeps a suspended ride to come back to.
func (s *session) relocate(current *membership.Membership) error {
	agg, member, err := s.loadFor(current.ID)
	if err != nil {
		return err
	}
	if member.Membership.Status.IsKey() {
		return s.dropOwner(agg, member, true)
	}
	return s.dropOut(agg, member, membership.StatusLeft, false, false)
}

func (s *session) deny(agg *Aggregate, applicant *Member) error {
	ms := applicant.Membership
	if ms.Status == membership.StatusDenied {
		return nil
	}
	if err := ms.Transition(membership.EventDeny, membership.StatusDenied, s.now); err != nil {
		return apperrors.ErrInvalidState.WithDetail("status", string(ms.Status))
	}
	if err := s.discardNegotiation(agg, applicant); err != nil {
		return err
	}
	ms.ConversationID = nil
	if err := s.tx.UpdateMembership(s.ctx, ms); err != nil {
		return err
	}
	s.emit(EventMemberDenied, agg.Ride.ID, ms)
	return nil
}

// detach takes an active non-key member out of the ride without recounting
func (s *session) detach(agg *Aggregate, member *Member, status membership.Status) error {
	ms := member.Membership
	if ms.Status.IsKey() {
		return apperrors.ErrInvalidState.WithDetail("status", string(ms.Status)).
			WithDetail("reason", "key members leave through ownership transfer")
	}
	if err := ms.Transition(membership.EventLeave, status, s.now); err != nil {
		return apperrors.ErrInvalidState.WithDetail("status", string(ms.Status))
	}
	if err := s.discardNegotiation(agg, member); err != nil {
		return err
	}
	ms.ConversationID = nil
	agg.dropMemberStops(ms.ID)
	if err := s.tx.UpdateMembership(s.ctx, ms); err != nil {
		return err
	}
	if status == membership.StatusDenied {
		s.emit(EventMemberExpelled, agg.Ride.ID, ms)
	} else {
		s.emit(EventMemberLeft, agg.Ride.ID, ms)
	}
	return nil
}

// dropOut removes a non-key member, recounts the ride and optionally brings
// the member's suspended ride back into service.
func (s *session) dropOut(agg *Aggregate, member *Member, status membership.Status, reactivate, reset bool) error {
	if err := s.detach(agg, member, status); err != nil {
		return err
	}
	if err := agg.Recount(false); err != nil {
		return err
	}
	if err := agg.persist(s.ctx, s.tx); err != nil {
		return err
	}
	if reactivate {
		if _, err := s.reactivateSuspendedRide(member.Rider.ID, reset); err != nil {
			return err
		}
	}
	return nil
}

// discardNegotiation deletes the member's request and counter
func (s *session) discardNegotiation(agg *Aggregate, member *Member) error {
	ms := member.Membership
	if !ms.HasNegotiation() {
		return nil
	}
	for _, id := range []*uuid.UUID{ms.RequestID, ms.CounterID} {
		if id == nil {
			continue
		}
		if err := s.tx.DeleteRequest(s.ctx, *id); err != nil {
			return err
		}
	}
	ms.ClearNegotiation()
	member.Request, member.Counter = nil, nil
	s.emit(EventRequestDiscarded, agg.Ride.ID, ms)
	return nil
}

func conflict(fields []string) error {
	err := apperrors.ErrConflict
	for _, f := range fields {
		err = err.WithDetail(f, "changed")
	}
	return err
}
