package lifecycle

import (
	"context"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

// Apply asks for the rider to join the ride, optionally with a change request
func (m *Manager) Apply(ctx context.Context, actor Actor, rideID, riderID uuid.UUID, terms *negotiation.Terms) (*Outcome, error) {
	return m.run(ctx, "apply", func(s *session) (*Outcome, error) {
		rd, err := s.tx.GetRider(s.ctx, riderID)
		if err != nil {
			return nil, err
		}
		if !actor.Owns(rd) {
			return nil, apperrors.ErrForbidden
		}
		agg, err := LoadAggregate(s.ctx, s.tx, rideID)
		if err != nil {
			return nil, err
		}
		r := agg.Ride
		if r.IsSuspended() || r.Status == ride.StatusClosed || r.Status == ride.StatusDisabled {
			return nil, apperrors.ErrInvalidState.WithDetail("ride_status", string(r.Status))
		}
		if err := MayAdmit(r, rd, agg.ActiveRiders(uuid.Nil)).Err(); err != nil {
			return nil, err
		}

		ms := membership.New(r.ID, rd.ID, membership.StatusNone, s.now)
		existing := agg.MemberOf(rd.ID)
		if existing != nil {
			ms = existing.Membership
		}
		if err := ms.Transition(membership.EventApply, membership.StatusApplied, s.now); err != nil {
			return nil, apperrors.ErrInvalidState.WithDetail("status", string(ms.Status))
		}

		if terms != nil {
			if err := s.checkTerms(agg, *terms); err != nil {
				return nil, err
			}
			req := negotiation.New(ms.ID, false, *terms, s.now)
			if err := s.tx.SaveRequest(s.ctx, req); err != nil {
				return nil, err
			}
			id := req.ID
			ms.RequestID = &id
		}
		conv := uuid.New()
		ms.ConversationID = &conv

		if existing != nil {
			err = s.tx.UpdateMembership(s.ctx, ms)
		} else {
			err = s.tx.InsertMembership(s.ctx, ms)
		}
		if err != nil {
			return nil, err
		}
		s.emit(EventMemberApplied, r.ID, ms)
		return outcome(r.ID, ms), nil
	})
}

// UpdateApplication replaces the applicant's change request; nil terms
// withdraw it. An outstanding counter stays and goes stale.
func (m *Manager) UpdateApplication(ctx context.Context, actor Actor, membershipID uuid.UUID, terms *negotiation.Terms) (*Outcome, error) {
	return m.run(ctx, "update_application", func(s *session) (*Outcome, error) {
		agg, applicant, err := s.applicantOf(actor, membershipID)
		if err != nil {
			return nil, err
		}
		ms := applicant.Membership
		switch {
		case terms == nil && applicant.Request != nil:
			if err := s.tx.DeleteRequest(s.ctx, applicant.Request.ID); err != nil {
				return nil, err
			}
			ms.RequestID = nil
			applicant.Request = nil
		case terms != nil:
			if err := s.checkTerms(agg, *terms); err != nil {
				return nil, err
			}
			req := applicant.Request
			if req == nil {
				req = negotiation.New(ms.ID, false, *terms, s.now)
			} else {
				req.Replace(*terms, s.now)
			}
			if err := s.tx.SaveRequest(s.ctx, req); err != nil {
				return nil, err
			}
			id := req.ID
			ms.RequestID = &id
			applicant.Request = req
		}
		ms.UpdatedAt = s.now
		if err := s.tx.UpdateMembership(s.ctx, ms); err != nil {
			return nil, err
		}
		s.emit(EventMemberUpdated, agg.Ride.ID, ms)
		return outcome(agg.Ride.ID, ms), nil
	})
}

// CancelApplication withdraws a pending application
func (m *Manager) CancelApplication(ctx context.Context, actor Actor, membershipID uuid.UUID) (*Outcome, error) {
	return m.run(ctx, "cancel_application", func(s *session) (*Outcome, error) {
		agg, applicant, err := s.applicantOf(actor, membershipID)
		if err != nil {
			return nil, err
		}
		if err := s.cancel(agg, applicant); err != nil {
			return nil, err
		}
		return outcome(agg.Ride.ID, applicant.Membership), nil
	})
}

// Save bookmarks a ride for the rider
func (m *Manager) Save(ctx context.Context, actor Actor, rideID, riderID uuid.UUID) (*Outcome, error) {
	return m.run(ctx, "save", func(s *session) (*Outcome, error) {
		rd, err := s.tx.GetRider(s.ctx, riderID)
		if err != nil {
			return nil, err
		}
		if !actor.Owns(rd) {
			return nil, apperrors.ErrForbidden
		}
		if _, err := s.tx.GetRide(s.ctx, rideID); err != nil {
			return nil, err
		}
		if existing, err := s.tx.FindMembership(s.ctx, rideID, riderID); err == nil {
			return nil, apperrors.ErrInvalidState.WithDetail("status", string(existing.Status))
		} else if !apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		ms := membership.New(rideID, riderID, membership.StatusNone, s.now)
		if err := ms.Transition(membership.EventSave, membership.StatusSaved, s.now); err != nil {
			return nil, err
		}
		if err := s.tx.InsertMembership(s.ctx, ms); err != nil {
			return nil, err
		}
		s.emit(EventMemberSaved, rideID, ms)
		return outcome(rideID, ms), nil
	})
}

// Unsave drops a bookmark
func (m *Manager) Unsave(ctx context.Context, actor Actor, membershipID uuid.UUID) (*Outcome, error) {
	return m.run(ctx, "unsave", func(s *session) (*Outcome, error) {
		agg, member, err := s.loadFor(membershipID)
		if err != nil {
			return nil, err
		}
		if !actor.Owns(member.Rider) {
			return nil, apperrors.ErrForbidden
		}
		if err := s.unsave(agg, member); err != nil {
			return nil, err
		}
		return outcome(agg.Ride.ID, member.Membership), nil
	})
}

// ProposeCounter attaches an admin's counter-proposal to an application
func (m *Manager) ProposeCounter(ctx context.Context, actor Actor, membershipID uuid.UUID, terms negotiation.Terms) (*Outcome, error) {
	return m.counter(ctx, actor, membershipID, terms, false)
}

// UpdateCounter replaces an outstanding counter-proposal
func (m *Manager) UpdateCounter(ctx context.Context, actor Actor, membershipID uuid.UUID, terms negotiation.Terms) (*Outcome, error) {
	return m.counter(ctx, actor, membershipID, terms, true)
}

func (m *Manager) counter(ctx context.Context, actor Actor, membershipID uuid.UUID, terms negotiation.Terms, update bool) (*Outcome, error) {
	op := "propose_counter"
	if update {
		op = "update_counter"
	}
	return m.run(ctx, op, func(s *session) (*Outcome, error) {
		agg, applicant, err := s.loadFor(membershipID)
		if err != nil {
			return nil, err
		}
		if actor.adminOf(agg) == nil {
			return nil, apperrors.ErrForbidden
		}
		ms := applicant.Membership
		if ms.Status != membership.StatusApplied {
			return nil, apperrors.ErrInvalidState.WithDetail("status", string(ms.Status))
		}
		if update && applicant.Counter == nil {
			return nil, apperrors.ErrRequestNotFound
		}
		if err := s.checkTerms(agg, terms); err != nil {
			return nil, err
		}
		if applicant.Request != nil && negotiation.Equal(terms, applicant.Request.Terms) {
			return nil, apperrors.ErrValidation.WithDetail("counter", "matches the request; admit it instead")
		}

		c := applicant.Counter
		if c == nil {
			c = negotiation.NewCounter(ms.ID, terms, applicant.Request, s.now)
		} else {
			c.Replace(terms, s.now)
			c.Answer(applicant.Request)
		}
		if err := s.tx.SaveRequest(s.ctx, c); err != nil {
			return nil, err
		}
		id := c.ID
		ms.CounterID = &id
		ms.UpdatedAt = s.now
		applicant.Counter = c
		if err := s.tx.UpdateMembership(s.ctx, ms); err != nil {
			return nil, err
		}
		s.emit(EventCounterProposed, agg.Ride.ID, ms)
		return outcome(agg.Ride.ID, ms), nil
	})
}

// Agree accepts the admin's counter on the applicant's behalf. seen are the
// counter terms the applicant agreed to; any drift from the stored counter,
// or of the request from the one the counter answered, is a conflict.
func (m *Manager) Agree(ctx context.Context, actor Actor, membershipID uuid.UUID, seen negotiation.Terms) (*Outcome, error) {
	return m.run(ctx, "agree", func(s *session) (*Outcome, error) {
		agg, applicant, err := s.applicantOf(actor, membershipID)
		if err != nil {
			return nil, err
		}
		if applicant.Counter == nil {
			return nil, apperrors.ErrRequestNotFound
		}
		if drift := negotiation.Diff(seen, applicant.Counter.Terms); len(drift) > 0 {
			return nil, conflict(drift)
		}
		if err := s.admit(agg, applicant, applicant.Request, applicant.Counter, false); err != nil {
			return nil, err
		}
		return outcome(agg.Ride.ID, applicant.Membership), nil
	})
}

// applicantOf loads a pending application owned by the actor
func (s *session) applicantOf(actor Actor, membershipID uuid.UUID) (*Aggregate, *Member, error) {
	agg, member, err := s.loadFor(membershipID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Owns(member.Rider) {
		return nil, nil, apperrors.ErrForbidden
	}
	if member.Membership.Status != membership.StatusApplied {
		return nil, nil, apperrors.ErrInvalidState.WithDetail("status", string(member.Membership.Status))
	}
	return agg, member, nil
}

func (s *session) cancel(agg *Aggregate, applicant *Member) error {
	ms := applicant.Membership
	if err := ms.Transition(membership.EventCancel, membership.StatusNone, s.now); err != nil {
		return apperrors.ErrInvalidState.WithDetail("status", string(ms.Status))
	}
	if err := s.tx.DeleteMembership(s.ctx, ms.ID); err != nil {
		return err
	}
	ms.ClearNegotiation()
	ms.ConversationID = nil
	agg.remove(ms.ID)
	s.emit(EventMemberCancelled, agg.Ride.ID, ms)
	return nil
}

func (s *session) unsave(agg *Aggregate, member *Member) error {
	ms := member.Membership
	if err := ms.Transition(membership.EventUnsave, membership.StatusNone, s.now); err != nil {
		return apperrors.ErrInvalidState.WithDetail("status", string(ms.Status))
	}
	if err := s.tx.DeleteMembership(s.ctx, ms.ID); err != nil {
		return err
	}
	agg.remove(ms.ID)
	s.emit(EventMemberUnsaved, agg.Ride.ID, ms)
	return nil
}

// checkTerms rejects malformed terms and stops outside the ride's airport
// or metro area
func (s *session) checkTerms(agg *Aggregate, t negotiation.Terms) error {
	if field, err := t.Validate(); err != nil {
		return apperrors.Validation("Invalid change request", err).WithDetail("field", field)
	}
	places := s.m.places
	if places == nil {
		return nil
	}
	for _, a := range t.AddStops {
		var (
			got  uuid.UUID
			want uuid.UUID
			err  error
		)
		switch a.Kind {
		case ride.StopTerminal:
			got, err = places.AirportOfTerminal(s.ctx, a.PlaceID)
			want = agg.Ride.AirportID
		case ride.StopCity:
			got, err = places.MetroAreaOfNeighborhood(s.ctx, a.PlaceID)
			want = agg.Ride.MetroAreaID
		}
		if err != nil {
			return err
		}
		if got != want {
			return apperrors.ErrValidation.WithDetail("field", "add_stops").
				WithDetail("place_id", a.PlaceID.String())
		}
	}
	return nil
}
