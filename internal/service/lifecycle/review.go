package lifecycle

import (
	"context"

	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

// Review returns the ride aggregate when the actor may see it. Public rides
// are visible to everyone; suspended and private rides only to the creators
// of their members.
func (m *Manager) Review(ctx context.Context, actor Actor, rideID uuid.UUID) (*Aggregate, error) {
	agg, err := m.load(ctx, func(tx Tx) (uuid.UUID, error) { return rideID, nil })
	if err != nil {
		return nil, err
	}
	if agg.Ride.Public && !agg.Ride.IsSuspended() {
		return agg, nil
	}
	for _, member := range agg.Members {
		if actor.Owns(member.Rider) {
			return agg, nil
		}
	}
	return nil, apperrors.ErrForbidden
}

// ReviewMembership returns one membership with its rider and negotiation.
// Only the member's creator and the ride's admins may see it.
func (m *Manager) ReviewMembership(ctx context.Context, actor Actor, membershipID uuid.UUID) (*Member, error) {
	agg, err := m.load(ctx, func(tx Tx) (uuid.UUID, error) {
		ms, err := tx.GetMembership(ctx, membershipID)
		if err != nil {
			return uuid.Nil, err
		}
		return ms.RideID, nil
	})
	if err != nil {
		return nil, err
	}
	member := agg.Member(membershipID)
	if member == nil {
		return nil, apperrors.ErrMembershipNotFound
	}
	if !actor.Owns(member.Rider) && actor.adminOf(agg) == nil {
		return nil, apperrors.ErrForbidden
	}
	return member, nil
}

// load reads an aggregate in a read-only transaction
func (m *Manager) load(ctx context.Context, rideOf func(tx Tx) (uuid.UUID, error)) (*Aggregate, error) {
	var agg *Aggregate
	err := m.store.WithinTx(ctx, func(tx Tx) error {
		rideID, err := rideOf(tx)
		if err != nil {
			return err
		}
		agg, err = LoadAggregate(ctx, tx, rideID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}
