package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRider(t *testing.T, s *Store) *rider.Rider {
	rd := &rider.Rider{
		ID:          uuid.New(),
		CreatorID:   uuid.New(),
		DepartAt:    time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		Direction:   rider.DirectionToAirport,
		AirportID:   uuid.New(),
		Needs:       rider.Resources{Seats: 1},
		Preferences: rider.DefaultPreferences(),
	}
	err := s.WithinTx(context.Background(), func(tx lifecycle.Tx) error {
		return tx.SaveRider(context.Background(), rd)
	})
	require.NoError(t, err)
	return rd
}

// TestWithinTx_RollsBackOnError discards writes of a failed transaction
func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rd := seedRider(t, s)
	r := ride.NewFromRider(rd, time.Now())

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx lifecycle.Tx) error {
		require.NoError(t, tx.InsertRide(ctx, r))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.WithinTx(ctx, func(tx lifecycle.Tx) error {
		_, err := tx.GetRide(ctx, r.ID)
		return err
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// TestWithinTx_ReturnsCopies keeps callers from mutating stored state
func TestWithinTx_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rd := seedRider(t, s)

	err := s.WithinTx(ctx, func(tx lifecycle.Tx) error {
		got, err := tx.GetRider(ctx, rd.ID)
		require.NoError(t, err)
		got.Needs.Seats = 9
		again, err := tx.GetRider(ctx, rd.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, again.Needs.Seats)
		return nil
	})
	require.NoError(t, err)
}

// TestSuspendedRide_Unique allows one parked ride per rider
func TestSuspendedRide_Unique(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rd := seedRider(t, s)

	err := s.WithinTx(ctx, func(tx lifecycle.Tx) error {
		first := ride.NewFromRider(rd, time.Now())
		first.Suspend(rd.ID)
		require.NoError(t, tx.InsertRide(ctx, first))

		parked, err := tx.SuspendedRideOf(ctx, rd.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, parked.ID)

		second := ride.NewFromRider(rd, time.Now())
		second.Suspend(rd.ID)
		return tx.InsertRide(ctx, second)
	})
	assert.ErrorIs(t, err, apperrors.ErrConstraint)
}

// TestMemberships_UniquePerRideAndCascade enforces one membership per rider
// and ride, and removes dependents with the ride
func TestMemberships_UniquePerRideAndCascade(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rd := seedRider(t, s)
	r := ride.NewFromRider(rd, time.Now())
	now := time.Now()

	err := s.WithinTx(ctx, func(tx lifecycle.Tx) error {
		require.NoError(t, tx.InsertRide(ctx, r))
		m := membership.New(r.ID, rd.ID, membership.StatusOwner, now)
		require.NoError(t, tx.InsertMembership(ctx, m))

		dup := membership.New(r.ID, rd.ID, membership.StatusApplied, now)
		assert.ErrorIs(t, tx.InsertMembership(ctx, dup), apperrors.ErrConstraint)
		assert.ErrorIs(t, tx.DeleteRider(ctx, rd.ID), apperrors.ErrConstraint)

		require.NoError(t, tx.DeleteRide(ctx, r.ID))
		ms, err := tx.MembershipsOfRider(ctx, rd.ID)
		require.NoError(t, err)
		assert.Empty(t, ms)
		return tx.DeleteRider(ctx, rd.ID)
	})
	require.NoError(t, err)
}

// TestPlaces resolves registered places and reports unknown ones
func TestPlaces(t *testing.T) {
	ctx := context.Background()
	p := NewPlaces()
	airport, metro, terminal := uuid.New(), uuid.New(), uuid.New()
	p.AddAirport(airport, metro)
	p.AddTerminal(terminal, airport)

	got, err := p.MetroAreaOfAirport(ctx, airport)
	require.NoError(t, err)
	assert.Equal(t, metro, got)

	got, err = p.AirportOfTerminal(ctx, terminal)
	require.NoError(t, err)
	assert.Equal(t, airport, got)

	_, err = p.MetroAreaOfNeighborhood(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
