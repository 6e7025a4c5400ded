package lifecycle_test

import (
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

// TestCreateRider_SavesInitialRide shapes a new ride after the rider
func TestCreateRider_SavesInitialRide(t *testing.T) {
	f := newFixture(t)
	a := f.newRider(func(r *rider.Rider) { r.MetroAreaID = uuid.Nil })
	rideID := f.create(a)

	agg := f.review(rideID)
	assert.Equal(t, f.metro, agg.Ride.MetroAreaID, "metro area comes from the airport")
	assert.True(t, agg.Ride.StartAt.Equal(a.DepartAt))
	assert.Equal(t, ride.KindSharedCab, agg.Ride.Kind)
	assert.Equal(t, rider.Resources{Seats: 3, Luggage: 3, BabySeats: 1, SportEquipment: 2}, agg.Ride.Available)
	assert.Equal(t, 1, ride.Count(agg.Stops, ride.StopTerminal))
	assert.Equal(t, 1, ride.Count(agg.Stops, ride.StopCity))
	assert.Equal(t, membership.StatusOwner, memberOf(agg, a.ID).Membership.Status)

	_, err := f.mgr.CreateRider(f.ctx, actorOf(a), f.newRider(func(r *rider.Rider) {
		r.Location.NeighborhoodID = f.farHood
	}))
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.mgr.CreateRider(f.ctx, actorOf(a), f.newRider(func(r *rider.Rider) { r.Needs.Seats = 0 }))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// TestUpdateRider_Propagation realigns rides and sheds members that no longer fit
func TestUpdateRider_Propagation(t *testing.T) {
	tests := []struct {
		name       string
		updateKey  bool
		mod        func(f *fixture, r *rider.Rider)
		wantStatus membership.Status
		wantStart  func(f *fixture) time.Time
	}{
		{
			name:       "owner shifts within retention window",
			updateKey:  true,
			mod:        func(f *fixture, r *rider.Rider) { r.DepartAt = f.departAt.Add(2 * time.Hour) },
			wantStatus: membership.StatusJoined,
			wantStart:  func(f *fixture) time.Time { return f.departAt.Add(2 * time.Hour) },
		},
		{
			name:       "owner moves beyond retention window",
			updateKey:  true,
			mod:        func(f *fixture, r *rider.Rider) { r.DepartAt = f.departAt.Add(30 * time.Hour) },
			wantStatus: membership.StatusLeft,
			wantStart:  func(f *fixture) time.Time { return f.departAt.Add(30 * time.Hour) },
		},
		{
			name:       "owner needs the remaining seats",
			updateKey:  true,
			mod:        func(f *fixture, r *rider.Rider) { r.Needs.Seats = 4 },
			wantStatus: membership.StatusLeft,
			wantStart:  func(f *fixture) time.Time { return f.departAt },
		},
		{
			name:       "member moves beyond retention window",
			updateKey:  false,
			mod:        func(f *fixture, r *rider.Rider) { r.DepartAt = f.departAt.Add(30 * time.Hour) },
			wantStatus: membership.StatusLeft,
			wantStart:  func(f *fixture) time.Time { return f.departAt },
		},
		{
			name:       "member outgrows the ride",
			updateKey:  false,
			mod:        func(f *fixture, r *rider.Rider) { r.Needs.Luggage = 5 },
			wantStatus: membership.StatusLeft,
			wantStart:  func(f *fixture) time.Time { return f.departAt },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.newRider()
			rideID := f.create(a)
			b := f.storeRider(f.newRider())
			f.join(rideID, b, a, lifecycle.AdmitOptions{})

			target := b
			if tt.updateKey {
				target = a
			}
			updated := *target
			tt.mod(f, &updated)
			_, err := f.mgr.UpdateRider(f.ctx, actorOf(target), &updated)
			require.NoError(t, err)

			agg := f.review(rideID)
			assert.Equal(t, tt.wantStatus, memberOf(agg, b.ID).Membership.Status)
			assert.True(t, agg.Ride.StartAt.Equal(tt.wantStart(f)))
			assert.Equal(t, 1, keyCount(agg))
			assert.True(t, ride.Contiguous(agg.Stops, ride.StopCity))
			assert.GreaterOrEqual(t, agg.Ride.Available.Seats, 0)
		})
	}
}

// TestUpdateRider_MovesStops follows a member's new neighborhood
func TestUpdateRider_MovesStops(t *testing.T) {
	f := newFixture(t)
	a := f.newRider()
	rideID := f.create(a)
	b := f.storeRider(f.newRider())
	f.join(rideID, b, a, lifecycle.AdmitOptions{})

	updated := *b
	updated.Location.NeighborhoodID = f.hood2
	_, err := f.mgr.UpdateRider(f.ctx, actorOf(b), &updated)
	require.NoError(t, err)

	agg := f.review(rideID)
	places := map[uuid.UUID]bool{}
	for _, s := range agg.Stops {
		if s.Kind == ride.StopCity {
			places[s.PlaceID] = true
		}
	}
	assert.Equal(t, map[uuid.UUID]bool{f.hood: true, f.hood2: true}, places)
}

// TestUpdateRider_UpdatesSuspendedRide keeps a parked ride in line with its rider
func TestUpdateRider_UpdatesSuspendedRide(t *testing.T) {
	f := newFixture(t)
	a := f.newRider()
	rideID := f.create(a)
	b := f.newRider()
	f.create(b)
	f.join(rideID, b, a, lifecycle.AdmitOptions{})

	updated := *b
	updated.DepartAt = f.departAt.Add(time.Hour)
	_, err := f.mgr.UpdateRider(f.ctx, actorOf(b), &updated)
	require.NoError(t, err)

	parked := f.suspendedOf(b.ID)
	require.NotNil(t, parked)
	assert.True(t, parked.StartAt.Equal(updated.DepartAt))
	assert.Equal(t, ride.StatusClosed, parked.Status)
	assert.Equal(t, membership.StatusJoined, memberOf(f.review(rideID), b.ID).Membership.Status)
}

// TestDeleteRiders_Cascade hands rides over to surviving members
func TestDeleteRiders_Cascade(t *testing.T) {
	tests := []struct {
		name       string
		deleteB    bool
		deleteC    bool
		wantExists bool
		wantKey    func(b, c *rider.Rider) uuid.UUID
		wantActive int
	}{
		{
			name:       "owner only",
			wantExists: true,
			wantKey:    func(b, c *rider.Rider) uuid.UUID { return b.ID },
			wantActive: 2,
		},
		{
			name:       "owner and first heir",
			deleteB:    true,
			wantExists: true,
			wantKey:    func(b, c *rider.Rider) uuid.UUID { return c.ID },
			wantActive: 1,
		},
		{
			name:       "everyone",
			deleteB:    true,
			deleteC:    true,
			wantExists: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.newRider()
			rideID := f.create(a)
			b := f.storeRider(f.newRider())
			c := f.storeRider(f.newRider())
			f.join(rideID, b, a, lifecycle.AdmitOptions{})
			f.join(rideID, c, a, lifecycle.AdmitOptions{})

			ids := []uuid.UUID{a.ID}
			if tt.deleteB {
				ids = append(ids, b.ID)
			}
			if tt.deleteC {
				ids = append(ids, c.ID)
			}
			_, err := f.mgr.DeleteRiders(f.ctx, lifecycle.SystemActor(), ids)
			require.NoError(t, err)

			require.Equal(t, tt.wantExists, f.rideExists(rideID))
			for _, id := range ids {
				assert.Empty(t, f.membershipsOf(id))
			}
			if !tt.wantExists {
				return
			}
			agg := f.review(rideID)
			assert.Equal(t, 1, keyCount(agg))
			assert.True(t, agg.Key().Rider.ID == tt.wantKey(b, c))
			assert.Len(t, agg.Active(), tt.wantActive)
			assert.Equal(t, 4-tt.wantActive, agg.Ride.Available.Seats)
		})
	}
}

// TestDeleteRiders_Forbidden refuses to delete someone else's rider
func TestDeleteRiders_Forbidden(t *testing.T) {
	f := newFixture(t)
	a := f.newRider()
	f.create(a)
	b := f.newRider()
	f.create(b)

	_, err := f.mgr.DeleteRiders(f.ctx, actorOf(b), []uuid.UUID{a.ID})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// TestResetRide realigns a ride edited by an accepted request
func TestResetRide(t *testing.T) {
	f := newFixture(t)
	a := f.newRider()
	rideID := f.create(a)
	b := f.storeRider(f.newRider())
	f.join(rideID, b, a, lifecycle.AdmitOptions{})

	_, err := f.mgr.ResetRide(f.ctx, actorOf(b), rideID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	out, err := f.mgr.ResetRide(f.ctx, actorOf(a), rideID)
	require.NoError(t, err)
	assert.True(t, hasEvent(out.Events, lifecycle.EventRideReset))
	assert.True(t, f.review(rideID).Ride.StartAt.Equal(a.DepartAt))
}

// TestReview_PrivateRide hides suspended rides from strangers
func TestReview_PrivateRide(t *testing.T) {
	f := newFixture(t)
	a := f.newRider()
	rideID := f.create(a)
	b := f.newRider()
	bRide := f.create(b)
	f.join(rideID, b, a, lifecycle.AdmitOptions{})

	_, err := f.mgr.Review(f.ctx, actorOf(a), bRide)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	agg, err := f.mgr.Review(f.ctx, actorOf(b), bRide)
	require.NoError(t, err)
	assert.True(t, agg.Ride.IsSuspended())

	_, err = f.mgr.Review(f.ctx, actorOf(b), rideID)
	assert.NoError(t, err)
}
