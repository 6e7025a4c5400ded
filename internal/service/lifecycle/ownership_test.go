package lifecycle_test

import (
	"testing"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDropOwner_SpinOffOnRelocation hands a two-person ride to the co-rider
// when the owner joins another ride, and parks a ride for the owner
func TestDropOwner_SpinOffOnRelocation(t *testing.T) {
	f := newFixture(t)
	o := f.newRider()
	rideID := f.create(o)
	c := f.storeRider(f.newRider())
	f.join(rideID, c, o, lifecycle.AdmitOptions{})

	z := f.newRider()
	other := f.create(z)
	f.join(other, o, z, lifecycle.AdmitOptions{})

	agg := f.review(rideID)
	assert.Equal(t, rideID, agg.Ride.ID)
	assert.Nil(t, memberOf(agg, o.ID))
	heir := memberOf(agg, c.ID)
	require.NotNil(t, heir)
	assert.Equal(t, membership.StatusOwner, heir.Membership.Status)
	assert.Equal(t, 1, keyCount(agg))
	assert.Equal(t, 3, agg.Ride.Available.Seats)

	parked := f.suspendedOf(o.ID)
	require.NotNil(t, parked)
	assert.NotEqual(t, rideID, parked.ID)
	assert.True(t, parked.StartAt.Equal(o.DepartAt))
	assert.Equal(t, o.AirportID, parked.AirportID)
	assert.Equal(t, ride.StatusClosed, parked.Status)

	assert.Equal(t, membership.StatusJoined, memberOf(f.review(other), o.ID).Membership.Status)
}

// TestDropOwner_Successor promotes admins first, then the earliest to join
func TestDropOwner_Successor(t *testing.T) {
	tests := []struct {
		name      string
		lateAdmin bool
		wantLate  bool
	}{
		{name: "earliest joined member", lateAdmin: false, wantLate: false},
		{name: "admin before earlier member", lateAdmin: true, wantLate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := f.newRider()
			rideID := f.create(o)
			early := f.storeRider(f.newRider())
			late := f.storeRider(f.newRider())
			f.join(rideID, early, o, lifecycle.AdmitOptions{})
			f.join(rideID, late, o, lifecycle.AdmitOptions{AsAdmin: tt.lateAdmin})

			key := memberOf(f.review(rideID), o.ID).Membership
			_, err := f.mgr.Leave(f.ctx, actorOf(o), key.ID)
			require.NoError(t, err)

			agg := f.review(rideID)
			assert.Nil(t, memberOf(agg, o.ID))
			assert.Equal(t, 1, keyCount(agg))
			want, other := early, late
			if tt.wantLate {
				want, other = late, early
			}
			assert.True(t, memberOf(agg, want.ID).Membership.Status.IsKey())
			assert.False(t, memberOf(agg, other.ID).Membership.Status.IsKey())
			assert.Equal(t, 2, agg.Ride.Available.Seats)
			assert.Nil(t, f.suspendedOf(o.ID), "leaving without suspend parks nothing")
		})
	}
}

// TestDropOwner_LoneHeirReturnsToParkedRide destroys a two-person ride whose
// remaining member has a ride to go back to
func TestDropOwner_LoneHeirReturnsToParkedRide(t *testing.T) {
	f := newFixture(t)
	o := f.newRider()
	rideID := f.create(o)
	c := f.newRider()
	home := f.create(c)
	f.join(rideID, c, o, lifecycle.AdmitOptions{})
	require.NotNil(t, f.suspendedOf(c.ID))

	key := memberOf(f.review(rideID), o.ID).Membership
	out, err := f.mgr.Leave(f.ctx, actorOf(o), key.ID)
	require.NoError(t, err)
	assert.True(t, hasEvent(out.Events, lifecycle.EventRideDeleted))
	assert.True(t, hasEvent(out.Events, lifecycle.EventRideReactivated))

	assert.False(t, f.rideExists(rideID))
	assert.Nil(t, f.suspendedOf(c.ID))
	agg := f.review(home)
	assert.False(t, agg.Ride.IsSuspended())
	assert.Equal(t, ride.StatusOpen, agg.Ride.Status)
	assert.True(t, memberOf(agg, c.ID).Membership.Status.IsKey())
}

// TestDropOwner_CarRideDissolves gives the passenger of a departing driver a
// fresh ride of its own
func TestDropOwner_CarRideDissolves(t *testing.T) {
	f := newFixture(t)
	o := f.newRider(func(r *rider.Rider) { r.Kind = string(ride.KindOwnCar) })
	rideID := f.create(o)
	agg := f.review(rideID)
	assert.Equal(t, membership.StatusDriver, memberOf(agg, o.ID).Membership.Status)
	assert.Equal(t, 3, agg.Ride.Available.Seats)

	c := f.storeRider(f.newRider())
	f.join(rideID, c, o, lifecycle.AdmitOptions{})

	key := memberOf(f.review(rideID), o.ID).Membership
	_, err := f.mgr.Leave(f.ctx, actorOf(o), key.ID)
	require.NoError(t, err)

	assert.False(t, f.rideExists(rideID))
	ms := f.membershipsOf(c.ID)
	require.Len(t, ms, 1)
	assert.Equal(t, membership.StatusOwner, ms[0].Status)
	assert.NotEqual(t, rideID, ms[0].RideID)
}

// TestDropOwner_AloneDeletesRide removes a ride nobody else travels in
func TestDropOwner_AloneDeletesRide(t *testing.T) {
	f := newFixture(t)
	o := f.newRider()
	rideID := f.create(o)
	b := f.storeRider(f.newRider())
	f.apply(rideID, b, nil)

	key := memberOf(f.review(rideID), o.ID).Membership
	_, err := f.mgr.Leave(f.ctx, actorOf(o), key.ID)
	require.NoError(t, err)

	assert.False(t, f.rideExists(rideID))
	assert.Empty(t, f.membershipsOf(b.ID), "pending applications go with the ride")
}

// TestSuspension_AtMostOnePerRider checks that relocations never leave a
// rider with two parked rides
func TestSuspension_AtMostOnePerRider(t *testing.T) {
	f := newFixture(t)
	a := f.newRider()
	first := f.create(a)
	b := f.newRider()
	f.create(b)
	c := f.newRider()
	third := f.create(c)

	f.join(first, b, a, lifecycle.AdmitOptions{})
	require.NotNil(t, f.suspendedOf(b.ID))

	ms := memberOf(f.review(first), b.ID).Membership
	_, err := f.mgr.Leave(f.ctx, actorOf(b), ms.ID)
	require.NoError(t, err)
	assert.Nil(t, f.suspendedOf(b.ID), "leaving reactivates the parked ride")

	f.join(third, b, c, lifecycle.AdmitOptions{})
	require.NotNil(t, f.suspendedOf(b.ID))

	suspended := 0
	for _, m := range f.membershipsOf(b.ID) {
		if r := f.review(m.RideID).Ride; r.IsSuspended() {
			suspended++
		}
	}
	assert.Equal(t, 1, suspended)
}

// promotedOwner returns a ride whose owner inherited it while already
// holding a parked ride of its own, together with that owner, the parked
// ride and the remaining co-rider
func promotedOwner(f *fixture) (rideID uuid.UUID, owner *rider.Rider, parked uuid.UUID, coRider *rider.Rider) {
	owner = f.newRider()
	parked = f.create(owner)
	founder := f.newRider()
	rideID = f.create(founder)

	f.join(rideID, owner, founder, lifecycle.AdmitOptions{})
	coRider = f.storeRider(f.newRider())
	f.join(rideID, coRider, founder, lifecycle.AdmitOptions{})

	ms := memberOf(f.review(rideID), founder.ID).Membership
	_, err := f.mgr.Leave(f.ctx, actorOf(founder), ms.ID)
	require.NoError(f.t, err)

	require.True(f.t, memberOf(f.review(rideID), owner.ID).Membership.Status.IsKey())
	require.NotNil(f.t, f.suspendedOf(owner.ID))
	return rideID, owner, parked, coRider
}

// TestSuspension_PromotedOwnerRelocates admits an inheriting owner that
// already has a parked ride without parking a second one
func TestSuspension_PromotedOwnerRelocates(t *testing.T) {
	f := newFixture(t)
	rideID, owner, parked, coRider := promotedOwner(f)

	host := f.newRider()
	target := f.create(host)
	ms := f.join(target, owner, host, lifecycle.AdmitOptions{})
	assert.Equal(t, membership.StatusJoined, ms.Status)

	stillParked := f.suspendedOf(owner.ID)
	require.NotNil(t, stillParked)
	assert.Equal(t, parked, stillParked.ID)

	suspended := 0
	for _, m := range f.membershipsOf(owner.ID) {
		if f.review(m.RideID).Ride.IsSuspended() {
			suspended++
		}
	}
	assert.Equal(t, 1, suspended)
	assert.True(t, memberOf(f.review(rideID), coRider.ID).Membership.Status.IsKey(), "the co-rider inherits the ride")
}

// TestSuspension_PromotedOwnerLeaves brings the parked ride of an inheriting
// owner back into service when it leaves
func TestSuspension_PromotedOwnerLeaves(t *testing.T) {
	f := newFixture(t)
	rideID, owner, parked, coRider := promotedOwner(f)

	ms := memberOf(f.review(rideID), owner.ID).Membership
	out, err := f.mgr.Leave(f.ctx, actorOf(owner), ms.ID)
	require.NoError(t, err)
	assert.True(t, hasEvent(out.Events, lifecycle.EventRideReactivated))

	assert.Nil(t, f.suspendedOf(owner.ID))
	agg := f.review(parked)
	assert.False(t, agg.Ride.IsSuspended())
	assert.True(t, memberOf(agg, owner.ID).Membership.Status.IsKey())
	assert.True(t, memberOf(f.review(rideID), coRider.ID).Membership.Status.IsKey())
}
