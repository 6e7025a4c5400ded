package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/gocomet/ride-pooling/internal/repository/memory"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/gocomet/ride-pooling/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *memory.Store
	places *memory.Places
	mgr    *lifecycle.Manager
	now    time.Time

	airport  uuid.UUID
	metro    uuid.UUID
	terminal uuid.UUID
	hood     uuid.UUID
	hood2    uuid.UUID
	farHood  uuid.UUID
	departAt time.Time
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    memory.NewStore(),
		places:   memory.NewPlaces(),
		now:      time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		airport:  uuid.New(),
		metro:    uuid.New(),
		terminal: uuid.New(),
		hood:     uuid.New(),
		hood2:    uuid.New(),
		farHood:  uuid.New(),
	}
	f.departAt = f.now.Add(48 * time.Hour)
	f.places.AddAirport(f.airport, f.metro)
	f.places.AddTerminal(f.terminal, f.airport)
	f.places.AddNeighborhood(f.hood, f.metro)
	f.places.AddNeighborhood(f.hood2, f.metro)
	f.places.AddNeighborhood(f.farHood, uuid.New())
	f.mgr = lifecycle.NewManager(f.store, f.places, logger.Nop(), lifecycle.WithClock(f.tick))
	return f
}

func (f *fixture) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fixture) newRider(mods ...func(*rider.Rider)) *rider.Rider {
	rd := &rider.Rider{
		CreatorID:   uuid.New(),
		DepartAt:    f.departAt,
		Direction:   rider.DirectionToAirport,
		Location:    rider.Location{Address: "12 Harbor Rd", NeighborhoodID: f.hood},
		AirportID:   f.airport,
		TerminalID:  f.terminal,
		MetroAreaID: f.metro,
		Needs:       rider.Resources{Seats: 1, Luggage: 1},
		Kind:        string(ride.KindSharedCab),
		Preferences: rider.DefaultPreferences(),
	}
	for _, mod := range mods {
		mod(rd)
	}
	return rd
}

// create stores the rider through the manager, which gives it its own ride
func (f *fixture) create(rd *rider.Rider) uuid.UUID {
	out, err := f.mgr.CreateRider(f.ctx, actorOf(rd), rd)
	require.NoError(f.t, err)
	return out.RideID
}

// storeRider writes a rider that holds no ride yet
func (f *fixture) storeRider(rd *rider.Rider) *rider.Rider {
	rd.ID = uuid.New()
	err := f.store.WithinTx(f.ctx, func(tx lifecycle.Tx) error {
		return tx.SaveRider(f.ctx, rd)
	})
	require.NoError(f.t, err)
	return rd
}

func (f *fixture) apply(rideID uuid.UUID, rd *rider.Rider, terms *negotiation.Terms) *membership.Membership {
	out, err := f.mgr.Apply(f.ctx, actorOf(rd), rideID, rd.ID, terms)
	require.NoError(f.t, err)
	return out.Membership
}

// join applies and gets admitted by the given admin
func (f *fixture) join(rideID uuid.UUID, rd, admin *rider.Rider, opts lifecycle.AdmitOptions) *membership.Membership {
	ms := f.apply(rideID, rd, nil)
	out, err := f.mgr.Admit(f.ctx, actorOf(admin), ms.ID, opts)
	require.NoError(f.t, err)
	return out.Membership
}

func (f *fixture) review(rideID uuid.UUID) *lifecycle.Aggregate {
	agg, err := f.mgr.Review(f.ctx, lifecycle.SystemActor(), rideID)
	require.NoError(f.t, err)
	return agg
}

func (f *fixture) rideExists(rideID uuid.UUID) bool {
	_, err := f.mgr.Review(f.ctx, lifecycle.SystemActor(), rideID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return false
	}
	require.NoError(f.t, err)
	return true
}

func (f *fixture) suspendedOf(riderID uuid.UUID) *ride.Ride {
	var out *ride.Ride
	err := f.store.WithinTx(f.ctx, func(tx lifecycle.Tx) error {
		r, err := tx.SuspendedRideOf(f.ctx, riderID)
		out = r
		return err
	})
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	require.NoError(f.t, err)
	return out
}

func (f *fixture) membershipsOf(riderID uuid.UUID) []*membership.Membership {
	var out []*membership.Membership
	err := f.store.WithinTx(f.ctx, func(tx lifecycle.Tx) error {
		ms, err := tx.MembershipsOfRider(f.ctx, riderID)
		out = ms
		return err
	})
	require.NoError(f.t, err)
	return out
}

func actorOf(rd *rider.Rider) lifecycle.Actor {
	return lifecycle.Actor{UserID: rd.CreatorID}
}

func memberOf(agg *lifecycle.Aggregate, riderID uuid.UUID) *lifecycle.Member {
	return agg.MemberOf(riderID)
}

func keyCount(agg *lifecycle.Aggregate) int {
	n := 0
	for _, m := range agg.Members {
		if m.Membership.Status.IsKey() {
			n++
		}
	}
	return n
}

func hasEvent(events []lifecycle.Event, t lifecycle.EventType) bool {
	for _, e := range events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func at(t time.Time) *time.Time {
	return &t
}
