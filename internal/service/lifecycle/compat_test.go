package lifecycle_test

import (
	"testing"
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func compatRider(start time.Time, airport, metro uuid.UUID) *rider.Rider {
	return &rider.Rider{
		ID:          uuid.New(),
		CreatorID:   uuid.New(),
		DepartAt:    start,
		Direction:   rider.DirectionToAirport,
		AirportID:   airport,
		MetroAreaID: metro,
		Needs:       rider.Resources{Seats: 1},
		Preferences: rider.DefaultPreferences(),
	}
}

// TestMayAdmit_Windows checks the admission window boundary
func TestMayAdmit_Windows(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	airport, metro := uuid.New(), uuid.New()
	owner := compatRider(start, airport, metro)
	r := ride.NewFromRider(owner, start)

	tests := []struct {
		name   string
		offset time.Duration
		ok     bool
	}{
		{"same time", 0, true},
		{"exactly twelve hours later", lifecycle.AdmissionWindow, true},
		{"twelve hours earlier", -lifecycle.AdmissionWindow, true},
		{"just past the window", lifecycle.AdmissionWindow + time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := compatRider(start.Add(tt.offset), airport, metro)
			v := lifecycle.MayAdmit(r, rd, []*rider.Rider{owner})
			assert.Equal(t, tt.ok, v.OK())
			if !tt.ok {
				assert.Equal(t, []lifecycle.Failure{{Predicate: lifecycle.PredicateMayAdmit, Field: "start_at"}}, v.Failures)
				assert.Error(t, v.Err())
			} else {
				assert.NoError(t, v.Err())
			}
		})
	}
}

// TestMayAdmit_Route reports every mismatching route field
func TestMayAdmit_Route(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	owner := compatRider(start, uuid.New(), uuid.New())
	r := ride.NewFromRider(owner, start)

	rd := compatRider(start, uuid.New(), uuid.New())
	rd.Direction = rider.DirectionToCity
	v := lifecycle.MayAdmit(r, rd, nil)

	var fields []string
	for _, f := range v.Failures {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"direction", "airport", "metro_area"}, fields)
}

// TestMayKeep_RetentionWindow tolerates up to a day of drift
func TestMayKeep_RetentionWindow(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	airport, metro := uuid.New(), uuid.New()
	r := ride.NewFromRider(compatRider(start, airport, metro), start)

	assert.True(t, lifecycle.MayKeep(r, compatRider(start.Add(20*time.Hour), airport, metro)).OK())
	assert.False(t, lifecycle.MayKeep(r, compatRider(start.Add(25*time.Hour), airport, metro)).OK())
}

// TestMayAcceptChange keeps at least one stop and the start within a day
func TestMayAcceptChange(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	r := ride.NewFromRider(compatRider(start, uuid.New(), uuid.New()), start)
	stops := []ride.Stop{
		{Kind: ride.StopTerminal, Ordinal: 0, PlaceID: uuid.New()},
		{Kind: ride.StopCity, Ordinal: 0, PlaceID: uuid.New()},
	}
	late := start.Add(25 * time.Hour)

	tests := []struct {
		name  string
		terms negotiation.Terms
		field string
	}{
		{"close only", negotiation.Terms{CloseRide: true}, ""},
		{"start too far", negotiation.Terms{StartAt: &late}, "start_at"},
		{
			"every stop removed",
			negotiation.Terms{RemoveStops: []ride.StopRemoval{{Kind: ride.StopTerminal, Ordinal: 0}, {Kind: ride.StopCity, Ordinal: 0}}},
			"stops",
		},
		{"one stop kept", negotiation.Terms{RemoveStops: []ride.StopRemoval{{Kind: ride.StopCity, Ordinal: 0}}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := lifecycle.MayAcceptChange(r, stops, tt.terms)
			if tt.field == "" {
				assert.True(t, v.OK())
				return
			}
			assert.Equal(t, []lifecycle.Failure{{Predicate: lifecycle.PredicateMayAcceptChange, Field: tt.field}}, v.Failures)
		})
	}
}
