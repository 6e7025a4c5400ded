package negotiation

import (
	"testing"
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T {
	return &v
}

// TestDiff compares term bundles field by field
func TestDiff(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	place := uuid.New()
	base := Terms{
		StartAt:  ptr(start),
		AddStops: []ride.StopAddition{{Kind: ride.StopCity, Ordinal: 1, PlaceID: place}},
		Total:    &rider.Resources{Seats: 4},
	}

	tests := []struct {
		name  string
		other func() Terms
		want  []string
	}{
		{
			name:  "identical",
			other: func() Terms { return base },
			want:  nil,
		},
		{
			name: "same instant in another zone",
			other: func() Terms {
				o := base
				o.StartAt = ptr(start.In(time.FixedZone("UTC+3", 3*3600)))
				return o
			},
			want: nil,
		},
		{
			name: "moved start and closed",
			other: func() Terms {
				o := base
				o.StartAt = ptr(start.Add(time.Minute))
				o.CloseRide = true
				return o
			},
			want: []string{"start_at", "close_ride"},
		},
		{
			name: "stop dropped and policies added",
			other: func() Terms {
				o := base
				o.AddStops = []ride.StopAddition{}
				o.Policies = ptr(rider.DefaultPreferences())
				return o
			},
			want: []string{"add_stops", "policies"},
		},
		{
			name: "total changed",
			other: func() Terms {
				o := base
				o.Total = &rider.Resources{Seats: 3}
				return o
			},
			want: []string{"total"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(base, tt.other()))
			assert.Equal(t, len(tt.want) == 0, Equal(tt.other(), base))
		})
	}
}

// TestDiff_StopOrderIrrelevant treats edit lists as sets
func TestDiff_StopOrderIrrelevant(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	a := Terms{
		AddStops:    []ride.StopAddition{{Kind: ride.StopCity, Ordinal: 0, PlaceID: p1}, {Kind: ride.StopTerminal, Ordinal: 0, PlaceID: p2}},
		RemoveStops: []ride.StopRemoval{{Kind: ride.StopCity, Ordinal: 2}, {Kind: ride.StopCity, Ordinal: 1}},
	}
	b := Terms{
		AddStops:    []ride.StopAddition{{Kind: ride.StopTerminal, Ordinal: 0, PlaceID: p2}, {Kind: ride.StopCity, Ordinal: 0, PlaceID: p1}},
		RemoveStops: []ride.StopRemoval{{Kind: ride.StopCity, Ordinal: 1}, {Kind: ride.StopCity, Ordinal: 2}},
	}
	assert.True(t, Equal(a, b))
}

// TestValidate names the offending field
func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		terms Terms
		field string
		err   error
	}{
		{"empty", Terms{}, "terms", ErrEmptyRequest},
		{"zero start", Terms{StartAt: &time.Time{}}, "start_at", ErrInvalidStartAt},
		{"negative luggage", Terms{Total: &rider.Resources{Luggage: -1}}, "total.luggage", ErrInvalidResources},
		{"bad policy", Terms{Policies: &rider.Preferences{Payment: "barter"}}, "policies", ErrInvalidPolicies},
		{"unknown stop kind", Terms{RemoveStops: []ride.StopRemoval{{Kind: "dock"}}}, "remove_stops", ErrInvalidStopChange},
		{
			"duplicate removal",
			Terms{RemoveStops: []ride.StopRemoval{{Kind: ride.StopCity}, {Kind: ride.StopCity}}},
			"remove_stops", ErrDuplicateRemoval,
		},
		{"missing place", Terms{AddStops: []ride.StopAddition{{Kind: ride.StopCity}}}, "add_stops", ErrInvalidStopChange},
		{"close only", Terms{CloseRide: true}, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, err := tt.terms.Validate()
			assert.Equal(t, tt.field, field)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

// TestStaleFields tracks drift between a counter and the current request
func TestStaleFields(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	membershipID := uuid.New()
	req := New(membershipID, false, Terms{StartAt: ptr(now)}, now)
	counter := NewCounter(membershipID, Terms{StartAt: ptr(now.Add(time.Hour))}, req, now)

	assert.True(t, counter.Counter)
	assert.Empty(t, counter.StaleFields(req))

	req.Replace(Terms{StartAt: ptr(now), CloseRide: true}, now)
	assert.Equal(t, []string{"close_ride"}, counter.StaleFields(req))
	assert.Equal(t, []string{"request"}, counter.StaleFields(nil))

	unanswered := NewCounter(membershipID, Terms{CloseRide: true}, nil, now)
	assert.Empty(t, unanswered.StaleFields(nil))
	assert.Equal(t, []string{"request"}, unanswered.StaleFields(req))
}
