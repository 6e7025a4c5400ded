package rider

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validRider() *Rider {
	return &Rider{
		ID:          uuid.New(),
		CreatorID:   uuid.New(),
		DepartAt:    time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		Direction:   DirectionToCity,
		AirportID:   uuid.New(),
		Needs:       Resources{Seats: 2},
		Kind:        "shared_cab",
		Preferences: DefaultPreferences(),
	}
}

// TestRider_IsValid tests rider validation
func TestRider_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		mod     func(*Rider)
		wantErr bool
	}{
		{name: "valid", mod: func(r *Rider) {}},
		{name: "no creator", mod: func(r *Rider) { r.CreatorID = uuid.Nil }, wantErr: true},
		{name: "no departure", mod: func(r *Rider) { r.DepartAt = time.Time{} }, wantErr: true},
		{name: "unknown direction", mod: func(r *Rider) { r.Direction = "sideways" }, wantErr: true},
		{name: "no airport", mod: func(r *Rider) { r.AirportID = uuid.Nil }, wantErr: true},
		{name: "no seats", mod: func(r *Rider) { r.Needs.Seats = 0 }, wantErr: true},
		{name: "negative luggage", mod: func(r *Rider) { r.Needs.Luggage = -1 }, wantErr: true},
		{name: "bad policy", mod: func(r *Rider) { r.Preferences.Curb = "roof" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRider()
			tt.mod(r)
			if tt.wantErr {
				assert.ErrorIs(t, r.IsValid(), ErrInvalidRider)
			} else {
				assert.NoError(t, r.IsValid())
			}
		})
	}
}

// TestResources tests the element-wise arithmetic
func TestResources(t *testing.T) {
	a := Resources{Seats: 3, Luggage: 2, BabySeats: 1}
	b := Resources{Seats: 1, Luggage: 3, SportEquipment: 1}

	assert.Equal(t, Resources{Seats: 4, Luggage: 5, BabySeats: 1, SportEquipment: 1}, a.Add(b))
	diff := a.Sub(b)
	assert.Equal(t, "luggage", diff.Negative())
	assert.Equal(t, "", a.Negative())
}

// TestRider_TravelerSet tests that the creator always travels
func TestRider_TravelerSet(t *testing.T) {
	r := validRider()
	companion := uuid.New()
	r.Travelers = []uuid.UUID{companion, r.CreatorID}

	set := r.TravelerSet()
	assert.Len(t, set, 2)
	assert.Contains(t, set, r.CreatorID)
	assert.Contains(t, set, companion)
}
