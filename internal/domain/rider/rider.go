package rider

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRider is returned for incomplete or inconsistent rider specs
var ErrInvalidRider = errors.New("invalid rider data")

// Direction is the travel direction relative to the airport
type Direction string

const (
	DirectionToAirport Direction = "to_airport"
	DirectionToCity    Direction = "to_city"
)

// IsValid validates the direction
func (d Direction) IsValid() bool {
	switch d {
	case DirectionToAirport, DirectionToCity:
		return true
	}
	return false
}

// Resources counts the four capacity dimensions a ride tracks.
type Resources struct {
	Seats          int `json:"seats"`
	Luggage        int `json:"luggage"`
	BabySeats      int `json:"baby_seats"`
	SportEquipment int `json:"sport_equipment"`
}

// Add returns the element-wise sum
func (r Resources) Add(o Resources) Resources {
	return Resources{
		Seats:          r.Seats + o.Seats,
		Luggage:        r.Luggage + o.Luggage,
		BabySeats:      r.BabySeats + o.BabySeats,
		SportEquipment: r.SportEquipment + o.SportEquipment,
	}
}

// Sub returns the element-wise difference
func (r Resources) Sub(o Resources) Resources {
	return Resources{
		Seats:          r.Seats - o.Seats,
		Luggage:        r.Luggage - o.Luggage,
		BabySeats:      r.BabySeats - o.BabySeats,
		SportEquipment: r.SportEquipment - o.SportEquipment,
	}
}

// Negative returns the name of the first dimension below zero, or "".
func (r Resources) Negative() string {
	switch {
	case r.Seats < 0:
		return "seats"
	case r.Luggage < 0:
		return "luggage"
	case r.BabySeats < 0:
		return "baby_seats"
	case r.SportEquipment < 0:
		return "sport_equipment"
	}
	return ""
}

// Payment is the payment policy of a rider or ride
type Payment string

const (
	PaymentAny  Payment = "any"
	PaymentCash Payment = "cash"
	PaymentCard Payment = "card"
)

// Allowance covers the yes/no/any policies (smoking, pets)
type Allowance string

const (
	AllowanceAny Allowance = "any"
	AllowanceYes Allowance = "yes"
	AllowanceNo  Allowance = "no"
)

// Curb is the pickup access policy
type Curb string

const (
	CurbAny      Curb = "any"
	CurbCurbside Curb = "curbside"
	CurbDoor     Curb = "door"
)

// Preferences is the four-policy set shared by riders and rides
type Preferences struct {
	Payment Payment   `json:"payment"`
	Smoking Allowance `json:"smoking"`
	Pets    Allowance `json:"pets"`
	Curb    Curb      `json:"curb"`
}

// IsValid validates every policy value
func (p Preferences) IsValid() bool {
	switch p.Payment {
	case PaymentAny, PaymentCash, PaymentCard:
	default:
		return false
	}
	for _, a := range []Allowance{p.Smoking, p.Pets} {
		switch a {
		case AllowanceAny, AllowanceYes, AllowanceNo:
		default:
			return false
		}
	}
	switch p.Curb {
	case CurbAny, CurbCurbside, CurbDoor:
		return true
	}
	return false
}

// DefaultPreferences accepts anything
func DefaultPreferences() Preferences {
	return Preferences{
		Payment: PaymentAny,
		Smoking: AllowanceAny,
		Pets:    AllowanceAny,
		Curb:    CurbAny,
	}
}

// Location is the city-side end of a trip
type Location struct {
	Address        string    `json:"address"`
	NeighborhoodID uuid.UUID `json:"neighborhood_id"`
}

// Rider represents one travel demand
type Rider struct {
	ID          uuid.UUID   `json:"id"`
	CreatorID   uuid.UUID   `json:"creator_id"`
	LegID       *uuid.UUID  `json:"leg_id,omitempty"`
	DepartAt    time.Time   `json:"depart_at"`
	Direction   Direction   `json:"direction"`
	Location    Location    `json:"location"`
	AirportID   uuid.UUID   `json:"airport_id"`
	TerminalID  uuid.UUID   `json:"terminal_id"`
	MetroAreaID uuid.UUID   `json:"metro_area_id"`
	Needs       Resources   `json:"needs"`
	Offer       *Resources  `json:"offer,omitempty"`
	Kind        string      `json:"kind"`
	Preferences Preferences `json:"preferences"`
	Travelers   []uuid.UUID `json:"travelers"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsValid validates the rider entity
func (r *Rider) IsValid() error {
	if r.ID == uuid.Nil || r.CreatorID == uuid.Nil {
		return ErrInvalidRider
	}
	if r.DepartAt.IsZero() || !r.Direction.IsValid() {
		return ErrInvalidRider
	}
	if r.AirportID == uuid.Nil {
		return ErrInvalidRider
	}
	if r.Needs.Seats < 1 || r.Needs.Negative() != "" {
		return ErrInvalidRider
	}
	if !r.Preferences.IsValid() {
		return ErrInvalidRider
	}
	return nil
}

// TravelerSet returns the travelers, always including the creator
func (r *Rider) TravelerSet() map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(r.Travelers)+1)
	set[r.CreatorID] = struct{}{}
	for _, t := range r.Travelers {
		set[t] = struct{}{}
	}
	return set
}
