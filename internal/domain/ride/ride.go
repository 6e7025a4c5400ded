package ride

import (
	"errors"
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/google/uuid"
)

// Status represents ride status
type Status string

const (
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
	StatusFull     Status = "full"
	StatusDisabled Status = "disabled"
)

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusFull, StatusDisabled:
		return true
	}
	return false
}

// Kind is the vehicle arrangement of a ride
type Kind string

const (
	KindSharedCab   Kind = "shared_cab"
	KindCabRide     Kind = "cab_ride"
	KindOwnCar      Kind = "own_car"
	KindRentalCar   Kind = "rental_car"
	KindRelativeCar Kind = "relative_car"
)

// IsValid validates the kind
func (k Kind) IsValid() bool {
	switch k {
	case KindSharedCab, KindCabRide, KindOwnCar, KindRentalCar, KindRelativeCar:
		return true
	}
	return false
}

// AllowsSharing reports whether ownership may pass to another member.
// Car kinds belong to whoever brings the car.
func (k Kind) AllowsSharing() bool {
	return k == KindSharedCab || k == KindCabRide
}

// KeyStatus is the status the creating rider holds for this kind
func (k Kind) KeyStatus() membership.Status {
	switch k {
	case KindOwnCar, KindRentalCar:
		return membership.StatusDriver
	case KindCabRide, KindRelativeCar:
		return membership.StatusProvider
	}
	return membership.StatusOwner
}

// DefaultCapacity returns the totals a ride of this kind starts with
func (k Kind) DefaultCapacity() rider.Resources {
	switch k {
	case KindOwnCar, KindRentalCar, KindRelativeCar:
		return rider.Resources{Seats: 4, Luggage: 3, BabySeats: 0, SportEquipment: 1}
	}
	return rider.Resources{Seats: 4, Luggage: 4, BabySeats: 1, SportEquipment: 2}
}

var ErrCapacityExceeded = errors.New("ride capacity exceeded")

// Ride represents a schedulable shared-vehicle instance
type Ride struct {
	ID           uuid.UUID         `json:"id"`
	StartAt      time.Time         `json:"start_at"`
	Status       Status            `json:"status"`
	Kind         Kind              `json:"kind"`
	Direction    rider.Direction   `json:"direction"`
	Total        rider.Resources   `json:"total"`
	Available    rider.Resources   `json:"available"`
	Policies     rider.Preferences `json:"policies"`
	Public       bool              `json:"public"`
	AirportID    uuid.UUID         `json:"airport_id"`
	MetroAreaID  uuid.UUID         `json:"metro_area_id"`
	SuspendedFor *uuid.UUID        `json:"suspended_for,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// IsSuspended reports whether the ride is a parked fallback
func (r *Ride) IsSuspended() bool {
	return r.SuspendedFor != nil
}

// Suspend parks the ride for the given rider
func (r *Ride) Suspend(riderID uuid.UUID) {
	id := riderID
	r.SuspendedFor = &id
	r.Status = StatusClosed
}

// Reactivate unparks the ride and reopens it
func (r *Ride) Reactivate() {
	r.SuspendedFor = nil
	if r.Status == StatusClosed {
		r.Status = StatusOpen
	}
}

// AcceptsMembers reports whether new applicants may be admitted
func (r *Ride) AcceptsMembers() bool {
	return r.Status == StatusOpen && !r.IsSuspended()
}

// ApplySpecs copies the schedule, route and policy fields from a rider
func (r *Ride) ApplySpecs(rd *rider.Rider) {
	r.StartAt = rd.DepartAt
	r.Direction = rd.Direction
	r.AirportID = rd.AirportID
	r.MetroAreaID = rd.MetroAreaID
	r.Policies = rd.Preferences
}

// NewFromRider builds an unsaved ride shaped after the rider's specs
func NewFromRider(rd *rider.Rider, now time.Time) *Ride {
	kind := Kind(rd.Kind)
	if !kind.IsValid() {
		kind = KindSharedCab
	}
	total := kind.DefaultCapacity()
	if rd.Offer != nil && !kind.AllowsSharing() {
		total = *rd.Offer
	}
	r := &Ride{
		ID:        uuid.New(),
		Status:    StatusOpen,
		Kind:      kind,
		Total:     total,
		Available: total,
		Public:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.ApplySpecs(rd)
	return r
}
