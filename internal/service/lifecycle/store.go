package lifecycle

import (
	"context"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/google/uuid"
)

// Store runs lifecycle operations inside one storage transaction.
// A nil error from fn commits; anything else rolls back.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional view of the ride/rider/membership tables.
// Lookups of missing rows return an errors.NotFound AppError, uniqueness
// violations an errors.Constraint AppError.
type Tx interface {
	GetRider(ctx context.Context, id uuid.UUID) (*rider.Rider, error)
	SaveRider(ctx context.Context, r *rider.Rider) error
	DeleteRider(ctx context.Context, id uuid.UUID) error

	GetRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error)
	InsertRide(ctx context.Context, r *ride.Ride) error
	UpdateRide(ctx context.Context, r *ride.Ride) error
	// DeleteRide removes the ride with its stops, memberships and their requests.
	DeleteRide(ctx context.Context, id uuid.UUID) error
	SuspendedRideOf(ctx context.Context, riderID uuid.UUID) (*ride.Ride, error)

	ListStops(ctx context.Context, rideID uuid.UUID) ([]ride.Stop, error)
	ReplaceStops(ctx context.Context, rideID uuid.UUID, stops []ride.Stop) error

	GetMembership(ctx context.Context, id uuid.UUID) (*membership.Membership, error)
	FindMembership(ctx context.Context, rideID, riderID uuid.UUID) (*membership.Membership, error)
	ListMemberships(ctx context.Context, rideID uuid.UUID) ([]*membership.Membership, error)
	MembershipsOfRider(ctx context.Context, riderID uuid.UUID) ([]*membership.Membership, error)
	InsertMembership(ctx context.Context, m *membership.Membership) error
	UpdateMembership(ctx context.Context, m *membership.Membership) error
	// DeleteMembership removes the membership with its requests.
	DeleteMembership(ctx context.Context, id uuid.UUID) error

	GetRequest(ctx context.Context, id uuid.UUID) (*negotiation.ChangeRequest, error)
	SaveRequest(ctx context.Context, c *negotiation.ChangeRequest) error
	DeleteRequest(ctx context.Context, id uuid.UUID) error
}

// Places resolves read-only reference data
type Places interface {
	MetroAreaOfAirport(ctx context.Context, airportID uuid.UUID) (uuid.UUID, error)
	AirportOfTerminal(ctx context.Context, terminalID uuid.UUID) (uuid.UUID, error)
	MetroAreaOfNeighborhood(ctx context.Context, neighborhoodID uuid.UUID) (uuid.UUID, error)
}
