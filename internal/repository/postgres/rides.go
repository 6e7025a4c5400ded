package postgres

import (
	"context"
	"database/sql"

	"github.com/gocomet/ride-pooling/internal/domain/ride"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

const rideColumns = `id, start_at, status, kind, direction, total, available, policies, public,
	airport_id, metro_area_id, suspended_for, created_at, updated_at`

func scanRide(row *sql.Row) (*ride.Ride, error) {
	var (
		r            ride.Ride
		total        []byte
		available    []byte
		policies     []byte
		suspendedFor uuid.NullUUID
	)
	err := row.Scan(
		&r.ID, &r.StartAt, &r.Status, &r.Kind, &r.Direction, &total, &available, &policies,
		&r.Public, &r.AirportID, &r.MetroAreaID, &suspendedFor, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, apperrors.ErrRideNotFound)
	}
	if err := decode(total, &r.Total); err != nil {
		return nil, err
	}
	if err := decode(available, &r.Available); err != nil {
		return nil, err
	}
	if err := decode(policies, &r.Policies); err != nil {
		return nil, err
	}
	r.SuspendedFor = fromNullUUID(suspendedFor)
	r.StartAt = r.StartAt.UTC()
	return &r, nil
}

func rideArgs(r *ride.Ride) ([]any, error) {
	total, err := jsonb(r.Total)
	if err != nil {
		return nil, err
	}
	available, err := jsonb(r.Available)
	if err != nil {
		return nil, err
	}
	policies, err := jsonb(r.Policies)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID, r.StartAt, r.Status, r.Kind, r.Direction, total, available, policies, r.Public,
		r.AirportID, r.MetroAreaID, nullUUID(r.SuspendedFor), r.CreatedAt, r.UpdatedAt,
	}, nil
}

// GetRide returns a ride by ID
func (t *Tx) GetRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	return scanRide(t.tx.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id))
}

// InsertRide adds a new ride
func (t *Tx) InsertRide(ctx context.Context, r *ride.Ride) error {
	args, err := rideArgs(r)
	if err != nil {
		return err
	}
	return t.exec(ctx, nil, `
		INSERT INTO rides (`+rideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, args...)
}

// UpdateRide replaces a stored ride
func (t *Tx) UpdateRide(ctx context.Context, r *ride.Ride) error {
	args, err := rideArgs(r)
	if err != nil {
		return err
	}
	// created_at ($13) never changes
	args = append(args[:12], args[13])
	return t.exec(ctx, apperrors.ErrRideNotFound, `
		UPDATE rides SET
			start_at = $2, status = $3, kind = $4, direction = $5, total = $6,
			available = $7, policies = $8, public = $9, airport_id = $10,
			metro_area_id = $11, suspended_for = $12, updated_at = $13
		WHERE id = $1
	`, args...)
}

// DeleteRide removes the ride; stops, memberships and requests cascade
func (t *Tx) DeleteRide(ctx context.Context, id uuid.UUID) error {
	return t.exec(ctx, apperrors.ErrRideNotFound, `DELETE FROM rides WHERE id = $1`, id)
}

// SuspendedRideOf returns the ride parked for the rider
func (t *Tx) SuspendedRideOf(ctx context.Context, riderID uuid.UUID) (*ride.Ride, error) {
	return scanRide(t.tx.QueryRowContext(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE suspended_for = $1`, riderID))
}

// ListStops returns the ride's stops, terminal stops first
func (t *Tx) ListStops(ctx context.Context, rideID uuid.UUID) ([]ride.Stop, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, ride_id, kind, ordinal, place_id, membership_id
		FROM stops
		WHERE ride_id = $1
		ORDER BY kind DESC, ordinal
	`, rideID)
	if err != nil {
		return nil, mapError(err, nil)
	}
	defer rows.Close()

	var stops []ride.Stop
	for rows.Next() {
		var (
			s            ride.Stop
			membershipID uuid.NullUUID
		)
		if err := rows.Scan(&s.ID, &s.RideID, &s.Kind, &s.Ordinal, &s.PlaceID, &membershipID); err != nil {
			return nil, err
		}
		s.MembershipID = fromNullUUID(membershipID)
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// ReplaceStops stores the ride's full stop ledger
func (t *Tx) ReplaceStops(ctx context.Context, rideID uuid.UUID, stops []ride.Stop) error {
	var exists bool
	if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)`, rideID).
		Scan(&exists); err != nil {
		return mapError(err, nil)
	}
	if !exists {
		return apperrors.ErrRideNotFound
	}

	if err := t.exec(ctx, nil, `DELETE FROM stops WHERE ride_id = $1`, rideID); err != nil {
		return err
	}
	for _, s := range stops {
		id := s.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		err := t.exec(ctx, nil, `
			INSERT INTO stops (id, ride_id, kind, ordinal, place_id, membership_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, rideID, s.Kind, s.Ordinal, s.PlaceID, nullUUID(s.MembershipID))
		if err != nil {
			return err
		}
	}
	return nil
}
