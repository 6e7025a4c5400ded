package postgres

import (
	"context"
	"errors"

	"github.com/gocomet/ride-pooling/internal/domain/rider"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const riderColumns = `id, creator_id, leg_id, depart_at, direction, address, neighborhood_id,
	airport_id, terminal_id, metro_area_id, needs, offer, kind, preferences, travelers,
	created_at, updated_at`

// GetRider returns a rider by ID
func (t *Tx) GetRider(ctx context.Context, id uuid.UUID) (*rider.Rider, error) {
	var (
		r         rider.Rider
		legID     uuid.NullUUID
		needs     []byte
		offer     []byte
		prefs     []byte
		travelers pq.StringArray
	)
	err := t.tx.QueryRowContext(ctx, `SELECT `+riderColumns+` FROM riders WHERE id = $1`, id).Scan(
		&r.ID, &r.CreatorID, &legID, &r.DepartAt, &r.Direction, &r.Location.Address,
		&r.Location.NeighborhoodID, &r.AirportID, &r.TerminalID, &r.MetroAreaID,
		&needs, &offer, &r.Kind, &prefs, &travelers, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, apperrors.ErrRiderNotFound)
	}

	r.LegID = fromNullUUID(legID)
	if err := decode(needs, &r.Needs); err != nil {
		return nil, err
	}
	if len(offer) > 0 {
		r.Offer = &rider.Resources{}
		if err := decode(offer, r.Offer); err != nil {
			return nil, err
		}
	}
	if err := decode(prefs, &r.Preferences); err != nil {
		return nil, err
	}
	for _, s := range travelers {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		r.Travelers = append(r.Travelers, id)
	}
	r.DepartAt = r.DepartAt.UTC()
	return &r, nil
}

// SaveRider inserts or replaces a rider
func (t *Tx) SaveRider(ctx context.Context, r *rider.Rider) error {
	needs, err := jsonb(r.Needs)
	if err != nil {
		return err
	}
	offer, err := jsonb(r.Offer)
	if err != nil {
		return err
	}
	prefs, err := jsonb(r.Preferences)
	if err != nil {
		return err
	}
	travelers := make(pq.StringArray, 0, len(r.Travelers))
	for _, id := range r.Travelers {
		travelers = append(travelers, id.String())
	}

	return t.exec(ctx, nil, `
		INSERT INTO riders (`+riderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::uuid[], $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			leg_id = EXCLUDED.leg_id,
			depart_at = EXCLUDED.depart_at,
			direction = EXCLUDED.direction,
			address = EXCLUDED.address,
			neighborhood_id = EXCLUDED.neighborhood_id,
			airport_id = EXCLUDED.airport_id,
			terminal_id = EXCLUDED.terminal_id,
			metro_area_id = EXCLUDED.metro_area_id,
			needs = EXCLUDED.needs,
			offer = EXCLUDED.offer,
			kind = EXCLUDED.kind,
			preferences = EXCLUDED.preferences,
			travelers = EXCLUDED.travelers,
			updated_at = EXCLUDED.updated_at
	`,
		r.ID, r.CreatorID, nullUUID(r.LegID), r.DepartAt, r.Direction, r.Location.Address,
		r.Location.NeighborhoodID, r.AirportID, r.TerminalID, r.MetroAreaID,
		needs, offer, r.Kind, prefs, travelers, r.CreatedAt, r.UpdatedAt,
	)
}

// DeleteRider removes a rider. Memberships must already be gone.
func (t *Tx) DeleteRider(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM riders WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation {
			return apperrors.ErrConstraint.WithDetail("rider_id", id.String()).
				WithDetail("reason", "rider still holds memberships")
		}
		return mapError(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrRiderNotFound
	}
	return nil
}
