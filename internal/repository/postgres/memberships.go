package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

const membershipColumns = `id, ride_id, rider_id, status, joined_at, request_id, counter_id,
	conversation_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMembership(row rowScanner) (*membership.Membership, error) {
	var (
		m              membership.Membership
		joinedAt       sql.NullTime
		requestID      uuid.NullUUID
		counterID      uuid.NullUUID
		conversationID uuid.NullUUID
	)
	err := row.Scan(&m.ID, &m.RideID, &m.RiderID, &m.Status, &joinedAt, &requestID, &counterID,
		&conversationID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if joinedAt.Valid {
		at := joinedAt.Time.UTC()
		m.JoinedAt = &at
	}
	m.RequestID = fromNullUUID(requestID)
	m.CounterID = fromNullUUID(counterID)
	m.ConversationID = fromNullUUID(conversationID)
	return &m, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// GetMembership returns a membership by ID
func (t *Tx) GetMembership(ctx context.Context, id uuid.UUID) (*membership.Membership, error) {
	m, err := scanMembership(t.tx.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, apperrors.ErrMembershipNotFound)
	}
	return m, nil
}

// FindMembership returns the rider's membership in the ride
func (t *Tx) FindMembership(ctx context.Context, rideID, riderID uuid.UUID) (*membership.Membership, error) {
	m, err := scanMembership(t.tx.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE ride_id = $1 AND rider_id = $2`,
		rideID, riderID))
	if err != nil {
		return nil, mapError(err, apperrors.ErrMembershipNotFound)
	}
	return m, nil
}

// ListMemberships returns the ride's memberships, oldest first
func (t *Tx) ListMemberships(ctx context.Context, rideID uuid.UUID) ([]*membership.Membership, error) {
	return t.memberships(ctx, `ride_id = $1`, rideID)
}

// MembershipsOfRider returns the rider's memberships, oldest first
func (t *Tx) MembershipsOfRider(ctx context.Context, riderID uuid.UUID) ([]*membership.Membership, error) {
	return t.memberships(ctx, `rider_id = $1`, riderID)
}

func (t *Tx) memberships(ctx context.Context, where string, id uuid.UUID) ([]*membership.Membership, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE `+where+` ORDER BY created_at, id`, id)
	if err != nil {
		return nil, mapError(err, nil)
	}
	defer rows.Close()

	var out []*membership.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertMembership adds a membership; a rider holds at most one per ride
func (t *Tx) InsertMembership(ctx context.Context, m *membership.Membership) error {
	return t.exec(ctx, nil, `
		INSERT INTO memberships (`+membershipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.RideID, m.RiderID, m.Status, nullTime(m.JoinedAt), nullUUID(m.RequestID),
		nullUUID(m.CounterID), nullUUID(m.ConversationID), m.CreatedAt, m.UpdatedAt)
}

// UpdateMembership replaces a stored membership
func (t *Tx) UpdateMembership(ctx context.Context, m *membership.Membership) error {
	return t.exec(ctx, apperrors.ErrMembershipNotFound, `
		UPDATE memberships SET
			status = $2, joined_at = $3, request_id = $4, counter_id = $5,
			conversation_id = $6, updated_at = $7
		WHERE id = $1
	`, m.ID, m.Status, nullTime(m.JoinedAt), nullUUID(m.RequestID), nullUUID(m.CounterID),
		nullUUID(m.ConversationID), m.UpdatedAt)
}

// DeleteMembership removes the membership; its requests cascade
func (t *Tx) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	return t.exec(ctx, apperrors.ErrMembershipNotFound, `DELETE FROM memberships WHERE id = $1`, id)
}

// GetRequest returns a change request or counter by ID
func (t *Tx) GetRequest(ctx context.Context, id uuid.UUID) (*negotiation.ChangeRequest, error) {
	var (
		c        negotiation.ChangeRequest
		terms    []byte
		original []byte
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, membership_id, counter, terms, original, created_at, updated_at
		FROM change_requests
		WHERE id = $1
	`, id).Scan(&c.ID, &c.MembershipID, &c.Counter, &terms, &original, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err, apperrors.ErrRequestNotFound)
	}
	if err := decode(terms, &c.Terms); err != nil {
		return nil, err
	}
	if len(original) > 0 {
		c.Original = &negotiation.Terms{}
		if err := decode(original, c.Original); err != nil {
			return nil, err
		}
	}
	c.Terms = c.Terms.Normalize()
	return &c, nil
}

// SaveRequest inserts or replaces a change request
func (t *Tx) SaveRequest(ctx context.Context, c *negotiation.ChangeRequest) error {
	terms, err := jsonb(c.Terms)
	if err != nil {
		return err
	}
	original, err := jsonb(c.Original)
	if err != nil {
		return err
	}
	return t.exec(ctx, nil, `
		INSERT INTO change_requests (id, membership_id, counter, terms, original, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			terms = EXCLUDED.terms,
			original = EXCLUDED.original,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.MembershipID, c.Counter, terms, original, c.CreatedAt, c.UpdatedAt)
}

// DeleteRequest removes a change request
func (t *Tx) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	return t.exec(ctx, nil, `DELETE FROM change_requests WHERE id = $1`, id)
}
