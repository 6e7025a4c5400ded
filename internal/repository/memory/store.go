// Package memory provides an in-memory transactional store for the ride
// lifecycle. Every transaction works on a copy of the state that replaces
// the committed state only when the transaction succeeds.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

type state struct {
	riders      map[uuid.UUID]rider.Rider
	rides       map[uuid.UUID]ride.Ride
	stops       map[uuid.UUID][]ride.Stop
	memberships map[uuid.UUID]membership.Membership
	requests    map[uuid.UUID]negotiation.ChangeRequest
}

func newState() *state {
	return &state{
		riders:      map[uuid.UUID]rider.Rider{},
		rides:       map[uuid.UUID]ride.Ride{},
		stops:       map[uuid.UUID][]ride.Stop{},
		memberships: map[uuid.UUID]membership.Membership{},
		requests:    map[uuid.UUID]negotiation.ChangeRequest{},
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.riders {
		out.riders[k] = cloneRider(v)
	}
	for k, v := range s.rides {
		out.rides[k] = cloneRide(v)
	}
	for k, v := range s.stops {
		out.stops[k] = cloneStops(v)
	}
	for k, v := range s.memberships {
		out.memberships[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = cloneRequest(v)
	}
	return out
}

// Store is an in-memory lifecycle.Store
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithinTx runs fn against a private copy of the state and commits it when
// fn succeeds. Transactions are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &Tx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Tx is one transaction's view of the store
type Tx struct {
	state *state
}

// GetRider returns a rider by ID
func (t *Tx) GetRider(ctx context.Context, id uuid.UUID) (*rider.Rider, error) {
	r, ok := t.state.riders[id]
	if !ok {
		return nil, apperrors.ErrRiderNotFound
	}
	out := cloneRider(r)
	return &out, nil
}

// SaveRider inserts or replaces a rider
func (t *Tx) SaveRider(ctx context.Context, r *rider.Rider) error {
	t.state.riders[r.ID] = cloneRider(*r)
	return nil
}

// DeleteRider removes a rider. Memberships must already be gone.
func (t *Tx) DeleteRider(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.riders[id]; !ok {
		return apperrors.ErrRiderNotFound
	}
	for _, m := range t.state.memberships {
		if m.RiderID == id {
			return apperrors.ErrConstraint.WithDetail("rider_id", id.String()).
				WithDetail("reason", "rider still holds memberships")
		}
	}
	delete(t.state.riders, id)
	return nil
}

// GetRide returns a ride by ID
func (t *Tx) GetRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	r, ok := t.state.rides[id]
	if !ok {
		return nil, apperrors.ErrRideNotFound
	}
	out := cloneRide(r)
	return &out, nil
}

// InsertRide adds a new ride
func (t *Tx) InsertRide(ctx context.Context, r *ride.Ride) error {
	if _, ok := t.state.rides[r.ID]; ok {
		return apperrors.ErrConstraint.WithDetail("ride_id", r.ID.String())
	}
	if err := t.checkSuspension(r); err != nil {
		return err
	}
	t.state.rides[r.ID] = cloneRide(*r)
	return nil
}

// UpdateRide replaces a stored ride
func (t *Tx) UpdateRide(ctx context.Context, r *ride.Ride) error {
	if _, ok := t.state.rides[r.ID]; !ok {
		return apperrors.ErrRideNotFound
	}
	if err := t.checkSuspension(r); err != nil {
		return err
	}
	t.state.rides[r.ID] = cloneRide(*r)
	return nil
}

// checkSuspension enforces at most one suspended ride per rider
func (t *Tx) checkSuspension(r *ride.Ride) error {
	if r.SuspendedFor == nil {
		return nil
	}
	for id, other := range t.state.rides {
		if id != r.ID && other.SuspendedFor != nil && *other.SuspendedFor == *r.SuspendedFor {
			return apperrors.ErrConstraint.WithDetail("suspended_for", r.SuspendedFor.String())
		}
	}
	return nil
}

// DeleteRide removes the ride with its stops, memberships and requests
func (t *Tx) DeleteRide(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.rides[id]; !ok {
		return apperrors.ErrRideNotFound
	}
	for mid, m := range t.state.memberships {
		if m.RideID == id {
			t.deleteMembership(mid)
		}
	}
	delete(t.state.stops, id)
	delete(t.state.rides, id)
	return nil
}

// SuspendedRideOf returns the ride parked for the rider
func (t *Tx) SuspendedRideOf(ctx context.Context, riderID uuid.UUID) (*ride.Ride, error) {
	for _, r := range t.state.rides {
		if r.SuspendedFor != nil && *r.SuspendedFor == riderID {
			out := cloneRide(r)
			return &out, nil
		}
	}
	return nil, apperrors.ErrRideNotFound
}

// ListStops returns the ride's stops, terminal stops first
func (t *Tx) ListStops(ctx context.Context, rideID uuid.UUID) ([]ride.Stop, error) {
	return cloneStops(t.state.stops[rideID]), nil
}

// ReplaceStops stores the ride's full stop ledger
func (t *Tx) ReplaceStops(ctx context.Context, rideID uuid.UUID, stops []ride.Stop) error {
	if _, ok := t.state.rides[rideID]; !ok {
		return apperrors.ErrRideNotFound
	}
	seen := map[ride.StopKind]map[int]bool{}
	for _, s := range stops {
		if seen[s.Kind] == nil {
			seen[s.Kind] = map[int]bool{}
		}
		if seen[s.Kind][s.Ordinal] {
			return apperrors.ErrConstraint.WithDetail("stop", string(s.Kind))
		}
		seen[s.Kind][s.Ordinal] = true
	}
	t.state.stops[rideID] = cloneStops(stops)
	return nil
}

// GetMembership returns a membership by ID
func (t *Tx) GetMembership(ctx context.Context, id uuid.UUID) (*membership.Membership, error) {
	m, ok := t.state.memberships[id]
	if !ok {
		return nil, apperrors.ErrMembershipNotFound
	}
	return &m, nil
}

// FindMembership returns the rider's membership in the ride
func (t *Tx) FindMembership(ctx context.Context, rideID, riderID uuid.UUID) (*membership.Membership, error) {
	for _, m := range t.state.memberships {
		if m.RideID == rideID && m.RiderID == riderID {
			out := m
			return &out, nil
		}
	}
	return nil, apperrors.ErrMembershipNotFound
}

// ListMemberships returns the ride's memberships, oldest first
func (t *Tx) ListMemberships(ctx context.Context, rideID uuid.UUID) ([]*membership.Membership, error) {
	return t.memberships(func(m membership.Membership) bool { return m.RideID == rideID }), nil
}

// MembershipsOfRider returns the rider's memberships, oldest first
func (t *Tx) MembershipsOfRider(ctx context.Context, riderID uuid.UUID) ([]*membership.Membership, error) {
	return t.memberships(func(m membership.Membership) bool { return m.RiderID == riderID }), nil
}

func (t *Tx) memberships(match func(membership.Membership) bool) []*membership.Membership {
	var out []*membership.Membership
	for _, m := range t.state.memberships {
		if match(m) {
			c := m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// InsertMembership adds a membership; a rider holds at most one per ride
func (t *Tx) InsertMembership(ctx context.Context, m *membership.Membership) error {
	if _, ok := t.state.rides[m.RideID]; !ok {
		return apperrors.ErrRideNotFound
	}
	if _, ok := t.state.riders[m.RiderID]; !ok {
		return apperrors.ErrRiderNotFound
	}
	for _, other := range t.state.memberships {
		if other.RideID == m.RideID && other.RiderID == m.RiderID {
			return apperrors.ErrConstraint.WithDetail("membership", "rider already belongs to ride")
		}
	}
	t.state.memberships[m.ID] = *m
	return nil
}

// UpdateMembership replaces a stored membership
func (t *Tx) UpdateMembership(ctx context.Context, m *membership.Membership) error {
	if _, ok := t.state.memberships[m.ID]; !ok {
		return apperrors.ErrMembershipNotFound
	}
	t.state.memberships[m.ID] = *m
	return nil
}

// DeleteMembership removes the membership with its requests
func (t *Tx) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.memberships[id]; !ok {
		return apperrors.ErrMembershipNotFound
	}
	t.deleteMembership(id)
	return nil
}

func (t *Tx) deleteMembership(id uuid.UUID) {
	for rid, r := range t.state.requests {
		if r.MembershipID == id {
			delete(t.state.requests, rid)
		}
	}
	delete(t.state.memberships, id)
}

// GetRequest returns a change request or counter by ID
func (t *Tx) GetRequest(ctx context.Context, id uuid.UUID) (*negotiation.ChangeRequest, error) {
	r, ok := t.state.requests[id]
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}
	out := cloneRequest(r)
	return &out, nil
}

// SaveRequest inserts or replaces a change request
func (t *Tx) SaveRequest(ctx context.Context, c *negotiation.ChangeRequest) error {
	if _, ok := t.state.memberships[c.MembershipID]; !ok {
		return apperrors.ErrMembershipNotFound
	}
	t.state.requests[c.ID] = cloneRequest(*c)
	return nil
}

// DeleteRequest removes a change request
func (t *Tx) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	delete(t.state.requests, id)
	return nil
}

func cloneRider(r rider.Rider) rider.Rider {
	r.Travelers = append([]uuid.UUID(nil), r.Travelers...)
	if r.Offer != nil {
		offer := *r.Offer
		r.Offer = &offer
	}
	return r
}

func cloneRide(r ride.Ride) ride.Ride {
	if r.SuspendedFor != nil {
		id := *r.SuspendedFor
		r.SuspendedFor = &id
	}
	return r
}

func cloneStops(stops []ride.Stop) []ride.Stop {
	if len(stops) == 0 {
		return nil
	}
	return append([]ride.Stop(nil), stops...)
}

func cloneTerms(t negotiation.Terms) negotiation.Terms {
	t.AddStops = append([]ride.StopAddition(nil), t.AddStops...)
	t.RemoveStops = append([]ride.StopRemoval(nil), t.RemoveStops...)
	return t.Normalize()
}

func cloneRequest(c negotiation.ChangeRequest) negotiation.ChangeRequest {
	c.Terms = cloneTerms(c.Terms)
	if c.Original != nil {
		orig := cloneTerms(*c.Original)
		c.Original = &orig
	}
	return c
}
