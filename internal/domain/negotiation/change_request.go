package negotiation

import (
	"errors"
	"sort"
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/google/uuid"
)

var (
	ErrEmptyRequest      = errors.New("change request carries no changes")
	ErrInvalidStartAt    = errors.New("change request start time is invalid")
	ErrInvalidResources  = errors.New("change request resource counts must be non-negative")
	ErrInvalidPolicies   = errors.New("change request policies are invalid")
	ErrInvalidStopChange = errors.New("change request stop edit is invalid")
	ErrDuplicateRemoval  = errors.New("change request removes the same stop twice")
)

// Terms is the proposed modification bundle. Nil fields leave the ride as is.
type Terms struct {
	StartAt     *time.Time          `json:"start_at,omitempty"`
	AddStops    []ride.StopAddition `json:"add_stops,omitempty"`
	RemoveStops []ride.StopRemoval  `json:"remove_stops,omitempty"`
	Total       *rider.Resources    `json:"total,omitempty"`
	Policies    *rider.Preferences  `json:"policies,omitempty"`
	CloseRide   bool                `json:"close_ride"`
}

// ChangeRequest is an applicant's ask (Counter=false) or an admin's
// counter-proposal (Counter=true) attached to a membership.
type ChangeRequest struct {
	ID           uuid.UUID `json:"id"`
	MembershipID uuid.UUID `json:"membership_id"`
	Counter      bool      `json:"counter"`
	Terms
	// Original is the applicant's terms a counter answered; nil when the
	// applicant asked for nothing.
	Original  *Terms    `json:"original,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New builds an unsaved request for the membership
func New(membershipID uuid.UUID, counter bool, terms Terms, now time.Time) *ChangeRequest {
	return &ChangeRequest{
		ID:           uuid.New(),
		MembershipID: membershipID,
		Counter:      counter,
		Terms:        terms.Normalize(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsEmpty reports whether the terms change nothing
func (t Terms) IsEmpty() bool {
	return t.StartAt == nil && len(t.AddStops) == 0 && len(t.RemoveStops) == 0 &&
		t.Total == nil && t.Policies == nil && !t.CloseRide
}

// Validate checks the terms for malformed or self-inconsistent edits.
// The returned field name locates the problem.
func (t Terms) Validate() (string, error) {
	if t.IsEmpty() {
		return "terms", ErrEmptyRequest
	}
	if t.StartAt != nil && t.StartAt.IsZero() {
		return "start_at", ErrInvalidStartAt
	}
	if t.Total != nil && t.Total.Negative() != "" {
		return "total." + t.Total.Negative(), ErrInvalidResources
	}
	if t.Policies != nil && !t.Policies.IsValid() {
		return "policies", ErrInvalidPolicies
	}
	seen := map[ride.StopRemoval]bool{}
	for _, rm := range t.RemoveStops {
		if !rm.Kind.IsValid() || rm.Ordinal < 0 {
			return "remove_stops", ErrInvalidStopChange
		}
		if seen[rm] {
			return "remove_stops", ErrDuplicateRemoval
		}
		seen[rm] = true
	}
	for _, a := range t.AddStops {
		if !a.Kind.IsValid() || a.PlaceID == uuid.Nil {
			return "add_stops", ErrInvalidStopChange
		}
	}
	return "", nil
}

// Normalize returns a copy with stop edits in canonical order so that two
// equivalent bundles compare equal.
func (t Terms) Normalize() Terms {
	out := t
	if t.StartAt != nil {
		at := t.StartAt.UTC()
		out.StartAt = &at
	}
	out.AddStops = append([]ride.StopAddition(nil), t.AddStops...)
	sort.SliceStable(out.AddStops, func(i, j int) bool {
		a, b := out.AddStops[i], out.AddStops[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		return a.PlaceID.String() < b.PlaceID.String()
	})
	out.RemoveStops = append([]ride.StopRemoval(nil), t.RemoveStops...)
	sort.SliceStable(out.RemoveStops, func(i, j int) bool {
		a, b := out.RemoveStops[i], out.RemoveStops[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Ordinal < b.Ordinal
	})
	if len(out.AddStops) == 0 {
		out.AddStops = nil
	}
	if len(out.RemoveStops) == 0 {
		out.RemoveStops = nil
	}
	return out
}

// Replace overwrites the request's terms, keeping its identity and role
func (c *ChangeRequest) Replace(terms Terms, now time.Time) {
	c.Terms = terms.Normalize()
	c.UpdatedAt = now
}

// NewCounter builds an unsaved counter answering the given request, which may be nil
func NewCounter(membershipID uuid.UUID, terms Terms, answering *ChangeRequest, now time.Time) *ChangeRequest {
	c := New(membershipID, true, terms, now)
	c.Answer(answering)
	return c
}

// Answer records the request the counter supersedes
func (c *ChangeRequest) Answer(request *ChangeRequest) {
	c.Original = nil
	if request != nil {
		orig := request.Terms.Normalize()
		c.Original = &orig
	}
}

// StaleFields lists where the current request drifted from the one the
// counter answered. Both sides may be absent.
func (c *ChangeRequest) StaleFields(current *ChangeRequest) []string {
	switch {
	case c.Original == nil && current == nil:
		return nil
	case c.Original == nil:
		return []string{"request"}
	case current == nil:
		return []string{"request"}
	}
	return Diff(*c.Original, current.Terms)
}
