package lifecycle

import (
	"strings"
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
)

// Compatibility windows between a rider's departure and a ride's start
const (
	AdmissionWindow = 12 * time.Hour
	RetentionWindow = 24 * time.Hour
)

// Predicate names reported in verdict failures
const (
	PredicateMayAdmit        = "may_admit"
	PredicateMayAcceptChange = "may_accept_change"
	PredicateMayKeep         = "may_keep"
)

// Failure is one failed check of a predicate
type Failure struct {
	Predicate string `json:"predicate"`
	Field     string `json:"field"`
}

// Verdict collects the failures of a compatibility predicate
type Verdict struct {
	Failures []Failure `json:"failures,omitempty"`
}

// OK reports whether every check passed
func (v Verdict) OK() bool {
	return len(v.Failures) == 0
}

func (v *Verdict) fail(predicate, field string) {
	v.Failures = append(v.Failures, Failure{Predicate: predicate, Field: field})
}

// Err converts a failed verdict into an IncompatibleError naming the
// predicate and fields; it returns nil for a passing verdict.
func (v Verdict) Err() error {
	if v.OK() {
		return nil
	}
	fields := make([]string, 0, len(v.Failures))
	for _, f := range v.Failures {
		fields = append(fields, f.Field)
	}
	return apperrors.ErrIncompatible.
		WithDetail("predicate", v.Failures[0].Predicate).
		WithDetail("fields", strings.Join(fields, ","))
}

func within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

func sameRoute(v *Verdict, predicate string, r *ride.Ride, rd *rider.Rider) {
	if r.Direction != rd.Direction {
		v.fail(predicate, "direction")
	}
	if r.AirportID != rd.AirportID {
		v.fail(predicate, "airport")
	}
	if r.MetroAreaID != rd.MetroAreaID {
		v.fail(predicate, "metro_area")
	}
}

// MayAdmit checks that an applicant can join the ride alongside its current
// members: start within AdmissionWindow, same direction, airport and metro
// area, and no traveler already riding.
func MayAdmit(r *ride.Ride, rd *rider.Rider, members []*rider.Rider) Verdict {
	var v Verdict
	if !within(rd.DepartAt, r.StartAt, AdmissionWindow) {
		v.fail(PredicateMayAdmit, "start_at")
	}
	sameRoute(&v, PredicateMayAdmit, r, rd)
	travelers := rd.TravelerSet()
	for _, m := range members {
		if m.ID == rd.ID {
			continue
		}
		overlap := false
		for t := range m.TravelerSet() {
			if _, ok := travelers[t]; ok {
				overlap = true
				break
			}
		}
		if overlap {
			v.fail(PredicateMayAdmit, "travelers")
			break
		}
	}
	return v
}

// MayAcceptChange checks that a change bundle keeps the ride recognisable:
// a new start within RetentionWindow of the current one and at least one
// surviving stop.
func MayAcceptChange(r *ride.Ride, stops []ride.Stop, t negotiation.Terms) Verdict {
	var v Verdict
	if t.StartAt != nil && !within(*t.StartAt, r.StartAt, RetentionWindow) {
		v.fail(PredicateMayAcceptChange, "start_at")
	}
	if len(stops) > 0 && len(t.RemoveStops) > 0 {
		removed := map[ride.StopRemoval]bool{}
		for _, rm := range t.RemoveStops {
			removed[rm] = true
		}
		retained := 0
		for _, s := range stops {
			if !removed[ride.StopRemoval{Kind: s.Kind, Ordinal: s.Ordinal}] {
				retained++
			}
		}
		if retained == 0 {
			v.fail(PredicateMayAcceptChange, "stops")
		}
	}
	return v
}

// MayKeep checks that a member whose own terms changed still fits the ride:
// start within RetentionWindow and the same direction, airport and metro area.
func MayKeep(r *ride.Ride, rd *rider.Rider) Verdict {
	var v Verdict
	if !within(rd.DepartAt, r.StartAt, RetentionWindow) {
		v.fail(PredicateMayKeep, "start_at")
	}
	sameRoute(&v, PredicateMayKeep, r, rd)
	return v
}
