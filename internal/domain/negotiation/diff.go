package negotiation

import (
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/ride"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
)

// Diff lists the term fields on which a and b disagree. It is total: nil and
// empty stop lists are the same, and times compare by instant.
func Diff(a, b Terms) []string {
	a, b = a.Normalize(), b.Normalize()
	var fields []string
	if !equalTime(a.StartAt, b.StartAt) {
		fields = append(fields, "start_at")
	}
	if !equalAdditions(a.AddStops, b.AddStops) {
		fields = append(fields, "add_stops")
	}
	if !equalRemovals(a.RemoveStops, b.RemoveStops) {
		fields = append(fields, "remove_stops")
	}
	if !equalResources(a.Total, b.Total) {
		fields = append(fields, "total")
	}
	if !equalPolicies(a.Policies, b.Policies) {
		fields = append(fields, "policies")
	}
	if a.CloseRide != b.CloseRide {
		fields = append(fields, "close_ride")
	}
	return fields
}

// Equal reports whether two term bundles are structurally identical
func Equal(a, b Terms) bool {
	return len(Diff(a, b)) == 0
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalResources(a, b *rider.Resources) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalPolicies(a, b *rider.Preferences) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalAdditions(a, b []ride.StopAddition) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Ordinal != b[i].Ordinal || a[i].PlaceID != b[i].PlaceID {
			return false
		}
	}
	return true
}

func equalRemovals(a, b []ride.StopRemoval) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
