package ride

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

// StopKind distinguishes terminal-side from city-side stops
type StopKind string

const (
	StopTerminal StopKind = "terminal"
	StopCity     StopKind = "city"
)

// IsValid validates the stop kind
func (k StopKind) IsValid() bool {
	return k == StopTerminal || k == StopCity
}

var ErrUnknownStop = errors.New("stop ordinal does not exist")

// Stop is one pickup or drop point of a ride. PlaceID references a terminal
// for terminal stops and a neighborhood for city stops.
type Stop struct {
	ID           uuid.UUID  `json:"id"`
	RideID       uuid.UUID  `json:"ride_id"`
	Kind         StopKind   `json:"kind"`
	Ordinal      int        `json:"ordinal"`
	PlaceID      uuid.UUID  `json:"place_id"`
	MembershipID *uuid.UUID `json:"membership_id,omitempty"`
}

// StopAddition inserts a place at Ordinal, or appends when Ordinal is out of range.
type StopAddition struct {
	Kind         StopKind   `json:"kind"`
	Ordinal      int        `json:"ordinal"`
	PlaceID      uuid.UUID  `json:"place_id"`
	MembershipID *uuid.UUID `json:"membership_id,omitempty"`
}

// StopRemoval names an existing stop by kind and current ordinal
type StopRemoval struct {
	Kind    StopKind `json:"kind"`
	Ordinal int      `json:"ordinal"`
}

// UpdateStops applies removals (against current ordinals) and then additions,
// and returns the ledger renumbered so each kind runs 0..n-1. The input slice
// is not modified. A place already present for a kind is not added twice.
func UpdateStops(rideID uuid.UUID, stops []Stop, add []StopAddition, remove []StopRemoval) ([]Stop, error) {
	byKind := map[StopKind][]Stop{}
	for _, s := range stops {
		byKind[s.Kind] = append(byKind[s.Kind], s)
	}
	for k := range byKind {
		sortByOrdinal(byKind[k])
	}

	drop := map[StopKind]map[int]bool{}
	for _, rm := range remove {
		if !rm.Kind.IsValid() {
			return nil, ErrUnknownStop
		}
		found := false
		for _, s := range byKind[rm.Kind] {
			if s.Ordinal == rm.Ordinal {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrUnknownStop
		}
		if drop[rm.Kind] == nil {
			drop[rm.Kind] = map[int]bool{}
		}
		drop[rm.Kind][rm.Ordinal] = true
	}
	for k, list := range byKind {
		kept := list[:0:0]
		for _, s := range list {
			if !drop[k][s.Ordinal] {
				kept = append(kept, s)
			}
		}
		byKind[k] = kept
	}

	sorted := append([]StopAddition(nil), add...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })
	for _, a := range sorted {
		if !a.Kind.IsValid() {
			return nil, ErrUnknownStop
		}
		list := byKind[a.Kind]
		if hasPlace(list, a.PlaceID) {
			continue
		}
		stop := Stop{
			ID:           uuid.New(),
			RideID:       rideID,
			Kind:         a.Kind,
			PlaceID:      a.PlaceID,
			MembershipID: a.MembershipID,
		}
		pos := a.Ordinal
		if pos < 0 || pos > len(list) {
			pos = len(list)
		}
		list = append(list, Stop{})
		copy(list[pos+1:], list[pos:])
		list[pos] = stop
		byKind[a.Kind] = list
	}

	out := make([]Stop, 0, len(stops)+len(add))
	for _, k := range []StopKind{StopTerminal, StopCity} {
		for i, s := range byKind[k] {
			s.Ordinal = i
			s.RideID = rideID
			out = append(out, s)
		}
	}
	return out, nil
}

// RemoveMemberStops drops every stop tagged with the membership and renumbers.
func RemoveMemberStops(rideID uuid.UUID, stops []Stop, membershipID uuid.UUID) []Stop {
	var remove []StopRemoval
	for _, s := range stops {
		if s.MembershipID != nil && *s.MembershipID == membershipID {
			remove = append(remove, StopRemoval{Kind: s.Kind, Ordinal: s.Ordinal})
		}
	}
	out, err := UpdateStops(rideID, stops, nil, remove)
	if err != nil {
		// removals were taken from the ledger itself
		return stops
	}
	return out
}

// Contiguous reports whether the ordinals of the kind form exactly 0..n-1.
func Contiguous(stops []Stop, kind StopKind) bool {
	seen := map[int]bool{}
	n := 0
	for _, s := range stops {
		if s.Kind != kind {
			continue
		}
		if seen[s.Ordinal] {
			return false
		}
		seen[s.Ordinal] = true
		n++
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			return false
		}
	}
	return true
}

// Count returns how many stops of the kind the ledger holds
func Count(stops []Stop, kind StopKind) int {
	n := 0
	for _, s := range stops {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func sortByOrdinal(list []Stop) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Ordinal < list[j].Ordinal })
}

func hasPlace(list []Stop, place uuid.UUID) bool {
	for _, s := range list {
		if s.PlaceID == place {
			return true
		}
	}
	return false
}
