package dto

import (
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/domain/rider"
	"github.com/google/uuid"
)

// RiderRequest carries a rider's travel specs for create and update
type RiderRequest struct {
	LegID          *uuid.UUID         `json:"leg_id"`
	DepartAt       time.Time          `json:"depart_at" binding:"required"`
	Direction      rider.Direction    `json:"direction" binding:"required,oneof=to_airport to_city"`
	Address        string             `json:"address"`
	NeighborhoodID uuid.UUID          `json:"neighborhood_id"`
	AirportID      uuid.UUID          `json:"airport_id" binding:"required"`
	TerminalID     uuid.UUID          `json:"terminal_id"`
	Needs          rider.Resources    `json:"needs"`
	Offer          *rider.Resources   `json:"offer"`
	Kind           string             `json:"kind" binding:"required"`
	Preferences    *rider.Preferences `json:"preferences"`
	Travelers      []uuid.UUID        `json:"travelers"`
}

// ToRider builds the domain rider. Missing preferences accept anything.
func (r RiderRequest) ToRider(id uuid.UUID) *rider.Rider {
	prefs := rider.DefaultPreferences()
	if r.Preferences != nil {
		prefs = *r.Preferences
	}
	return &rider.Rider{
		ID:        id,
		LegID:     r.LegID,
		DepartAt:  r.DepartAt.UTC(),
		Direction: r.Direction,
		Location: rider.Location{
			Address:        r.Address,
			NeighborhoodID: r.NeighborhoodID,
		},
		AirportID:   r.AirportID,
		TerminalID:  r.TerminalID,
		Needs:       r.Needs,
		Offer:       r.Offer,
		Kind:        r.Kind,
		Preferences: prefs,
		Travelers:   r.Travelers,
	}
}

// DeleteRidersRequest removes several riders in one transaction
type DeleteRidersRequest struct {
	RiderIDs []uuid.UUID `json:"rider_ids" binding:"required,min=1"`
}

// ApplyRequest asks to join a ride, optionally with a change request
type ApplyRequest struct {
	RiderID uuid.UUID          `json:"rider_id" binding:"required"`
	Terms   *negotiation.Terms `json:"terms"`
}

// UpdateApplicationRequest replaces or withdraws the applicant's change request
type UpdateApplicationRequest struct {
	Terms *negotiation.Terms `json:"terms"`
}

// SaveRequest bookmarks a ride for a rider
type SaveRequest struct {
	RiderID uuid.UUID `json:"rider_id" binding:"required"`
}

// AdmitRequest selects how an application is admitted
type AdmitRequest struct {
	AcceptRequest bool `json:"accept_request"`
	AsAdmin       bool `json:"as_admin"`
}

// ExpelRequest removes an active member. Status is "left" or "denied" and
// defaults to "left".
type ExpelRequest struct {
	Status string `json:"status" binding:"omitempty,oneof=left denied"`
}

// TermsRequest carries a counter-proposal or the counter being agreed to
type TermsRequest struct {
	Terms negotiation.Terms `json:"terms"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}
