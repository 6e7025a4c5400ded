package memory

import (
	"context"
	"sync"

	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/google/uuid"
)

// Places is an in-memory place directory
type Places struct {
	mu            sync.RWMutex
	airports      map[uuid.UUID]uuid.UUID
	terminals     map[uuid.UUID]uuid.UUID
	neighborhoods map[uuid.UUID]uuid.UUID
}

// NewPlaces creates an empty directory
func NewPlaces() *Places {
	return &Places{
		airports:      map[uuid.UUID]uuid.UUID{},
		terminals:     map[uuid.UUID]uuid.UUID{},
		neighborhoods: map[uuid.UUID]uuid.UUID{},
	}
}

// AddAirport registers an airport in a metro area
func (p *Places) AddAirport(airportID, metroAreaID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.airports[airportID] = metroAreaID
}

// AddTerminal registers a terminal of an airport
func (p *Places) AddTerminal(terminalID, airportID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminals[terminalID] = airportID
}

// AddNeighborhood registers a neighborhood of a metro area
func (p *Places) AddNeighborhood(neighborhoodID, metroAreaID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.neighborhoods[neighborhoodID] = metroAreaID
}

// MetroAreaOfAirport resolves the airport's metro area
func (p *Places) MetroAreaOfAirport(ctx context.Context, airportID uuid.UUID) (uuid.UUID, error) {
	return p.lookup(p.airports, airportID, "airport")
}

// AirportOfTerminal resolves the terminal's airport
func (p *Places) AirportOfTerminal(ctx context.Context, terminalID uuid.UUID) (uuid.UUID, error) {
	return p.lookup(p.terminals, terminalID, "terminal")
}

// MetroAreaOfNeighborhood resolves the neighborhood's metro area
func (p *Places) MetroAreaOfNeighborhood(ctx context.Context, neighborhoodID uuid.UUID) (uuid.UUID, error) {
	return p.lookup(p.neighborhoods, neighborhoodID, "neighborhood")
}

func (p *Places) lookup(m map[uuid.UUID]uuid.UUID, id uuid.UUID, kind string) (uuid.UUID, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	parent, ok := m[id]
	if !ok {
		return uuid.Nil, apperrors.NotFound("Place not found", nil).WithDetail(kind, id.String())
	}
	return parent, nil
}
