package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gocomet/ride-pooling/pkg/cache"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/gocomet/ride-pooling/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Places reads the airport, terminal and neighborhood reference tables.
// Lookups are cached in Redis when a client is configured; reference data
// never changes while the service runs.
type Places struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewPlaces creates a place directory. redisClient may be nil.
func NewPlaces(db *sql.DB, redisClient *redis.Client, ttl time.Duration, log *logger.Logger) *Places {
	return &Places{db: db, redis: redisClient, ttl: ttl, logger: log}
}

// MetroAreaOfAirport returns the metro area an airport serves
func (p *Places) MetroAreaOfAirport(ctx context.Context, airportID uuid.UUID) (uuid.UUID, error) {
	return p.lookup(ctx, "airport", `SELECT metro_area_id FROM airports WHERE id = $1`, airportID)
}

// AirportOfTerminal returns the airport a terminal belongs to
func (p *Places) AirportOfTerminal(ctx context.Context, terminalID uuid.UUID) (uuid.UUID, error) {
	return p.lookup(ctx, "terminal", `SELECT airport_id FROM terminals WHERE id = $1`, terminalID)
}

// MetroAreaOfNeighborhood returns the metro area of a neighborhood
func (p *Places) MetroAreaOfNeighborhood(ctx context.Context, neighborhoodID uuid.UUID) (uuid.UUID, error) {
	return p.lookup(ctx, "neighborhood", `SELECT metro_area_id FROM neighborhoods WHERE id = $1`, neighborhoodID)
}

func (p *Places) lookup(ctx context.Context, kind, query string, id uuid.UUID) (uuid.UUID, error) {
	key := fmt.Sprintf("place:%s:%s", kind, id)
	if p.redis != nil {
		val, found, err := cache.Get(ctx, p.redis, key)
		if err != nil {
			p.logger.Warn("Place cache read failed", logger.String("key", key), logger.Err(err))
		} else if found {
			if parent, err := uuid.Parse(val); err == nil {
				return parent, nil
			}
		}
	}

	var parent uuid.UUID
	err := p.db.QueryRowContext(ctx, query, id).Scan(&parent)
	if err != nil {
		return uuid.Nil, mapError(err, apperrors.NotFound("Place not found", nil).
			WithDetail(kind, id.String()))
	}

	if p.redis != nil {
		if err := cache.SetWithExpiry(ctx, p.redis, key, parent.String(), p.ttl); err != nil {
			p.logger.Warn("Place cache write failed", logger.String("key", key), logger.Err(err))
		}
	}
	return parent, nil
}
