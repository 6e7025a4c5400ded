package lifecycle

import (
	"context"
	"time"

	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/pkg/logger"
	"github.com/google/uuid"
)

// Manager orchestrates every mutation of the ride/rider/membership graph.
// Each public operation runs in a single store transaction and returns the
// events it produced once the transaction has committed.
type Manager struct {
	store  Store
	places Places
	logger *logger.Logger
	clock  func() time.Time
}

// Outcome is the result of a committed lifecycle operation
type Outcome struct {
	RideID     uuid.UUID              `json:"ride_id"`
	Membership *membership.Membership `json:"membership,omitempty"`
	Events     []Event                `json:"events"`
}

// Option customizes a Manager
type Option func(*Manager)

// WithClock overrides the time source stamped on entities and events
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// NewManager creates a new lifecycle manager
func NewManager(store Store, places Places, log *logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		places: places,
		logger: log,
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// session carries one transaction's state through the orchestration helpers
type session struct {
	ctx    context.Context
	tx     Tx
	m      *Manager
	now    time.Time
	events []Event
	// doomed riders are being deleted and never inherit a ride
	doomed map[uuid.UUID]bool
}

func (m *Manager) run(ctx context.Context, op string, fn func(s *session) (*Outcome, error)) (*Outcome, error) {
	var out *Outcome
	var events []Event
	err := m.store.WithinTx(ctx, func(tx Tx) error {
		s := &session{ctx: ctx, tx: tx, m: m, now: m.clock(), doomed: map[uuid.UUID]bool{}}
		o, err := fn(s)
		if err != nil {
			return err
		}
		out = o
		events = s.events
		return nil
	})
	if err != nil {
		m.logger.Warn("Lifecycle operation rejected",
			logger.String("operation", op),
			logger.Err(err),
		)
		return nil, err
	}
	if out == nil {
		out = &Outcome{}
	}
	out.Events = events

	fields := []logger.Field{
		logger.String("operation", op),
		logger.RideID(out.RideID),
		logger.Int("events", len(events)),
	}
	if out.Membership != nil {
		fields = append(fields,
			logger.MembershipID(out.Membership.ID),
			logger.RiderID(out.Membership.RiderID),
			logger.String("status", string(out.Membership.Status)),
		)
	}
	m.logger.Info("Lifecycle operation committed", fields...)
	return out, nil
}

func outcome(rideID uuid.UUID, m *membership.Membership) *Outcome {
	return &Outcome{RideID: rideID, Membership: m}
}
