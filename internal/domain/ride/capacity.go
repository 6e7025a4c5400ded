package ride

import (
	"github.com/gocomet/ride-pooling/internal/domain/rider"
)

// Usage sums the needs of every member still travelling in the ride.
func Usage(needs []rider.Resources) rider.Resources {
	var sum rider.Resources
	for _, n := range needs {
		sum = sum.Add(n)
	}
	return sum
}

// UpdateUsage recomputes availability from the active members' needs and
// derives the open/full/closed status. Availability never goes negative: the
// ride is left untouched and ErrCapacityExceeded returned instead.
func (r *Ride) UpdateUsage(needs []rider.Resources, closeRide bool) error {
	available := r.Total.Sub(Usage(needs))
	if available.Negative() != "" {
		return ErrCapacityExceeded
	}
	r.Available = available

	switch {
	case r.Status == StatusDisabled:
	case closeRide:
		r.Status = StatusClosed
	case r.IsSuspended():
		r.Status = StatusClosed
	case r.Status == StatusClosed:
	case available.Seats == 0:
		r.Status = StatusFull
	default:
		r.Status = StatusOpen
	}
	return nil
}
