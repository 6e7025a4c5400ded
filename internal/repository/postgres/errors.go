package postgres

import (
	"database/sql"
	"errors"

	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/lib/pq"
)

// PostgreSQL error codes the store translates
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
)

// missingParent maps a foreign key constraint to the error reported when the
// referenced row does not exist
var missingParent = map[string]*apperrors.AppError{
	"stops_ride_id_fkey":                 apperrors.ErrRideNotFound,
	"memberships_ride_id_fkey":           apperrors.ErrRideNotFound,
	"memberships_rider_id_fkey":          apperrors.ErrRiderNotFound,
	"change_requests_membership_id_fkey": apperrors.ErrMembershipNotFound,
}

// mapError translates driver errors into AppErrors. notFound, when set, is
// returned for sql.ErrNoRows.
func mapError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeUniqueViolation:
		return apperrors.Constraint("Storage constraint violated", err).
			WithDetail("constraint", pqErr.Constraint)
	case codeForeignKeyViolation:
		if parent, ok := missingParent[pqErr.Constraint]; ok {
			return parent
		}
		return apperrors.Constraint("Storage constraint violated", err).
			WithDetail("constraint", pqErr.Constraint)
	case codeSerialization, codeDeadlock:
		return apperrors.Conflict("Concurrent update, retry the operation", err)
	}
	return err
}
