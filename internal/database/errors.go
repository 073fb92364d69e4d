package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/safar/go-order-engine/internal/apperr"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure:
			return ErrorClassSerialization
		case codeDeadlockDetected:
			return ErrorClassDeadlock
		case codeLockNotAvailable:
			return ErrorClassTransient
		}
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique-constraint failure, optionally
// restricted to a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

var (
	ErrUserNotFound         = apperr.New(apperr.NotFound, "user not found")
	ErrStoreNotFound        = apperr.New(apperr.NotFound, "store not found")
	ErrProductNotFound      = apperr.New(apperr.NotFound, "product not found")
	ErrCartNotFound         = apperr.New(apperr.NotFound, "cart not found")
	ErrCartItemNotFound     = apperr.New(apperr.NotFound, "item not found in cart")
	ErrOrderNotFound        = apperr.New(apperr.NotFound, "order not found")
	ErrCartEmpty            = apperr.New(apperr.InvalidState, "your cart is empty, add items before checking out")
	ErrOutOfStock           = apperr.New(apperr.Conflict, "product is out of stock")
	ErrEmailTaken           = apperr.New(apperr.Conflict, "email is already registered")
	ErrStoreExists          = apperr.New(apperr.Conflict, "seller already owns a store")
	ErrOptimisticLockFailed = apperr.New(apperr.Conflict, "optimistic lock failed")
	ErrLockTimeout          = apperr.New(apperr.Conflict, "lock timeout")
)
