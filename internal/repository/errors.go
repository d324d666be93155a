package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate marks writes rejected by a unique constraint. The constraint
// is the authoritative uniqueness check; any pre-read in the service layer is
// only a fast path.
var ErrDuplicate = errors.New("duplicate row")

const uniqueViolationCode = "23505"

func wrapUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
