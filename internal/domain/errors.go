package domain

import "errors"

// ErrInUse is returned by store deletes when rentals still reference the row.
var ErrInUse = errors.New("still referenced by rentals")
