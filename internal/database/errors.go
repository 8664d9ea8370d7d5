package database

import "errors"

// ErrConcurrentModification is returned when a rental row changed under an update.
var ErrConcurrentModification = errors.New("concurrent modification detected")
