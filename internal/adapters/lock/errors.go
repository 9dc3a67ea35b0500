package lock

import "errors"

// ErrNotAcquired is returned when ctx ends before the lock frees up.
var ErrNotAcquired = errors.New("lock not acquired")
