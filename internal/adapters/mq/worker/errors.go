package worker

import "errors"

// ErrUnknownKind is returned for a task no handler is registered for.
var ErrUnknownKind = errors.New("no handler for task kind")
