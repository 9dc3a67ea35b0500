package worker

import (
	"github.com/okian/voicebox/pkg/logger"
)

// Option applies a configuration option to the TaskWorker.
type Option func(*TaskWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *TaskWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *TaskWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
