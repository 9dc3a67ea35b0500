package pipeline

import (
	"time"

	"github.com/okian/voicebox/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfidenceThreshold sets the minimum confidence a synthesized
// candidate needs to become a ticket.
func WithConfidenceThreshold(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t <= 1 {
			s.threshold = t
		}
	}
}

// WithFeedbackLimit caps how much recent feedback synthesis reads.
func WithFeedbackLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.feedbackLimit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
