package repository

import (
	"fmt"

	"github.com/okian/voicebox/internal/domain/errs"
)

// Sentinel kinds for store errors. Each wraps a domain kind so callers can
// match either the specific or the general error.
var (
	ErrFeedbackNotFound = fmt.Errorf("feedback %w", errs.ErrNotFound)
	ErrTicketNotFound   = fmt.Errorf("ticket %w", errs.ErrNotFound)
	ErrAlreadyLinked    = fmt.Errorf("feedback already linked to a ticket: %w", errs.ErrAlreadyProcessed)
	ErrNotClaimable     = fmt.Errorf("feedback is not in a claimable state: %w", errs.ErrConflict)
	ErrUnsupportedDB    = fmt.Errorf("unsupported database driver: %w", errs.ErrConfiguration)
)
