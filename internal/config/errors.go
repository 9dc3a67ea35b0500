package config

import (
	"errors"
	"fmt"

	"github.com/okian/voicebox/internal/domain/errs"
)

// Both kinds match errs.ErrConfiguration, so a bad config surfaces as a
// configuration_error wherever it is reported.
var (
	ErrInvalidConfig = fmt.Errorf("invalid config: %w", errs.ErrConfiguration)
	ErrLoadConfig    = fmt.Errorf("load config failed: %w", errs.ErrConfiguration)
)

// IsConfigError reports whether err came from loading or validating config.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrLoadConfig)
}
