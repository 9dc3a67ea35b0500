package api

import (
	"errors"
	"fmt"

	"github.com/okian/voicebox/internal/domain/errs"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = fmt.Errorf("bad request: %w", errs.ErrValidation)
	ErrLimitTooHigh = errors.New("limit exceeds maximum")
)

// NewKind tags kind with the handler op.
func NewKind(op string, kind error) error {
	return errs.E(op, kind)
}

// WrapKind tags cause with the handler op and kind.
func WrapKind(op string, kind, cause error) error {
	return errs.Wrap(op, kind, cause)
}

// Wrap prefixes err with the handler op, keeping its kind.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
