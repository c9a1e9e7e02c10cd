package attendance

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks malformed mark requests rejected before any write.
var ErrInvalidInput = errors.New("invalid input")

// WindowClosedError is returned when a write is attempted outside the
// nightly marking window, or with an explicit date that is not the current
// operational date. NextStart/NextEnd are for user display.
type WindowClosedError struct {
	Now       time.Time
	NextStart time.Time
	NextEnd   time.Time
}

func (e *WindowClosedError) Error() string {
	return fmt.Sprintf("attendance window closed; next window %s to %s",
		e.NextStart.Format("Mon 15:04"), e.NextEnd.Format("Mon 15:04"))
}

// invalidf wraps ErrInvalidInput with detail.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
