package helpers

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type SignalDeskError struct {
	Message string
	Cause   error
}

func (e *SignalDeskError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SignalDeskError) Unwrap() error {
	return e.Cause
}

// Distinct error types for type assertions where callers care
type NetworkError struct{ SignalDeskError }
type SourceError struct{ SignalDeskError }
type StorageError struct{ SignalDeskError }

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times
// with exponential backoff.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		fmt.Printf("Warning: Attempt %d/%d failed for %s: %v. Retrying in %v\n", attempt+1, maxRetries, operation, err, delay)
		time.Sleep(delay)
	}

	return lastErr
}
