package ipmon

import (
	"fmt"
	"time"
)

// FetchError is returned when the current address cannot be fetched or
// parsed. It is transient: the monitor abandons the cycle and tries again at
// the next one.
type FetchError struct {
	Source string
	Err    error
}

func (err *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch address from %s: %v", err.Source, err.Err)
}

func (err *FetchError) Unwrap() error { return err.Err }

// InvalidIntervalError is returned when an interval below the minimum is
// configured.
type InvalidIntervalError struct {
	Interval time.Duration
	Minimum  time.Duration
}

func (err *InvalidIntervalError) Error() string {
	return fmt.Sprintf("interval %v is below the minimum of %v", err.Interval, err.Minimum)
}
