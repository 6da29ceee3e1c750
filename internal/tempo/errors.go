package tempo

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration   = errors.New("invalid tempo configuration")
	ErrTempoOutOfRange = errors.New("tempo out of range")
)

// ConfigurationError reports partition parameters that violate 0 <= start < end <= max, increment > 0.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// TempoOutOfRangeError is returned when a track's effective tempo reaches the maximum tempo.
type TempoOutOfRangeError struct {
	TrackID string
	Tempo   float64
	Max     int
}

func (e *TempoOutOfRangeError) Error() string {
	return fmt.Sprintf("track %s: tempo %g is not below maximum allowed tempo %d", e.TrackID, e.Tempo, e.Max)
}

func (e *TempoOutOfRangeError) Is(target error) bool {
	return target == ErrTempoOutOfRange
}
