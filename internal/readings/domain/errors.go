package readings

import "errors"

var (
	// ErrEmptyChannel is returned when a reading has no channel tag.
	ErrEmptyChannel = errors.New("readings: empty channel")
	// ErrInvalidSpan is returned when a reading span is zero, negative or unset.
	ErrInvalidSpan = errors.New("readings: interval end not after start")
	// ErrEmptyMeterID is returned when the meter id is missing.
	ErrEmptyMeterID = errors.New("readings: empty meter id")
)
