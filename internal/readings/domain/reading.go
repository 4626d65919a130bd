package readings

import "time"

// Reading is one raw interval reading for a metering channel.
// The span is half-open: energy was consumed in [Start, End).
type Reading struct {
	Channel       string
	Start         time.Time
	End           time.Time
	Value         float64 // watt hours; positive means consumed
	QualityMethod string  // provenance tag from the source file, may be empty
}

// Key is the identity of a reading. Re-inserting an existing key is a no-op.
type Key struct {
	Channel string
	Start   time.Time
	End     time.Time
}

// Key returns the identity key of the reading.
func (r Reading) Key() Key {
	return Key{Channel: r.Channel, Start: r.Start, End: r.End}
}

// Duration returns the length of the reading span.
func (r Reading) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Validate ensures basic invariants before a reading enters the store.
func (r Reading) Validate() error {
	if r.Channel == "" {
		return ErrEmptyChannel
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrInvalidSpan
	}
	if !r.End.After(r.Start) {
		return ErrInvalidSpan
	}
	return nil
}
