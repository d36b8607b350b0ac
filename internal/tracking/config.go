package tracking

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned by Validate and New for out-of-range parameters.
var ErrInvalidConfig = errors.New("invalid tracker config")

// Config holds the tunable parameters of the tracker and line counter.
type Config struct {
	MatchRadius  float64 // Max centroid distance (pixels, exclusive) to continue a track
	LinePosition int     // Y coordinate of the counting line
	ZoneOffset   int     // Half-height of the detection zone around the line
	ExpiryFrames int     // Consecutive unmatched frames tolerated before a track is dropped
}

// DefaultConfig returns default tracker configuration.
func DefaultConfig() Config {
	return Config{
		MatchRadius:  50,
		LinePosition: 550,
		ZoneOffset:   15,
		ExpiryFrames: 10,
	}
}

// Validate rejects configurations the tracker cannot run with.
func (c Config) Validate() error {
	if !(c.MatchRadius > 0) || math.IsInf(c.MatchRadius, 0) {
		return fmt.Errorf("%w: match radius must be finite and > 0, got %v", ErrInvalidConfig, c.MatchRadius)
	}
	if c.LinePosition < 0 {
		return fmt.Errorf("%w: line position must be >= 0, got %d", ErrInvalidConfig, c.LinePosition)
	}
	if c.ZoneOffset < 0 {
		return fmt.Errorf("%w: zone offset must be >= 0, got %d", ErrInvalidConfig, c.ZoneOffset)
	}
	if c.ExpiryFrames < 0 {
		return fmt.Errorf("%w: expiry frames must be >= 0, got %d", ErrInvalidConfig, c.ExpiryFrames)
	}
	return nil
}

// Zone returns the inclusive [min, max] band of y values where a crossing registers.
func (c Config) Zone() (int, int) {
	return c.LinePosition - c.ZoneOffset, c.LinePosition + c.ZoneOffset
}

// InZone reports whether y lies inside the detection zone (bounds inclusive).
func (c Config) InZone(y int) bool {
	lo, hi := c.Zone()
	return y >= lo && y <= hi
}
