package reading

import (
	"context"
	"fmt"
	"time"
)

// Reading is one decoded advertisement as stored and published.
//
// The JSON form is also the payload of the retained state topic.
type Reading struct {
	// Address is the normalised device address (lowercase, colon separated).
	Address string `json:"address"`

	// Kind is the decoder that produced the reading (ptm215b, bthome, ...).
	Kind string `json:"kind"`

	// RSSI is the signal strength reported by the scanner, in dBm.
	RSSI int `json:"rssi"`

	// Data holds the decoded fields. Values are numbers or booleans.
	Data map[string]any `json:"data"`

	// ReceivedAt is when the scanner saw the advertisement (UTC).
	ReceivedAt time.Time `json:"timestamp"`
}

// Validate checks the fields required to store a reading.
func (r Reading) Validate() error {
	if r.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidReading)
	}
	if r.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidReading)
	}
	return nil
}

// Repository stores and retrieves readings.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Save upserts the latest reading for (address, kind) and, when history
	// is enabled, appends it to the history.
	Save(ctx context.Context, r Reading) error

	// Latest returns the latest reading of every kind seen for address.
	// Returns ErrNotFound if the address has never been seen.
	Latest(ctx context.Context, address string) ([]Reading, error)

	// List returns the latest readings of all devices ordered by address.
	List(ctx context.Context) ([]Reading, error)

	// History returns up to limit readings for address, newest first.
	History(ctx context.Context, address string, limit int) ([]Reading, error)

	// Prune deletes history rows older than olderThan.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
