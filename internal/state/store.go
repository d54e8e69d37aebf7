package state

import (
	"sync"
	"time"

	"github.com/centralka/station-service/internal/protocol"
)

// TimeUnknown is the time-of-day placeholder reported before the first update.
const TimeUnknown = "--:--:--"

// Reading is the latest known sensor measurement. Temperature and Humidity
// are pass-through text from the device; a zero UpdatedAt means no message
// has been stored yet.
type Reading struct {
	Temperature string
	Humidity    string
	UpdatedAt   time.Time
}

// TimeOfDay renders the update time as HH:MM:SS, or TimeUnknown when the
// reading has never been updated.
func (r Reading) TimeOfDay() string {
	if r.UpdatedAt.IsZero() {
		return TimeUnknown
	}
	return r.UpdatedAt.Format("15:04:05")
}

// Store owns the single most-recent reading. All connection handlers write
// through Set and all HTTP handlers read through Snapshot; the store is the
// only place the reading is guarded.
type Store struct {
	mu      sync.RWMutex
	reading Reading
}

// NewStore creates a store initialized to the unknown sentinels.
func NewStore() *Store {
	return &Store{
		reading: Reading{
			Temperature: protocol.ValueUnknown,
			Humidity:    protocol.ValueUnknown,
		},
	}
}

// Set atomically replaces the stored reading. Both values come from the same
// device message; last writer wins.
func (s *Store) Set(temperature, humidity string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reading = Reading{
		Temperature: temperature,
		Humidity:    humidity,
		UpdatedAt:   at,
	}
}

// Snapshot returns a copy of the current reading. The copy is consistent:
// all three fields come from the same Set call.
func (s *Store) Snapshot() Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.reading
}
