package chrono

import (
	"context"
	"time"
)

// TimeAPI is the interface anything depending on the system clock or on
// sleeping should use.
type TimeAPI interface {
	// Now returns the current time in Location().
	Now() time.Time
	// Sleep blocks for d, returning early with ctx.Err() if ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
	Location() *time.Location
}

// LoadLocation resolves an IANA timezone name, the empty string means the
// local timezone of the machine.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// StandardTime is the TimeAPI backed by the real clock.
type StandardTime struct {
	location *time.Location
}

func NewStandardTime(location *time.Location) StandardTime {
	if location == nil {
		location = time.Local
	}
	return StandardTime{location: location}
}

func (s StandardTime) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardTime) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s StandardTime) Location() *time.Location {
	return s.location
}
