package chrono

import (
	"context"
	"math/rand"
	"time"
)

// DefaultLocation is the timezone the portal publishes its dates in.
const DefaultLocation = "Asia/Kolkata"

type TimeAPI interface {
	Now() time.Time
	Location() *time.Location
}

// SleepAPI is every pacing delay in the scrapers, tests replace it so that
// backoff and politeness delays do not slow them down.
type SleepAPI interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl(tz string) (StandardImpl, error) {
	if tz == "" {
		tz = DefaultLocation
	}
	location, err := time.LoadLocation(tz)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	if s.location == nil {
		return time.Now()
	}
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	if s.location == nil {
		return time.Local
	}
	return s.location
}

// Sleep blocks for d or until ctx is done, whichever happens first.
func (StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jitter returns a uniformly random value in [ms - floor(ms*pct), ms + floor(ms*pct)].
func Jitter(ms int64, pct float64) int64 {
	delta := int64(float64(ms) * pct)
	low := ms - delta
	if low < 0 {
		low = 0
	}
	high := ms + delta
	if high < low {
		return low
	}
	return low + rand.Int63n(high-low+1)
}

// JitterDuration is Jitter at millisecond resolution.
func JitterDuration(d time.Duration, pct float64) time.Duration {
	return time.Duration(Jitter(d.Milliseconds(), pct)) * time.Millisecond
}
