// Package ratelimit implements sliding-window admission control for outbound
// translation requests.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMinuteLimit = 10
	DefaultHourLimit   = 50

	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed     bool
	Reason      string
	MinuteCount int
	HourCount   int
}

// Limiter counts admitted requests over a trailing minute and hour. One
// instance is shared by every translation run in the process because the
// limits apply per provider account, not per article.
type Limiter struct {
	mu          sync.Mutex
	minuteLimit int
	hourLimit   int
	timestamps  []time.Time
}

func New(minuteLimit, hourLimit int) *Limiter {
	if minuteLimit <= 0 {
		minuteLimit = DefaultMinuteLimit
	}
	if hourLimit <= 0 {
		hourLimit = DefaultHourLimit
	}
	return &Limiter{
		minuteLimit: minuteLimit,
		hourLimit:   hourLimit,
		timestamps:  make([]time.Time, 0, hourLimit),
	}
}

func (l *Limiter) MinuteLimit() int { return l.minuteLimit }

func (l *Limiter) HourLimit() int { return l.hourLimit }

// CheckAndRecord prunes entries older than one hour, then admits the request
// at now if both windows have room. Only admitted requests are recorded.
func (l *Limiter) CheckAndRecord(now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)

	minuteStart := now.Add(-minuteWindow)
	minuteCount := 0
	for i := len(l.timestamps) - 1; i >= 0; i-- {
		if !l.timestamps[i].After(minuteStart) {
			break
		}
		minuteCount++
	}
	hourCount := len(l.timestamps)

	if minuteCount >= l.minuteLimit {
		return Decision{
			Reason: fmt.Sprintf(
				"rate limit exceeded: %d/%d requests in the last minute; wait a minute before translating again",
				minuteCount, l.minuteLimit,
			),
			MinuteCount: minuteCount,
			HourCount:   hourCount,
		}
	}
	if hourCount >= l.hourLimit {
		return Decision{
			Reason: fmt.Sprintf(
				"rate limit exceeded: %d/%d requests in the last hour; try again later",
				hourCount, l.hourLimit,
			),
			MinuteCount: minuteCount,
			HourCount:   hourCount,
		}
	}

	l.timestamps = append(l.timestamps, now)
	return Decision{
		Allowed: true,
		Reason: fmt.Sprintf(
			"request allowed: %d/%d this minute, %d/%d this hour",
			minuteCount+1, l.minuteLimit, hourCount+1, l.hourLimit,
		),
		MinuteCount: minuteCount + 1,
		HourCount:   hourCount + 1,
	}
}

// Usage reports the counts a check at now would see, without recording.
func (l *Limiter) Usage(now time.Time) (minuteCount, hourCount int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	minuteStart := now.Add(-minuteWindow)
	for _, ts := range l.timestamps {
		if ts.After(minuteStart) {
			minuteCount++
		}
	}
	return minuteCount, len(l.timestamps)
}

// prune drops timestamps older than the hour window. The slice is sorted
// ascending, so entries only leave from the head.
func (l *Limiter) prune(now time.Time) {
	hourStart := now.Add(-hourWindow)
	drop := 0
	for drop < len(l.timestamps) && l.timestamps[drop].Before(hourStart) {
		drop++
	}
	if drop > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[drop:]...)
	}
}
