package reminder

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the accepted date format.
	DateLayout = "2006-01-02"
	// ClockLayout is the accepted time-of-day format.
	ClockLayout = "15:04"
)

const maxDelaySeconds = math.MaxInt64 / int64(time.Second)

// ParseDelay parses the whole-seconds argument of /remind.
func ParseDelay(arg string) (time.Duration, error) {
	arg = strings.TrimSpace(arg)
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		reason := ReasonFormat
		if errors.Is(err, strconv.ErrRange) {
			reason = ReasonRange
		}
		return 0, &ValidationError{Field: "seconds", Input: arg, Reason: reason}
	}
	if n < 0 {
		return 0, &ValidationError{Field: "seconds", Input: arg, Reason: ReasonNegative}
	}
	if n > maxDelaySeconds {
		return 0, &ValidationError{Field: "seconds", Input: arg, Reason: ReasonRange}
	}
	return time.Duration(n) * time.Second, nil
}

// ParseDate parses a YYYY-MM-DD date in loc. Dates before the day of now (in loc) are
// rejected; today is accepted.
func ParseDate(input string, now time.Time, loc *time.Location) (time.Time, error) {
	input = strings.TrimSpace(input)
	d, err := time.ParseInLocation(DateLayout, input, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Input: input, Reason: ReasonFormat}
	}
	if d.Before(startOfDay(now.In(loc))) {
		return time.Time{}, &ValidationError{Field: "date", Input: input, Reason: ReasonPast}
	}
	return d, nil
}

// CombineClock parses an HH:MM time and places it on date. The result must be strictly
// after now, otherwise *PastTimeError is returned.
func CombineClock(date time.Time, input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	clock, err := time.Parse(ClockLayout, input)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "time", Input: input, Reason: ReasonFormat}
	}
	at := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, date.Location())
	if !at.After(now) {
		return time.Time{}, &PastTimeError{FireAt: at, Now: now}
	}
	return at, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
