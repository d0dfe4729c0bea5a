// Package remind resolves natural-language reminder times and arms one-shot
// notifications for them.
package remind

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// "in 5 minutes", "after 2m", "for 10 mins", "in 1 hour", "after 30 seconds"
	relativePattern = regexp.MustCompile(`(?i)\b(?:in|after|for)\s*(\d+)\s*(seconds?|secs?|minutes?|mins?|hours?|hrs?|h|m|s)\b`)
	// "2:30pm", "14:45", "7 am", "9"
	clockPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s?([ap]m)?\b`)
)

// Resolve parses a time expression relative to now. Relative offsets are
// tried first, then clock times; a clock time that is not strictly after now
// means the same time tomorrow. The boolean is false when nothing matched or
// the result would not lie strictly after now.
func Resolve(expr string, now time.Time) (time.Time, bool) {
	if m := relativePattern.FindStringSubmatch(expr); m != nil {
		at, ok := resolveRelative(m, now)
		if !ok || !at.After(now) {
			slog.Debug("remind.Resolve: relative offset out of range", "expr", expr)
			return time.Time{}, false
		}
		slog.Debug("remind.Resolve: relative time", "expr", expr, "fire_at", at)
		return at, true
	}
	if at, ok := resolveClock(expr, now); ok {
		slog.Debug("remind.Resolve: clock time", "expr", expr, "fire_at", at)
		return at, true
	}
	slog.Debug("remind.Resolve: unrecognised time expression", "expr", expr)
	return time.Time{}, false
}

// resolveRelative applies a relativePattern match. Offsets that do not fit
// in a time.Duration are rejected.
func resolveRelative(m []string, now time.Time) (time.Time, bool) {
	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	var unit time.Duration
	switch strings.ToLower(m[2])[0] {
	case 'h':
		unit = time.Hour
	case 'm':
		unit = time.Minute
	case 's':
		unit = time.Second
	default:
		return time.Time{}, false
	}
	if amount > math.MaxInt64/int64(unit) {
		return time.Time{}, false
	}
	return now.Add(time.Duration(amount) * unit), true
}

func resolveClock(expr string, now time.Time) (time.Time, bool) {
	m := clockPattern.FindStringSubmatch(expr)
	if m == nil {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	minute := 0
	if m[2] != "" {
		if minute, err = strconv.Atoi(m[2]); err != nil {
			return time.Time{}, false
		}
	}

	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, true
}
