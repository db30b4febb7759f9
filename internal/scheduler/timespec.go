package scheduler

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
)

var (
	clockPattern    = regexp.MustCompile(`^(\d{2}):(\d{2})$`)
	intervalPattern = regexp.MustCompile(`^(?:(\d+)h)?\s*(?:(\d+)m)?$`)
)

// maxIntervalHours bounds relative specs to ten years.
const maxIntervalHours = 10 * 365 * 24

// ParseTimeSpec resolves a user time spec against localNow.
//
// "HH:MM" is the next occurrence of that wall-clock time: today if localNow is
// still before it, otherwise tomorrow. "2h 30m", "2h30m", "2h" and "30m" are
// offsets from localNow. The result is in localNow's location.
func ParseTimeSpec(spec string, localNow time.Time) (time.Time, error) {
	spec = strings.TrimSpace(spec)

	if m := clockPattern.FindStringSubmatch(spec); m != nil {
		return parseClock(spec, m[1], m[2], localNow)
	}

	if spec != "" {
		if m := intervalPattern.FindStringSubmatch(spec); m != nil {
			return parseInterval(spec, m[1], m[2], localNow)
		}
	}

	return time.Time{}, models.NewValidationError("time", "expected HH:MM or an interval like 2h 30m, got %q", spec)
}

func parseClock(spec, hh, mm string, localNow time.Time) (time.Time, error) {
	hour, _ := strconv.Atoi(hh)
	minute, _ := strconv.Atoi(mm)
	if hour > 23 || minute > 59 {
		return time.Time{}, models.NewValidationError("time", "%q is not a valid 24-hour clock time", spec)
	}

	y, mo, d := localNow.Date()
	candidate := time.Date(y, mo, d, hour, minute, 0, 0, localNow.Location())
	if localNow.Before(candidate) {
		return candidate, nil
	}
	return time.Date(y, mo, d+1, hour, minute, 0, 0, localNow.Location()), nil
}

func parseInterval(spec, hh, mm string, localNow time.Time) (time.Time, error) {
	var hours, minutes int64
	var err error
	if hh != "" {
		if hours, err = strconv.ParseInt(hh, 10, 64); err != nil || hours > maxIntervalHours {
			return time.Time{}, models.NewValidationError("time", "interval %q is too long", spec)
		}
	}
	if mm != "" {
		if minutes, err = strconv.ParseInt(mm, 10, 64); err != nil || minutes > maxIntervalHours*60 {
			return time.Time{}, models.NewValidationError("time", "interval %q is too long", spec)
		}
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if d == 0 {
		return time.Time{}, models.NewValidationError("time", "interval %q must be greater than zero", spec)
	}
	if d > maxIntervalHours*time.Hour {
		return time.Time{}, models.NewValidationError("time", "interval %q is too long", spec)
	}
	return localNow.Add(d), nil
}

var (
	hoursWord   = regexp.MustCompile(`^\d+h$`)
	minutesWord = regexp.MustCompile(`^\d+m$`)
)

// SplitTimeSpec takes the time spec off the front of whitespace-split args and
// returns it with the remaining words joined. "1h 30m" spans two words.
func SplitTimeSpec(args []string) (spec, rest string) {
	if len(args) == 0 {
		return "", ""
	}
	if len(args) >= 2 && hoursWord.MatchString(args[0]) && minutesWord.MatchString(args[1]) {
		return args[0] + " " + args[1], strings.Join(args[2:], " ")
	}
	return args[0], strings.Join(args[1:], " ")
}
