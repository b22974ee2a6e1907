// Package timewindow models a single open window as a start/end pair of
// times of day, with parsing of the human time formats accepted by the
// schedule commands (21:00, 9pm, 9:30pm, 2100).
package timewindow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeFormat is returned when a time string cannot be parsed.
var ErrInvalidTimeFormat = errors.New("invalid time format")

// maxTimeStringLen guards against absurdly long input from chat commands.
const maxTimeStringLen = 20

// Clock is a time of day with minute resolution.
type Clock struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns the clock as minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Before reports whether c is strictly earlier in the day than o.
func (c Clock) Before(o Clock) bool {
	return c.Minutes() < o.Minutes()
}

// String renders the canonical zero-padded 24-hour form.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses a single time of day. Accepted forms:
//
//	24-hour:  H:mm, HH:mm
//	12-hour:  Ham, Hpm, H:mmam, H:mmpm (case-insensitive)
//	compact:  HMM, HHMM
func ParseClock(s string) (Clock, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Clock{}, fmt.Errorf("%w: empty time string", ErrInvalidTimeFormat)
	}
	if len(s) > maxTimeStringLen {
		return Clock{}, fmt.Errorf("%w: time string too long", ErrInvalidTimeFormat)
	}

	if strings.Contains(s, "am") || strings.Contains(s, "pm") {
		return parse12Hour(s)
	}
	if strings.Contains(s, ":") {
		return parse24Hour(s)
	}
	return parseCompact(s)
}

func parse12Hour(s string) (Clock, error) {
	isPM := strings.Contains(s, "pm")
	s = strings.TrimSpace(strings.NewReplacer("am", "", "pm", "").Replace(s))

	parts := strings.Split(s, ":")
	if len(parts) > 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	minute := 0
	if len(parts) == 2 {
		minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
	}

	if hour < 1 || hour > 12 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q out of range", ErrInvalidTimeFormat, s)
	}

	// 12am is midnight, 12pm is noon
	if isPM && hour != 12 {
		hour += 12
	} else if !isPM && hour == 12 {
		hour = 0
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

func parse24Hour(s string) (Clock, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts[1]) != 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q out of range", ErrInvalidTimeFormat, s)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

func parseCompact(s string) (Clock, error) {
	if len(s) != 3 && len(s) != 4 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	hour, err := strconv.Atoi(s[:len(s)-2])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	minute, err := strconv.Atoi(s[len(s)-2:])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q out of range", ErrInvalidTimeFormat, s)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

// Window is a start/end pair of times of day. Start == End or Start after
// End means the window crosses midnight; an equal pair is therefore always
// active, and callers that consider that a configuration error have to
// reject it before constructing the window.
type Window struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// New builds a window from two time strings.
func New(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// Parse parses the canonical "HH:mm-HH:mm" form (either side may use any
// format ParseClock accepts).
func Parse(s string) (Window, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("%w: %q (expected start-end)", ErrInvalidTimeFormat, s)
	}
	return New(parts[0], parts[1])
}

// CrossesMidnight reports whether the window wraps past midnight.
func (w Window) CrossesMidnight() bool {
	return !w.Start.Before(w.End)
}

// ActiveAt reports whether t's time of day falls inside the window.
// Start is inclusive, End is exclusive.
func (w Window) ActiveAt(t time.Time) bool {
	now := t.Hour()*60 + t.Minute()
	if w.CrossesMidnight() {
		return now >= w.Start.Minutes() || now < w.End.Minutes()
	}
	return now >= w.Start.Minutes() && now < w.End.Minutes()
}

// ActiveIn projects t into the given location before the activity test.
// A nil location means the system-local zone.
func (w Window) ActiveIn(t time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	return w.ActiveAt(t.In(loc))
}

// String renders the canonical "HH:mm-HH:mm" form. Parse(w.String())
// reproduces w for any constructible window.
func (w Window) String() string {
	return fmt.Sprintf("%s-%s", w.Start, w.End)
}
