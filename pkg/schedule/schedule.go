// Package schedule holds the weekly open-hours calendar: an ordered list
// of time windows for each weekday, guarded by a single lock so full-week
// displays always see a consistent snapshot.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatwarden/pkg/logger"
	"chatwarden/pkg/timewindow"
)

// ErrInvalidDay is returned when a weekday token cannot be recognized.
var ErrInvalidDay = errors.New("invalid day")

var dayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseDay recognizes a weekday by full name or three-letter prefix,
// case-insensitive.
func ParseDay(s string) (time.Weekday, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	if day, ok := dayNames[token]; ok {
		return day, nil
	}
	if len(token) >= 3 {
		for name, day := range dayNames {
			if strings.HasPrefix(name, token) {
				return day, nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

// DayName returns the lowercase config name of a weekday.
func DayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// Week is the weekly schedule. Every weekday always has an entry; a day
// with no windows is closed all day. Windows keep their insertion order.
type Week struct {
	mu     sync.Mutex
	days   map[time.Weekday][]timewindow.Window
	logger *logger.Logger
}

// New creates an empty week with all seven days present.
func New() *Week {
	days := make(map[time.Weekday][]timewindow.Window, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[d] = nil
	}
	return &Week{
		days:   days,
		logger: logger.New("schedule"),
	}
}

// SessionsFor returns a copy of the day's windows. Callers can never
// mutate internal state through the return value.
func (w *Week) SessionsFor(day time.Weekday) []timewindow.Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]timewindow.Window(nil), w.days[day]...)
}

// SetSessions replaces the day's windows wholesale.
func (w *Week) SetSessions(day time.Weekday, sessions []timewindow.Window) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.days[day] = append([]timewindow.Window(nil), sessions...)
}

// AddSession appends a window to the day.
func (w *Week) AddSession(day time.Weekday, win timewindow.Window) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.days[day] = append(w.days[day], win)
}

// RemoveSession removes the window at index. An out-of-range index is a
// logged no-op, never an error to the caller.
func (w *Week) RemoveSession(day time.Weekday, index int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	sessions := w.days[day]
	if index < 0 || index >= len(sessions) {
		w.logger.Warn("Ignoring remove of session %d for %s: only %d session(s)", index, DayName(day), len(sessions))
		return
	}
	w.days[day] = append(sessions[:index], sessions[index+1:]...)
}

// ClearSessions empties the day. The day entry itself always remains.
func (w *Week) ClearSessions(day time.Weekday) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.days[day] = nil
}

// Snapshot returns a full copy of the schedule for displays.
func (w *Week) Snapshot() map[time.Weekday][]timewindow.Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[time.Weekday][]timewindow.Window, len(w.days))
	for day, sessions := range w.days {
		out[day] = append([]timewindow.Window(nil), sessions...)
	}
	return out
}

// OpenOn reports whether any of the day's windows is active at t. This is
// the logical OR over the day's windows.
func (w *Week) OpenOn(day time.Weekday, t time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, win := range w.days[day] {
		if win.ActiveAt(t) {
			return true
		}
	}
	return false
}

// OpenNow evaluates the schedule against the server's own clock. This is
// the single source of truth the warden polls.
func (w *Week) OpenNow() bool {
	now := time.Now()
	return w.OpenOn(now.Weekday(), now)
}

// OpenNowIn evaluates the schedule as seen from another location, for
// viewer-relative status displays.
func (w *Week) OpenNowIn(loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	now := time.Now().In(loc)
	return w.OpenOn(now.Weekday(), now)
}
