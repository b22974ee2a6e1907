package schedule

import (
	"errors"
	"fmt"

	"chatwarden/pkg/logger"
	"chatwarden/pkg/storage"
	"chatwarden/pkg/timewindow"
)

// scheduleKey is the storage key holding the whole week.
const scheduleKey = "schedule"

// Store persists the week to BadgerDB as lists of "HH:mm-HH:mm" strings
// keyed by lowercase weekday name, the same shape an operator would write
// by hand.
type Store struct {
	store  *storage.Store
	logger *logger.Logger
}

// NewStore creates a schedule store backed by the given storage.
func NewStore(store *storage.Store) *Store {
	return &Store{
		store:  store,
		logger: logger.New("schedule"),
	}
}

// Load populates the week from storage. A missing record leaves the week
// empty; a malformed session string is skipped with a warning so one bad
// entry never takes the whole schedule down.
func (s *Store) Load(week *Week) error {
	var raw map[string][]string
	err := s.store.Get(scheduleKey, &raw)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Info("No stored schedule, starting empty")
			return nil
		}
		return fmt.Errorf("failed to load schedule: %w", err)
	}

	for name, entries := range raw {
		day, err := ParseDay(name)
		if err != nil {
			s.logger.Warn("Skipping unknown day %q in stored schedule", name)
			continue
		}

		var sessions []timewindow.Window
		for _, entry := range entries {
			win, err := timewindow.Parse(entry)
			if err != nil {
				s.logger.Warn("Skipping malformed session %q for %s: %v", entry, name, err)
				continue
			}
			sessions = append(sessions, win)
		}
		week.SetSessions(day, sessions)
	}

	return nil
}

// Save writes the whole week to storage in canonical form.
func (s *Store) Save(week *Week) error {
	raw := make(map[string][]string, 7)
	for day, sessions := range week.Snapshot() {
		entries := make([]string, 0, len(sessions))
		for _, win := range sessions {
			entries = append(entries, win.String())
		}
		raw[DayName(day)] = entries
	}

	if err := s.store.Set(scheduleKey, raw); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}
