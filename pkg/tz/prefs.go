package tz

import (
	"errors"
	"fmt"

	"chatwarden/pkg/logger"
	"chatwarden/pkg/storage"
)

// ErrInvalidTimezone is returned when a user tries to set an unsupported
// abbreviation.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Prefs stores per-user timezone preferences.
type Prefs struct {
	store  *storage.Store
	logger *logger.Logger
}

// NewPrefs creates a preference store backed by the given storage.
func NewPrefs(store *storage.Store) *Prefs {
	return &Prefs{
		store:  store,
		logger: logger.New("tz"),
	}
}

func prefKey(userID int64) string {
	return fmt.Sprintf("tz:%d", userID)
}

// Set records the user's timezone abbreviation.
func (p *Prefs) Set(userID int64, abbr string) error {
	if !Valid(abbr) {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, abbr)
	}
	return p.store.Set(prefKey(userID), abbr)
}

// Get returns the user's abbreviation, or "" if none is set.
func (p *Prefs) Get(userID int64) string {
	var abbr string
	err := p.store.Get(prefKey(userID), &abbr)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Error("Failed to read timezone for user %d: %v", userID, err)
		}
		return ""
	}
	return abbr
}

// Clear removes the user's preference.
func (p *Prefs) Clear(userID int64) error {
	return p.store.Delete(prefKey(userID))
}
