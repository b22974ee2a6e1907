// Package roster tracks which members are currently in the managed chat.
// Telegram does not expose a member list to bots, so the bot maintains
// its own from join and leave updates, persisted so it survives restarts.
package roster

import (
	"errors"
	"fmt"
	"time"

	"chatwarden/pkg/logger"
	"chatwarden/pkg/storage"
)

// Member is one tracked chat member.
type Member struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// Roster is the persistent member registry.
type Roster struct {
	store  *storage.Store
	logger *logger.Logger
}

// New creates a roster backed by the given storage.
func New(store *storage.Store) *Roster {
	return &Roster{
		store:  store,
		logger: logger.New("roster"),
	}
}

func memberKey(chatID, userID int64) string {
	return fmt.Sprintf("roster:%d:%d", chatID, userID)
}

// Add records a member. Re-adding an existing member refreshes the record.
func (r *Roster) Add(chatID int64, member Member) error {
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	return r.store.Set(memberKey(chatID, member.UserID), member)
}

// Remove forgets a member. Removing an unknown member is a no-op.
func (r *Roster) Remove(chatID, userID int64) error {
	return r.store.Delete(memberKey(chatID, userID))
}

// Members returns all tracked members of the chat.
func (r *Roster) Members(chatID int64) ([]Member, error) {
	prefix := fmt.Sprintf("roster:%d:", chatID)
	keys, err := r.store.List(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}

	members := make([]Member, 0, len(keys))
	for _, key := range keys {
		var member Member
		if err := r.store.Get(key, &member); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue // removed between List and Get
			}
			r.logger.Error("Failed to read roster entry %s: %v", key, err)
			continue
		}
		members = append(members, member)
	}
	return members, nil
}

// IDs returns just the member IDs of the chat.
func (r *Roster) IDs(chatID int64) ([]int64, error) {
	members, err := r.Members(chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}
