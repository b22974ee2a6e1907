package telegram

import (
	"context"

	"chatwarden/pkg/logger"
	"chatwarden/pkg/roster"
)

// GroupHost adapts the bot and roster to the warden's view of one managed
// chat: list members, evict a member, broadcast to everyone.
type GroupHost struct {
	bot    *Bot
	roster *roster.Roster
	chatID int64
	logger *logger.Logger
}

// NewGroupHost creates a host for the given chat.
func NewGroupHost(bot *Bot, r *roster.Roster, chatID int64) *GroupHost {
	return &GroupHost{
		bot:    bot,
		roster: r,
		chatID: chatID,
		logger: logger.New("host"),
	}
}

// Members returns the IDs of the tracked chat members.
func (h *GroupHost) Members(ctx context.Context) ([]int64, error) {
	return h.roster.IDs(h.chatID)
}

// Evict kicks one member from the chat. The message is delivered as a
// direct message on a best-effort basis: it only arrives if the member
// has started the bot, so a delivery failure is not an eviction failure.
func (h *GroupHost) Evict(ctx context.Context, memberID int64, message string) error {
	if message != "" {
		if _, err := h.bot.SendMessage(memberID, message); err != nil {
			h.logger.Debug("Could not DM member %d: %v", memberID, err)
		}
	}

	if err := h.bot.KickMember(h.chatID, memberID); err != nil {
		return err
	}

	if err := h.roster.Remove(h.chatID, memberID); err != nil {
		h.logger.Error("Failed to drop member %d from roster: %v", memberID, err)
	}
	return nil
}

// Broadcast sends a message to the chat.
func (h *GroupHost) Broadcast(ctx context.Context, message string) error {
	_, err := h.bot.SendMessage(h.chatID, message)
	return err
}
