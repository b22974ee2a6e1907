package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatwarden/pkg/logger"
	"chatwarden/pkg/messages"
	"chatwarden/pkg/roster"
	"chatwarden/pkg/schedule"
	"chatwarden/pkg/telegram"
	"chatwarden/pkg/timewindow"
	"chatwarden/pkg/tz"
	"chatwarden/pkg/warden"
)

const (
	timeFormatHelp = "🕐 Invalid time format! Use formats like 21:00, 9pm, 9:30pm or 2100."
	dayFormatHelp  = "📅 Invalid day! Use monday, tuesday, wednesday, thursday, friday, saturday or sunday."
)

// handlers holds everything the command layer needs. Validation happens
// here, at the edit boundary: parse errors become chat replies and never
// reach the warden's loops.
type handlers struct {
	bot    *telegram.Bot
	host   *telegram.GroupHost
	week   *schedule.Week
	store  *schedule.Store
	warden *warden.Warden
	prefs  *tz.Prefs
	roster *roster.Roster
	msgs   *messages.Service
	chatID int64
	logger *logger.Logger
}

func newHandlers(bot *telegram.Bot, host *telegram.GroupHost, week *schedule.Week, store *schedule.Store,
	w *warden.Warden, prefs *tz.Prefs, r *roster.Roster, msgs *messages.Service, chatID int64) *handlers {
	return &handlers{
		bot:    bot,
		host:   host,
		week:   week,
		store:  store,
		warden: w,
		prefs:  prefs,
		roster: r,
		msgs:   msgs,
		chatID: chatID,
		logger: logger.New("commands"),
	}
}

func (h *handlers) reply(message *tgbotapi.Message, text string) {
	if _, err := h.bot.SendMessage(message.Chat.ID, text); err != nil {
		h.logger.Error("Failed to send reply: %v", err)
	}
}

func (h *handlers) requireAdmin(message *tgbotapi.Message) bool {
	if message.From == nil || !h.bot.IsAdmin(h.chatID, message.From.ID) {
		h.reply(message, "🔒 Only chat administrators can do that.")
		return false
	}
	return true
}

// saveSchedule persists the week after an edit. Persistence failures are
// logged but do not undo the in-memory edit.
func (h *handlers) saveSchedule() {
	if err := h.store.Save(h.week); err != nil {
		h.logger.Error("Failed to persist schedule: %v", err)
	}
}

// handleTimes dispatches /times set|add|remove|list.
func (h *handlers) handleTimes(message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		h.sendTimesHelp(message)
		return
	}

	switch strings.ToLower(args[0]) {
	case "set":
		if h.requireAdmin(message) {
			h.handleTimesSet(message, args[1:])
		}
	case "add":
		if h.requireAdmin(message) {
			h.handleTimesAdd(message, args[1:])
		}
	case "remove":
		if h.requireAdmin(message) {
			h.handleTimesRemove(message, args[1:])
		}
	case "list":
		h.handleTimesList(message, args[1:])
	default:
		h.sendTimesHelp(message)
	}
}

func (h *handlers) sendTimesHelp(message *tgbotapi.Message) {
	h.reply(message, strings.Join([]string{
		"📋 Schedule commands:",
		"/times set <day> <start> <end> — replace the day's open hours",
		"/times add <day> <start> <end> — add another session to a day",
		"/times remove <day> [n] — remove session n, or all of the day",
		"/times list [day] — show the schedule",
		"Time formats: 21:00, 9pm, 9:30pm, 2100",
	}, "\n"))
}

// parseSessionArgs validates the <day> <start> <end> triple shared by set
// and add.
func (h *handlers) parseSessionArgs(message *tgbotapi.Message, args []string, usage string) (time.Weekday, timewindow.Window, bool) {
	if len(args) != 3 {
		h.reply(message, usage)
		return 0, timewindow.Window{}, false
	}

	day, err := schedule.ParseDay(args[0])
	if err != nil {
		h.reply(message, dayFormatHelp)
		return 0, timewindow.Window{}, false
	}

	win, err := timewindow.New(args[1], args[2])
	if err != nil {
		h.reply(message, timeFormatHelp)
		return 0, timewindow.Window{}, false
	}
	if win.Start == win.End {
		h.reply(message, "🕐 Start and end time must differ.")
		return 0, timewindow.Window{}, false
	}

	return day, win, true
}

func (h *handlers) handleTimesSet(message *tgbotapi.Message, args []string) {
	day, win, ok := h.parseSessionArgs(message, args, "Usage: /times set <day> <start> <end>\nExample: /times set monday 9pm 10pm")
	if !ok {
		return
	}

	h.week.SetSessions(day, []timewindow.Window{win})
	h.saveSchedule()
	h.warden.UpdateSchedule()
	h.reply(message, fmt.Sprintf("✅ Set open hours for %s: %s", schedule.DayName(day), win))
}

func (h *handlers) handleTimesAdd(message *tgbotapi.Message, args []string) {
	day, win, ok := h.parseSessionArgs(message, args, "Usage: /times add <day> <start> <end>\nExample: /times add sunday 7pm 8pm")
	if !ok {
		return
	}

	h.week.AddSession(day, win)
	h.saveSchedule()
	h.warden.UpdateSchedule()
	h.reply(message, fmt.Sprintf("✅ Added session for %s: %s", schedule.DayName(day), win))
}

func (h *handlers) handleTimesRemove(message *tgbotapi.Message, args []string) {
	if len(args) < 1 || len(args) > 2 {
		h.reply(message, "Usage: /times remove <day> [session-number]\nOmit the number to remove all sessions for the day.")
		return
	}

	day, err := schedule.ParseDay(args[0])
	if err != nil {
		h.reply(message, dayFormatHelp)
		return
	}

	if len(args) == 1 {
		h.week.ClearSessions(day)
		h.saveSchedule()
		h.warden.UpdateSchedule()
		h.reply(message, fmt.Sprintf("✅ Removed all sessions for %s", schedule.DayName(day)))
		return
	}

	n, err := strconv.Atoi(args[1])
	if err != nil {
		h.reply(message, "Session number must be a number.")
		return
	}

	sessions := h.week.SessionsFor(day)
	if n < 1 || n > len(sessions) {
		h.reply(message, fmt.Sprintf("No session %d for %s. Use /times list %s.", n, schedule.DayName(day), schedule.DayName(day)))
		return
	}

	removed := sessions[n-1]
	h.week.RemoveSession(day, n-1)
	h.saveSchedule()
	h.warden.UpdateSchedule()
	h.reply(message, fmt.Sprintf("✅ Removed session %d for %s: %s", n, schedule.DayName(day), removed))
}

func (h *handlers) handleTimesList(message *tgbotapi.Message, args []string) {
	if len(args) > 0 {
		day, err := schedule.ParseDay(args[0])
		if err != nil {
			h.reply(message, dayFormatHelp)
			return
		}
		h.reply(message, h.formatDay(day))
		return
	}

	var sb strings.Builder
	sb.WriteString("📅 Weekly schedule:\n")
	for i := 0; i < 7; i++ {
		// Start the listing on Monday
		day := time.Weekday((i + 1) % 7)
		sessions := h.week.SessionsFor(day)
		if len(sessions) == 0 {
			sb.WriteString(fmt.Sprintf("%s: closed\n", schedule.DayName(day)))
			continue
		}
		entries := make([]string, len(sessions))
		for j, win := range sessions {
			entries[j] = win.String()
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", schedule.DayName(day), strings.Join(entries, ", ")))
	}
	h.reply(message, strings.TrimRight(sb.String(), "\n"))
}

func (h *handlers) formatDay(day time.Weekday) string {
	sessions := h.week.SessionsFor(day)
	if len(sessions) == 0 {
		return fmt.Sprintf("📅 %s: no sessions scheduled", schedule.DayName(day))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 %s:\n", schedule.DayName(day)))
	now := time.Now()
	for i, win := range sessions {
		marker := ""
		if win.ActiveAt(now) && now.Weekday() == day {
			marker = " [ACTIVE]"
		}
		sb.WriteString(fmt.Sprintf("%d. %s%s\n", i+1, win, marker))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// handleStatus shows the open/closed state in the viewer's timezone.
func (h *handlers) handleStatus(message *tgbotapi.Message) {
	var abbr string
	if message.From != nil {
		abbr = h.prefs.Get(message.From.ID)
	}
	h.reply(message, h.statusText(abbr, time.Now()))
}

// statusText renders the status message. Session times are stored in
// server time, so when the viewer reads the message through their own
// timezone the next-change line carries a server-time label to keep the
// two clocks apart.
func (h *handlers) statusText(abbr string, at time.Time) string {
	loc := tz.Location(abbr)
	now := at.In(loc)
	day := now.Weekday()

	state := "🔴 CLOSED"
	if h.week.OpenOn(day, now) {
		state = "🟢 OPEN"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status: %s\n", state))
	sb.WriteString(fmt.Sprintf("Today is %s\n", schedule.DayName(day)))
	if abbr != "" {
		sb.WriteString(fmt.Sprintf("Your timezone: %s\n", tz.Display(abbr)))
	} else {
		sb.WriteString("Timezone: server default (use /timezone to set yours)\n")
	}

	sessions := h.week.SessionsFor(day)
	if len(sessions) == 0 {
		sb.WriteString("Today's schedule: no sessions\n")
	} else {
		sb.WriteString("Today's schedule:\n")
		for i, win := range sessions {
			marker := ""
			if win.ActiveAt(now) {
				marker = " [ACTIVE]"
			}
			sb.WriteString(fmt.Sprintf("%d. %s%s\n", i+1, win, marker))
		}
	}
	next := h.warden.NextStateChange()
	if abbr != "" && (strings.HasPrefix(next, "Opens") || strings.HasPrefix(next, "Closes")) {
		next += " (server time)"
	}
	sb.WriteString(next)

	return sb.String()
}

// handleTimezone shows, sets or resets the caller's timezone preference.
func (h *handlers) handleTimezone(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	userID := message.From.ID
	arg := strings.TrimSpace(message.CommandArguments())

	switch {
	case arg == "":
		current := h.prefs.Get(userID)
		if current != "" {
			h.reply(message, fmt.Sprintf("Your current timezone: %s", tz.Display(current)))
		} else {
			h.reply(message, "You haven't set a timezone yet. Use /timezone <abbr> to set one.\nSupported: "+strings.Join(tz.Supported(), ", "))
		}
	case strings.EqualFold(arg, "reset"):
		if err := h.prefs.Clear(userID); err != nil {
			h.logger.Error("Failed to reset timezone for user %d: %v", userID, err)
			h.reply(message, "😢 Sorry, I couldn't reset your timezone. Please try again later.")
			return
		}
		h.reply(message, "✅ Your timezone has been reset to the server default.")
	default:
		if err := h.prefs.Set(userID, arg); err != nil {
			h.reply(message, "❌ Invalid timezone. Supported: "+strings.Join(tz.Supported(), ", "))
			return
		}
		h.reply(message, fmt.Sprintf("✅ Your timezone has been set to %s", tz.Display(arg)))
	}
}

// handleOpen and handleClose are the manual override.
func (h *handlers) handleOpen(message *tgbotapi.Message) {
	if !h.requireAdmin(message) {
		return
	}
	h.warden.SetOpen(true)
	h.reply(message, "✅ Chat manually opened.")
}

func (h *handlers) handleClose(message *tgbotapi.Message) {
	if !h.requireAdmin(message) {
		return
	}
	h.warden.SetOpen(false)
	h.reply(message, "✅ Chat manually closed.")
}

func (h *handlers) handleHelp(message *tgbotapi.Message) {
	h.reply(message, strings.Join([]string{
		"👋 I keep this chat open only during scheduled hours.",
		"/status — current state and today's schedule",
		"/times list — full weekly schedule",
		"/timezone [abbr|reset] — see times in your own timezone",
		"Admins: /times set|add|remove, /open, /close",
	}, "\n"))
}

// handleUpdate is the default handler: it keeps the roster in sync with
// join/leave updates and gates joins while the chat is closed.
func (h *handlers) handleUpdate(update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.Chat == nil || message.Chat.ID != h.chatID {
		return
	}

	if len(message.NewChatMembers) > 0 {
		h.handleJoins(message.NewChatMembers)
	}

	if message.LeftChatMember != nil {
		if err := h.roster.Remove(h.chatID, message.LeftChatMember.ID); err != nil {
			h.logger.Error("Failed to drop member %d from roster: %v", message.LeftChatMember.ID, err)
		}
	}
}

func (h *handlers) handleJoins(joined []tgbotapi.User) {
	allowed := h.warden.ShouldAllowJoin()
	for _, user := range joined {
		if user.IsBot {
			continue
		}

		if !allowed {
			h.logger.Info("Denying join for %s (%d): chat is closed", user.UserName, user.ID)
			if err := h.host.Evict(context.Background(), user.ID, h.msgs.JoinDenied()); err != nil {
				h.logger.Error("Failed to kick joining member %d: %v", user.ID, err)
			}
			continue
		}

		err := h.roster.Add(h.chatID, roster.Member{
			UserID:   user.ID,
			Username: user.UserName,
		})
		if err != nil {
			h.logger.Error("Failed to add member %d to roster: %v", user.ID, err)
		}
	}
}
