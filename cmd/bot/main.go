package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatwarden/pkg/config"
	"chatwarden/pkg/logger"
	"chatwarden/pkg/messages"
	"chatwarden/pkg/openai"
	"chatwarden/pkg/roster"
	"chatwarden/pkg/schedule"
	"chatwarden/pkg/storage"
	"chatwarden/pkg/telegram"
	"chatwarden/pkg/tz"
	"chatwarden/pkg/warden"
)

func main() {
	// Initialize logger
	log := logger.Global
	log.Info("Starting chatwarden bot...")

	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// Initialize storage
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		log.Error("Failed to initialize storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	// Start BadgerDB garbage collection
	store.StartGCRoutine(10 * time.Minute)

	// Load the persisted schedule
	week := schedule.New()
	scheduleStore := schedule.NewStore(store)
	if err := scheduleStore.Load(week); err != nil {
		log.Error("Failed to load schedule: %v", err)
		os.Exit(1)
	}

	// Initialize services
	var aiClient *openai.Client
	if cfg.OpenAIAPIKey != "" {
		aiClient = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIAPIBase, cfg.OpenAIModel)
	}
	messageService := messages.New(messages.Templates{
		Open:       cfg.OpenMessage,
		Closed:     cfg.ClosedMessage,
		JoinDenied: cfg.JoinDeniedMessage,
		Warning:    cfg.WarningMessage,
	}, aiClient)
	prefs := tz.NewPrefs(store)
	memberRoster := roster.New(store)

	// Initialize Telegram bot
	bot, err := telegram.New(cfg.BotToken)
	if err != nil {
		log.Error("Failed to initialize Telegram bot: %v", err)
		os.Exit(1)
	}

	host := telegram.NewGroupHost(bot, memberRoster, cfg.ChatID)
	w := warden.New(week, host, messageService, warden.Options{
		Graceful:       cfg.GracefulShutdown,
		WarningMinutes: cfg.WarningMinutes,
	})

	h := newHandlers(bot, host, week, scheduleStore, w, prefs, memberRoster, messageService, cfg.ChatID)

	// Setup command handlers
	commandHandlers := map[string]telegram.CommandHandler{
		"start":    h.handleHelp,
		"help":     h.handleHelp,
		"times":    h.handleTimes,
		"status":   h.handleStatus,
		"timezone": h.handleTimezone,
		"open":     h.handleOpen,
		"close":    h.handleClose,
	}

	// Default handler keeps the roster current and gates joins
	defaultHandler := func(update tgbotapi.Update) {
		h.handleUpdate(update)
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("Received signal %v, shutting down...", sig)
		w.Stop()
		store.Close()
		os.Exit(0)
	}()

	// Start the warden loops, then block on the update loop
	w.Start()
	log.Info("Bot is now running. Press CTRL-C to exit.")
	if err := bot.Start(commandHandlers, defaultHandler); err != nil {
		log.Error("Bot stopped with error: %v", err)
		os.Exit(1)
	}
}
