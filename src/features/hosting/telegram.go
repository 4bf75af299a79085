package hosting

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/contre95/dropsort/src/features/classifying"
	"github.com/contre95/dropsort/src/features/config"
	"github.com/contre95/dropsort/src/features/reporting"
	"github.com/contre95/dropsort/src/features/watching"
	"github.com/contre95/dropsort/src/triage"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of tgbotapi.BotAPI the bot needs to talk back.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramBot pushes move results to a chat and answers a few control commands.
// It is a triage.Sink.
type TelegramBot struct {
	api         sender
	updates     tgbotapi.UpdatesChannel
	config      config.Telegram
	watching    *watching.Service
	classifying *classifying.Service
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewTelegramBot connects to the Bot API with the configured token.
func NewTelegramBot(cfg config.Telegram, watchingService *watching.Service, classifyingService *classifying.Service) (*TelegramBot, error) {
	if !cfg.Enabled {
		return nil, errors.New("telegram bot is disabled in configuration")
	}
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is not configured")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	slog.Info("Telegram bot initialized", "username", bot.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	t := newTelegramBot(bot, cfg, watchingService, classifyingService)
	t.updates = bot.GetUpdatesChan(updateConfig)
	return t, nil
}

func newTelegramBot(api sender, cfg config.Telegram, watchingService *watching.Service, classifyingService *classifying.Service) *TelegramBot {
	return &TelegramBot{
		api:         api,
		config:      cfg,
		watching:    watchingService,
		classifying: classifyingService,
		stopChan:    make(chan struct{}),
	}
}

// Start listens for updates until Stop is called.
func (t *TelegramBot) Start() {
	slog.Info("Starting Telegram bot listener")
	for {
		select {
		case update, ok := <-t.updates:
			if !ok {
				return
			}
			if update.Message != nil {
				go t.handleMessage(update.Message)
			}
			if update.CallbackQuery != nil {
				go t.handleCallbackQuery(update.CallbackQuery)
			}
		case <-t.stopChan:
			slog.Info("Stopping Telegram bot listener")
			return
		}
	}
}

// Stop ends the listener.
func (t *TelegramBot) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// Report sends the one-line outcome of a move to the configured chat.
func (t *TelegramBot) Report(result triage.MoveResult) {
	if result.Skipped {
		return
	}
	t.notify(reporting.FormatLine(result))
}

// Log sends a status line to the configured chat.
func (t *TelegramBot) Log(line string) {
	t.notify(line)
}

func (t *TelegramBot) notify(text string) {
	if t.config.ChatID == 0 {
		return
	}
	t.sendMessage(t.config.ChatID, text)
}

func (t *TelegramBot) sendMessage(chatID int64, text string) {
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Error("Failed to send message", "error", err, "chat_id", chatID)
	}
}

func (t *TelegramBot) authorized(user *tgbotapi.User) bool {
	if user == nil {
		return false
	}
	username := user.UserName
	if username == "" {
		username = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	return slices.Contains(t.config.AllowedUsers, username)
}

func (t *TelegramBot) handleMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !t.authorized(message.From) {
		slog.Warn("Unauthorized telegram user", "chat_id", chatID)
		t.sendMessage(chatID, "Unknown user, please add your user to the config")
		return
	}
	if !message.IsCommand() {
		t.sendMessage(chatID, "🤖 Send /help to see available commands")
		return
	}
	if message.Command() == "help" || message.Command() == "start" {
		t.sendMenu(chatID)
		return
	}
	t.sendMessage(chatID, t.runCommand(message.Command(), message.CommandArguments()))
}

func (t *TelegramBot) handleCallbackQuery(callback *tgbotapi.CallbackQuery) {
	if _, err := t.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		slog.Debug("Failed to answer callback", "error", err)
	}
	if callback.Message == nil || !t.authorized(callback.From) {
		return
	}
	command, ok := strings.CutPrefix(callback.Data, "menu_")
	if !ok {
		return
	}
	t.sendMessage(callback.Message.Chat.ID, t.runCommand(command, ""))
}

func (t *TelegramBot) sendMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "🤖 dropsort\n\n"+helpText)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Status", "menu_status"),
			tgbotapi.NewInlineKeyboardButtonData("🧹 Sweep", "menu_sweep"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👀 Watch", "menu_watch"),
			tgbotapi.NewInlineKeyboardButtonData("⏹ Stop", "menu_unwatch"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Recent", "menu_results"),
		),
	)
	if _, err := t.api.Send(msg); err != nil {
		slog.Error("Failed to send menu", "error", err, "chat_id", chatID)
	}
}

const helpText = `/status - watcher state and counters
/watch - start watching the root
/unwatch - stop watching
/sweep - sort every file already in the root
/results [n] - last moves (default 5)`

// runCommand executes a bot command and returns the reply text.
func (t *TelegramBot) runCommand(command, args string) string {
	switch command {
	case "status":
		st := t.watching.Status()
		state := "⏹ Not watching"
		if st.Running {
			state = "👀 Watching"
		}
		return fmt.Sprintf("%s %s\nTracked: %d\nProcessed: %d\nAbandoned: %d",
			state, st.Root, st.Stats.Tracked, st.Stats.Processed, st.Stats.Abandoned)
	case "watch":
		if err := t.watching.Start(); err != nil {
			return "❌ " + err.Error()
		}
		return "👀 Watching " + t.watching.Status().Root
	case "unwatch":
		if err := t.watching.Stop(); err != nil {
			return "❌ " + err.Error()
		}
		return "⏹ Stopped"
	case "sweep":
		jobID, err := t.classifying.Sweep("")
		if err != nil {
			return "❌ " + err.Error()
		}
		return "🧹 Sweep started (job " + jobID + ")"
	case "results":
		n := 5
		if args != "" {
			if _, err := fmt.Sscanf(args, "%d", &n); err != nil || n <= 0 {
				return "❌ usage: /results [n]"
			}
		}
		results := t.classifying.Results()
		if len(results) == 0 {
			return "No files moved yet"
		}
		lines := make([]string, 0, n)
		for _, result := range results[:min(n, len(results))] {
			lines = append(lines, reporting.FormatLine(result))
		}
		return strings.Join(lines, "\n")
	default:
		return "❌ Unknown command. Send /help to see available commands."
	}
}
