// Package telegram answers Telegram chat messages with the FAQ service.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"faqbot/internal/faq"
	"faqbot/internal/logging"

	"github.com/charmbracelet/log"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// botAPI abstracts the Telegram bot methods used by the adapter, enabling testing with mocks.
type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SetMyCommands(ctx context.Context, params *bot.SetMyCommandsParams) (bool, error)
}

// Answerer is the part of faq.Service the adapter uses.
type Answerer interface {
	Answer(ctx context.Context, q string) (faq.Response, error)
	Messages() faq.Messages
}

// Config configures the adapter.
type Config struct {
	BotToken     string
	AllowedChats []int64 // empty allows every chat
	Logger       *log.Logger
}

// Adapter replies to each text message with the service's answer.
type Adapter struct {
	service Answerer
	allowed map[int64]bool
	token   string
	logger  *log.Logger

	mu       sync.Mutex
	bot      botAPI
	answered int
	ignored  int
}

// New creates an adapter. The bot connects in Start.
func New(service Answerer, cfg Config) (*Adapter, error) {
	if service == nil {
		return nil, errors.New("telegram: service is required")
	}
	if cfg.BotToken == "" {
		return nil, errors.New("telegram: bot token is required")
	}

	allowed := make(map[int64]bool, len(cfg.AllowedChats))
	for _, id := range cfg.AllowedChats {
		allowed[id] = true
	}

	return &Adapter{
		service: service,
		allowed: allowed,
		token:   cfg.BotToken,
		logger:  logging.Component(cfg.Logger, "telegram"),
	}, nil
}

// Start connects the bot and long-polls until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	b, err := bot.New(a.token, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return a.run(ctx, b)
}

func (a *Adapter) run(ctx context.Context, b botAPI) error {
	a.mu.Lock()
	a.bot = b
	a.mu.Unlock()

	a.registerCommands(ctx)
	a.logger.Info("bot started", "allowed_chats", len(a.allowed))

	// Start blocks until ctx is done
	b.Start(ctx)
	a.logger.Info("bot stopped")
	return nil
}

// Stats returns the number of answered and ignored messages.
func (a *Adapter) Stats() (answered, ignored int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.answered, a.ignored
}

func (a *Adapter) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	a.handleMessage(ctx, update.Message)
}

func (a *Adapter) handleMessage(ctx context.Context, msg *models.Message) {
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}

	chatID := msg.Chat.ID
	if len(a.allowed) > 0 && !a.allowed[chatID] {
		a.mu.Lock()
		a.ignored++
		a.mu.Unlock()
		a.logger.Debug("message from chat not allowed", "chat", chatID)
		return
	}

	reply := a.replyFor(ctx, msg.Text)
	if reply == "" {
		return
	}

	a.mu.Lock()
	b := a.bot
	a.answered++
	a.mu.Unlock()

	// Privacy-safe logging - no message content
	a.logger.Debug("answering", "chat", chatID, "chars", len(msg.Text))

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            reply,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		a.logger.Warn("failed to send reply", "chat", chatID, "err", err)
	}
}

// replyFor returns the text sent back for an incoming message.
func (a *Adapter) replyFor(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if cmd, ok := command(text); ok {
		switch cmd {
		case "start", "help":
			return a.service.Messages().Greeting
		default:
			return ""
		}
	}

	resp, err := a.service.Answer(ctx, text)
	if err != nil {
		a.logger.Error("answer failed", "err", err)
		return a.service.Messages().NotUnderstood
	}
	return resp.Answer
}

// command parses "/name" and "/name@botname".
func command(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text[1:])
	if len(name) == 0 {
		return "", true
	}
	cmd, _, _ := strings.Cut(name[0], "@")
	return strings.ToLower(cmd), true
}

func (a *Adapter) registerCommands(ctx context.Context) {
	commands := []models.BotCommand{
		{Command: "start", Description: "Mulai percakapan"},
		{Command: "help", Description: "Cara menggunakan bot"},
	}
	if _, err := a.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: commands}); err != nil {
		a.logger.Warn("failed to register commands", "err", err)
	}
}
