package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"ghostsync/cli/internal/bridge"
	"ghostsync/cli/internal/config"
	"ghostsync/cli/internal/logging"
)

const (
	maxCaptionRunes = 1024
	maxTextRunes    = 4096
	pollTimeout     = 30
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Handler interface {
	Start(ctx context.Context, userID int64) string
	Handle(ctx context.Context, userID int64, text string) (bridge.Reply, error)
}

type Options struct {
	// AllowedUserID restricts the bot to one Telegram user. Zero allows everyone.
	AllowedUserID   int64
	AutoDelete      bool
	DecisionMode    string
	DecisionTimeout time.Duration
	// SendRate caps outbound API calls per second.
	SendRate float64
	Logger   *slog.Logger
}

type Bot struct {
	api     API
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter

	mu    sync.Mutex
	chats map[int64]int64

	decisions *decisionBroker
}

func New(api API, opts Options) *Bot {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SendRate <= 0 {
		opts.SendRate = 20
	}
	if opts.DecisionTimeout <= 0 {
		opts.DecisionTimeout = 60 * time.Second
	}
	if opts.DecisionMode != config.PromptDecisionAsk {
		opts.DecisionMode = config.PromptDecisionAuto
	}
	return &Bot{
		api:       api,
		opts:      opts,
		logger:    logger.With("module", "telegram"),
		limiter:   rate.NewLimiter(rate.Limit(opts.SendRate), 5),
		chats:     map[int64]int64{},
		decisions: newDecisionBroker(),
	}
}

// Connect authenticates token against the Bot API.
func Connect(token string, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if logger != nil {
		_ = tgbotapi.SetLogger(botLogger{logger: logger.With("module", "telegram-api")})
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %s", logging.Redact(err.Error()))
	}
	return api, nil
}

// botLogger routes the library's printf logging through slog.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

// Run polls for updates until ctx is done. Each user's messages are handled
// in order on that user's own worker.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		b.logger.Warn("drop pending updates failed", "err", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	dispatcher := bridge.NewDispatcher(ctx, b.logger)
	defer dispatcher.Close()

	b.logger.Info("telegram polling started", "allowed_user_id", b.opts.AllowedUserID, "decision_mode", b.opts.DecisionMode)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.decisions.cancelAll()
			b.logger.Info("telegram polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.route(ctx, h, dispatcher, upd)
		}
	}
}

func (b *Bot) allowed(userID int64) bool {
	return b.opts.AllowedUserID == 0 || b.opts.AllowedUserID == userID
}

func (b *Bot) route(ctx context.Context, h Handler, d *bridge.Dispatcher, upd tgbotapi.Update) {
	if cb := upd.CallbackQuery; cb != nil {
		b.handleCallback(ctx, cb)
		return
	}
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	userID := msg.From.ID
	if !b.allowed(userID) {
		b.logger.Warn("message from unauthorised user ignored", "user_id", userID)
		return
	}
	b.rememberChat(userID, msg.Chat.ID)
	chatID := msg.Chat.ID
	text := msg.Text
	b.logger.Info("message received", "user_id", userID, "preview", preview(text, 50))

	if msg.IsCommand() {
		if msg.Command() != "start" {
			b.logger.Debug("unknown command ignored", "command", msg.Command())
			return
		}
		d.Submit(userID, func(ctx context.Context) {
			b.sendText(ctx, chatID, h.Start(ctx, userID))
		})
		return
	}
	d.Submit(userID, func(ctx context.Context) {
		reply, err := h.Handle(ctx, userID, text)
		if err != nil {
			b.logger.Warn("command failed", "user_id", userID, "err", err)
		}
		b.deliver(ctx, chatID, reply)
	})
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

func (b *Bot) rememberChat(userID, chatID int64) {
	b.mu.Lock()
	b.chats[userID] = chatID
	b.mu.Unlock()
}

func (b *Bot) chatFor(userID int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if chatID, ok := b.chats[userID]; ok {
		return chatID
	}
	// Private chats share the user's id.
	return userID
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	msg, err := b.api.Send(c)
	if err != nil {
		b.logger.Warn("telegram send failed", "err", err)
	}
	return msg, err
}

func (b *Bot) request(ctx context.Context, c tgbotapi.Chattable) {
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.api.Request(c); err != nil {
		b.logger.Warn("telegram request failed", "err", err)
	}
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) (tgbotapi.Message, error) {
	var (
		last tgbotapi.Message
		err  error
	)
	for _, chunk := range splitRunes(text, maxTextRunes) {
		last, err = b.send(ctx, tgbotapi.NewMessage(chatID, chunk))
		if err != nil {
			return last, err
		}
	}
	return last, nil
}

func splitRunes(s string, n int) []string {
	r := []rune(s)
	if len(r) <= n {
		return []string{s}
	}
	out := make([]string, 0, len(r)/n+1)
	for len(r) > n {
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}

// deliver sends reply as a photo with caption when it has a screenshot. A
// caption over Telegram's limit is sent as a separate text message.
func (b *Bot) deliver(ctx context.Context, chatID int64, reply bridge.Reply) {
	if reply.Ignored {
		return
	}
	if reply.ImagePath == "" {
		_, _ = b.sendText(ctx, chatID, reply.Text)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(reply.ImagePath))
	fitsCaption := len([]rune(reply.Text)) <= maxCaptionRunes
	if fitsCaption {
		photo.Caption = reply.Text
	}
	if _, err := b.send(ctx, photo); err != nil {
		_, _ = b.sendText(ctx, chatID, reply.Text)
	} else if !fitsCaption {
		_, _ = b.sendText(ctx, chatID, reply.Text)
	}
	if b.opts.AutoDelete {
		b.removeShot(reply.ImagePath)
	}
}

func (b *Bot) removeShot(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		b.logger.Warn("screenshot delete failed", "path", path, "err", err)
	}
}

// ShowStatus posts a transient status line and returns a func deleting it.
func (b *Bot) ShowStatus(ctx context.Context, userID int64, text string) func() {
	chatID := b.chatFor(userID)
	msg, err := b.send(ctx, tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return func() {}
	}
	return func() {
		b.request(context.WithoutCancel(ctx), tgbotapi.NewDeleteMessage(chatID, msg.MessageID))
	}
}
