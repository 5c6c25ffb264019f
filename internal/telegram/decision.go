package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"ghostsync/cli/internal/config"
	"ghostsync/cli/internal/screen"
)

const (
	decisionPrefix  = "decide"
	decisionCaption = "⚠️ The app is asking for permission. Accept or deny?"
)

type decisionBroker struct {
	mu      sync.Mutex
	pending map[string]pendingDecision
}

type pendingDecision struct {
	userID int64
	answer chan screen.Decision
}

func newDecisionBroker() *decisionBroker {
	return &decisionBroker{pending: map[string]pendingDecision{}}
}

func (d *decisionBroker) open(userID int64) (string, chan screen.Decision) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ch := make(chan screen.Decision, 1)
	d.mu.Lock()
	d.pending[id] = pendingDecision{userID: userID, answer: ch}
	d.mu.Unlock()
	return id, ch
}

func (d *decisionBroker) close(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// resolve delivers an answer from userID. It reports false for unknown,
// answered or foreign decisions.
func (d *decisionBroker) resolve(id string, userID int64, decision screen.Decision) bool {
	d.mu.Lock()
	p, ok := d.pending[id]
	if ok && p.userID == userID {
		delete(d.pending, id)
	}
	d.mu.Unlock()
	if !ok || p.userID != userID {
		return false
	}
	p.answer <- decision
	return true
}

func (d *decisionBroker) cancelAll() {
	d.mu.Lock()
	d.pending = map[string]pendingDecision{}
	d.mu.Unlock()
}

func callbackData(id string, decision screen.Decision) string {
	return decisionPrefix + ":" + id + ":" + decision.String()
}

func parseCallbackData(data string) (string, screen.Decision, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != decisionPrefix || parts[1] == "" {
		return "", 0, false
	}
	switch parts[2] {
	case "accept":
		return parts[1], screen.Accept, true
	case "deny":
		return parts[1], screen.Deny, true
	}
	return "", 0, false
}

// Decide answers a detected prompt. In auto mode it accepts; in ask mode it
// sends the frame with Accept/Deny buttons and waits for the operator,
// accepting when the timeout passes.
func (b *Bot) Decide(ctx context.Context, userID int64, shotPath string, _ screen.Prompt) (screen.Decision, string) {
	if b.opts.DecisionMode != config.PromptDecisionAsk {
		return screen.Accept, "auto"
	}
	id, answer := b.decisions.open(userID)
	defer b.decisions.close(id)

	chatID := b.chatFor(userID)
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Accept", callbackData(id, screen.Accept)),
		tgbotapi.NewInlineKeyboardButtonData("⛔ Deny", callbackData(id, screen.Deny)),
	))
	var err error
	if shotPath != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(shotPath))
		photo.Caption = decisionCaption
		photo.ReplyMarkup = markup
		_, err = b.send(ctx, photo)
	} else {
		msg := tgbotapi.NewMessage(chatID, decisionCaption)
		msg.ReplyMarkup = markup
		_, err = b.send(ctx, msg)
	}
	if err != nil {
		return screen.Accept, "fallback"
	}

	timer := time.NewTimer(b.opts.DecisionTimeout)
	defer timer.Stop()
	select {
	case d := <-answer:
		return d, "operator"
	case <-timer.C:
		b.logger.Info("prompt decision timed out, accepting", "user_id", userID)
		_, _ = b.sendText(ctx, chatID, "⏱️ No answer, accepted.")
		return screen.Accept, "timeout"
	case <-ctx.Done():
		return screen.Accept, "cancelled"
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || !b.allowed(cb.From.ID) {
		return
	}
	id, decision, ok := parseCallbackData(cb.Data)
	text := "Expired"
	if ok && b.decisions.resolve(id, cb.From.ID, decision) {
		text = "Accepted"
		if decision == screen.Deny {
			text = "Denied"
		}
	}
	b.request(ctx, tgbotapi.NewCallback(cb.ID, text))
}
