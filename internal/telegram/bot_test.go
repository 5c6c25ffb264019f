package telegram

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ghostsync/cli/internal/bridge"
	"ghostsync/cli/internal/config"
	"ghostsync/cli/internal/screen"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	failSend bool
	updates  chan tgbotapi.Update
	onSend   func(tgbotapi.Chattable)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 16)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	f.sent = append(f.sent, c)
	f.nextID++
	id := f.nextID
	fail := f.failSend
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	if fail {
		return tgbotapi.Message{}, os.ErrDeadlineExceeded
	}
	return tgbotapi.Message{MessageID: id}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, c)
	f.mu.Unlock()
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) sentSnapshot() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...)
}

func (f *fakeAPI) requestSnapshot() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.requests...)
}

type fakeHandler struct {
	mu     sync.Mutex
	texts  []string
	starts int
	reply  bridge.Reply
}

func (h *fakeHandler) Start(context.Context, int64) string {
	h.mu.Lock()
	h.starts++
	h.mu.Unlock()
	return "hello"
}

func (h *fakeHandler) Handle(_ context.Context, _ int64, text string) (bridge.Reply, error) {
	h.mu.Lock()
	h.texts = append(h.texts, text)
	h.mu.Unlock()
	return h.reply, nil
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID + 1000},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}}
	}
	return tgbotapi.Update{Message: msg}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBot_RoutesStartAndTextFromAllowedUser(t *testing.T) {
	api := newFakeAPI()
	h := &fakeHandler{reply: bridge.Reply{Text: "done"}}
	bot := New(api, Options{AllowedUserID: 7, SendRate: 1000})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx, h) }()

	api.updates <- textUpdate(7, "/start")
	api.updates <- textUpdate(7, "C:\\proj")
	api.updates <- textUpdate(8, "intruder")

	waitFor(t, "two replies", func() bool { return len(api.sentSnapshot()) == 2 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	sent := api.sentSnapshot()
	first, ok := sent[0].(tgbotapi.MessageConfig)
	if !ok || first.Text != "hello" || first.ChatID != 1007 {
		t.Fatalf("unexpected greeting %#v", sent[0])
	}
	second := sent[1].(tgbotapi.MessageConfig)
	if second.Text != "done" {
		t.Fatalf("unexpected reply %q", second.Text)
	}
	if h.starts != 1 || len(h.texts) != 1 || h.texts[0] != "C:\\proj" {
		t.Fatalf("handler saw starts=%d texts=%v", h.starts, h.texts)
	}
	if _, ok := api.requestSnapshot()[0].(tgbotapi.DeleteWebhookConfig); !ok {
		t.Fatalf("expected pending updates to be dropped first")
	}
}

func TestBot_IgnoresUnknownCommandsAndIgnoredReplies(t *testing.T) {
	api := newFakeAPI()
	h := &fakeHandler{reply: bridge.Reply{Ignored: true}}
	bot := New(api, Options{SendRate: 1000})
	d := bridge.NewDispatcher(context.Background(), nil)

	bot.route(context.Background(), h, d, textUpdate(1, "/help"))
	bot.route(context.Background(), h, d, textUpdate(1, "hi"))
	d.Close()

	if len(h.texts) != 1 {
		t.Fatalf("expected only plain text to reach the handler, got %v", h.texts)
	}
	if n := len(api.sentSnapshot()); n != 0 {
		t.Fatalf("expected nothing sent, got %d", n)
	}
}

func writeShot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("write shot: %v", err)
	}
	return path
}

func TestBot_DeliverPhotoWithCaptionAndAutoDelete(t *testing.T) {
	api := newFakeAPI()
	bot := New(api, Options{AutoDelete: true, SendRate: 1000})
	shot := writeShot(t)

	bot.deliver(context.Background(), 5, bridge.Reply{Text: "all good", ImagePath: shot})

	sent := api.sentSnapshot()
	if len(sent) != 1 {
		t.Fatalf("expected one photo, got %d sends", len(sent))
	}
	photo := sent[0].(tgbotapi.PhotoConfig)
	if photo.Caption != "all good" {
		t.Fatalf("unexpected caption %q", photo.Caption)
	}
	if photo.File.(tgbotapi.FilePath) != tgbotapi.FilePath(shot) {
		t.Fatalf("unexpected file %v", photo.File)
	}
	if _, err := os.Stat(shot); !os.IsNotExist(err) {
		t.Fatalf("expected screenshot removed, stat err=%v", err)
	}
}

func TestBot_DeliverLongCaptionSplitsIntoText(t *testing.T) {
	api := newFakeAPI()
	bot := New(api, Options{SendRate: 1000})
	shot := writeShot(t)
	long := strings.Repeat("é", maxCaptionRunes+1)

	bot.deliver(context.Background(), 5, bridge.Reply{Text: long, ImagePath: shot})

	sent := api.sentSnapshot()
	if len(sent) != 2 {
		t.Fatalf("expected photo then text, got %d sends", len(sent))
	}
	if photo := sent[0].(tgbotapi.PhotoConfig); photo.Caption != "" {
		t.Fatalf("expected no caption on oversized reply")
	}
	if msg := sent[1].(tgbotapi.MessageConfig); msg.Text != long {
		t.Fatalf("expected full text follow-up")
	}
	if _, err := os.Stat(shot); err != nil {
		t.Fatalf("screenshot should stay without auto delete: %v", err)
	}
}

func TestBot_DeliverFallsBackToTextWhenPhotoFails(t *testing.T) {
	api := newFakeAPI()
	api.failSend = true
	bot := New(api, Options{SendRate: 1000})

	bot.deliver(context.Background(), 5, bridge.Reply{Text: "x", ImagePath: writeShot(t)})

	sent := api.sentSnapshot()
	if len(sent) != 2 {
		t.Fatalf("expected photo attempt and text fallback, got %d", len(sent))
	}
	if _, ok := sent[1].(tgbotapi.MessageConfig); !ok {
		t.Fatalf("expected text fallback, got %T", sent[1])
	}
}

func TestBot_ShowStatusDeletesMessage(t *testing.T) {
	api := newFakeAPI()
	bot := New(api, Options{SendRate: 1000})
	bot.rememberChat(3, 300)

	remove := bot.ShowStatus(context.Background(), 3, "🤖 Working...")
	remove()

	reqs := api.requestSnapshot()
	if len(reqs) != 1 {
		t.Fatalf("expected one delete request, got %d", len(reqs))
	}
	del := reqs[0].(tgbotapi.DeleteMessageConfig)
	if del.ChatID != 300 || del.MessageID != 1 {
		t.Fatalf("unexpected delete %#v", del)
	}
}

func TestBot_SplitRunes(t *testing.T) {
	parts := splitRunes(strings.Repeat("a", 10), 4)
	if len(parts) != 3 || parts[2] != "aa" {
		t.Fatalf("unexpected split %v", parts)
	}
	if got := splitRunes("short", 10); len(got) != 1 {
		t.Fatalf("unexpected split %v", got)
	}
}

func TestDecide_AutoModeAccepts(t *testing.T) {
	api := newFakeAPI()
	bot := New(api, Options{SendRate: 1000})

	d, source := bot.Decide(context.Background(), 1, "", screen.Prompt{})
	if d != screen.Accept || source != "auto" {
		t.Fatalf("got %v/%s", d, source)
	}
	if len(api.sentSnapshot()) != 0 {
		t.Fatalf("auto mode should not message the operator")
	}
}

func TestDecide_AskModeUsesOperatorAnswer(t *testing.T) {
	api := newFakeAPI()
	bot := New(api, Options{DecisionMode: config.PromptDecisionAsk, SendRate: 1000, AllowedUserID: 9})
	api.onSend = func(c tgbotapi.Chattable) {
		photo, ok := c.(tgbotapi.PhotoConfig)
		if !ok {
			return
		}
		markup := photo.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		deny := *markup.InlineKeyboard[0][1].CallbackData
		go func() {
			// A foreign user's click is ignored.
			bot.handleCallback(context.Background(), &tgbotapi.CallbackQuery{ID: "x", From: &tgbotapi.User{ID: 10}, Data: deny})
			bot.handleCallback(context.Background(), &tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: 9}, Data: deny})
		}()
	}

	d, source := bot.Decide(context.Background(), 9, writeShot(t), screen.Prompt{})
	if d != screen.Deny || source != "operator" {
		t.Fatalf("got %v/%s", d, source)
	}
	waitFor(t, "callback answered", func() bool {
		for _, r := range api.requestSnapshot() {
			if cb, ok := r.(tgbotapi.CallbackConfig); ok && cb.CallbackQueryID == "cb" && cb.Text == "Denied" {
				return true
			}
		}
		return false
	})
}

func TestDecide_AskModeTimesOutToAccept(t *testing.T) {
	api := newFakeAPI()
	bot := New(api, Options{DecisionMode: config.PromptDecisionAsk, DecisionTimeout: 20 * time.Millisecond, SendRate: 1000})

	d, source := bot.Decide(context.Background(), 1, "", screen.Prompt{})
	if d != screen.Accept || source != "timeout" {
		t.Fatalf("got %v/%s", d, source)
	}
	sent := api.sentSnapshot()
	if len(sent) != 2 {
		t.Fatalf("expected question and timeout notice, got %d", len(sent))
	}
	if bot.decisions.resolve("anything", 1, screen.Deny) {
		t.Fatalf("no decision should remain pending")
	}
}

func TestParseCallbackData(t *testing.T) {
	id, d, ok := parseCallbackData(callbackData("abc", screen.Deny))
	if !ok || id != "abc" || d != screen.Deny {
		t.Fatalf("got %q %v %v", id, d, ok)
	}
	for _, bad := range []string{"", "decide::accept", "decide:abc:maybe", "other:abc:accept"} {
		if _, _, ok := parseCallbackData(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
