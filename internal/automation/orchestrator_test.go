package automation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ghostsync/cli/internal/desktop"
	"ghostsync/cli/internal/desktop/desktoptest"
	"ghostsync/cli/internal/screen"
	"ghostsync/cli/internal/target"
	"ghostsync/cli/internal/tunnel"
)

type fakeDeliverer struct {
	handle desktop.Handle
	err    error
	texts  []string
	got    []desktop.Handle
}

func (f *fakeDeliverer) Deliver(_ context.Context, h desktop.Handle, text string) (desktop.Handle, error) {
	f.got = append(f.got, h)
	f.texts = append(f.texts, text)
	if f.err != nil {
		return 0, f.err
	}
	return f.handle, nil
}

type fakeWaiter struct {
	outcome screen.Outcome
	opts    screen.WaitOptions
	before  func()
}

func (f *fakeWaiter) Wait(_ context.Context, opts screen.WaitOptions) (screen.Outcome, error) {
	f.opts = opts
	if f.before != nil {
		f.before()
	}
	return f.outcome, nil
}

type fakeTunnels struct {
	detected  int
	portErr   error
	createErr error
	created   []int
	waited    []int
}

func (f *fakeTunnels) Create(_ context.Context, port int) (string, error) {
	f.created = append(f.created, port)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "https://calm-river.trycloudflare.com", nil
}

func (f *fakeTunnels) DetectDevServer(context.Context) (int, bool) {
	return f.detected, f.detected != 0
}

func (f *fakeTunnels) WaitPortOpen(_ context.Context, port int, _ time.Duration) error {
	f.waited = append(f.waited, port)
	return f.portErr
}

type testRig struct {
	orch    *Orchestrator
	fake    *desktoptest.Fake
	deliver *fakeDeliverer
	waiter  *fakeWaiter
	tunnels *fakeTunnels
	events  []string
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		fake:    desktoptest.New(),
		deliver: &fakeDeliverer{handle: 7},
		waiter:  &fakeWaiter{outcome: screen.Outcome{Status: screen.StatusStable}},
		tunnels: &fakeTunnels{},
	}
	profile := target.CommonDefaults("antigravity", "antigravity", "Antigravity")
	var mu sync.Mutex
	rig.orch = New(Deps{
		Backend:   rig.fake,
		Profile:   profile,
		Sequencer: rig.deliver,
		Monitor:   rig.waiter,
		Tunnels:   rig.tunnels,
		Shots:     screen.NewShots(t.TempDir()),
		Logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
		OnEvent: func(eventType string, _ map[string]any) {
			mu.Lock()
			rig.events = append(rig.events, eventType)
			mu.Unlock()
		},
	})
	rig.orch.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return rig
}

func TestOpenProject_RecordsWindowAndScreenshot(t *testing.T) {
	rig := newRig(t)
	rig.fake.OnLaunch = func(f *desktoptest.Fake, _ string, _ []string) {
		f.AddWindow(11, "app - Antigravity", desktop.Rect{Width: 800, Height: 600})
	}

	shot, err := rig.orch.OpenProject(context.Background(), " /srv/app ")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := os.Stat(shot); err != nil {
		t.Fatalf("expected screenshot on disk: %v", err)
	}
	if len(rig.fake.Launched) != 1 || rig.fake.Launched[0][0] != "antigravity" || rig.fake.Launched[0][1] != "/srv/app" {
		t.Fatalf("unexpected launch: %v", rig.fake.Launched)
	}
	st := rig.orch.Status()
	if st.Window != "11" || st.ProjectPath != "/srv/app" || st.Busy {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestOpenProject_NoWindow(t *testing.T) {
	rig := newRig(t)
	if _, err := rig.orch.OpenProject(context.Background(), "/srv/app"); !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
	if rig.orch.Status().ProjectPath != "" {
		t.Fatal("project path must not be recorded without a window")
	}
}

func TestRunPrompt_PortFromReplyPublishesTunnel(t *testing.T) {
	rig := newRig(t)
	rig.fake.Clip = "Dev server running at http://localhost:5173/"
	rig.waiter.outcome.PromptsResolved = 2

	res, err := rig.orch.RunPrompt(context.Background(), "build it", nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.LocalURL != "http://localhost:5173" || res.PublicURL != "https://calm-river.trycloudflare.com" {
		t.Fatalf("unexpected urls: %+v", res)
	}
	if res.PromptsResolved != 2 || !res.Settled || res.ScreenshotPath == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if rig.waiter.opts.Window != 7 || rig.waiter.opts.StableFor != 3*time.Second {
		t.Fatalf("unexpected wait options: %+v", rig.waiter.opts)
	}
	if len(rig.tunnels.waited) != 1 || rig.tunnels.waited[0] != 5173 {
		t.Fatalf("expected port wait on 5173, got %v", rig.tunnels.waited)
	}
	if rig.orch.Status().Window != "7" {
		t.Fatal("expected delivered handle to be remembered")
	}
}

func TestRunPrompt_DefaultsAndDetection(t *testing.T) {
	rig := newRig(t)
	rig.tunnels.detected = 3000
	rig.tunnels.portErr = tunnel.ErrPortNeverOpen

	res, err := rig.orch.RunPrompt(context.Background(), "build it", nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ReplyText != DefaultReply {
		t.Fatalf("expected default reply, got %q", res.ReplyText)
	}
	if res.LocalURL != "http://localhost:3000" || res.PublicURL != "" {
		t.Fatalf("expected local url only, got %+v", res)
	}
	if len(rig.tunnels.created) != 0 {
		t.Fatal("tunnel must not be created for a closed port")
	}
}

func TestRunPrompt_TunnelFailureIsNotFatal(t *testing.T) {
	rig := newRig(t)
	rig.fake.Clip = "listening on :8080"
	rig.tunnels.createErr = tunnel.ErrTunnelTimeout

	res, err := rig.orch.RunPrompt(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.LocalURL != "http://localhost:8080" || res.PublicURL != "" {
		t.Fatalf("unexpected urls: %+v", res)
	}
}

func TestRunPrompt_NoPortNoURLs(t *testing.T) {
	rig := newRig(t)
	rig.fake.Clip = "Refactored the parser."

	res, err := rig.orch.RunPrompt(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.LocalURL != "" || res.PublicURL != "" || res.ReplyText != "Refactored the parser." {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunPrompt_DeliveryErrorAborts(t *testing.T) {
	rig := newRig(t)
	rig.deliver.err = ErrWindowNotFound

	if _, err := rig.orch.RunPrompt(context.Background(), "x", nil); !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
	for _, c := range rig.fake.Calls() {
		if c == "hotkey ctrl+a" {
			t.Fatal("reply must not be collected after a failed delivery")
		}
	}
}

func TestRunPrompt_IsSerialised(t *testing.T) {
	rig := newRig(t)
	var active, maxActive atomic.Int32
	rig.waiter.before = func() {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = rig.orch.RunPrompt(context.Background(), "x", nil)
		}()
	}
	wg.Wait()
	if maxActive.Load() != 1 {
		t.Fatalf("expected one automation at a time, saw %d", maxActive.Load())
	}
}

func TestPortFromReply(t *testing.T) {
	cases := []struct {
		in   string
		port int
		ok   bool
	}{
		{"http://localhost:3000", 3000, true},
		{"ports :5173 and :8080", 5173, true},
		{"time 10:30", 0, false},
		{"bad :99999", 0, false},
		{"no port here", 0, false},
	}
	for _, c := range cases {
		port, ok := PortFromReply(c.in)
		if port != c.port || ok != c.ok {
			t.Fatalf("PortFromReply(%q) = %d,%v want %d,%v", c.in, port, ok, c.port, c.ok)
		}
	}
}
