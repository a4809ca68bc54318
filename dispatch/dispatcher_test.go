package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/davidkotlin/AImonitor/analyze"
	"github.com/davidkotlin/AImonitor/notify"
	"github.com/davidkotlin/AImonitor/util"
	"github.com/davidkotlin/AImonitor/video"
	"github.com/davidkotlin/AImonitor/video/source"
)

const (
	replyOK       = `{"status":"ok","new_object_description":"","danger_level":"low","reason":"Nothing changed."}`
	replyStolen   = "```json\n{\"status\":\"stolen\",\"new_object_description\":\"\",\"danger_level\":\"high\",\"reason\":\"The bike is gone.\"}\n```"
	replyMedium   = `{"status":"ok","new_object_description":"","danger_level":"medium","reason":"Someone is loitering."}`
	replyGarbage  = "Sorry, I can not help with that."
	replyReplaced = `{"status":"replaced","new_object_description":"a red box","danger_level":"low","reason":"Swapped."}`
)

// fakeAnalyzer answers with the result of reply, and reports each call on
// calls once it has answered.
type fakeAnalyzer struct {
	reply func(ctx context.Context, n int) (string, error)
	n     int32
	calls chan int
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, frameJPEG []byte) (string, error) {
	n := int(atomic.AddInt32(&a.n, 1))
	defer func() { a.calls <- n }()
	return a.reply(ctx, n)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []*notify.Notification
	err  error
	c    chan *notify.Notification

	// hang lists events whose delivery never completes on its own.
	hang map[string]bool
}

func (f *fakeNotifier) Notify(ctx context.Context, n *notify.Notification) error {
	if f.hang[n.EventID] {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	f.sent = append(f.sent, n)
	f.mu.Unlock()
	f.c <- n
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type harness struct {
	slot      *util.Slot[*video.Event]
	analyzer  *fakeAnalyzer
	notifier  *fakeNotifier
	d         *Dispatcher
	factories int32
	cancel    context.CancelFunc
}

func start(t *testing.T, reply func(ctx context.Context, n int) (string, error)) *harness {
	t.Helper()
	h := &harness{
		slot:     util.NewSlot[*video.Event]("test"),
		analyzer: &fakeAnalyzer{reply: reply, calls: make(chan int, 16)},
		notifier: &fakeNotifier{c: make(chan *notify.Notification, 16)},
	}
	h.slot.OnDrop = func(e *video.Event) { e.Release() }
	h.d = New(h.slot, func(ctx context.Context) (analyze.Analyzer, error) {
		atomic.AddInt32(&h.factories, 1)
		return h.analyzer, nil
	}, h.notifier)
	h.d.Encode = func(source.Image) ([]byte, error) { return []byte{0xff, 0xd8}, nil }

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		if err := h.d.Run(ctx); err != nil {
			t.Errorf("Run() failed: %v", err)
		}
	}()
	t.Cleanup(func() {
		h.slot.Shutdown()
		if !h.d.Done().WaitTimeout(5 * time.Second) {
			t.Error("dispatcher did not stop")
		}
		cancel()
	})
	return h
}

func event(id string) *video.Event {
	return &video.Event{
		ID:   id,
		Peak: source.Image{Mat: gocv.NewMat(), Time: time.Now(), Seq: 1},
	}
}

func (h *harness) waitCall(t *testing.T) int {
	t.Helper()
	select {
	case n := <-h.analyzer.calls:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("analyzer was not called")
	}
	return 0
}

func (h *harness) waitNotification(t *testing.T) *notify.Notification {
	t.Helper()
	select {
	case n := <-h.notifier.c:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("no notification sent")
	}
	return nil
}

func replies(r ...string) func(context.Context, int) (string, error) {
	return func(ctx context.Context, n int) (string, error) {
		return r[(n-1)%len(r)], nil
	}
}

func TestDispatcherNotifiesOnAlarmingVerdict(t *testing.T) {
	h := start(t, replies(replyStolen))
	h.slot.Put(event("e1"))
	h.waitCall(t)

	n := h.waitNotification(t)
	if n.EventID != "e1" {
		t.Errorf("EventID = %q, want e1", n.EventID)
	}
	if n.Verdict.Status != analyze.StatusStolen || n.Verdict.DangerLevel != analyze.DangerHigh {
		t.Errorf("Verdict = %+v", n.Verdict)
	}
}

func TestDispatcherNotificationRule(t *testing.T) {
	h := start(t, replies(replyOK, replyMedium, replyReplaced))

	h.slot.Put(event("ok"))
	h.waitCall(t)
	h.slot.Put(event("medium"))
	h.waitCall(t)
	if n := h.waitNotification(t); n.EventID != "medium" {
		t.Errorf("notified %q, want medium", n.EventID)
	}
	h.slot.Put(event("replaced"))
	h.waitCall(t)
	if n := h.waitNotification(t); n.EventID != "replaced" {
		t.Errorf("notified %q, want replaced", n.EventID)
	}
	if got := h.notifier.count(); got != 2 {
		t.Errorf("sent %d notifications, want 2", got)
	}
}

func TestDispatcherSurvivesMalformedReply(t *testing.T) {
	h := start(t, replies(replyGarbage, replyStolen))

	h.slot.Put(event("bad"))
	h.waitCall(t)
	h.slot.Put(event("good"))
	h.waitCall(t)

	if n := h.waitNotification(t); n.EventID != "good" {
		t.Errorf("notified %q, want good", n.EventID)
	}
}

func TestDispatcherSurvivesAnalyzerError(t *testing.T) {
	h := start(t, func(ctx context.Context, n int) (string, error) {
		switch n {
		case 1:
			return "", &analyze.ProviderError{Provider: "openai", StatusCode: 500, Message: "boom"}
		case 2:
			return "", errors.New("connection reset")
		case 3:
			panic("analyzer bug")
		}
		return replyStolen, nil
	})

	for i, id := range []string{"e1", "e2", "e3", "e4"} {
		h.slot.Put(event(id))
		if got := h.waitCall(t); got != i+1 {
			t.Fatalf("call %d, want %d", got, i+1)
		}
	}
	if n := h.waitNotification(t); n.EventID != "e4" {
		t.Errorf("notified %q, want e4", n.EventID)
	}
}

func TestDispatcherTimeout(t *testing.T) {
	h := start(t, func(ctx context.Context, n int) (string, error) {
		if n == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return replyStolen, nil
	})
	h.d.Timeout = 20 * time.Millisecond

	h.slot.Put(event("slow"))
	h.waitCall(t)
	h.slot.Put(event("fast"))
	h.waitCall(t)
	if n := h.waitNotification(t); n.EventID != "fast" {
		t.Errorf("notified %q, want fast", n.EventID)
	}
}

func TestDispatcherNotifierErrorIsNotFatal(t *testing.T) {
	h := start(t, replies(replyStolen))
	h.notifier.err = errors.New("LINE is down")

	h.slot.Put(event("e1"))
	h.waitNotification(t)
	h.slot.Put(event("e2"))
	if n := h.waitNotification(t); n.EventID != "e2" {
		t.Errorf("notified %q, want e2", n.EventID)
	}
}

func TestDispatcherHungNotifierDoesNotStall(t *testing.T) {
	h := start(t, replies(replyStolen))
	h.notifier.hang = map[string]bool{"hung": true}
	h.d.NotifyTimeout = 20 * time.Millisecond

	h.slot.Put(event("hung"))
	h.waitCall(t)
	h.slot.Put(event("next"))
	h.waitCall(t)
	if n := h.waitNotification(t); n.EventID != "next" {
		t.Errorf("notified %q, want next", n.EventID)
	}
}

func TestDispatcherShutdownDrainsPendingEvent(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := start(t, func(ctx context.Context, n int) (string, error) {
		if n == 1 {
			close(started)
			<-release
		}
		return replyStolen, nil
	})

	h.slot.Put(event("first"))
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("analyzer was not called")
	}
	h.slot.Put(event("pending"))
	h.slot.Shutdown()
	close(release)

	if !h.d.Done().WaitTimeout(5 * time.Second) {
		t.Fatal("dispatcher did not stop on shutdown")
	}
	if n := atomic.LoadInt32(&h.analyzer.n); n != 2 {
		t.Errorf("analyzer called %d times, want 2", n)
	}
	if got := h.notifier.count(); got != 2 {
		t.Errorf("sent %d notifications, want 2", got)
	}
}

func TestDispatcherShutdownWhileIdle(t *testing.T) {
	h := start(t, replies(replyStolen))

	h.slot.Shutdown()
	if !h.d.Done().WaitTimeout(5 * time.Second) {
		t.Fatal("dispatcher did not stop on shutdown")
	}
	if n := atomic.LoadInt32(&h.analyzer.n); n != 0 {
		t.Errorf("analyzer called %d times, want 0", n)
	}
	if n := atomic.LoadInt32(&h.factories); n != 1 {
		t.Errorf("analyzer built %d times, want 1", n)
	}
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	h := start(t, replies(replyStolen))
	h.cancel()
	if !h.d.Done().WaitTimeout(5 * time.Second) {
		t.Fatal("dispatcher did not stop on cancel")
	}
}

func TestDispatcherFactoryError(t *testing.T) {
	slot := util.NewSlot[*video.Event]("test")
	d := New(slot, func(ctx context.Context) (analyze.Analyzer, error) {
		return nil, errors.New("no API key")
	}, &fakeNotifier{})
	if err := d.Run(context.Background()); err == nil {
		t.Error("Run() succeeded without an analyzer")
	}
	if !d.Done().HasBeenNotified() {
		t.Error("Done() not notified after Run returned")
	}
}
