package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

func newTestLine(t *testing.T, h http.HandlerFunc) *Line {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	l, err := NewLine("test-token", "U123", messaging_api.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("NewLine() failed: %v", err)
	}
	return l
}

func TestLineNotify(t *testing.T) {
	n := testNotification()
	var body string
	l := newTestLine(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v2/bot/message/push") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"sentMessages":[{"id":"1","quoteToken":"q"}]}`)
	})

	if err := l.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	if !strings.Contains(body, `"U123"`) {
		t.Errorf("push body %s does not name the target", body)
	}
	if !strings.Contains(body, "The bike is gone.") {
		t.Errorf("push body %s does not carry the reason", body)
	}
}

func TestLineNotifyServerError(t *testing.T) {
	l := newTestLine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})
	if err := l.Notify(context.Background(), testNotification()); err == nil {
		t.Error("Notify() succeeded on a 500 reply")
	}
}

func TestLineNotifyHonorsContext(t *testing.T) {
	l := newTestLine(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := l.Notify(ctx, testNotification()); err == nil {
		t.Error("Notify() succeeded against a stalled server")
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("Notify() returned after %v, want the context deadline to apply", d)
	}
}
