package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestWebPush(t *testing.T) *WebPush {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database handle: %v", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	p, err := NewWebPush(db, "admin@example.com")
	if err != nil {
		t.Fatalf("NewWebPush() failed: %v", err)
	}
	return p
}

// subscribe registers a browser subscription for endpoint through the HTTP
// handlers.
func subscribe(t *testing.T, p *WebPush, endpoint string) {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatal(err)
	}
	sub := webpush.Subscription{
		Endpoint: endpoint,
		Keys: webpush.Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
	b, _ := json.Marshal(&sub)

	mux := http.NewServeMux()
	p.RegisterHandlers(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/push_subscribe", strings.NewReader(string(b))))
	if rec.Code != http.StatusOK {
		t.Fatalf("/push_subscribe = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebPushKeysPersist(t *testing.T) {
	p := newTestWebPush(t)
	if p.Key.Public == "" || p.Key.Private == "" {
		t.Fatal("no VAPID key generated")
	}
	again, err := NewWebPush(p.db, "admin@example.com")
	if err != nil {
		t.Fatalf("NewWebPush() failed: %v", err)
	}
	if again.Key.Public != p.Key.Public {
		t.Error("VAPID key regenerated instead of loaded")
	}
}

func TestWebPushNotify(t *testing.T) {
	type push struct {
		method string
		size   int
		auth   string
	}
	pushes := make(chan push, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		pushes <- push{method: r.Method, size: len(b), auth: r.Header.Get("Authorization")}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := newTestWebPush(t)
	subscribe(t, p, srv.URL+"/push/abc")

	if err := p.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	select {
	case got := <-pushes:
		if got.method != http.MethodPost || got.size == 0 {
			t.Errorf("push service got %s with %d bytes", got.method, got.size)
		}
		if got.auth == "" {
			t.Error("push request carries no VAPID authorization")
		}
	default:
		t.Fatal("push service was not called")
	}

	var pc PushConfig
	if err := p.db.First(&pc).Error; err != nil {
		t.Fatalf("subscription lost: %v", err)
	}
	if pc.LastSuccess == nil || pc.LastFailure != nil {
		t.Errorf("LastSuccess %v LastFailure %v, want a success only", pc.LastSuccess, pc.LastFailure)
	}
}

func TestWebPushGoneSubscriptionIsDeleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	p := newTestWebPush(t)
	subscribe(t, p, srv.URL+"/push/gone")

	if err := p.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	var n int64
	if err := p.db.Model(&PushConfig{}).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d subscriptions left, want the gone one deleted", n)
	}
}

func TestWebPushFailureIsRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL + "/push/down"
	srv.Close()

	p := newTestWebPush(t)
	subscribe(t, p, endpoint)

	if err := p.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	var pc PushConfig
	if err := p.db.First(&pc).Error; err != nil {
		t.Fatal(err)
	}
	if pc.LastFailure == nil || pc.LastFailureMessage == "" {
		t.Errorf("failure not recorded: %+v", pc)
	}
}
