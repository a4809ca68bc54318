package serve

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/davidkotlin/AImonitor/notify"
)

const (
	// Time allowed to write message to the client
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// FeedItem is the JSON pushed to feed clients for each notification.
type FeedItem struct {
	EventID              string
	Timestamp            int64
	Status               string
	DangerLevel          string
	Reason               string
	NewObjectDescription string `json:",omitempty"`
}

// Feed broadcasts notifications to websocket clients. It is a
// notify.NotifyListener.
type Feed struct {
	upgrader websocket.Upgrader
	cs       map[chan []byte]bool
	addc     chan chan []byte
	delc     chan chan []byte
	notify   chan []byte
}

func NewFeed() *Feed {
	m := &Feed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:     make(map[chan []byte]bool),
		addc:   make(chan chan []byte),
		delc:   make(chan chan []byte),
		notify: make(chan []byte),
	}
	go func() {
		for {
			select {
			case c := <-m.addc:
				m.cs[c] = true
			case c := <-m.delc:
				delete(m.cs, c)
			case b := <-m.notify:
				for k := range m.cs {
					select {
					case k <- b:
					default:
						// Client is behind; it will get the next one.
					}
				}
			}
		}
	}()
	return m
}

func (m *Feed) Notify(ctx context.Context, n *notify.Notification) error {
	b, err := json.Marshal(&FeedItem{
		EventID:              n.EventID,
		Timestamp:            n.Time.Unix(),
		Status:               n.Verdict.Status,
		DangerLevel:          n.Verdict.DangerLevel,
		Reason:               n.Verdict.Reason,
		NewObjectDescription: n.Verdict.NewObjectDescription,
	})
	if err != nil {
		return err
	}
	select {
	case m.notify <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for feed: %v", err)
		}
		return
	}
	go m.serve(ws)
}

func (m *Feed) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to verdict feed")
	defer func() {
		ws.Close()
		clog.Info("disconnected from verdict feed")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	notifyc := make(chan []byte, 4)
	m.addc <- notifyc
	defer func() { m.delc <- notifyc }()

	// Even though we don't care about incoming messages, we need to read from
	// the socket in order to process control messages.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case b := <-notifyc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
