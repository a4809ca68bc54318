package serve

import (
	"errors"
	"io"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	log "github.com/sirupsen/logrus"
)

// Callback receives LINE webhook deliveries. It only authenticates and
// acknowledges them; inbound messages play no part in detection.
type Callback struct {
	ChannelSecret string
}

func (c *Callback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	cb, err := webhook.ParseRequest(c.ChannelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			log.WithField("addr", r.RemoteAddr).Warnf("Rejected callback with invalid signature")
		} else {
			log.WithField("addr", r.RemoteAddr).Warnf("Rejected malformed callback: %v", err)
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	log.WithField("events", len(cb.Events)).Debugf("Callback accepted")
	io.WriteString(w, "OK")
}
