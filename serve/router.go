package serve

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/davidkotlin/AImonitor/notify"
	"github.com/davidkotlin/AImonitor/video/sink"
)

// Routes are the handlers to expose. Nil handlers are left out.
type Routes struct {
	MJPEG    *sink.MJPEGServer
	Feed     *Feed
	Callback *Callback
	WebPush  *notify.WebPush
	Status   *StatusServer
}

// NewRouter builds the HTTP handler. Requests are logged to accessLog.
func NewRouter(r Routes, accessLog io.Writer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, "ok")
	})
	if r.Status != nil {
		mux.Handle("/status", r.Status)
	}
	if r.MJPEG != nil {
		mux.Handle("/mjpeg", r.MJPEG)
	}
	if r.Feed != nil {
		mux.Handle("/feed", r.Feed)
	}
	if r.Callback != nil {
		mux.Handle("/callback", r.Callback)
	} else {
		log.Infof("LINE channel secret not set, /callback disabled")
	}
	if r.WebPush != nil {
		r.WebPush.RegisterHandlers(mux)
	}
	return handlers.CombinedLoggingHandler(accessLog, mux)
}
