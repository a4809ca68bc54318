package serve

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/davidkotlin/AImonitor/util"
)

type StatusResponse struct {
	Name      string
	StartedAt int64
	UptimeSec int

	Streams []string

	// SlotDrops counts peak frames displaced before they were analyzed.
	SlotDrops uint64

	DetectorRunning   bool
	DispatcherRunning bool
}

// StatusServer reports the state of the pipeline as JSON.
type StatusServer struct {
	Name    string
	Started time.Time

	Streams func() []string
	Drops   func() uint64

	DetectorDone   *util.Event
	DispatcherDone *util.Event
}

func running(e *util.Event) bool {
	return e != nil && !e.HasBeenNotified()
}

func (s *StatusServer) BuildResponse(now time.Time) *StatusResponse {
	resp := &StatusResponse{
		Name:              s.Name,
		StartedAt:         s.Started.Unix(),
		UptimeSec:         int(now.Sub(s.Started).Seconds()),
		DetectorRunning:   running(s.DetectorDone),
		DispatcherRunning: running(s.DispatcherDone),
	}
	if s.Streams != nil {
		resp.Streams = s.Streams()
	}
	if s.Drops != nil {
		resp.SlotDrops = s.Drops()
	}
	return resp
}

func (s *StatusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	js, err := json.Marshal(s.BuildResponse(time.Now()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
