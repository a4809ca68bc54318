package video

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aimonitor_frames_processed_total",
		Help: "Frame pairs compared by the motion detector.",
	})
	eventsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aimonitor_motion_events_started_total",
		Help: "Motion episodes started.",
	})
	eventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aimonitor_motion_events_dispatched_total",
		Help: "Motion episodes whose peak frame was handed off for analysis.",
	})
)
