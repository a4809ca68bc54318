package video

import (
	"time"

	"github.com/davidkotlin/AImonitor/video/source"
)

// Event is a completed motion episode: a maximal run of frame pairs in which
// motion was detected, represented by its peak frame.
type Event struct {
	ID      string
	Started time.Time
	Ended   time.Time

	// Pairs is the number of frame pairs that showed motion.
	Pairs int

	// PeakScore is the difference sum of the pair that produced Peak.
	PeakScore float64

	// Peak is the annotated frame with the highest difference sum. Whoever
	// holds the Event owns it and must call Release.
	Peak source.Image
}

func (e *Event) Duration() time.Duration {
	return e.Ended.Sub(e.Started)
}

func (e *Event) Release() {
	e.Peak.Close()
}
