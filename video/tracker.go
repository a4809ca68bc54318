package video

import (
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/davidkotlin/AImonitor/video/process"
	"github.com/davidkotlin/AImonitor/video/source"
)

// Tracker finds motion episode boundaries and keeps the most significant
// frame of the episode in progress.
//
// peak is set only while active, and only once a pair has scored above zero.
// peakScore never decreases while active.
type Tracker struct {
	// Name labels annotated frames.
	Name string

	active    bool
	peakScore float64
	peak      *source.Image
	current   *Event
}

func (t *Tracker) Active() bool {
	return t.active
}

func (t *Tracker) PeakScore() float64 {
	return t.peakScore
}

// Observe advances the state machine with the analysis of the pair ending in
// cur. It returns the completed event when an episode with a peak frame ends.
// cur is never retained; the peak is an annotated copy.
func (t *Tracker) Observe(a process.Analysis, cur source.Image) *Event {
	switch {
	case a.Motion && !t.active:
		t.start(cur)
	case !a.Motion && t.active:
		return t.end(cur)
	case !a.Motion:
		return nil
	}

	t.current.Pairs++
	if a.DiffSum > t.peakScore {
		// The peak is the newer frame of the pair, boxed with the regions that
		// changed since the older one.
		annotated := process.Annotate(t.Name, cur, a.Regions)
		t.clearPeak()
		t.peakScore = a.DiffSum
		t.peak = &annotated
		log.WithFields(log.Fields{
			"event": t.current.ID,
			"seq":   cur.Seq,
			"score": a.DiffSum,
		}).Debugf("New peak frame")
	}
	return nil
}

func (t *Tracker) start(cur source.Image) {
	t.active = true
	t.peakScore = 0
	t.clearPeak()
	t.current = &Event{
		ID:      uuid.NewString(),
		Started: cur.Time,
	}
	eventsStarted.Inc()
	log.WithFields(log.Fields{
		"event": t.current.ID,
		"seq":   cur.Seq,
	}).Infof("Motion started")
}

func (t *Tracker) end(cur source.Image) *Event {
	ev := t.current
	ev.Ended = cur.Time
	l := log.WithFields(log.Fields{
		"event":    ev.ID,
		"seq":      cur.Seq,
		"pairs":    ev.Pairs,
		"duration": ev.Duration().String(),
	})

	var out *Event
	if t.peak != nil {
		ev.PeakScore = t.peakScore
		ev.Peak = *t.peak
		// Ownership of the peak moves to the event.
		t.peak = nil
		out = ev
		l.WithField("score", ev.PeakScore).Infof("Motion stopped")
	} else {
		l.Infof("Motion stopped without a peak frame")
	}

	t.active = false
	t.peakScore = 0
	t.current = nil
	return out
}

func (t *Tracker) clearPeak() {
	if t.peak != nil {
		t.peak.Close()
		t.peak = nil
	}
}

// Reset abandons any episode in progress and releases its peak frame.
func (t *Tracker) Reset() {
	if t.active {
		log.WithField("event", t.current.ID).Infof("Abandoning motion event in progress")
	}
	t.clearPeak()
	t.active = false
	t.peakScore = 0
	t.current = nil
}
