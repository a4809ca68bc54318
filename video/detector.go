package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/davidkotlin/AImonitor/util"
	"github.com/davidkotlin/AImonitor/video/process"
	"github.com/davidkotlin/AImonitor/video/sink"
	"github.com/davidkotlin/AImonitor/video/source"
)

// Handoff receives completed events. Put must not block.
type Handoff interface {
	Put(e *Event)
}

// Detector pulls frames from a Source, compares each against its predecessor
// and hands the peak frame of every finished motion episode to a Handoff.
type Detector struct {
	Name    string
	Source  source.Source
	Handoff Handoff

	// Sinks receive every frame, annotated with the current motion regions.
	// They are closed when Run returns.
	Sinks []sink.Sink
	// Debug receives intermediate motion images when set.
	Debug *sink.MJPEGStreamPool

	params atomic.Pointer[process.Params]
	done   *util.Event
}

func NewDetector(name string, src source.Source, h Handoff, p process.Params) *Detector {
	d := &Detector{
		Name:    name,
		Source:  src,
		Handoff: h,
		done:    util.NewEvent(),
	}
	d.SetParams(p)
	return d
}

// SetParams replaces the motion constants, effective from the next frame.
func (d *Detector) SetParams(p process.Params) {
	d.params.Store(&p)
}

// Done is notified once Run has returned.
func (d *Detector) Done() *util.Event {
	return d.done
}

// Run processes frames until the source ends or ctx is cancelled. Only a
// failure to open the source is returned as an error.
func (d *Detector) Run(ctx context.Context) error {
	defer d.done.Notify()
	defer func() {
		for _, s := range d.Sinks {
			s.Close()
		}
	}()

	if err := d.Source.Open(); err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if err := d.Source.Close(); err != nil {
			log.Warnf("Failed to close video source: %v", err)
		}
	}()

	motion := process.NewMotion(*d.params.Load())
	motion.Debug = d.Debug
	defer motion.Close()

	tracker := &Tracker{Name: d.Name}
	// An episode still open at stop is never handed off.
	defer tracker.Reset()

	prev, err := d.Source.Read()
	if err != nil {
		d.logEnd(err)
		return nil
	}
	defer func() { prev.Close() }()

	for ctx.Err() == nil {
		cur, err := d.Source.Read()
		if err != nil {
			d.logEnd(err)
			return nil
		}

		motion.Params = *d.params.Load()
		a := motion.Analyze(prev.Mat, cur.Mat)
		framesProcessed.Inc()

		if ev := tracker.Observe(a, cur); ev != nil {
			id, seq := ev.ID, ev.Peak.Seq
			// ev belongs to the receiver from here on.
			d.Handoff.Put(ev)
			eventsDispatched.Inc()
			log.WithField("event", id).Infof("Peak frame %d handed off for analysis", seq)
		}

		d.display(cur, a)

		prev.Close()
		prev = cur
	}
	log.Infof("Detector stopped: %v", ctx.Err())
	return nil
}

func (d *Detector) display(cur source.Image, a process.Analysis) {
	if len(d.Sinks) == 0 {
		return
	}
	out := process.Annotate(d.Name, cur, a.Regions)
	defer out.Close()
	for _, s := range d.Sinks {
		s.Put(out)
	}
}

func (d *Detector) logEnd(err error) {
	if errors.Is(err, io.EOF) {
		log.Infof("Video source reached end of stream")
		return
	}
	log.Warnf("Video source read failed, stopping: %v", err)
}
