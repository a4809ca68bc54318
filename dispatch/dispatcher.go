package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/davidkotlin/AImonitor/analyze"
	"github.com/davidkotlin/AImonitor/notify"
	"github.com/davidkotlin/AImonitor/util"
	"github.com/davidkotlin/AImonitor/video"
	"github.com/davidkotlin/AImonitor/video/process"
	"github.com/davidkotlin/AImonitor/video/source"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultNotifyTimeout = 15 * time.Second
)

// AnalyzerFactory builds the analyzer owned by one Dispatcher.
type AnalyzerFactory func(ctx context.Context) (analyze.Analyzer, error)

type Notifier interface {
	Notify(ctx context.Context, n *notify.Notification) error
}

// Dispatcher takes motion events from the slot, has the peak frame of each
// analyzed and notifies on alarming verdicts. A failure while handling one
// event never stops the loop.
type Dispatcher struct {
	Slot        *util.Slot[*video.Event]
	NewAnalyzer AnalyzerFactory
	Notifier    Notifier

	// Timeout bounds each analyzer call.
	Timeout time.Duration
	// NotifyTimeout bounds the delivery of each notification to all
	// listeners.
	NotifyTimeout time.Duration
	// Encode turns a frame into the bytes sent to the analyzer.
	Encode func(source.Image) ([]byte, error)

	done *util.Event
}

func New(slot *util.Slot[*video.Event], f AnalyzerFactory, n Notifier) *Dispatcher {
	return &Dispatcher{
		Slot:          slot,
		NewAnalyzer:   f,
		Notifier:      n,
		Timeout:       DefaultTimeout,
		NotifyTimeout: DefaultNotifyTimeout,
		Encode:        process.EncodeJPEG,
		done:          util.NewEvent(),
	}
}

// Done is notified once Run has returned.
func (d *Dispatcher) Done() *util.Event {
	return d.done
}

// Run consumes events until the shutdown marker is taken or ctx is done. The
// analyzer is built here, so it is never shared with another goroutine.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.done.Notify()

	analyzer, err := d.NewAnalyzer(ctx)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}
	defer func() {
		if err := analyze.Close(analyzer); err != nil {
			log.Warnf("Failed to close analyzer: %v", err)
		}
	}()

	log.Infof("Dispatcher ready")
	for {
		m, err := d.Slot.Take(ctx)
		if err != nil {
			log.Infof("Dispatcher stopped: %v", err)
			return nil
		}
		if m.Kind == util.KindShutdown {
			log.Infof("Dispatcher received shutdown")
			return nil
		}
		d.handle(ctx, analyzer, m.Value)
	}
}

func (d *Dispatcher) handle(ctx context.Context, analyzer analyze.Analyzer, ev *video.Event) {
	l := log.WithField("event", ev.ID)
	defer ev.Release()
	defer func() {
		if r := recover(); r != nil {
			analyses.WithLabelValues("panic").Inc()
			l.Errorf("Recovered from panic while handling event: %v", r)
		}
	}()

	jpeg, err := d.Encode(ev.Peak)
	if err != nil {
		analyses.WithLabelValues("encode_error").Inc()
		l.Errorf("Failed to encode peak frame: %v", err)
		return
	}

	start := time.Now()
	actx, cancel := context.WithTimeout(ctx, d.Timeout)
	raw, err := analyzer.Analyze(actx, jpeg)
	cancel()
	if err != nil {
		var perr *analyze.ProviderError
		if errors.As(err, &perr) {
			analyses.WithLabelValues("provider_error").Inc()
			l.WithField("status", perr.StatusCode).Errorf("Analyzer returned an error: %v", perr)
		} else {
			analyses.WithLabelValues("error").Inc()
			l.Errorf("Analyzer call failed: %v", err)
		}
		return
	}
	l.Debugf("Analyzer replied in %v: %s", time.Since(start), raw)

	v, err := analyze.ParseVerdict(raw)
	if err != nil {
		analyses.WithLabelValues("malformed").Inc()
		l.Errorf("Could not parse analyzer reply: %v", err)
		return
	}
	analyses.WithLabelValues("ok").Inc()
	l.WithFields(log.Fields{
		"status": v.Status,
		"danger": v.DangerLevel,
	}).Infof("Analysis result: %s", v.Reason)

	if !v.Alarming() {
		return
	}
	n := &notify.Notification{
		EventID: ev.ID,
		Time:    ev.Peak.Time,
		Verdict: *v,
	}
	nctx, ncancel := context.WithTimeout(ctx, d.NotifyTimeout)
	defer ncancel()
	if err := d.Notifier.Notify(nctx, n); err != nil {
		notifications.WithLabelValues("error").Inc()
		l.Errorf("Notification failed: %v", err)
		return
	}
	notifications.WithLabelValues("sent").Inc()
}
