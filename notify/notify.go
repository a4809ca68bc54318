package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"github.com/davidkotlin/AImonitor/analyze"
)

// Notification is sent to all NotifyListeners registered with Notifier.
type Notification struct {
	EventID string
	// Time is when the notified frame was captured.
	Time    time.Time
	Verdict analyze.Verdict
}

func (n *Notification) Text() string {
	return n.Verdict.Message()
}

type NotifyListener interface {
	Notify(ctx context.Context, n *Notification) error
}

// Notifier delivers notifications to every listener in turn. A failing
// listener does not prevent delivery to the others.
type Notifier struct {
	Listeners []NotifyListener
}

func (n *Notifier) Notify(ctx context.Context, notification *Notification) error {
	log.Debugf("Sending notification: %v", spew.Sdump(notification))
	var errs []error
	for _, l := range n.Listeners {
		if err := l.Notify(ctx, notification); err != nil {
			log.WithField("event", notification.EventID).Errorf("Failed to send notification via %T: %v", l, err)
			errs = append(errs, fmt.Errorf("%T: %w", l, err))
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to the log, so that they leave a trace even when
// no delivery channel is configured.
type Log struct{}

func (Log) Notify(ctx context.Context, n *Notification) error {
	log.WithFields(log.Fields{
		"event":  n.EventID,
		"status": n.Verdict.Status,
		"danger": n.Verdict.DangerLevel,
	}).Warnf("ALERT: %s", n.Verdict.Reason)
	return nil
}
