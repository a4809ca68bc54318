package util

import (
	"sync"
	"time"
)

// Event is a one-shot signal. Once notified it stays notified.
type Event struct {
	notified bool
	done     chan struct{}
	c        *sync.Cond
}

func NewEvent() *Event {
	return &Event{
		done: make(chan struct{}),
		c:    sync.NewCond(&sync.Mutex{}),
	}
}

func (e *Event) Notify() {
	e.c.L.Lock()
	defer e.c.L.Unlock()
	if !e.notified {
		e.notified = true
		close(e.done)
		e.c.Broadcast()
	}
}

func (e *Event) Wait() {
	e.c.L.Lock()
	defer e.c.L.Unlock()
	for !e.notified {
		e.c.Wait()
	}
}

// WaitTimeout waits at most d and reports whether the event was notified.
func (e *Event) WaitTimeout(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.done:
		return true
	case <-t.C:
		return e.HasBeenNotified()
	}
}

// Done returns a channel closed once the event is notified.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

func (e *Event) HasBeenNotified() bool {
	e.c.L.Lock()
	defer e.c.L.Unlock()
	return e.notified
}
