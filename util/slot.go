package util

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Kind tags the payload of a Message.
type Kind int

const (
	KindValue Kind = iota
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindShutdown:
		return "shutdown"
	}
	return "unknown"
}

// Message is what a Slot delivers: either a value, or the shutdown marker.
type Message[T any] struct {
	Kind  Kind
	Value T
}

// Slot is a single item mailbox between one producer and one consumer. A Put
// never blocks: an unconsumed value is displaced by the new one, so the
// consumer only ever sees the latest value and never a backlog.
type Slot[T any] struct {
	// OnDrop, if set, receives every value that is displaced or refused, so
	// that its resources can be released.
	OnDrop func(T)

	// Name is used in log lines.
	Name string

	c chan Message[T]

	// mu serializes producers. Only the consumer removes from c, so once mu
	// is held a send after draining can not block.
	mu       sync.Mutex
	shutdown bool

	drops atomic.Uint64
}

func NewSlot[T any](name string) *Slot[T] {
	return &Slot[T]{
		Name: name,
		c:    make(chan Message[T], 1),
	}
}

// Put offers v to the consumer, displacing any value not yet taken. After
// Shutdown, v is dropped.
func (s *Slot[T]) Put(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		log.WithField("slot", s.Name).Infof("Slot is shut down, dropping value")
		s.drop(v)
		return
	}
	s.offer(Message[T]{Kind: KindValue, Value: v})
}

// Shutdown places the shutdown marker in the slot. A value still pending is
// not displaced: the marker follows it and is delivered by the Take after the
// one returning that value. Calling Shutdown more than once has no further
// effect.
func (s *Slot[T]) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return
	}
	s.shutdown = true
	s.arm()
}

// arm places the marker if the slot is empty. mu must be held.
func (s *Slot[T]) arm() {
	select {
	case s.c <- Message[T]{Kind: KindShutdown}:
	default:
		// A value is pending; the Take consuming it arms the marker.
	}
}

func (s *Slot[T]) offer(m Message[T]) {
	select {
	case s.c <- m:
		return
	default:
	}
	select {
	case old := <-s.c:
		log.WithField("slot", s.Name).Infof("Dropping undelivered value, replaced by a newer one")
		s.drop(old.Value)
	default:
		// Consumer took it in the meantime.
	}
	s.c <- m
}

func (s *Slot[T]) drop(v T) {
	s.drops.Add(1)
	if s.OnDrop != nil {
		s.OnDrop(v)
	}
}

// Take suspends until a message is available or ctx is done. Once the
// shutdown marker has been delivered, every later Take returns it again.
func (s *Slot[T]) Take(ctx context.Context) (Message[T], error) {
	select {
	case m := <-s.c:
		s.mu.Lock()
		if s.shutdown {
			// Producers refuse values after shutdown, so only the marker can
			// refill c.
			s.arm()
		}
		s.mu.Unlock()
		return m, nil
	case <-ctx.Done():
		return Message[T]{}, ctx.Err()
	}
}

// Drops returns how many values were displaced or refused.
func (s *Slot[T]) Drops() uint64 {
	return s.drops.Load()
}
