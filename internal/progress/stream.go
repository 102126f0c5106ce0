// Package progress provides a broadcast stream of download progress
// snapshots. A single producer publishes; any number of subscribers observe
// the same sequence of events and the same terminal outcome, so a rendering
// listener and a cleanup listener never race each other for one subscription.
package progress

import (
	"sync"

	"github.com/tilevault/tilevault-go/internal/models"
)

// Event is one item on a progress stream. Err is non-nil only on the
// terminal event of a failed stream; a stream that completes normally just
// closes its subscription channels.
type Event struct {
	Snapshot models.ProgressSnapshot
	Err      error
}

// Stream fans progress events out to all current subscribers.
type Stream struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
	err    error
	done   chan struct{}
	latest models.ProgressSnapshot
}

// NewStream creates an open stream with no subscribers.
func NewStream() *Stream {
	return &Stream{
		subs: make(map[*Subscription]struct{}),
		done: make(chan struct{}),
	}
}

// Subscription is one listener's view of a stream. Its channel closes when
// the stream ends or the subscription is cancelled.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	stream *Stream
	closed bool
}

// Subscribe registers a new listener. Subscribing to a finished stream
// yields a subscription that immediately delivers the terminal event (if
// the stream failed) and then closes.
func (s *Stream) Subscribe() *Subscription {
	// Each subscriber gets a one-slot mailbox: a pending snapshot is
	// replaced by a newer one, matching "latest snapshot supersedes prior".
	sub := &Subscription{stream: s, ch: make(chan Event, 1)}
	sub.C = sub.ch

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if s.err != nil {
			sub.ch <- Event{Err: s.err}
		}
		sub.closed = true
		close(sub.ch)
		return sub
	}
	s.subs[sub] = struct{}{}
	return sub
}

// Cancel removes the subscription and closes its channel. Idempotent.
func (sub *Subscription) Cancel() {
	s := sub.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.closed {
		return
	}
	delete(s.subs, sub)
	sub.closed = true
	close(sub.ch)
}

// Publish delivers a snapshot to every subscriber. Publishing on a closed
// stream is a no-op.
func (s *Stream) Publish(snap models.ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest = snap
	for sub := range s.subs {
		deliver(sub.ch, Event{Snapshot: snap})
	}
}

// Close ends the stream. A non-nil err marks the stream as failed and is
// delivered to every subscriber as a final event before their channels
// close. Closing twice is a no-op; the first outcome wins.
func (s *Stream) Close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	for sub := range s.subs {
		if err != nil {
			deliver(sub.ch, Event{Err: err})
		}
		sub.closed = true
		close(sub.ch)
	}
	s.subs = make(map[*Subscription]struct{})
	close(s.done)
}

// Done closes once the stream has reached its terminal state.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err reports the terminal error of a failed stream, nil otherwise.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Latest returns the most recently published snapshot.
func (s *Stream) Latest() models.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// deliver performs a latest-wins send into a one-slot mailbox: if the
// subscriber has not consumed the previous event yet, it is superseded.
func deliver(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
