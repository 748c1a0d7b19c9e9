package progress

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SlowSinkTimeout bounds how long an emit will wait on one subscriber before
// dropping the event for that subscriber.
const SlowSinkTimeout = 100 * time.Millisecond

// subscriberBuffer absorbs short bursts so healthy sinks never stall the
// producing workflow.
const subscriberBuffer = 64

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Broadcaster fans one run's ordered events out to attached sinks. Each sink
// gets a FIFO channel drained by its own pump goroutine, so delivery order
// matches emit order for every subscriber independently.
type Broadcaster struct {
	mu          sync.RWMutex
	subs        map[int64]*subscriber
	nextID      int64
	dropped     atomic.Int64
	slowTimeout time.Duration
	wg          sync.WaitGroup
}

// NewBroadcaster creates an empty broadcaster with the default slow-sink
// timeout.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:        make(map[int64]*subscriber),
		slowTimeout: SlowSinkTimeout,
	}
}

// Subscribe attaches a sink and returns a function that detaches it. The
// sink's Emit is called from a dedicated goroutine, one event at a time.
func (b *Broadcaster) Subscribe(sink Sink) (unsubscribe func()) {
	sub := &subscriber{
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case ev := <-sub.ch:
				sink.Emit(ev)
			case <-sub.done:
				// Drain anything already queued before exiting.
				for {
					select {
					case ev := <-sub.ch:
						sink.Emit(ev)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.close()
	}
}

// Emit delivers the event to every subscriber, waiting at most the slow-sink
// timeout per subscriber before dropping.
func (b *Broadcaster) Emit(event Event) {
	b.mu.RLock()
	snapshot := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	for _, sub := range snapshot {
		select {
		case sub.ch <- event:
			continue
		default:
		}

		timer := time.NewTimer(b.slowTimeout)
		select {
		case sub.ch <- event:
			timer.Stop()
		case <-sub.done:
			timer.Stop()
		case <-timer.C:
			total := b.dropped.Add(1)
			slog.Warn("progress sink slow, dropping event",
				"step", event.Step,
				"dropped_total", total)
		}
	}
}

// Dropped returns how many events have been dropped across all subscribers.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Close detaches every subscriber and waits for their pumps to finish
// delivering queued events.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.close()
	}
	b.mu.Unlock()
	b.wg.Wait()
}
