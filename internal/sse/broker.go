// Package sse implements a Server-Sent Events broker for library change
// notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// historySize is how many recent events are kept for Last-Event-ID replay.
const historySize = 64

type subscribeReq struct {
	ch     chan []byte
	lastID uint64
}

type sentEvent struct {
	id  uint64
	raw []byte
}

type photoEventReq struct {
	kind string
	path string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns the mutable state (clients, event
// sequence, index.updated throttle). Public methods talk to the loop
// through channels, so no mutexes are required.
//
// Photo events are followed by an index.updated event carrying the
// number of changes since the previous one. index.updated is sent at
// most once per throttle window; changes that arrive inside a window
// are flushed when it closes.
type Broker struct {
	indexMin  time.Duration
	keepAlive time.Duration

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	photoEventCh  chan photoEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given index.updated
// throttle interval.
func NewBroker(indexThrottle time.Duration) *Broker {
	if indexThrottle <= 0 {
		indexThrottle = 2 * time.Second
	}

	b := &Broker{
		indexMin:      indexThrottle,
		keepAlive:     30 * time.Second,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		photoEventCh:  make(chan photoEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var seq uint64
	history := make([]sentEvent, 0, historySize)
	var lastIndex time.Time
	pending := 0

	// flushTimer fires at the end of a throttle window with pending changes.
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))
		if len(history) == historySize {
			history = append(history[:0], history[1:]...)
		}
		history = append(history, sentEvent{id: seq, raw: raw})

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	emitIndex := func(now time.Time) {
		lastIndex = now
		broadcast(Event{Type: "index.updated", Data: map[string]int{"changes": pending}})
		pending = 0
	}

	for {
		select {
		case <-b.stopCh:
			if flushTimer != nil {
				flushTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			clients[req.ch] = struct{}{}
			if req.lastID == 0 {
				continue
			}
			for _, ev := range history {
				if ev.id <= req.lastID {
					continue
				}
				select {
				case req.ch <- ev.raw:
				default:
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.photoEventCh:
			switch req.kind {
			case "created", "updated", "deleted":
				broadcast(Event{Type: "photo." + req.kind, Data: map[string]string{"path": req.path}})
			default:
				continue
			}
			pending++

			now := time.Now()
			if wait := b.indexMin - now.Sub(lastIndex); wait <= 0 {
				emitIndex(now)
			} else if flushCh == nil {
				flushTimer = time.NewTimer(wait)
				flushCh = flushTimer.C
			}

		case <-flushCh:
			flushTimer, flushCh = nil, nil
			if pending > 0 {
				emitIndex(time.Now())
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.subscribe(0)
}

// subscribe adds a client that first receives the retained events
// newer than lastID. Zero means no replay.
func (b *Broker) subscribe(lastID uint64) chan []byte {
	ch := make(chan []byte, historySize)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, lastID: lastID}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishPhotoEvent publishes a photo change (kind is created, updated
// or deleted) and schedules a throttled index.updated event. Its
// signature matches index.EventCallback.
func (b *Broker) PublishPhotoEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.photoEventCh <- photoEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A reconnecting EventSource sends the last id it saw.
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	ch := b.subscribe(lastID)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
