package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pipewatch/pipewatch/internal/event"
	"github.com/pipewatch/pipewatch/internal/logging"
	"github.com/pipewatch/pipewatch/internal/pipes"
	"github.com/pipewatch/pipewatch/internal/session"
)

// ErrTooManyConnections is returned by AddClient once the configured
// connection limit is reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

// writePump is the only goroutine writing to the conn. It drains the send
// channel and keeps the connection alive with pings; any write error removes
// the client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.b.RemoveClient(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.b.RemoveClient(c)
				return
			}
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans monitor and session events out to websocket clients. It
// implements event.Sink: published events are batched and flushed at most
// once per throttle period, so a burst of pipe churn becomes one frame.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	pipesFn func() []pipes.Info

	store    *session.Store
	throttle time.Duration
	maxConns int
	seq      atomic.Uint64
	log      *logging.Logger

	flushMu    sync.Mutex
	pending    []event.Event
	flushTimer *time.Timer

	snapshotTicker *time.Ticker
	stop           chan struct{}
	stopOnce       sync.Once
}

// NewBroadcaster creates a broadcaster flushing event batches at most once
// per throttle and re-sending a full snapshot every snapshotInterval (<= 0
// disables the periodic snapshot). maxConns 0 means unlimited.
func NewBroadcaster(store *session.Store, throttle, snapshotInterval time.Duration, maxConns int, log *logging.Logger) *Broadcaster {
	if throttle <= 0 {
		throttle = 100 * time.Millisecond
	}
	if log == nil {
		log = logging.NewNop()
	}

	b := &Broadcaster{
		clients:  make(map[*client]bool),
		store:    store,
		throttle: throttle,
		maxConns: maxConns,
		log:      log.Named("ws"),
		stop:     make(chan struct{}),
	}

	if snapshotInterval > 0 {
		b.snapshotTicker = time.NewTicker(snapshotInterval)
		go b.snapshotLoop()
	}

	return b
}

// SetPipesHook wires the pipe snapshot source. Snapshots sent before the
// hook is set simply omit the pipe list.
func (b *Broadcaster) SetPipesHook(fn func() []pipes.Info) {
	b.mu.Lock()
	b.pipesFn = fn
	b.mu.Unlock()
}

// AddClient registers the connection, starts its write pump, and queues an
// initial snapshot so the client starts from the current state.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, sendBuffer),
	}

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()

	if data, ok := b.encode(b.snapshotMessage()); ok {
		// Stop or a write failure may have already removed the client and
		// closed its channel; only send while it is still registered.
		b.mu.RLock()
		if b.clients[c] {
			select {
			case c.send <- data:
			default:
				// Client already backed up before the snapshot went out.
			}
		}
		b.mu.RUnlock()
	}

	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish implements event.Sink. Safe for concurrent use; sessions publish
// from their own goroutines.
func (b *Broadcaster) Publish(e event.Event) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pending = append(b.pending, e)
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	events := b.pending
	b.pending = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if len(events) == 0 {
		return
	}
	b.broadcast(Message{Type: MsgEvents, Payload: EventsPayload{Events: events}})
}

// Stop disconnects every client and stops the timers. Events published after
// Stop are still accepted but reach nobody.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		if b.snapshotTicker != nil {
			b.snapshotTicker.Stop()
		}

		b.flushMu.Lock()
		if b.flushTimer != nil {
			b.flushTimer.Stop()
			b.flushTimer = nil
		}
		b.pending = nil
		b.flushMu.Unlock()

		b.mu.Lock()
		for c := range b.clients {
			delete(b.clients, c)
			c.close()
		}
		b.mu.Unlock()
	})
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.stop:
			return
		case <-b.snapshotTicker.C:
			b.broadcast(b.snapshotMessage())
		}
	}
}

func (b *Broadcaster) snapshotMessage() Message {
	payload := SnapshotPayload{Sessions: b.store.All()}
	if fn := b.pipesSnapshotFn(); fn != nil {
		payload.Pipes = fn()
	}
	return Message{Type: MsgSnapshot, Payload: payload}
}

func (b *Broadcaster) pipesSnapshotFn() func() []pipes.Info {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pipesFn
}

// encode assigns the next sequence number and marshals the frame.
func (b *Broadcaster) encode(msg Message) ([]byte, bool) {
	msg.Seq = b.seq.Add(1)
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error("marshal frame", zap.Error(err))
		return nil, false
	}
	return data, true
}

func (b *Broadcaster) broadcast(msg Message) {
	data, ok := b.encode(msg)
	if !ok {
		return
	}

	// Send channels are closed only under the write lock, after the client
	// has left the map, so a client seen under the read lock cannot be
	// closed mid-send. The sends never block, so the lock is held briefly.
	b.mu.RLock()
	var slow []*client
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		// Client can't keep up; drop it rather than stall the feed.
		b.log.Warn("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}
