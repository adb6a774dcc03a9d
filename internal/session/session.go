// Package session owns the connect-and-read lifecycle for one named pipe.
//
// A session moves Connecting → Connected → Reading → Closed, with Failed as
// the alternate terminal state. Cancellation is cooperative: it unblocks an
// in-flight connect or read and surfaces as a normal Closed, never as an
// error. Run never lets a failure escape to its caller; every path ends in a
// reported terminal state.
package session

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pipewatch/pipewatch/internal/classify"
	"github.com/pipewatch/pipewatch/internal/event"
	"github.com/pipewatch/pipewatch/internal/logging"
	"github.com/pipewatch/pipewatch/internal/pipes"
)

// readBufferSize bounds each read from the pipe.
const readBufferSize = 4096

// DefaultConnectTimeout bounds the client connect attempt when Options leaves
// ConnectTimeout at zero.
const DefaultConnectTimeout = 2 * time.Second

// Options wires one session to its collaborators. Dialer is required; the
// rest default to no-ops so tests can wire only what they observe.
type Options struct {
	Pipe           string
	Dialer         Dialer
	ConnectTimeout time.Duration
	Sink           event.Sink
	Store          *Store
	Logger         *logging.Logger
}

// Session drives the lifecycle for a single pipe name. A session is used for
// exactly one Run; a pipe that disappears and comes back gets a new session.
type Session struct {
	id   string
	opts Options
	log  *logging.Logger
	rec  Record
}

func New(opts Options) *Session {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Sink == nil {
		opts.Sink = event.SinkFunc(func(event.Event) {})
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	id := uuid.NewString()
	return &Session{
		id:   id,
		opts: opts,
		log:  opts.Logger.Named("session"),
		rec: Record{
			ID:   id,
			Pipe: opts.Pipe,
		},
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Pipe() string { return s.opts.Pipe }

// Run drives the full lifecycle and returns only on a terminal state. It is
// called on its own goroutine by the monitor; cancel via ctx.
func (s *Session) Run(ctx context.Context) {
	s.rec.StartedAt = time.Now()
	s.setState(Connecting, "")

	conn, err := s.opts.Dialer.Dial(ctx, pipes.FullPath(s.opts.Pipe), s.opts.ConnectTimeout)
	if err != nil {
		if ctx.Err() != nil {
			s.close(event.ReasonCanceled)
			return
		}
		s.fail(dialReason(err), err)
		return
	}
	defer conn.Close()

	s.setState(Connected, "")
	s.publish(event.Event{Kind: event.SessionConnected, At: time.Now()})

	// The watcher closes the conn when the session is cancelled so a blocked
	// read unblocks promptly.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	s.setState(Reading, "")
	s.readLoop(ctx, conn)
}

func (s *Session) readLoop(ctx context.Context, conn net.Conn) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.handleMessage(buf[:n])
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.close(event.ReasonRemoteClosed)
			case ctx.Err() != nil:
				s.close(event.ReasonCanceled)
			default:
				s.fail(event.ReasonReadError, err)
			}
			return
		}
		if ctx.Err() != nil {
			s.close(event.ReasonCanceled)
			return
		}
	}
}

func (s *Session) handleMessage(data []byte) {
	at := time.Now()
	res := classify.Classify(data)

	s.rec.LastReadAt = at
	s.rec.BytesRead += int64(len(data))
	s.rec.Messages++
	s.updateStore()

	s.publish(event.Event{
		Kind:           event.Message,
		At:             at,
		Size:           len(data),
		Classification: res.Kind.String(),
		Encoding:       res.Encoding,
		Charset:        res.Charset,
		Payload:        res.Rendered,
	})
}

// close records a normal terminal transition: the remote end went away or the
// monitor cancelled us. Neither is an error.
func (s *Session) close(reason string) {
	s.terminal(Closed, reason, nil)
	s.publish(event.Event{Kind: event.SessionClosed, At: time.Now(), Reason: reason})
}

func (s *Session) fail(reason string, err error) {
	s.terminal(Failed, reason, err)
	s.publish(event.Event{Kind: event.SessionFailed, At: time.Now(), Reason: reason, Err: err.Error()})
}

func (s *Session) setState(st State, reason string) {
	s.rec.State = st
	s.rec.Reason = reason
	s.updateStore()
	s.log.Debug("session state",
		zap.String("pipe", s.opts.Pipe),
		zap.String("session", s.id),
		zap.String("state", st.String()))
}

func (s *Session) terminal(st State, reason string, err error) {
	now := time.Now()
	s.rec.EndedAt = &now
	if err != nil {
		s.rec.LastError = err.Error()
		s.log.Debug("session ended",
			zap.String("pipe", s.opts.Pipe),
			zap.String("session", s.id),
			zap.String("reason", reason),
			zap.Error(err))
	}
	s.setState(st, reason)
}

func (s *Session) updateStore() {
	if s.opts.Store != nil {
		s.opts.Store.Update(&s.rec)
	}
}

func (s *Session) publish(e event.Event) {
	e.Pipe = s.opts.Pipe
	e.SessionID = s.id
	s.opts.Sink.Publish(e)
}

// dialReason maps a connect error onto the failure taxonomy: a timed-out
// wait, a pipe we may not open, or anything else.
func dialReason(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return event.ReasonConnectTimeout
	}
	if errors.Is(err, os.ErrPermission) {
		return event.ReasonAccessDenied
	}
	return event.ReasonConnectError
}
