// Package monitor drives the discovery loop: enumerate the pipe namespace,
// filter it, diff it against the previous tick, and keep one capture session
// per tracked pipe.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pipewatch/pipewatch/internal/enumerate"
	"github.com/pipewatch/pipewatch/internal/event"
	"github.com/pipewatch/pipewatch/internal/filter"
	"github.com/pipewatch/pipewatch/internal/logging"
	"github.com/pipewatch/pipewatch/internal/metrics"
	"github.com/pipewatch/pipewatch/internal/pipes"
	"github.com/pipewatch/pipewatch/internal/session"

	"github.com/prometheus/client_golang/prometheus"
)

// liveSession pairs a running session with its cancel handle. done is closed
// when the session goroutine exits, which is how the reaper notices sessions
// that terminated on their own.
type liveSession struct {
	sess   *session.Session
	cancel context.CancelFunc
	done   chan struct{}
}

type Options struct {
	Enumerator enumerate.Enumerator
	Filters    *filter.Set

	// Dialer is used by spawned sessions. Leave nil to disable message
	// capture entirely, same as Messages=false.
	Dialer session.Dialer

	Sink    event.Sink
	Store   *session.Store
	Metrics *metrics.Metrics
	Logger  *logging.Logger

	// Owners resolves process hints for added pipes; nil disables hints.
	Owners *enumerate.OwnerResolver

	Interval       time.Duration
	ConnectTimeout time.Duration

	// Messages controls whether added pipes get a capture session. Add and
	// remove events flow either way.
	Messages bool
}

type Monitor struct {
	opts Options
	log  *logging.Logger

	detector *Detector
	health   enumHealth

	// live is mutated only by the loop goroutine.
	live map[string]*liveSession
	wg   sync.WaitGroup

	// ownerHints keeps the hint for a name as long as the pipe stays
	// present, so later snapshots still carry it.
	ownerHints map[string]string

	// snapMu guards snapshot, the only loop state read by other goroutines
	// (the HTTP API).
	snapMu   sync.RWMutex
	snapshot []pipes.Info
}

func New(opts Options) *Monitor {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Sink == nil {
		opts.Sink = event.SinkFunc(func(event.Event) {})
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if opts.Filters == nil {
		opts.Filters, _ = filter.Compile(nil)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Dialer == nil {
		opts.Messages = false
	}
	return &Monitor{
		opts:       opts,
		log:        opts.Logger.Named("monitor"),
		detector:   NewDetector(),
		live:       make(map[string]*liveSession),
		ownerHints: make(map[string]string),
	}
}

// Run ticks until ctx is done: once immediately, then on every interval.
// It returns only after every live session has reached a terminal state.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("monitor started",
		zap.String("method", m.opts.Enumerator.Name()),
		zap.Strings("patterns", m.opts.Filters.Patterns()),
		zap.Duration("interval", m.opts.Interval),
		zap.Bool("messages", m.opts.Messages))

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	m.reap()
	m.opts.Metrics.Ticks.Inc()

	infos, err := m.opts.Enumerator.Pipes(ctx)
	if err != nil {
		// Keep the previous set. A failed tick must not fabricate
		// removals for pipes that are probably still there.
		m.opts.Metrics.EnumerationFailures.Inc()
		if m.health.recordFailure(err) {
			m.log.Warn("enumeration degraded",
				zap.String("method", m.opts.Enumerator.Name()),
				zap.Int("consecutive_failures", m.health.failures),
				zap.Error(err))
		} else {
			m.log.Debug("enumeration failed", zap.Error(err))
		}
		return
	}
	if m.health.recordSuccess() {
		m.log.Info("enumeration recovered", zap.String("method", m.opts.Enumerator.Name()))
	}

	snap := m.opts.Filters.Apply(infos)
	added, removed := m.detector.Diff(snap)

	for _, name := range added {
		info := snap[name]
		if m.opts.Owners != nil {
			if owner := m.opts.Owners.Resolve(name); owner != "" {
				m.ownerHints[name] = owner
				info = withOwner(info, owner)
				snap[name] = info
			}
		}
		m.opts.Metrics.PipesAdded.Inc()
		m.publishAdded(name, info)
		if m.opts.Messages {
			m.startSession(ctx, name)
		}
	}

	for _, name := range removed {
		delete(m.ownerHints, name)
		m.opts.Metrics.PipesRemoved.Inc()
		m.opts.Sink.Publish(event.Event{Kind: event.PipeRemoved, At: time.Now(), Pipe: name})
		m.cancelSession(name)
	}

	// Snapshots are rebuilt from scratch each tick, so hints resolved on
	// earlier ticks have to be carried forward onto unchanged names.
	for name, owner := range m.ownerHints {
		if info, ok := snap[name]; ok && info.Metadata["owner"] == "" {
			snap[name] = withOwner(info, owner)
		}
	}

	m.storeSnapshot(snap)
	m.opts.Metrics.TrackedPipes.Set(float64(len(snap)))
	m.opts.Metrics.LiveSessions.Set(float64(len(m.live)))

	if len(added) > 0 || len(removed) > 0 {
		m.log.Debug("tick",
			zap.Int("pipes", len(snap)),
			zap.Int("added", len(added)),
			zap.Int("removed", len(removed)))
	}
}

func (m *Monitor) publishAdded(name string, info pipes.Info) {
	clone := info.Clone()
	m.opts.Sink.Publish(event.Event{
		Kind: event.PipeAdded,
		At:   time.Now(),
		Pipe: name,
		Info: &clone,
	})
}

// reap drops live-table entries whose session already ended on its own
// (remote close, failure). The pipe may still exist; per-name sessions are
// never restarted while the name stays present.
func (m *Monitor) reap() {
	for name, ls := range m.live {
		select {
		case <-ls.done:
			delete(m.live, name)
		default:
		}
	}
}

func (m *Monitor) startSession(ctx context.Context, name string) {
	if _, exists := m.live[name]; exists {
		return
	}

	sctx, cancel := context.WithCancel(ctx)
	s := session.New(session.Options{
		Pipe:           name,
		Dialer:         m.opts.Dialer,
		ConnectTimeout: m.opts.ConnectTimeout,
		Sink:           m.opts.Sink,
		Store:          m.opts.Store,
		Logger:         m.opts.Logger,
	})
	ls := &liveSession{sess: s, cancel: cancel, done: make(chan struct{})}
	m.live[name] = ls
	m.opts.Metrics.SessionsStarted.Inc()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(ls.done)
		defer cancel()
		s.Run(sctx)
	}()
}

// cancelSession drops the live entry immediately; the session goroutine
// winds down on its own and the WaitGroup still covers it at shutdown.
func (m *Monitor) cancelSession(name string) {
	ls, ok := m.live[name]
	if !ok {
		return
	}
	ls.cancel()
	delete(m.live, name)
}

func (m *Monitor) shutdown() {
	for name, ls := range m.live {
		ls.cancel()
		delete(m.live, name)
	}
	m.wg.Wait()
	m.log.Info("monitor stopped")
}

func (m *Monitor) storeSnapshot(snap map[string]pipes.Info) {
	list := make([]pipes.Info, 0, len(snap))
	for _, info := range snap {
		list = append(list, info.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	m.snapMu.Lock()
	m.snapshot = list
	m.snapMu.Unlock()
}

// Pipes returns the most recent filtered snapshot, name-sorted. Safe for
// concurrent use; the HTTP API reads it while the loop runs.
func (m *Monitor) Pipes() []pipes.Info {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()

	out := make([]pipes.Info, len(m.snapshot))
	for i, info := range m.snapshot {
		out[i] = info.Clone()
	}
	return out
}

func withOwner(info pipes.Info, owner string) pipes.Info {
	out := info.Clone()
	if out.Metadata == nil {
		out.Metadata = make(map[string]string, 1)
	}
	out.Metadata["owner"] = owner
	return out
}
