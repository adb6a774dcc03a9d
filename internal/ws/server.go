package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pipewatch/pipewatch/internal/logging"
	"github.com/pipewatch/pipewatch/internal/session"
)

// Server exposes the live feed: the websocket endpoint, small JSON read
// APIs, and the Prometheus scrape handler.
type Server struct {
	addr        string
	store       *session.Store
	broadcaster *Broadcaster
	gatherer    prometheus.Gatherer
	log         *logging.Logger
}

func NewServer(addr string, store *session.Store, broadcaster *Broadcaster, gatherer prometheus.Gatherer, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	return &Server{
		addr:        addr,
		store:       store,
		broadcaster: broadcaster,
		gatherer:    gatherer,
		log:         log.Named("server"),
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/pipes", s.handlePipes)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start serves until ctx is done, then drains with a short grace period.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           securityHeaders(s.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("live feed listening", zap.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		s.log.Warn("ws client rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
		conn.Close()
		return
	}
	s.log.Info("ws client connected", zap.String("remote", r.RemoteAddr))

	go s.readLoop(conn, c, r.RemoteAddr)
}

// readLoop drains client frames (none are expected) so pongs are processed
// and disconnects are noticed.
func (s *Server) readLoop(conn *websocket.Conn, c *client, remote string) {
	defer func() {
		s.broadcaster.RemoveClient(c)
		s.log.Info("ws client disconnected", zap.String("remote", remote))
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.All())
}

func (s *Server) handlePipes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if fn := s.broadcaster.pipesSnapshotFn(); fn != nil {
		json.NewEncoder(w).Encode(fn())
		return
	}
	json.NewEncoder(w).Encode([]struct{}{})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// checkOrigin accepts requests without an Origin header (CLI clients),
// same-host requests, and loopback origins. Everything else is refused;
// this feed is a local debugging aid, not a public API.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}
	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}
	return false
}
