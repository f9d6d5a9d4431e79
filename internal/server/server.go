package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/hostmap/internal/hub"
	"github.com/jpalmerr/hostmap/internal/store"
)

const (
	// wsWriteTimeout bounds a single frame write to a subscriber.
	// Must be <= shutdown timeout to ensure clean shutdown.
	wsWriteTimeout = 5 * time.Second

	// defaultPingInterval is how often idle subscribers are pinged.
	defaultPingInterval = 30 * time.Second

	// maxMessageSize caps inbound client frames.
	maxMessageSize = 64 << 10

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "HostMap"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// HostLister provides the current host snapshot.
type HostLister interface {
	List(ctx context.Context) ([]store.Record, error)
}

// Registry tracks live WebSocket subscribers.
type Registry interface {
	Register(s hub.Subscriber)
	Unregister(s hub.Subscriber)
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics exposes g at GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithPingInterval sets how often subscribers are pinged. The read
// deadline is twice the interval.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// Server handles HTTP requests for the HostMap dashboard and API.
//
// Server provides these endpoints:
//   - GET /: Serves the embedded dashboard HTML
//   - GET /api/hosts: Returns every stored host as JSON
//   - GET /ws: WebSocket stream of host updates
//   - GET /metrics: Prometheus metrics, when configured
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	hosts        HostLister
	registry     Registry
	port         int
	httpServer   *http.Server
	assets       fs.FS
	title        string
	logger       *slog.Logger
	gatherer     prometheus.Gatherer
	pingInterval time.Duration
	upgrader     websocket.Upgrader

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - hosts: source for the host snapshot
//   - registry: receives every accepted WebSocket subscriber
//   - port: TCP port to listen on
//   - assets: Embedded filesystem containing dashboard assets (may be nil)
//   - title: Dashboard title (defaults to "HostMap" if empty)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(hosts HostLister, registry Registry, port int, assets fs.FS, title string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		hosts:        hosts,
		registry:     registry,
		port:         port,
		assets:       assets,
		title:        title,
		logger:       logger,
		pingInterval: defaultPingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the dashboard may be served behind a proxy on another origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/hosts", s.handleHosts)
	mux.HandleFunc("/ws", s.handleWS)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// serve dashboard assets
	if s.assets != nil {
		// serve index.html at root
		mux.HandleFunc("/", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout. Open WebSocket connections are closed on cancellation.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// Hijacked WebSocket connections are invisible to Shutdown, so
		// handlers watch the request context to close them.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	safeTitle := html.EscapeString(title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleHosts returns every stored host as a JSON array.
func (s *Server) handleHosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hosts, err := s.hosts.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list hosts", "error", err)
		http.Error(w, "Failed to list hosts", http.StatusInternalServerError)
		return
	}
	if hosts == nil {
		hosts = []store.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(hosts); err != nil {
		s.logger.Error("failed to encode hosts response", "error", err)
	}
}

// handleWS upgrades the request and keeps the subscriber registered until
// the connection ends.
//
// Inbound text frames are echoed back. The read loop is the only reader;
// all writes go through the subscriber so broadcasts, echoes and pings
// never interleave.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	sub := hub.NewWSSubscriber(conn, wsWriteTimeout)
	s.registry.Register(sub)
	s.logger.Debug("subscriber connected", "subscriber", sub.ID(), "remote", r.RemoteAddr)

	done := make(chan struct{})
	defer func() {
		close(done)
		s.registry.Unregister(sub)
		_ = sub.Close()
		s.logger.Debug("subscriber disconnected", "subscriber", sub.ID())
	}()

	pongWait := 2 * s.pingInterval
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.keepalive(r.Context(), sub, done)

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "subscriber", sub.ID(), "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := sub.Send(msg); err != nil {
			return
		}
	}
}

// keepalive pings sub until done is closed or ctx is cancelled. On
// cancellation it closes sub, which unblocks the read loop.
func (s *Server) keepalive(ctx context.Context, sub *hub.WSSubscriber, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sub.Ping(); err != nil {
				_ = sub.Close()
				return
			}
		case <-ctx.Done():
			_ = sub.Close()
			return
		case <-done:
			return
		}
	}
}
