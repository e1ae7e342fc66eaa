package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/worldsync/internal/hub"
	"github.com/jpalmerr/worldsync/internal/session"
	"github.com/jpalmerr/worldsync/internal/store"
)

const (
	// defaultWriteTimeout is used for SSE and WebSocket writes when none is
	// configured. Must be <= shutdown timeout to ensure clean shutdown.
	defaultWriteTimeout = 5 * time.Second

	// defaultMaxMessageSize caps inbound HTTP bodies and WebSocket frames.
	defaultMaxMessageSize = 1 << 20

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "WorldSync"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Options configures a [Server]. Zero values select defaults.
type Options struct {
	// Port is the TCP port to listen on.
	Port int

	// Assets is an embedded filesystem containing assets/index.html (may be nil).
	Assets fs.FS

	// Title is substituted into the page (defaults to "WorldSync").
	Title string

	// WriteTimeout bounds each streamed write (defaults to 5s).
	WriteTimeout time.Duration

	// MaxMessageSize caps request bodies and inbound frames in bytes (defaults to 1 MiB).
	MaxMessageSize int64

	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// Empty, or containing "*", accepts any origin.
	AllowedOrigins []string
}

// Server handles HTTP requests for the world API, the streaming endpoints and
// the page.
//
// Routes:
//   - GET|POST /world: the full world as JSON
//   - GET /entity/{id}: one entity's attributes ({} if unknown)
//   - POST|PUT /entity/{id}: merge attributes into an entity
//   - GET|POST /clear: empty the world
//   - GET /subscribe: WebSocket session
//   - GET /events: Server-Sent Events mirror of the change stream
//   - GET /health: liveness and counters
//   - GET /: the embedded page
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	hub        *hub.Hub
	opts       Options
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server] over the given store and hub.
//
// The hub is expected to already be registered as a listener on the store.
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, h *hub.Hub, opts Options, logger *slog.Logger) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:  st,
		hub:    h,
		opts:   opts,
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, s.accessLog)

	r.Methods(http.MethodGet, http.MethodPost).Path("/world").HandlerFunc(s.handleWorld)
	r.Methods(http.MethodGet).Path("/entity/{id}").HandlerFunc(s.handleGetEntity)
	r.Methods(http.MethodPost, http.MethodPut).Path("/entity/{id}").HandlerFunc(s.handleUpdateEntity)
	r.Methods(http.MethodGet, http.MethodPost).Path("/clear").HandlerFunc(s.handleClear)
	r.Methods(http.MethodGet).Path("/subscribe").HandlerFunc(s.handleSubscribe)
	r.Methods(http.MethodGet).Path("/events").HandlerFunc(s.handleEvents)
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(s.handleHealth)

	// serve the page at root
	if s.opts.Assets != nil {
		r.Methods(http.MethodGet).Path("/").HandlerFunc(s.handlePage)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.opts.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.opts.Port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// Hijacked WebSocket connections are not tracked by Shutdown, so this
		// is what stops their sessions when ctx is cancelled.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handlePage serves the main page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(s.opts.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Page not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.opts.Title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write page response", "error", err)
	}
}

// handleWorld returns the full world.
func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.World())
}

// handleGetEntity returns one entity, or {} if it was never written.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Get(mux.Vars(r)["id"]))
}

// handleUpdateEntity merges each attribute of the JSON body into the entity
// and returns the entity's resulting attributes.
func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	entity := mux.Vars(r)["id"]

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxMessageSize)
	var attrs map[string]any
	if err := decodeObject(r.Body, &attrs); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed JSON body: %v", err))
		return
	}

	for key, value := range attrs {
		s.store.Update(entity, key, value)
	}

	s.writeJSON(w, http.StatusOK, s.store.Get(entity))
}

// decodeObject decodes exactly one JSON value from body into v. Anything but
// whitespace after that value is an error.
func decodeObject(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	var trailing json.RawMessage
	switch err := dec.Decode(&trailing); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return errors.New("unexpected data after JSON object")
	}
}

// handleClear empties the world and returns it. Subscribers are not told.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	s.writeJSON(w, http.StatusOK, s.store.World())
}

// handleHealth reports liveness with entity and subscriber counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"entities":    s.store.Len(),
		"subscribers": s.hub.Len(),
	})
}

// handleSubscribe upgrades to a WebSocket and runs a session until the peer
// leaves or the server shuts down.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(s.opts.MaxMessageSize)

	sess := session.New(conn, s.store, s.hub, s.opts.WriteTimeout,
		s.logger.With("remote", r.RemoteAddr))
	_ = sess.Run(r.Context())
}

// handleEvents streams change frames via Server-Sent Events.
//
// The stream starts with one frame per existing entity, then carries the same
// frames WebSocket subscribers receive. The handler uses write deadlines to
// prevent goroutine leaks when clients are slow or disconnected.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush operations.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// register before the snapshot so no change falls between the two
	sub := s.hub.NewSubscriber()
	s.hub.Register(sub)
	defer s.hub.Unregister(sub)

	for entity, attrs := range s.store.World() {
		data, err := json.Marshal(store.World{entity: attrs})
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		// request context is derived from server context via BaseContext,
		// so Next returns on both client disconnect AND server shutdown
		msg, err := sub.Next(r.Context())
		if err != nil {
			return
		}
		if err := writeAndFlush(msg); err != nil {
			return
		}
	}
}

// checkOrigin implements the WebSocket origin policy.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients send no Origin
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// writeJSON encodes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError replies with {"error": msg}.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
