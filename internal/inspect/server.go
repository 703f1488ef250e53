// Package inspect serves a resolved graph over local HTTP so editors and
// scripts can look at the tree without re-running discovery.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kingrea/apptree/internal/graph"
	"github.com/kingrea/apptree/internal/report"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// ErrDisabled is returned by Start when the settings disable the server.
var ErrDisabled = errors.New("inspect: server disabled")

// Logger is the printf-style logger the server reports to.
type Logger interface {
	Printf(format string, args ...any)
}

// ResolveFunc produces a fresh graph for POST /reload.
type ResolveFunc func() (*graph.Graph, error)

// Server wraps the HTTP listener and handlers exposing a graph.
type Server struct {
	settings Settings
	logger   Logger
	resolve  ResolveFunc
	clock    func() time.Time
	rendered *lru.Cache[string, string]

	mu        sync.RWMutex
	graph     *graph.Graph
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithResolver enables POST /reload, which swaps in the graph fn returns.
func WithResolver(fn ResolveFunc) Option {
	return func(s *Server) {
		s.resolve = fn
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a server exposing g.
func NewServer(settings Settings, g *graph.Graph, opts ...Option) (*Server, error) {
	if g == nil {
		return nil, fmt.Errorf("inspect: nil graph")
	}
	size := settings.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("inspect: create cache: %w", err)
	}
	s := &Server{
		settings: settings,
		graph:    g,
		logger:   nopLogger{},
		clock:    func() time.Time { return time.Now().UTC() },
		rendered: cache,
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Handler returns the routes without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /graph", s.handleGraph)
	mux.HandleFunc("GET /graph.json", s.handleGraphJSON)
	mux.HandleFunc("GET /orphans", s.handleOrphans)
	mux.HandleFunc("GET /nodes/{id}", s.handleNode)
	mux.HandleFunc("POST /reload", s.handleReload)
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if !s.settings.Enabled {
		return ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("inspect: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("inspect: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("inspect: serve error: %v", err)
		}
	}()
	s.logger.Printf("inspect: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Graph returns the graph currently being served.
func (s *Server) Graph() *graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

// renderPicked renders the nodes pick selects from the current graph.
// Picking and rendering share one read lock, so a reload cannot swap the
// graph or purge the cache in between.
func (s *Server) renderPicked(pick func(g *graph.Graph) []*graph.Node) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := pick(s.graph)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		text, ok := s.rendered.Get(n.ID())
		if !ok {
			text = graph.Render(n)
			s.rendered.Add(n.ID(), text)
		}
		out = append(out, text)
	}
	return out
}

type healthResponse struct {
	Status        string `json:"status"`
	Root          string `json:"root"`
	Nodes         int    `json:"nodes"`
	Orphans       int    `json:"orphans"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	g := s.Graph()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        string(s.Status()),
		Root:          g.Root().ID(),
		Nodes:         g.Len(),
		Orphans:       len(g.Orphans()),
		UptimeSeconds: s.uptimeSeconds(),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	texts := s.renderPicked(func(g *graph.Graph) []*graph.Node {
		return []*graph.Node{g.Root()}
	})
	writeText(w, http.StatusOK, texts[0])
}

func (s *Server) handleGraphJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := report.Write(w, s.Graph(), report.FormatJSON); err != nil {
		s.logger.Printf("inspect: write graph json: %v", err)
	}
}

func (s *Server) handleOrphans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.renderPicked((*graph.Graph).Orphans))
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	texts := s.renderPicked(func(g *graph.Graph) []*graph.Node {
		if n, ok := g.Node(id); ok {
			return []*graph.Node{n}
		}
		return nil
	})
	if len(texts) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown extension id %q", id)})
		return
	}
	writeText(w, http.StatusOK, texts[0])
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.resolve == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "reload not configured"})
		return
	}
	g, err := s.resolve()
	if err != nil {
		s.logger.Printf("inspect: reload failed: %v", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	s.mu.Lock()
	s.graph = g
	s.rendered.Purge()
	s.mu.Unlock()
	s.logger.Printf("inspect: reloaded root=%s nodes=%d", g.Root().ID(), g.Len())
	writeJSON(w, http.StatusOK, map[string]any{"root": g.Root().ID(), "nodes": g.Len(), "orphans": len(g.Orphans())})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text+"\n")
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
