package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"google.golang.org/grpc"

	"github.com/chazu/paxy/compiler"
)

var log = commonlog.GetLogger("paxy.server")

// DefaultTimeout bounds a single Run request.
const DefaultTimeout = 10 * time.Second

// PaxyServer serves the compiler service over Connect (HTTP) and gRPC.
type PaxyServer struct {
	svc     *CompileService
	workers *Workers
	mux     *http.ServeMux
	grpc    *grpc.Server

	mu   sync.Mutex
	http *http.Server
}

// ServerOption configures a PaxyServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	store    compiler.UnitCache
	timeout  time.Duration
	workers  int
	maxDepth int
}

// WithStore sets the unit store consulted by Compile.
func WithStore(store compiler.UnitCache) ServerOption {
	return func(c *serverConfig) { c.store = store }
}

// WithTimeout bounds each Run request. Zero disables the bound.
func WithTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.timeout = d }
}

// WithWorkers sets how many programs may run at once.
func WithWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.workers = n }
}

// WithMaxDepth sets the call depth limit of programs run by the server.
func WithMaxDepth(n int) ServerOption {
	return func(c *serverConfig) { c.maxDepth = n }
}

// New creates a PaxyServer.
func New(opts ...ServerOption) *PaxyServer {
	cfg := &serverConfig{
		timeout: DefaultTimeout,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	workers := NewWorkers(cfg.workers)
	svc := NewCompileService(workers, cfg.store, cfg.timeout)
	if cfg.maxDepth > 0 {
		svc.maxDepth = cfg.maxDepth
	}

	s := &PaxyServer{
		svc:     svc,
		workers: workers,
		mux:     http.NewServeMux(),
		grpc:    grpc.NewServer(),
	}

	path, handler := NewConnectHandler(svc)
	s.mux.Handle(path, handler)
	RegisterGRPC(s.grpc, svc)

	return s
}

// Service returns the transport-neutral service.
func (s *PaxyServer) Service() *CompileService { return s.svc }

// Handler returns the HTTP handler serving the Connect endpoints.
func (s *PaxyServer) Handler() http.Handler { return s.mux }

// ListenAndServe serves Connect on addr until Stop is called.
// The address should be in the form "host:port" or ":port".
func (s *PaxyServer) ListenAndServe(addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()
	log.Noticef("Connect (HTTP): http://%s%s", addr, CompileProcedure)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ServeGRPC serves gRPC on lis until Stop is called.
func (s *PaxyServer) ServeGRPC(lis net.Listener) error {
	log.Noticef("gRPC: grpc://%s", lis.Addr())
	return s.grpc.Serve(lis)
}

// Stop shuts down both transports and the workers.
func (s *PaxyServer) Stop() {
	s.grpc.GracefulStop()
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warningf("http shutdown: %v", err)
		}
	}
	s.workers.Stop()
}
