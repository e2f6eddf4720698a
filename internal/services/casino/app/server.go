package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wavefold/catbox/internal/platform/config"
	"github.com/wavefold/catbox/internal/services/casino/bank"
	"github.com/wavefold/catbox/internal/services/casino/domain/ledger"
	"github.com/wavefold/catbox/internal/services/casino/entropy"
	casinosqlite "github.com/wavefold/catbox/internal/services/casino/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serverShutdownTimeout = 10 * time.Second

type serverEnv struct {
	DBPath      string        `env:"CATBOX_DB_PATH"`
	MinDeposit  uint64        `env:"CATBOX_MIN_DEPOSIT"`
	BoxLifespan time.Duration `env:"CATBOX_BOX_LIFESPAN"`
	InitialHeld uint64        `env:"CATBOX_INITIAL_HELD"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "casino.db")
	}
	return cfg
}

// RouterFunc builds the HTTP handler for a service. The rest package
// provides the production router; tests can swap it.
type RouterFunc func(*Service) http.Handler

// Server hosts the casino HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *casinosqlite.Store
	service    *Service
}

// NewServer creates a configured casino server listening on the provided
// port.
func NewServer(ctx context.Context, port int, router RouterFunc) (*Server, error) {
	return NewServerWithAddr(ctx, fmt.Sprintf(":%d", port), router)
}

// NewServerWithAddr creates a configured casino server for the provided
// address.
func NewServerWithAddr(ctx context.Context, addr string, router RouterFunc) (*Server, error) {
	if router == nil {
		return nil, errors.New("router is required")
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	store, err := openCasinoStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	service, err := NewService(
		ctx,
		store,
		bank.NewMemoryBank(env.InitialHeld),
		entropy.CryptoSource{},
		WithParams(ledger.Params{MinDeposit: env.MinDeposit, Lifespan: env.BoxLifespan}),
	)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	httpServer := &http.Server{
		Handler:           otelhttp.NewHandler(router(service), "casino"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		listener:   listener,
		httpServer: httpServer,
		store:      store,
		service:    service,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Service returns the application service the server wires.
func (s *Server) Service() *Service {
	if s == nil {
		return nil
	}
	return s.service
}

// RunServer creates and serves a casino server until context cancellation.
func RunServer(ctx context.Context, port int, router RouterFunc) error {
	server, err := NewServer(ctx, port, router)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// RunServerWithAddr creates and serves a casino server on the provided
// address until context cancellation.
func RunServerWithAddr(ctx context.Context, addr string, router RouterFunc) error {
	server, err := NewServerWithAddr(ctx, addr, router)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("casino server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases casino server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close casino store: %v", err)
		}
	}
}

func openCasinoStore(path string) (*casinosqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := casinosqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open casino sqlite store: %w", err)
	}
	return store, nil
}
