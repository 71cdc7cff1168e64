package server

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

	"github.com/louisbranch/matchday/internal/platform/timeouts"
	"github.com/louisbranch/matchday/internal/random"
	httpapi "github.com/louisbranch/matchday/internal/services/matchday/api/http/matchday"
	"github.com/louisbranch/matchday/internal/services/matchday/domain/lifecycle"
	"github.com/louisbranch/matchday/internal/services/matchday/live"
	"github.com/louisbranch/matchday/internal/services/matchday/stats"
	"github.com/louisbranch/matchday/internal/services/matchday/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported as serving.
const HealthService = "matchday"

// Config holds the process settings.
type Config struct {
	HTTPAddr string
	GRPCAddr string
	DBPath   string

	TeamSize  int
	Threshold int
	// DrawSeed fixes the draw randomness; zero seeds from crypto/rand.
	DrawSeed int64

	Heartbeat      time.Duration
	StatsTTL       time.Duration
	AllowedOrigins []string

	ShutdownTimeout time.Duration
}

// Server hosts the match day service.
type Server struct {
	store       *sqlite.Store
	broadcaster *live.Broadcaster

	httpListener net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server

	shutdownTimeout time.Duration
}

// New opens the store, wires the services and binds both listeners.
func New(config Config) (*Server, error) {
	store, err := openStore(config.DBPath)
	if err != nil {
		return nil, err
	}

	rng, seed, err := random.NewRand(config.DrawSeed)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed draw: %w", err)
	}
	if config.DrawSeed != 0 {
		log.Printf("matchday: using fixed draw seed=%d", seed)
	}

	svc, err := lifecycle.NewService(store, lifecycle.Config{
		TeamSize:  config.TeamSize,
		Threshold: config.Threshold,
	}, lifecycle.WithRand(rng))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init lifecycle: %w", err)
	}
	broadcaster := live.NewBroadcaster(svc, live.Config{Heartbeat: config.Heartbeat})
	svc.SetPublisher(broadcaster)

	handler := httpapi.NewHandler(httpapi.Config{
		Lifecycle:      svc,
		Stats:          stats.NewService(store, stats.Config{TTL: config.StatsTTL}),
		Viewers:        broadcaster,
		AllowedOrigins: config.AllowedOrigins,
	})

	httpListener, err := net.Listen("tcp", config.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", config.HTTPAddr, err)
	}
	grpcListener, err := net.Listen("tcp", config.GRPCAddr)
	if err != nil {
		_ = httpListener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen on grpc addr %s: %w", config.GRPCAddr, err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = timeouts.Shutdown
	}

	return &Server{
		store:        store,
		broadcaster:  broadcaster,
		httpListener: httpListener,
		httpServer: &http.Server{
			Handler:           handler.Routes(),
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		grpcListener:    grpcListener,
		grpcServer:      grpcServer,
		health:          healthServer,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// HTTPAddr returns the bound HTTP address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a match day server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := New(config)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the HTTP server, the gRPC health server and the broadcaster
// until ctx ends or one of them fails. The store is closed on return.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStore()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return s.broadcaster.Run(groupCtx)
	})
	group.Go(func() error {
		log.Printf("matchday gRPC health listening at %v", s.grpcListener.Addr())
		if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		log.Printf("matchday HTTP server listening at %v", s.httpListener.Addr())
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return group.Wait()
}

func openStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "matchday.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matchday sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close matchday store: %v", err)
	}
}
