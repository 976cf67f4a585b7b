package internal

import (
	"context"
	"duochat/domain"
	"duochat/infrastructure/grpc/server"
	"duochat/observability"
	"duochat/repositories"
	"duochat/runtime"
	"duochat/runtime/workers"
	"duochat/services"
	"duochat/wire"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/dgraph-io/badger/v4"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Server assembles every component of the chat server around one gRPC server.
type Server struct {
	log        *slog.Logger
	config     Config
	DB         *badger.DB
	Registry   *runtime.Registry
	Store      *repositories.ConversationStore
	Router     *services.Router
	Metrics    *observability.Metrics
	supervisor *workers.Supervisor
	grpc       *grpc.Server
	health     *health.Server
}

func NewServer(log *slog.Logger, config Config) (*Server, error) {
	db, err := repositories.OpenInMemory(log)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}

	metrics := observability.NewMetrics()
	registry := runtime.NewRegistry()
	store := repositories.NewConversationStore(db, log)
	presence := workers.NewPresenceBroadcaster(log, registry, metrics, config.DeliveryTimeout)
	stats := workers.NewStatsReporter(log, registry, metrics, config.StatsInterval)
	supervisor := workers.NewSupervisor(log, metrics, config.RestartInterval)
	supervisor.Add(presence, stats)

	router := services.NewRouter(log, registry, store, presence, services.RouterOptions{
		DeliveryTimeout: config.DeliveryTimeout,
		SendRate:        config.Limit(),
		SendBurst:       config.SendBurst,
		Metrics:         metrics,
	})

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(log)))
	wire.RegisterChatServiceServer(s, server.NewChatServer(log, router, metrics, config.ConnectionBufferSize, config.DeliveryTimeout))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus(wire.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		log:        log,
		config:     config,
		DB:         db,
		Registry:   registry,
		Store:      store,
		Router:     router,
		Metrics:    metrics,
		supervisor: supervisor,
		grpc:       s,
		health:     healthServer,
	}, nil
}

// Serve blocks until ctx is done or the listener fails, then shuts down.
// Streams still open after the shutdown timeout are cut.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	workersDone := make(chan struct{})
	go func() {
		s.supervisor.Run(ctx)
		close(workersDone)
	}()

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting gRPC server", "address", listener.Addr().String(), "at", time.Now().UTC())
		for serviceName := range s.grpc.GetServiceInfo() {
			s.log.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := s.grpc.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		s.log.Info("Shutdown signal received")
	case err = <-errChan:
	}

	s.shutdown()
	s.supervisor.Stop()
	<-workersDone
	return err
}

func (s *Server) shutdown() {
	s.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(s.config.ShutdownTimeout):
		s.log.Warn("Graceful stop timed out, closing remaining streams")
		s.grpc.Stop()
		<-stopped
	}
}

// Close releases the store. Call it once Serve returned.
func (s *Server) Close() error {
	return s.Store.Close()
}

// SeedDemo registers two offline identities with a short exchange.
func (s *Server) SeedDemo() error {
	s.Registry.Remember("alice", "Alice")
	s.Registry.Remember("bob", "Bob")
	exchange := []struct {
		from, to domain.Identity
		text     string
	}{
		{"alice", "bob", "Hi Bob, are you around?"},
		{"bob", "alice", "Hey Alice! Yes, what's up?"},
		{"alice", "bob", "Just trying out the chat."},
	}
	for _, m := range exchange {
		if _, err := s.Store.Append(m.from, m.to, m.text); err != nil {
			return fmt.Errorf("seed demo: %w", err)
		}
	}
	s.log.Info("Demo data seeded", "identities", 2, "messages", len(exchange))
	return nil
}
