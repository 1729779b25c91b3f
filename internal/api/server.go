package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/dooropener-core/internal/actuator"
	"github.com/nerrad567/dooropener-core/internal/audit"
	"github.com/nerrad567/dooropener-core/internal/auth"
	"github.com/nerrad567/dooropener-core/internal/credstore"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/config"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/logging"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
//
// MQTT and Metrics are optional: when nil the corresponding announcements
// are skipped and every gate decision still works.
type Deps struct {
	Config   config.APIConfig
	Audit    config.AuditConfig
	Security config.SecurityConfig
	Battery  string // battery sensor entity, empty disables the endpoint
	Logger   *logging.Logger
	Engine   *auth.Engine
	Store    credstore.Store
	Trail    *audit.Trail
	Actuator *actuator.Client
	Entity   string // entity commanded open on success
	MQTT     *mqtt.Client
	Metrics  *influxdb.Client
	Version  string
}

// Server is the relay's HTTP API server.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub for
// the live attempt feed, and the single-use WebSocket tickets.
type Server struct {
	cfg      config.APIConfig
	auditCfg config.AuditConfig
	secCfg   config.SecurityConfig
	battery  string
	logger   *logging.Logger
	engine   *auth.Engine
	store    credstore.Store
	trail    *audit.Trail
	actuator *actuator.Client
	entity   string
	mqtt     *mqtt.Client
	metrics  *influxdb.Client
	version  string

	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	cancel  context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, engine, store, trail, actuator)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("evaluation engine is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if deps.Trail == nil {
		return nil, fmt.Errorf("audit trail is required")
	}
	if deps.Actuator == nil {
		return nil, fmt.Errorf("actuator client is required")
	}

	return &Server{
		cfg:      deps.Config,
		auditCfg: deps.Audit,
		secCfg:   deps.Security,
		battery:  deps.Battery,
		logger:   deps.Logger,
		engine:   deps.Engine,
		store:    deps.Store,
		trail:    deps.Trail,
		actuator: deps.Actuator,
		entity:   deps.Entity,
		mqtt:     deps.MQTT,
		metrics:  deps.Metrics,
		version:  deps.Version,
		tickets:  newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, wires the audit trail into it so appended
// records stream to connected clients, starts the periodic ticket cleanup,
// and launches the HTTP listener in a background goroutine. The server is
// stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.logger)
	go s.hub.Run(srvCtx)

	// stream every audit record to WebSocket subscribers
	s.trail.Subscribe(func(rec audit.Record) {
		s.hub.Broadcast(rec)
	})

	go s.cleanTicketsLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
