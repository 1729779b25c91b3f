// DoorOpener Core - Gated Command Relay
//
// This is the main entry point for the DoorOpener Core application.
// DoorOpener guards a single privileged command (opening a door) behind
// PIN and federated-identity authentication with layered brute-force
// protection, and relays granted commands to a Home Assistant actuator.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/dooropener-core/migrations"

	"github.com/nerrad567/dooropener-core/internal/actuator"
	"github.com/nerrad567/dooropener-core/internal/api"
	"github.com/nerrad567/dooropener-core/internal/audit"
	"github.com/nerrad567/dooropener-core/internal/auth"
	"github.com/nerrad567/dooropener-core/internal/credstore"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/config"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/database"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/logging"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// sweepInterval is how often expired blocks and stale failure counters
// are pruned from the tracker.
const sweepInterval = time.Minute

func main() {
	hashPassword := flag.String("hash-password", "",
		"print the Argon2id hash for the given admin password and exit")
	flag.Parse()

	if *hashPassword != "" {
		if err := printPasswordHash(os.Stdout, *hashPassword); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DoorOpener Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Build the credential store backend
	store, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("building credential store: %w", err)
	}
	defer closeStore()

	// Resolver merges the static PIN table with the mutable store
	resolver := credstore.NewResolver(cfg.Pins, store, log.Logger)
	log.Info("credential resolver initialised",
		"backend", cfg.Store.Backend,
		"static_users", len(cfg.Pins),
	)

	// Brute-force tracker and evaluation engine
	tracker := auth.NewTracker(auth.Limits{
		ClientMaxFailures:  cfg.Security.Limits.IPMaxAttempts,
		SessionMaxFailures: cfg.Security.Limits.SessionMaxAttempts,
		GlobalMaxFailures:  cfg.Security.Limits.GlobalMaxAttempts,
		BlockDuration:      cfg.Security.Limits.BlockDuration(),
		GlobalWindow:       cfg.Security.Limits.GlobalWindow(),
	})
	go sweepLoop(ctx, tracker, log)

	engine := auth.NewEngine(resolver, store, tracker, auth.IdentityPolicy{
		Enabled:      cfg.Security.Identity.Enabled,
		RequirePIN:   cfg.Security.Identity.RequirePIN,
		AllowedGroup: cfg.Security.Identity.AllowedGroup,
	}, log.Logger)

	// Audit trail
	trail := audit.NewTrail(cfg.Audit.Path, log.Logger)
	defer func() {
		if closeErr := trail.Close(); closeErr != nil {
			log.Error("error closing audit trail", "error", closeErr)
		}
	}()
	log.Info("audit trail initialised", "path", cfg.Audit.Path)

	// Home Assistant actuator
	act := actuator.New(cfg.Actuator.URL, cfg.Actuator.Token, cfg.Actuator.Timeout(), log.Logger)
	log.Info("actuator initialised",
		"url", cfg.Actuator.URL,
		"entity", cfg.Actuator.OpenEntity,
	)

	// Connect to MQTT broker (optional side channel)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			// announcements are best-effort; the gate works without them
			log.Warn("MQTT unavailable, event announcements disabled", "error", err)
			mqttClient = nil
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
			mqttClient.SetOnConnect(func() {
				log.Info("MQTT reconnected")
			})
			mqttClient.SetOnDisconnect(func(err error) {
				log.Warn("MQTT disconnected", "error", err)
			})
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional side channel)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, attempt metrics disabled", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Audit:    cfg.Audit,
		Security: cfg.Security,
		Battery:  cfg.Actuator.BatteryEntity,
		Logger:   log,
		Engine:   engine,
		Store:    store,
		Trail:    trail,
		Actuator: act,
		Entity:   cfg.Actuator.OpenEntity,
		MQTT:     mqttClient,
		Metrics:  influxClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if connected)
	// 3. MQTT (if connected)
	// 4. Audit trail
	// 5. Credential store backend

	log.Info("DoorOpener Core stopped")
	return nil
}

// printPasswordHash writes the Argon2id PHC hash of password to w. The
// output pastes directly into the security.admin.password config field.
func printPasswordHash(w io.Writer, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if _, err := fmt.Fprintln(w, hash); err != nil {
		return fmt.Errorf("writing hash: %w", err)
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOOROPENER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOOROPENER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildStore constructs the configured credential store backend.
//
// Parameters:
//   - ctx: Context for database startup
//   - cfg: Application configuration
//   - log: Logger instance
//
// Returns:
//   - credstore.Store: Ready credential store
//   - func(): Cleanup releasing backend resources
//   - error: If the backend fails to initialise
func buildStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (credstore.Store, func(), error) {
	switch cfg.Store.Backend {
	case "sqlite":
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Store.Database.Path,
			WALMode:     cfg.Store.Database.WALMode,
			BusyTimeout: cfg.Store.Database.BusyTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, nil, fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database connected", "path", cfg.Store.Database.Path)

		cleanup := func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}
		return credstore.NewSQLiteStore(db.DB), cleanup, nil

	default:
		// config validation restricts the backend to "file" or "sqlite"
		return credstore.NewFileStore(cfg.Store.Path), func() {}, nil
	}
}

// sweepLoop prunes the tracker periodically until the context is cancelled.
func sweepLoop(ctx context.Context, tracker *auth.Tracker, log *logging.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := tracker.Sweep(); removed > 0 {
				log.Debug("tracker swept", "removed", removed)
			}
		}
	}
}
