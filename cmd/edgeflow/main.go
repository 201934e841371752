// EdgeFlow Core - Automation Action Engine
//
// This is the main entry point for the EdgeFlow Core controller. It wires
// together the action engine, the template store, the host/command
// catalog, the service watch manager and the HTTP/WebSocket API, and
// runs until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/tmarsden/edgeflow-core/migrations"

	"github.com/tmarsden/edgeflow-core/internal/action"
	"github.com/tmarsden/edgeflow-core/internal/actuator"
	"github.com/tmarsden/edgeflow-core/internal/api"
	"github.com/tmarsden/edgeflow-core/internal/catalog"
	"github.com/tmarsden/edgeflow-core/internal/configpack"
	"github.com/tmarsden/edgeflow-core/internal/console"
	"github.com/tmarsden/edgeflow-core/internal/infrastructure/config"
	"github.com/tmarsden/edgeflow-core/internal/infrastructure/database"
	"github.com/tmarsden/edgeflow-core/internal/infrastructure/logging"
	"github.com/tmarsden/edgeflow-core/internal/infrastructure/metrics"
	"github.com/tmarsden/edgeflow-core/internal/infrastructure/mqtt"
	"github.com/tmarsden/edgeflow-core/internal/remote"
	"github.com/tmarsden/edgeflow-core/internal/variable"
	"github.com/tmarsden/edgeflow-core/internal/watch"
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

func main() {
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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting EdgeFlow Core",
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

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise host/command catalog
	registry := catalog.NewRegistry(
		catalog.NewSQLiteHostRepository(db.DB),
		catalog.NewSQLiteCommandRepository(db.DB),
	)
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading catalog: %w", refreshErr)
	}
	log.Info("catalog initialised",
		"hosts", registry.HostCount(),
		"commands", registry.CommandCount(),
	)

	// Connect to MQTT broker for the actuator bridges
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
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

	// Connect to InfluxDB for execution metrics (optional)
	var recorder *metrics.Client
	if cfg.InfluxDB.Enabled {
		recorder, err = metrics.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		recorder.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Variable store and actuator devices
	vars := variable.NewStore()
	devices := buildDeviceRegistry(mqttClient, byte(cfg.MQTT.QoS))
	gpio := actuator.NewBridgeGPIO(mqttClient, byte(cfg.MQTT.QoS))

	// SSH dialer, keystore and the shared WebSocket hub
	dialer := remote.NewSSHDialer(log)
	keystore := remote.NewKeystore(cfg.Remote.KeystoreDir)
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Watch manager resolves hosts through the engine, which does not
	// exist yet; the indirection breaks the construction cycle.
	hosts := &engineHostSource{}
	watches := watch.NewManager(hosts, dialer, vars, log)
	defer watches.StopAll()

	// Action engine
	engineDeps := action.Deps{
		Variables: vars,
		Dialer:    dialer,
		Keystore:  keystore,
		Catalog:   registry,
		Console:   console.NewShellConsole(),
		Devices:   devices,
		GPIO:      gpio,
		Watches:   watches,
		Hub:       hub,
		Logger:    log,
	}
	if recorder != nil {
		engineDeps.Recorder = recorder
	}
	engine := action.New(action.Config{
		QueueSize:         cfg.Engine.QueueSize,
		AdmissionWait:     cfg.Engine.AdmissionWait(),
		SyncTimeout:       cfg.Engine.SyncTimeout(),
		RemoteSyncTimeout: cfg.Engine.RemoteSyncTimeout(),
	}, engineDeps)
	hosts.engine = engine

	if err := engine.Start(); err != nil {
		return fmt.Errorf("starting action engine: %w", err)
	}
	defer func() {
		log.Info("stopping action engine")
		if closeErr := engine.Close(); closeErr != nil {
			log.Error("error closing engine", "error", closeErr)
		}
	}()
	log.Info("action engine started", "queue_size", cfg.Engine.QueueSize)

	// Template store with its persistence tiers
	var codec *configpack.Codec
	if cfg.Remote.PackKeyFile != "" {
		codec, err = configpack.NewCodec(cfg.Remote.PackKeyFile)
		if err != nil {
			return fmt.Errorf("loading pack key: %w", err)
		}
	}
	templates := action.NewTemplates(action.TemplatesConfig{
		Limit:      cfg.Engine.MaxTemplates,
		ExportDir:  cfg.Storage.ExportDir,
		LegacyFile: cfg.Storage.LegacyFile,
	}, engine, action.NewSQLiteTemplateRepository(db.DB), codec, log)

	if loadErr := templates.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading templates: %w", loadErr)
	}
	log.Info("templates loaded", "count", templates.Count())

	// HTTP/WebSocket API
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Engine:      engine,
		Templates:   templates,
		Watches:     watches,
		Variables:   vars,
		Catalog:     registry,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, recorder); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Action engine
	// 3. Watch manager
	// 4. InfluxDB (if enabled)
	// 5. MQTT
	// 6. Database

	log.Info("EdgeFlow Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses EDGEFLOW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("EDGEFLOW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildDeviceRegistry registers the bridge-backed LED devices. The bridge
// processes subscribe to their command topics over MQTT; registering a
// device here does not require the bridge to be online.
func buildDeviceRegistry(publisher actuator.Publisher, qos byte) *actuator.Registry {
	devices := actuator.NewRegistry()
	devices.Register("led_touch", actuator.NewBridgeDevice("led_touch", publisher, qos))
	devices.Register("led_board", actuator.NewBridgeDevice("led_board", publisher, qos))
	devices.Register("led_matrix", actuator.NewBridgeMatrix("led_matrix", publisher, qos))
	return devices
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, recorder *metrics.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if recorder != nil {
		if err := recorder.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// engineHostSource defers host resolution to the engine's host table.
// The watch manager needs a host source at construction time, but the
// engine is constructed after the manager, so the field is set late.
type engineHostSource struct {
	engine *action.Engine
}

// HostConfig implements watch.HostSource.
func (s *engineHostSource) HostConfig(id string) (remote.HostConfig, error) {
	if s.engine == nil {
		return remote.HostConfig{}, fmt.Errorf("engine not initialised")
	}
	return s.engine.HostConfig(id)
}
