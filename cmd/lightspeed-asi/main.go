// Lightspeed ASI - ZWO camera and filter wheel driver
//
// This is the main entry point for the driver process. It opens every
// attached ASI camera and EFW filter wheel (or their simulators), keeps
// their property state current, and exposes them over HTTP, WebSocket
// and MQTT. Captures are written as FITS files and recorded in SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/lightspeed-asi/migrations"

	"github.com/nerrad567/lightspeed-asi/internal/api"
	"github.com/nerrad567/lightspeed-asi/internal/asi"
	"github.com/nerrad567/lightspeed-asi/internal/bridge"
	"github.com/nerrad567/lightspeed-asi/internal/capture"
	"github.com/nerrad567/lightspeed-asi/internal/driver"
	"github.com/nerrad567/lightspeed-asi/internal/infrastructure/config"
	"github.com/nerrad567/lightspeed-asi/internal/infrastructure/database"
	"github.com/nerrad567/lightspeed-asi/internal/infrastructure/influxdb"
	"github.com/nerrad567/lightspeed-asi/internal/infrastructure/logging"
	"github.com/nerrad567/lightspeed-asi/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// healthCheckTimeout bounds the startup health check.
const healthCheckTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Shutdown happens in reverse order of startup: the MQTT bridge and API
// stop taking requests first, then the device manager aborts any capture
// in flight and closes the hardware, and the stores close last so the
// final capture record is written.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Lightspeed ASI",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	captures := capture.NewSQLiteRepository(db.DB)
	recorder := capture.NewRecorder(captures)
	recorder.SetLogger(log)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Device manager
	cameraSDK, wheelSDK, err := openSDKs(cfg.Driver)
	if err != nil {
		return fmt.Errorf("loading SDK: %w", err)
	}
	manager := driver.NewManager(driver.Options{
		CameraSDK:      cameraSDK,
		WheelSDK:       wheelSDK,
		CameraPoll:     config.Milliseconds(cfg.Driver.Camera.PollInterval),
		WheelPoll:      config.Milliseconds(cfg.Driver.Wheel.PollInterval),
		StatusInterval: config.Milliseconds(cfg.Captures.StatusInterval),
		Artifacts:      capture.FileWriter{Dir: cfg.Captures.Dir},
		Sequencer:      captures,
	})
	manager.SetLogger(log)
	manager.AddObserver(recorder)
	if influxClient != nil {
		manager.AddObserver(influxdb.NewTelemetry(influxClient))
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(hubCtx)
	manager.AddObserver(hub)

	// Connect to MQTT broker (optional). A broker that is down at startup
	// leaves the driver running on HTTP alone.
	var mqttClient *mqtt.Client
	var mqttBridge *bridge.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, mqttBridge = connectMQTT(cfg.MQTT, manager, log)
		if mqttBridge != nil {
			manager.AddObserver(mqttBridge)
		}
	} else {
		log.Info("MQTT disabled")
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	if startErr := manager.Start(ctx); startErr != nil {
		return fmt.Errorf("starting device manager: %w", startErr)
	}
	defer func() {
		log.Info("closing devices")
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error closing devices", "error", closeErr)
		}
	}()
	log.Info("device manager started", "devices", len(manager.Devices()))

	if mqttBridge != nil {
		if startErr := mqttBridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			mqttBridge.Stop()
		}()
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log,
		Devices:      manager,
		Captures:     captures,
		HistoryLimit: cfg.Captures.HistoryLimit,
		Hub:          hub,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	hcCtx, hcCancel := context.WithTimeout(ctx, healthCheckTimeout)
	err = healthCheck(hcCtx, db, influxClient)
	hcCancel()
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. MQTT bridge
	// 3. Devices (aborts any capture, delivers its result)
	// 4. MQTT
	// 5. WebSocket hub
	// 6. InfluxDB (if enabled)
	// 7. Database

	log.Info("Lightspeed ASI stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LIGHTSPEED_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LIGHTSPEED_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openSDKs returns the camera and wheel SDKs selected by cfg. A disabled
// family gets a nil SDK and is skipped by the manager.
func openSDKs(cfg config.DriverConfig) (asi.CameraSDK, asi.WheelSDK, error) {
	var cameraSDK asi.CameraSDK
	var wheelSDK asi.WheelSDK

	switch cfg.SDK {
	case config.SDKModeSimulator:
		if cfg.Camera.Enabled {
			specs := make([]asi.CameraSpec, cfg.Simulator.Cameras)
			for i := range specs {
				specs[i] = asi.DefaultCameraSpec(i, cfg.Simulator.Width, cfg.Simulator.Height)
			}
			cameraSDK = asi.NewCameraSimulator(specs...)
		}
		if cfg.Wheel.Enabled {
			wheelSDK = asi.NewWheelSimulator(cfg.Simulator.Wheels, cfg.Simulator.Slots)
		}
	case config.SDKModeASI:
		var err error
		if cfg.Camera.Enabled {
			if cameraSDK, err = asi.NewCameraLibrary(); err != nil {
				return nil, nil, fmt.Errorf("camera library: %w", err)
			}
		}
		if cfg.Wheel.Enabled {
			if wheelSDK, err = asi.NewWheelLibrary(); err != nil {
				return nil, nil, fmt.Errorf("filter wheel library: %w", err)
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown sdk %q", cfg.SDK)
	}
	return cameraSDK, wheelSDK, nil
}

// connectMQTT connects to the broker and builds the bridge. Both results
// are nil when the broker is unreachable.
func connectMQTT(cfg config.MQTTConfig, manager *driver.Manager, log *logging.Logger) (*mqtt.Client, *bridge.Bridge) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		log.Warn("MQTT unavailable, continuing without it", "error", err)
		return nil, nil
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	b, err := bridge.New(bridge.Options{
		MQTT:            client,
		Devices:         manager,
		Topics:          client.Topics(),
		PublishInterval: config.Milliseconds(cfg.PublishInterval),
		Logger:          log,
	})
	if err != nil {
		log.Error("creating MQTT bridge failed", "error", err)
		return client, nil
	}
	return client, b
}

// healthCheck verifies the stores the driver depends on.
// MQTT is not checked: the driver keeps serving HTTP while the broker is
// down and the client reconnects on its own.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if db == nil {
		return errors.New("database: not open")
	}
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
