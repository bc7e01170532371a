// Kiosk Agent - fleet device agent
//
// kioskd is the on-device agent for a managed kiosk fleet. It
// provisions the device against a shared broker by exchanging a
// customer code for a device-specific broker binding, then runs the
// long-lived device session: retained status with a last-will offline
// message, remote command dispatch with acknowledgements, periodic
// telemetry and device events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iocast/kiosk-agent/internal/command"
	"github.com/iocast/kiosk-agent/internal/infrastructure/config"
	"github.com/iocast/kiosk-agent/internal/infrastructure/influxdb"
	"github.com/iocast/kiosk-agent/internal/infrastructure/logging"
	"github.com/iocast/kiosk-agent/internal/infrastructure/mqtt"
	"github.com/iocast/kiosk-agent/internal/process"
	"github.com/iocast/kiosk-agent/internal/provisioning"
	"github.com/iocast/kiosk-agent/internal/session"
	"github.com/iocast/kiosk-agent/internal/settings"
	"github.com/iocast/kiosk-agent/internal/system"
	"github.com/iocast/kiosk-agent/internal/telemetry"
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

// rendererGracefulTimeout is how long a stopping renderer gets before
// SIGKILL.
const rendererGracefulTimeout = 10 * time.Second

func main() {
	code := flag.String("code", "", "customer code for first-time provisioning")
	flag.Parse()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *code); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context, customerCode string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting kiosk agent",
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

	// Open settings store
	store, err := settings.Open(ctx, settings.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer func() {
		log.Info("closing settings store")
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing settings store", "error", closeErr)
		}
	}()
	log.Info("settings store opened", "path", store.Path())

	// Device identity is generated on first start and never changes
	deviceID, err := store.DeviceID(ctx)
	if err != nil {
		return fmt.Errorf("loading device identity: %w", err)
	}
	log.Info("device identity", "device_id", deviceID)

	collector := telemetry.New(deviceID, version, filepath.Dir(cfg.Database.Path))
	collector.SetLogger(log)

	// Provision the device if it has no broker binding yet
	configured, err := store.Configured(ctx)
	if err != nil {
		return fmt.Errorf("reading provisioning state: %w", err)
	}
	if !configured {
		if customerCode == "" {
			return errors.New("device is not provisioned; run with -code <4-digit customer code>")
		}
		binding, provErr := provision(ctx, cfg, deviceID, customerCode, collector.Collect(""), log)
		if provErr != nil {
			return fmt.Errorf("provisioning: %w", provErr)
		}
		if persistErr := persistBinding(ctx, store, binding); persistErr != nil {
			return fmt.Errorf("persisting broker binding: %w", persistErr)
		}
		log.Info("device provisioned",
			"broker_url", binding.BrokerURL,
			"customer", binding.CustomerName,
		)
	}

	brokerCfg, err := session.LoadBrokerConfig(ctx, store)
	if err != nil {
		return fmt.Errorf("loading broker config: %w", err)
	}

	// Host actuator for audio, display power and power actions
	actuator := system.New()
	actuator.SetLogger(log)

	// Scheduled nightly reboot, driven by the persisted schedule
	scheduler := session.NewRebootScheduler(store, actuator)
	scheduler.SetLogger(log)
	scheduler.Start()
	defer func() {
		log.Info("stopping reboot scheduler")
		scheduler.Stop()
	}()

	// Supervised display renderer (optional)
	display := command.Display(discardDisplay{log})
	supervisor := command.Supervisor(noRenderer{})
	if cfg.Renderer.Binary != "" {
		renderer := process.NewManager(process.Config{
			Name:               "renderer",
			Binary:             cfg.Renderer.Binary,
			Args:               cfg.Renderer.Args,
			RestartOnFailure:   cfg.Renderer.RestartOnFailure,
			RestartDelay:       cfg.Renderer.RestartDelay,
			MaxRestartAttempts: cfg.Renderer.MaxRestartAttempts,
			GracefulTimeout:    rendererGracefulTimeout,
		})
		renderer.SetLogger(log)
		if startErr := renderer.Start(); startErr != nil {
			return fmt.Errorf("starting renderer: %w", startErr)
		}
		defer func() {
			log.Info("stopping renderer")
			if stopErr := renderer.Stop(); stopErr != nil {
				log.Error("error stopping renderer", "error", stopErr)
			}
		}()
		log.Info("renderer started", "binary", cfg.Renderer.Binary, "pid", renderer.PID())

		display = process.NewRelay(renderer)
		supervisor = renderer
	} else {
		log.Info("no renderer configured, display commands are dropped")
	}

	// Command dispatch
	dispatcher := command.NewDispatcher()
	dispatcher.SetLogger(log)

	manager := session.NewManager(cfg.Session, brokerCfg, store, dispatcher, collector,
		func(opts mqtt.Options) (session.Client, error) {
			return mqtt.Connect(opts)
		})
	manager.SetLogger(log)

	shell := command.NewShellRunner(cfg.Commands.ShellAllow)
	shell.SetLogger(log)

	updater := command.NewUpdater(cfg.Commands.UpdateDir, manager)
	updater.SetLogger(log)

	handlers := &command.Handlers{
		Display:    display,
		System:     actuator,
		Settings:   store,
		Collector:  collector,
		Events:     manager,
		Reboots:    scheduler,
		Supervisor: supervisor,
		Shell:      shell,
		Updater:    updater,
		Logger:     log,
	}
	handlers.RegisterAll(dispatcher)
	log.Info("command dispatcher ready", "commands", len(dispatcher.Names()))

	// Connect to InfluxDB telemetry mirror (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
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

		manager.SetMirror(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Bring the device session online
	if err := manager.Start(); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer func() {
		log.Info("stopping session")
		if stopErr := manager.Stop(); stopErr != nil {
			log.Error("error stopping session", "error", stopErr)
		}
	}()
	log.Info("session online", "broker", brokerCfg.Host, "device_id", deviceID)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred cleanup runs in reverse order:
	// 1. Session (retained offline status, disconnect)
	// 2. InfluxDB (if enabled)
	// 3. Renderer (if supervised)
	// 4. Reboot scheduler
	// 5. Settings store

	log.Info("kiosk agent stopped")
	return nil
}

// provision runs one provisioning handshake to completion and returns
// the resolved broker binding.
//
// The engine reports progress through its transition handler; this
// function pumps those transitions into log lines and waits for a
// terminal outcome or context cancellation.
func provision(ctx context.Context, cfg *config.Config, deviceID, code string, info map[string]any, log *logging.Logger) (provisioning.Binding, error) {
	engine := provisioning.New(cfg.Provisioning, deviceID, info,
		func(opts mqtt.Options) (provisioning.Transport, error) {
			return mqtt.Connect(opts)
		})
	engine.SetLogger(log)

	// Buffered so the engine's callbacks never block. The transition
	// handler runs with the engine lock held.
	states := make(chan provisioning.State, 16)
	bindings := make(chan provisioning.Binding, 1)
	engine.SetTransitionHandler(func(s provisioning.State) { states <- s })
	engine.SetBindHandler(func(b provisioning.Binding) { bindings <- b })

	if err := engine.SubmitCode(code); err != nil {
		return provisioning.Binding{}, err
	}
	log.Info("provisioning started",
		"broker", fmt.Sprintf("%s:%d", cfg.Provisioning.Broker.Host, cfg.Provisioning.Broker.Port),
	)

	for {
		select {
		case <-ctx.Done():
			engine.Cancel()
			return provisioning.Binding{}, ctx.Err()
		case binding := <-bindings:
			return binding, nil
		case state := <-states:
			log.Info("provisioning state changed", "state", state.String())
			switch state {
			case provisioning.StateAwaitingApproval:
				if name := engine.CustomerName(); name != "" {
					log.Info("awaiting approval", "customer", name)
				}
			case provisioning.StateFailed:
				return provisioning.Binding{}, fmt.Errorf("handshake failed: %s", engine.FailureReason())
			}
		}
	}
}

// persistBinding writes an approved broker binding to the settings
// store and marks the device configured. Configured is written last so
// a crash mid-persist leaves the device unprovisioned rather than
// half-bound.
func persistBinding(ctx context.Context, store *settings.Store, b provisioning.Binding) error {
	if err := store.SetBrokerURL(ctx, b.BrokerURL); err != nil {
		return err
	}
	if err := store.SetUsername(ctx, b.Username); err != nil {
		return err
	}
	if err := store.SetPassword(ctx, b.Password); err != nil {
		return err
	}
	if err := store.SetStartURL(ctx, b.StartURL); err != nil {
		return err
	}
	return store.SetConfigured(ctx, true)
}

// getConfigPath returns the configuration file path.
// Uses KIOSK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KIOSK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// discardDisplay drops display instructions when no renderer is
// supervised.
type discardDisplay struct {
	log *logging.Logger
}

func (d discardDisplay) Send(command string, _ map[string]any) error {
	d.log.Debug("no renderer, dropping display instruction", "command", command)
	return nil
}

// noRenderer rejects restartApp when no renderer is supervised.
type noRenderer struct{}

func (noRenderer) Restart() error {
	return errors.New("no renderer configured")
}
