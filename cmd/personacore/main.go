package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/personacore/personacore/config"
	"github.com/personacore/personacore/pkg/api"
	"github.com/personacore/personacore/pkg/api/handlers"
	"github.com/personacore/personacore/pkg/learning"
	"github.com/personacore/personacore/pkg/logger"
	"github.com/personacore/personacore/pkg/memory"
	"github.com/personacore/personacore/pkg/metrics"
	"github.com/personacore/personacore/pkg/personality"
	"github.com/personacore/personacore/pkg/store"
	badgerstore "github.com/personacore/personacore/pkg/store/badger"
	memstore "github.com/personacore/personacore/pkg/store/memory"
	redisstore "github.com/personacore/personacore/pkg/store/redis"
	"github.com/personacore/personacore/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	personalityPath = flag.String("personality", "", "Override personality document path")
	serverPort      = flag.Int("port", 0, "Override server port")
	logLevel        = flag.String("log-level", "", "Override log level")
	debugMode       = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	overrides := buildOverrides()

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Personacore",
		"version", version.Version,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Durable backing store
	backend := openBackend(ctx, cfg, log)
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error("Error closing store", "error", err)
		}
	}()

	// Metrics manager
	metricsManager := metrics.NewManager(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Port:    cfg.Metrics.Port,
		Path:    cfg.Metrics.Path,
	})
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Personality document
	doc, err := config.LoadDocument(cfg.Personality.Path, log)
	if err != nil {
		log.Error("Failed to load personality document", "path", cfg.Personality.Path, "error", err)
		os.Exit(1)
	}

	system := personality.NewSystem(doc, backend,
		memory.Config{
			WriteTimeout: cfg.Storage.WriteTimeout,
			Tuning: memory.Tuning{
				ContextRecent:        cfg.Memory.ContextRecent,
				ContextRelationships: cfg.Memory.ContextRelationships,
				ContextTopics:        cfg.Memory.ContextTopics,
				CurrentBoost:         cfg.Memory.CurrentBoost,
			},
		},
		learning.Tuning{
			PositiveFeedbackHalf: cfg.Learning.PositiveFeedbackHalf,
			AmplificationHalf:    cfg.Learning.AmplificationHalf,
			ResponsesHalf:        cfg.Learning.ResponsesHalf,
			ImpressionsHalf:      cfg.Learning.ImpressionsHalf,
			SuccessThreshold:     cfg.Learning.SuccessThreshold,
			ExemplarCap:          cfg.Learning.ExemplarCap,
			TrendWindow:          cfg.Learning.TrendWindow,
			TopTopics:            cfg.Learning.TopTopics,
		},
		log,
		personality.WithRecorder(metricsManager),
	)

	if err := system.Load(ctx); err != nil {
		log.Error("Failed to restore state", "error", err)
		os.Exit(1)
	}

	// Personality document hot-reload
	if cfg.Personality.Watch {
		watcher, err := config.NewWatcher(cfg.Personality.Path, log)
		if err != nil {
			log.Error("Failed to create personality watcher", "error", err)
		} else {
			watcher.OnChange(system.ReloadPersonality)
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					log.Error("Personality watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	// Background engagement tracker
	var tracker *personality.Tracker
	if cfg.Tracker.Enabled && cfg.Tracker.MetricsURL != "" {
		fetcher := newHTTPFetcher(cfg.Tracker.MetricsURL)
		tracker = personality.NewTracker(system, fetcher, cfg.Tracker.Interval, cfg.Tracker.MaturityDelay, log)
		tracker.Start(ctx)
		defer tracker.Stop()
		log.Info("Engagement tracker started",
			"interval", cfg.Tracker.Interval,
			"maturity_delay", cfg.Tracker.MaturityDelay,
		)
	}

	// Periodic state save
	var autosaver *personality.Autosaver
	if cfg.Personality.AutosaveInterval > 0 {
		autosaver = personality.NewAutosaver(system, cfg.Personality.AutosaveInterval)
		autosaver.Start(ctx)
		defer autosaver.Stop()
	}

	// HTTP server
	var observer handlers.ActionObserver
	if tracker != nil {
		observer = tracker
	}
	apiHandlers := &api.Handlers{
		Personality: handlers.NewPersonalityHandler(system, observer),
		Health:      handlers.NewHealthHandler(system, backend),
		Metrics:     metricsManager,
	}
	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Personacore is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"storage", cfg.Storage.Type,
	)

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	// Final state save before the store closes.
	report := system.SaveState(shutdownCtx)
	if !report.Success() {
		log.Warn("Final state save incomplete",
			"memory_degraded", report.MemoryDegraded,
			"memory_error", report.MemoryErr,
			"personality_error", report.PersonalityErr,
		)
	}

	log.Info("Personacore stopped gracefully")
}

// openBackend selects and opens the durable store. Backends that cannot be
// reached fall back to the in-memory store so the agent keeps running;
// memory replays its writes once persistence returns.
func openBackend(ctx context.Context, cfg *config.Config, log logger.Logger) store.Store {
	switch cfg.Storage.Type {
	case "badger":
		b, err := badgerstore.NewBadgerStore(&badgerstore.Config{
			Path:             cfg.Storage.Badger.Path,
			SyncWrites:       cfg.Storage.Badger.SyncWrites,
			ValueLogFileSize: cfg.Storage.Badger.ValueLogFileSize,
		})
		if err != nil {
			log.Warn("Badger unavailable, falling back to memory store", "path", cfg.Storage.Badger.Path, "error", err)
			return memstore.NewMemoryStore()
		}
		log.Info("Initialized Badger store", "path", cfg.Storage.Badger.Path)
		return b
	case "redis":
		r, err := redisstore.NewRedisStore(ctx, &redisstore.Config{
			Address:   cfg.Storage.Redis.Address,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		})
		if err != nil {
			log.Warn("Redis unavailable, falling back to memory store", "address", cfg.Storage.Redis.Address, "error", err)
			return memstore.NewMemoryStore()
		}
		log.Info("Initialized Redis store", "address", cfg.Storage.Redis.Address)
		return r
	case "memory":
		log.Info("Initialized memory store")
		return memstore.NewMemoryStore()
	default:
		log.Warn("Unknown storage type, using memory store", "type", cfg.Storage.Type)
		return memstore.NewMemoryStore()
	}
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *personalityPath != "" {
		overrides["personality.path"] = *personalityPath
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Personacore - Personality System for Conversational Agents\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Personacore - Personality system for LLM-driven conversational agents\n\n")
	fmt.Printf("Usage: personacore [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  personacore                                   # Run with default config\n")
	fmt.Printf("  personacore -config config.yaml               # Use specific config file\n")
	fmt.Printf("  personacore -personality aria.json            # Use specific personality\n")
	fmt.Printf("  personacore -port 9090 -log-level debug       # Override specific options\n")
	fmt.Printf("  personacore -version                          # Print version info\n")
}
