package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/config"
	"github.com/lawnchairsociety/questbridge/internal/dm"
	"github.com/lawnchairsociety/questbridge/internal/engine"
	"github.com/lawnchairsociety/questbridge/internal/events"
	"github.com/lawnchairsociety/questbridge/internal/httpapi"
	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/push"
	"github.com/lawnchairsociety/questbridge/internal/quest"
	"github.com/lawnchairsociety/questbridge/internal/store"
	"github.com/lawnchairsociety/questbridge/internal/world"
	"github.com/lawnchairsociety/questbridge/internal/world/mineflayer"
)

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "data/bridge.yaml", "Path to bridge config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	templatesFile := flag.String("templates", "", "Path to quest templates YAML file (overrides config)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	agentURL := flag.String("agent", "", "Base URL of the world agent (overrides config)")
	flag.Parse()

	// Initialize logger first (before any logging)
	logConfig, _ := logger.LoadConfig(*loggingConfig)
	if err := logger.Initialize(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Info("Starting Quest Bridge Server")

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load bridge config, using defaults", "path", *configFile, "error", err)
		cfg = config.DefaultConfig()
	}
	if *addr != "" {
		cfg.HTTP.ListenAddr = *addr
	}
	if *templatesFile != "" {
		cfg.Quests.TemplatesPath = *templatesFile
	}
	if *agentURL != "" {
		cfg.Agent.BaseURL = *agentURL
	}

	// Open the instance store
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	logger.Info("Instance store opened", "backend", cfg.Store.Backend)

	// Load quest templates
	library := quest.NewLibrary()
	if cfg.Quests.TemplatesPath != "" {
		if err := library.LoadFromYAML(cfg.Quests.TemplatesPath); err != nil {
			logger.Warning("Failed to load quest templates, using built-in default", "path", cfg.Quests.TemplatesPath, "error", err)
		} else {
			logger.Info("Quest templates loaded", "count", library.Count())
		}
	}

	// Connect the world agent
	agent := newAgent(cfg)

	// Assemble the service container
	bus := events.NewMemoryBus()
	defer bus.Close()

	pollInterval := time.Duration(cfg.Engine.PollIntervalSeconds) * time.Second
	eng := engine.NewEngine(st, agent, bus, pollInterval)
	defer eng.Close()

	personas := dm.NewPersonas()
	if cfg.Persona.Name != "" {
		if err := personas.Set(dm.Persona(cfg.Persona.Name), cfg.Persona.Temperature); err != nil {
			logger.Warning("Invalid persona in config, keeping default", "persona", cfg.Persona.Name)
		}
	}

	container := &httpapi.Container{
		Engine:       eng,
		Orchestrator: dm.NewOrchestrator(eng, agent, library, personas),
		Dispatcher:   dm.NewDispatcher(eng, agent, library),
		Personas:     personas,
		Library:      library,
		Agent:        agent,
	}

	// Wire the chat stream through the choice parser so ##DM## replies reach
	// the engine even when they bypass the HTTP surface
	parser := dm.NewChoiceParser(eng, agent)
	stopChat := agent.OnChat(func(username, message string) {
		parser.HandleChat(username, message)
	})
	defer stopChat()

	// Event push
	hub := push.NewHub(bus, &cfg.WebSocket)
	defer hub.Close()

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(container).Routes())
	mux.HandleFunc("GET /events/ws", hub.HandleWS)

	srv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Bridge server running", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("Press Ctrl+C to shutdown")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

// openStore selects the store backend from config
func openStore(cfg *config.BridgeConfig) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return store.OpenSQLite(cfg.Store.Path)
	case "postgres":
		return store.OpenPostgres(cfg.Store.DSN)
	default:
		return store.NewMemoryStore(), nil
	}
}

// newAgent connects the HTTP world agent, or a disconnected stub when no
// agent URL is configured
func newAgent(cfg *config.BridgeConfig) world.ChatAgent {
	if cfg.Agent.BaseURL == "" {
		logger.Warning("No agent URL configured, world actions are no-ops")
		return mineflayer.NewDisconnected()
	}
	client := mineflayer.NewClient(cfg.Agent.BaseURL, cfg.Agent.PollIntervalSeconds)
	logger.Info("World agent connected", "url", cfg.Agent.BaseURL)
	return client
}
