package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"huddle/internal/ai"
	"huddle/internal/api"
	"huddle/internal/config"
	"huddle/internal/database"
	"huddle/internal/dispatch"
	"huddle/internal/liveness"
	"huddle/internal/reducer"
	"huddle/internal/sequencer"
	"huddle/internal/session"
	"huddle/internal/websocket"
	pkgdatabase "huddle/pkg/database"
)

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config         *config.Config
	dbManager      *database.Manager
	sessionManager *session.Manager
	registry       *websocket.Registry
	sequencer      *sequencer.Sequencer
	dispatcher     *dispatch.Dispatcher
	aiWorker       *ai.Worker
	aiModerator    *ai.Moderator
	sandboxGate    *ai.Gate
	detector       *liveness.Detector
	apiServer      *api.Server
	httpServer     *http.Server
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Database → Session → Registry → Sequencer → Dispatch → AI/Liveness → API → HTTP
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// Validate configuration before component initialization
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Initialize database manager (foundation layer)
	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	// STEP 2: Initialize session manager and replay persisted action logs so
	// restarted sessions come back with their exact pre-restart state
	reducerCfg := reducer.Config{
		Policy:        reducer.ResourcePolicy(cfg.Session.ResourcePolicy),
		MaxLogEntries: cfg.Session.MaxLogEntries,
	}
	sessionManager := session.NewManager(dbManager, reducerCfg)
	if err := sessionManager.LoadActiveSessions(context.Background()); err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to load active sessions: %w", err)
	}

	// STEP 3: Initialize WebSocket registry for connection tracking
	registry := websocket.NewRegistry()

	// STEP 4: Initialize the sequencer (the total order lives here)
	actionSequencer := sequencer.NewSequencer(sessionManager, dbManager, registry)

	// STEP 5: Initialize the dispatch layer on top of the sequencer
	dispatcher := dispatch.NewDispatcher(actionSequencer, sessionManager, cfg.Session.RateLimitPerSecond)

	// STEP 6: Initialize the AI subsystem off sequencer taps
	backend, err := ai.NewBackend(cfg.AI.Backend)
	if err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to initialize AI backend: %w", err)
	}
	aiWorker := ai.NewWorker(actionSequencer.Subscribe(100), backend, dispatcher, cfg.AI.QueryTimeout)
	aiModerator := ai.NewModerator(sessionManager, dispatcher, cfg.AI.ModeratorInterval, cfg.AI.ModeratorIdleThreshold)
	sandboxGate := ai.NewGate(actionSequencer.Subscribe(100), sessionManager, dispatcher, &ai.StubSandbox{}, cfg.AI.QueryTimeout)

	// STEP 7: Initialize the liveness failure detector
	detector := liveness.NewDetector(sessionManager, dispatcher, cfg.Session.LivenessInterval, cfg.Session.LivenessTimeout)

	// STEP 8: Initialize API server with all business dependencies
	apiServer := api.NewServer(sessionManager, dbManager, dispatcher, registry)

	// STEP 9: Initialize WebSocket handler
	wsHandler := websocket.NewHandler(registry, sessionManager, dbManager, dispatcher)

	// STEP 10: Setup HTTP server with both API and WebSocket endpoints
	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:         cfg,
		dbManager:      dbManager,
		sessionManager: sessionManager,
		registry:       registry,
		sequencer:      actionSequencer,
		dispatcher:     dispatcher,
		aiWorker:       aiWorker,
		aiModerator:    aiModerator,
		sandboxGate:    sandboxGate,
		detector:       detector,
		apiServer:      apiServer,
		httpServer:     httpServer,
	}, nil
}

// Start begins application execution
// Startup coordination ensures all components ready before serving:
// the sequencer must be consuming before any handler can dispatch an action
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting Huddle application on %s", app.httpServer.Addr)

	// STEP 1: Start the sequencer (background action processing)
	if err := app.sequencer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sequencer: %w", err)
	}

	// STEP 2: Start the AI subsystem and liveness detector
	if err := app.aiWorker.Start(ctx); err != nil {
		app.sequencer.Stop()
		return fmt.Errorf("failed to start AI worker: %w", err)
	}
	if err := app.aiModerator.Start(ctx); err != nil {
		app.stopBackground()
		return fmt.Errorf("failed to start AI moderator: %w", err)
	}
	if err := app.sandboxGate.Start(ctx); err != nil {
		app.stopBackground()
		return fmt.Errorf("failed to start sandbox gate: %w", err)
	}
	if err := app.detector.Start(ctx); err != nil {
		app.stopBackground()
		return fmt.Errorf("failed to start liveness detector: %w", err)
	}

	// STEP 3: Start HTTP server (accepts connections)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Verify server is ready before returning
	select {
	case err := <-serverErrCh:
		app.stopBackground()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Huddle application started successfully")
		return nil
	case <-ctx.Done():
		app.stopBackground()
		return ctx.Err()
	}
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → background loops → Database
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down Huddle application")

	// STEP 1: Stop accepting new connections
	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// STEP 2: Stop background processing
	app.stopBackground()

	// STEP 3: Close database connections
	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("Huddle application shutdown complete")
	return nil
}

// stopBackground stops every running background loop, tolerating partial starts
func (app *Application) stopBackground() {
	if err := app.detector.Stop(); err != nil && err != liveness.ErrDetectorNotRunning {
		log.Printf("Liveness detector shutdown error: %v", err)
	}
	if err := app.sandboxGate.Stop(); err != nil && err != ai.ErrGateNotRunning {
		log.Printf("Sandbox gate shutdown error: %v", err)
	}
	if err := app.aiModerator.Stop(); err != nil && err != ai.ErrModeratorNotRunning {
		log.Printf("AI moderator shutdown error: %v", err)
	}
	if err := app.aiWorker.Stop(); err != nil && err != ai.ErrWorkerNotRunning {
		log.Printf("AI worker shutdown error: %v", err)
	}
	if err := app.sequencer.Stop(); err != nil && err != sequencer.ErrSequencerNotRunning {
		log.Printf("Sequencer shutdown error: %v", err)
	}
}

// GetAddr returns the server address for external connections
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
