package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/whisper-session/internal/cleanup"
	"github.com/codebuildervaibhav/whisper-session/internal/completion"
	"github.com/codebuildervaibhav/whisper-session/internal/config"
	"github.com/codebuildervaibhav/whisper-session/internal/handlers"
	"github.com/codebuildervaibhav/whisper-session/internal/queue"
	"github.com/codebuildervaibhav/whisper-session/internal/session"
	"github.com/codebuildervaibhav/whisper-session/internal/storage"
	"github.com/codebuildervaibhav/whisper-session/internal/types"
	"github.com/codebuildervaibhav/whisper-session/internal/worker"
)

func main() {
	configPath := "config/config.yaml"
	if p := os.Getenv("WHISPER_SESSION_CONFIG"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Custom logger setup
	logBuffer := NewLogBuffer(1000)
	log.SetOutput(io.MultiWriter(os.Stdout, logBuffer))

	if err := cleanup.EnsureDirs(cfg.Storage.TempDir, cfg.Storage.OutputDir); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	log.Println("Initializing components...")

	// Local storage
	localStorage := storage.NewLocalStorage(cfg.Storage.OutputDir)

	// Database
	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	stages := queue.Stages{
		Local:    localStorage,
		Metadata: db,
	}

	// Google Drive client (optional - may fail if credentials not set up)
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err := storage.NewDriveClient(
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			log.Println("Results will only be saved locally")
		} else {
			stages.Drive = driveClient
			log.Println("Google Drive integration enabled")
		}
	} else {
		log.Println("Google Drive credentials not found - saving locally only")
	}

	// Completion sink
	var sink *completion.Client
	if cfg.Completion.Enabled {
		sink = completion.NewClient(completion.Config{
			URL:         cfg.Completion.URL,
			APIKey:      cfg.Completion.APIKey,
			Model:       cfg.Completion.Model,
			Temperature: cfg.Completion.Temperature,
			Timeout:     time.Duration(cfg.Completion.TimeoutSecs) * time.Second,
		})
		stages.Sink = sink
		log.Printf("Completion sink enabled (%s)", cfg.Completion.Model)
	}

	// Result pipeline
	pipeline := queue.NewPipeline(cfg.Pipeline.Workers, stages)
	pipeline.Start()

	// Worker process
	channel, err := worker.StartProcess(worker.ProcessConfig{
		Command:   cfg.Worker.Command,
		Args:      cfg.Worker.Args,
		Dir:       cfg.Worker.Dir,
		QueueSize: cfg.Worker.QueueSize,
	})
	if err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	// Session coordinator
	coordinator := session.NewCoordinator(channel, session.Options{
		Settings: cfg.Defaults,
		Notify: func(message string) {
			log.Printf("NOTIFY: %s", message)
		},
		OnResult: func(result types.TranscriptionResult) {
			if err := pipeline.Enqueue(result); err != nil {
				log.Printf("Result %s not archived: %v", result.ID, err)
			}
		},
	})

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
	)
	cleanupScheduler.Start()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	slot := &handlers.InputSlot{}
	inputHandler := handlers.NewInputHandler(coordinator, slot, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB)
	sessionHandler := handlers.NewSessionHandler(coordinator, slot, sink)
	resultsHandler := handlers.NewResultsHandler(db)
	streamHandler := handlers.NewStreamHandler(coordinator)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		snap := coordinator.Snapshot()
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
			"session": snap.Session,
			"busy":    snap.IsBusy,
		})
	})

	app.Post("/input", inputHandler.Upload)
	app.Post("/input/samples", inputHandler.Samples)
	app.Post("/input/gdrive", inputHandler.GDrive)

	app.Post("/transcribe", sessionHandler.Transcribe)
	app.Post("/session/clear", sessionHandler.Clear)
	app.Get("/session", sessionHandler.Get)
	app.Put("/session/settings", sessionHandler.PutSettings)
	app.Get("/completion", sessionHandler.Completion)

	// WebSocket route
	app.Get("/ws/session", websocket.New(streamHandler.Handle))

	app.Get("/results", resultsHandler.List)
	app.Get("/results/:id/text", resultsHandler.Text)

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.Lines(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /input              - Upload audio file")
	log.Println("   POST /input/samples      - Load raw 16kHz samples")
	log.Println("   POST /input/gdrive       - Load a Google Drive link")
	log.Println("   POST /transcribe         - Transcribe the loaded input")
	log.Println("   POST /session/clear      - Clear the current result")
	log.Println("   GET  /session            - Current session snapshot")
	log.Println("   PUT  /session/settings   - Model and language settings")
	log.Println("   GET  /ws/session         - WebSocket snapshot stream")
	log.Println("   GET  /results            - List archived results")
	log.Println("   GET  /results/:id/text   - Get transcript text")
	log.Println("   GET  /completion         - Last completion reply")
	log.Println("   GET  /logs               - View server logs")
	log.Println("   GET  /health             - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Printf("Server failed: %v", err)
	}

	cleanupScheduler.Stop()
	if err := coordinator.Close(); err != nil {
		log.Printf("Worker shutdown: %v", err)
	}
	pipeline.Stop()
}
