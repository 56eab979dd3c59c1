package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/api/handlers"
	"github.com/fraga/KnowledgeNexus/internal/cache/redis"
	"github.com/fraga/KnowledgeNexus/internal/converter"
	"github.com/fraga/KnowledgeNexus/internal/extractor"
	"github.com/fraga/KnowledgeNexus/internal/graph/neo4j"
	"github.com/fraga/KnowledgeNexus/internal/llm"
	"github.com/fraga/KnowledgeNexus/internal/metrics"
	"github.com/fraga/KnowledgeNexus/internal/middleware/ratelimit"
	"github.com/fraga/KnowledgeNexus/internal/pipeline"
	"github.com/fraga/KnowledgeNexus/internal/resolver"
	"github.com/fraga/KnowledgeNexus/internal/storage/sqlite"
	"github.com/fraga/KnowledgeNexus/pkg/config"
	appLogger "github.com/fraga/KnowledgeNexus/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Knowledge Nexus API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	graphClient, err := neo4j.NewClient(
		cfg.Neo4j.URI,
		cfg.Neo4j.Username,
		cfg.Neo4j.Password,
		cfg.Neo4j.Database,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	if err := graphClient.Connect(context.Background()); err != nil {
		appLogger.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer graphClient.Close(context.Background())

	ext := buildExtractor(cfg)

	conv := converter.New(converter.Config{
		OCRLanguages:           cfg.Converter.OCRLanguages,
		OCRConfidenceThreshold: cfg.Converter.OCRConfidenceThreshold,
		MaxPDFPages:            cfg.Converter.MaxPDFPages,
	})

	res := resolver.New(graphClient, resolver.Config{
		SimilarityThreshold: cfg.Resolver.SimilarityThreshold,
	})

	pipe := pipeline.New(conv, ext, res, pipeline.Config{
		StageTimeoutSec:   cfg.Pipeline.StageTimeoutSec,
		ExtractorProvider: cfg.Extractor.Provider,
	}).WithArchive(sqliteClient)

	if cfg.Redis.Enabled {
		cacheClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, extraction cache disabled", zap.Error(err))
		} else {
			defer cacheClient.Close()
			pipe.WithCache(cacheClient)
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{})
	defer limiter.Stop()

	processHandler := handlers.NewProcessHandler(pipe)
	documentHandler := handlers.NewDocumentHandler(sqliteClient)

	api := app.Group("/api/v1")

	process := api.Group("/process", limiter.Middleware())
	process.Post("/text", processHandler.ProcessText)
	process.Post("/file", processHandler.ProcessFile)

	api.Get("/documents", documentHandler.ListDocuments)
	api.Get("/documents/:id", documentHandler.GetDocument)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

// buildExtractor picks the extraction backend. The prose extractor needs no
// API key and keeps the pipeline usable offline.
func buildExtractor(cfg *config.Config) extractor.Extractor {
	switch cfg.Extractor.Provider {
	case "prose":
		appLogger.Info("Using offline prose extractor")
		return extractor.NewProseExtractor()
	default:
		llmClient := llm.NewClient(
			cfg.LLM.APIKey,
			cfg.LLM.Model,
			cfg.LLM.Temperature,
			cfg.LLM.MaxTokens,
			cfg.LLM.TimeoutSec,
		)
		return extractor.NewOpenAIExtractor(llmClient)
	}
}
