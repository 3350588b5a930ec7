package main

import (
	"github.com/galoberlyn/beezbuddy-be/internal/agent"
	"github.com/galoberlyn/beezbuddy-be/internal/chat"
	bbconfig "github.com/galoberlyn/beezbuddy-be/internal/config"
	"github.com/galoberlyn/beezbuddy-be/internal/history"
	"github.com/galoberlyn/beezbuddy-be/internal/ingest"
	"github.com/galoberlyn/beezbuddy-be/internal/knowledge"
	"github.com/galoberlyn/beezbuddy-be/internal/org"
	"github.com/galoberlyn/beezbuddy-be/internal/storage"
	"github.com/galoberlyn/beezbuddy-be/internal/strategy"
	"github.com/galoberlyn/beezbuddy-be/internal/workflow"
	"github.com/galoberlyn/beezbuddy-be/pkg/auth"
	"github.com/galoberlyn/beezbuddy-be/pkg/config"
	"github.com/galoberlyn/beezbuddy-be/pkg/database"
	"github.com/galoberlyn/beezbuddy-be/pkg/llm"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
	"github.com/galoberlyn/beezbuddy-be/pkg/monitoring"
	"github.com/galoberlyn/beezbuddy-be/pkg/server"
	"github.com/galoberlyn/beezbuddy-be/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("beezbuddy")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting BeezBuddy (RAG Chat API)")

	cfg := bbconfig.LoadConfig()
	jwtSecret := config.RequireEnv("JWT_SECRET")
	serviceToken := config.RequireEnv("SERVICE_TOKEN")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("beezbuddy", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("beezbuddy", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"JWT_SECRET":   jwtSecret,
	}))

	// Stores
	vectorStore := knowledge.NewStore(db)
	conversationStore := history.NewConversationStore(db)
	publicConversationStore := history.NewPublicConversationStore(db)
	orgStore := org.NewStore(db)
	agentStore := agent.NewStore(db)

	// Object storage
	objectStore, err := storage.NewS3Client(storage.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize object storage")
	}

	// Workflow engine client
	workflowClient := workflow.NewClient(workflow.Config{
		BaseURL:    cfg.WorkflowBaseURL,
		Production: cfg.Production,
		Timeout:    cfg.WorkflowTimeout,
		Logger:     logger,
	})

	// Headless browser for SPA ingestion; optional because it needs a
	// local Chromium.
	var spaRenderer ingest.Renderer
	if cfg.EnableRendering {
		rodRenderer, err := ingest.NewRodRenderer()
		if err != nil {
			logger.WithError(err).Warn("Headless browser unavailable - SPA ingestion disabled")
		} else {
			spaRenderer = rodRenderer
			defer rodRenderer.Close()
		}
	}

	dispatcher := ingest.NewDispatcher(ingest.DispatcherConfig{
		Workflow: workflowClient,
		Storage:  objectStore,
		SPA:      spaRenderer,
		Logger:   logger,
	})

	// Model strategy registry with the configured default strategy.
	registry := strategy.NewRegistry(vectorStore, cfg.Production, logger)
	if _, err := registry.Switch(cfg.Strategy, strategy.Config{
		Chat: llm.Config{
			Provider:    cfg.LLMProvider,
			Model:       cfg.LLMModel,
			APIKey:      cfg.LLMAPIKey,
			APIURL:      cfg.LLMAPIURL,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		},
		Embedding: llm.Config{
			Provider: cfg.EmbeddingProvider,
			Model:    cfg.EmbeddingModel,
			APIKey:   cfg.EmbeddingAPIKey,
			APIURL:   cfg.EmbeddingAPIURL,
		},
	}); err != nil {
		logger.WithError(err).Fatal("Failed to initialize model strategy")
	}

	pipeline := chat.NewPipeline(chat.PipelineConfig{
		Agents:        agentStore,
		Conversations: conversationStore,
		Sessions:      publicConversationStore,
		Strategies:    registry,
		TopK:          cfg.RetrievalTopK,
		HistoryLimit:  cfg.HistoryLimit,
		Production:    cfg.Production,
		Logger:        logger,
	})

	// Handlers
	chatHandler := chat.NewHandler(pipeline, logger)
	orgHandler := org.NewHandler(orgStore, []byte(jwtSecret), logger)
	agentDeleter := agent.NewDeleter(db, vectorStore, objectStore, logger)
	agentHandler := agent.NewHandler(agent.HandlerConfig{
		Store:      agentStore,
		Deleter:    agentDeleter,
		Dispatcher: dispatcher,
		Objects:    objectStore,
		Vectors:    vectorStore,
		Logger:     logger,
	})
	embeddingsHandler := knowledge.NewHandler(vectorStore, logger)

	// Routes
	router := server.SetupServiceRouter(logger, "beezbuddy", healthChecker, metricsCollector)

	authenticated := router.Group("/api", auth.JWTAuthMiddleware([]byte(jwtSecret)))
	chat.RegisterRoutes(authenticated.Group("/chat"), chatHandler)
	agentHandler.RegisterRoutes(authenticated.Group("/agents"))
	orgHandler.RegisterRoutes(authenticated.Group("/organizations"))
	orgHandler.RegisterPublicRoutes(router.Group("/api/organizations"))

	// Public widget endpoint: no auth, domain allow-list enforced per
	// agent inside the pipeline.
	chat.RegisterPublicRoutes(router.Group("/api/public/chat"), chatHandler)

	// Service-to-service surface for the workflow engine.
	s2s := router.Group("/api/s2s", auth.ServiceAuthMiddleware(serviceToken))
	embeddingsHandler.RegisterRoutes(s2s)

	serverConfig := server.DefaultConfig("beezbuddy", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}
