package bootstrap

import (
	"context"
	"log"

	"ai-sales-agent-be/internal/config"
	"ai-sales-agent-be/internal/controller"
	"ai-sales-agent-be/internal/handler"
	"ai-sales-agent-be/internal/pkg/logger"
	"ai-sales-agent-be/internal/pkg/mailer"
	"ai-sales-agent-be/internal/repository/contract"
	"ai-sales-agent-be/internal/repository/implementation"
	"ai-sales-agent-be/internal/repository/memory"
	"ai-sales-agent-be/internal/service"
	"ai-sales-agent-be/internal/websocket"
	"ai-sales-agent-be/pkg/agent"
	"ai-sales-agent-be/pkg/classifier"
	"ai-sales-agent-be/pkg/embedding"
	"ai-sales-agent-be/pkg/llm/factory"
	"ai-sales-agent-be/pkg/profile"
	"ai-sales-agent-be/pkg/rag/retriever"
	"ai-sales-agent-be/pkg/strategy"

	pktNats "ai-sales-agent-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger logger.ILogger

	// Controllers
	AgentController controller.IAgentController
	ChatHandler     *handler.ChatHandler

	// Core
	Orchestrator *agent.Orchestrator
	Resolver     *embedding.Resolver

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	var eventBus service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
	} else {
		eventBus = natsPub
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	var transcripts contract.TranscriptRepository
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to connect to Redis, transcripts and cluster fan-out disabled", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		rdb = nil
	} else {
		transcripts = implementation.NewTranscriptRepository(rdb)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/chat.log")
	wsHub := websocket.NewHub(rdb, wsLogger)

	// 3. Embedding & Retrieval
	loader := embedding.NewOllamaLoader(
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.EmbeddingHalfTag,
		cfg.Ai.EmbeddingAccelerator,
		cfg.Timeouts.Embedding,
	)
	resolver := embedding.NewResolver(loader, embedding.Ladder{
		Preferred:   cfg.Ai.EmbeddingPrimaryModel,
		Medium:      cfg.Ai.EmbeddingMediumModel,
		Small:       cfg.Ai.EmbeddingSmallModel,
		QueryPrefix: cfg.Ai.EmbeddingQueryPrefix,
	}, sysLogger)

	knowledgeRepo := implementation.NewKnowledgeChunkRepository(db)
	rtv := retriever.New(resolver, knowledgeRepo, sysLogger, cfg.Timeouts.VectorStore, cfg.Timeouts.Embedding)

	// 4. Classification & Strategies
	var zeroShot classifier.ZeroShotModel
	if cfg.Ai.ZeroShotBaseURL != "" {
		zeroShot = classifier.NewHuggingFaceZeroShot(
			cfg.Ai.ZeroShotBaseURL,
			cfg.Ai.ZeroShotModel,
			cfg.Ai.ZeroShotKey,
			cfg.Timeouts.ZeroShot,
		)
	}
	cls := classifier.New(zeroShot, cfg.Ai.ZeroShotThreshold, sysLogger, classifier.WithTimeout(cfg.Timeouts.ZeroShot))

	strategies, err := strategy.NewDefaultTable(cls)
	if err != nil {
		log.Fatalf("[FATAL] Invalid strategy table: %v", err)
	}

	// 5. Generation
	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  llmBaseURL(cfg),
		APIKey:   cfg.Ai.HuggingFaceKey,
		Timeout:  cfg.Timeouts.Generation,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	// 6. Sessions & Orchestration
	sessionRepo := memory.NewSessionRepository()
	profiles := profile.NewClient(cfg.Profile.BaseURL, cfg.Timeouts.Profile, cfg.Profile.CacheTTL, sysLogger)

	publisherService := service.NewPublisherService(cfg.App.TurnTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.TurnTopic,
		transcripts,
		eventBus,
		wsHub,
		sysLogger,
	)

	orchestrator := agent.NewOrchestrator(
		cls,
		strategies,
		rtv,
		llmProvider,
		profiles,
		sessionRepo,
		publisherService,
		sysLogger,
		agent.Config{
			CompanyName:       cfg.Agent.CompanyName,
			Language:          cfg.Agent.Language,
			MaxSentences:      cfg.Agent.MaxSentences,
			TopK:              cfg.Agent.TopK,
			GenerationTimeout: cfg.Timeouts.Generation,
		},
	)

	agentService := service.NewAgentService(service.AgentServiceDeps{
		Conversation: orchestrator,
		Classifier:   cls,
		Retriever:    rtv,
		Embedding:    resolver,
		Sessions:     orchestrator,
		Transcripts:  transcripts,
		Mailer:       emailService,
		CompanyName:  cfg.Agent.CompanyName,
		TopK:         cfg.Agent.TopK,
	}, sysLogger)

	c := &Container{
		Logger:          sysLogger,
		AgentController: controller.NewAgentController(agentService),
		ChatHandler:     handler.NewChatHandler(orchestrator, wsHub, cfg.App.JwtSecret, cfg.Timeouts.TurnBudget(), wsLogger),
		Orchestrator:    orchestrator,
		Resolver:        resolver,
		ConsumerService: consumerService,
		WebSocketHub:    wsHub,
	}
	if natsPub != nil {
		c.closers = append(c.closers, natsPub.Close)
	}
	if rdb != nil {
		c.closers = append(c.closers, func() { rdb.Close() })
	}
	c.closers = append(c.closers, func() { pubSub.Close() })
	return c
}

func llmBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMBaseURL != "" {
		return cfg.Ai.LLMBaseURL
	}
	if cfg.Ai.LLMProvider == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return ""
}

// Close releases the connections opened by NewContainer.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
