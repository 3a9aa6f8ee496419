package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"clarvis-be/internal/config"
	"clarvis-be/internal/controller"
	"clarvis-be/internal/handler"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/internal/repository/implementation"
	"clarvis-be/internal/repository/memory"
	"clarvis-be/internal/repository/unitofwork"
	"clarvis-be/internal/service"
	"clarvis-be/internal/websocket"
	"clarvis-be/pkg/llm"
	"clarvis-be/pkg/llm/factory"
	"clarvis-be/pkg/llm/stub"
	pktNats "clarvis-be/pkg/nats"
	"clarvis-be/pkg/studymaterial"
	"clarvis-be/pkg/workflow"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const version = "1.0.0"

type Container struct {
	// Controllers
	ChatbotController       controller.IChatbotController
	StudyMaterialController controller.IStudyMaterialController
	HealthController        controller.IHealthController
	WatchHandler            *handler.WatchHandler

	// Background Services (Exposed for main.go to run)
	Engine          *workflow.Engine
	ConsumerService service.IConsumerService
	EventListener   *service.EventListenerService // nil without NATS
	WebSocketHub    *websocket.Hub

	Logger  logger.ILogger
	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	workflowLogger := logger.NewIsolatedLogger(filepath.Join(filepath.Dir(cfg.App.LogFilePath), "workflow.log"))
	c.closers = append(c.closers, func() { workflowLogger.Sync() })

	// 2. Optional infrastructure; each falls back to an in-process variant
	rdb := connectRedis(cfg.App.RedisURL, sysLogger)
	if rdb != nil {
		c.closers = append(c.closers, func() { rdb.Close() })
	}
	var lease workflow.Lease = workflow.NewMemoryLease()
	if rdb != nil {
		lease = workflow.NewRedisLease(rdb)
	}

	var eventPublisher service.EventPublisher = service.NopEventPublisher{}
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "NATS publisher unavailable, events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			eventPublisher = pub
			c.closers = append(c.closers, pub.Close)
		}
		sub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "NATS subscriber unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			c.EventListener = service.NewEventListenerService(sub, sysLogger)
			c.closers = append(c.closers, sub.Close)
		}
	}

	// 3. Model capability
	provider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.OllamaBaseURL, cfg.Ai.HuggingFaceAPIKey)
	if err != nil {
		return nil, err
	}
	sysLogger.Info("BOOTSTRAP", "Model capability selected", map[string]interface{}{
		"provider":  cfg.Ai.LLMProvider,
		"model":     cfg.Ai.LLMModel,
		"available": !stub.IsStub(provider),
	})

	// 4. Workflow engine
	pipeline := studymaterial.NewPipeline(
		studymaterial.NewGenerator(provider, !stub.IsStub(provider)),
		service.NewStudyMaterialRecorder(uowFactory),
		workflowLogger,
	)
	definition := pipeline.Definition()

	c.WebSocketHub = websocket.NewHub(rdb, sysLogger)
	c.Engine = workflow.NewEngine(
		implementation.NewWorkflowRunRepository(db),
		workflowLogger,
		workflow.WithLease(lease, cfg.Workflow.LeaseTTL),
		workflow.WithListener(service.NewRunEventNotifier(eventPublisher, sysLogger)),
		workflow.WithListener(service.NewRunProgressNotifier(c.WebSocketHub, definition.Labels(), sysLogger)),
	)
	if err := c.Engine.Register(definition); err != nil {
		return nil, fmt.Errorf("register study material workflow: %w", err)
	}

	// 5. Dispatch queue
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(cfg.Workflow.Workers)},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { pubSub.Close() })
	dispatcher := service.NewRunDispatcher(pubSub, cfg.Workflow.TopicName)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Workflow.TopicName, c.Engine, cfg.Workflow.Workers, sysLogger)

	// 6. Services
	prompt := cfg.App.AgentPrompt
	if prompt == "" {
		prompt = service.DefaultAgentPrompt
	}
	responder := service.NewChatResponder(provider, prompt,
		llm.WithTemperature(cfg.Ai.Temperature),
		llm.WithMaxTokens(cfg.Ai.MaxTokens),
	)
	chatbotService := service.NewChatbotService(uowFactory, responder, memory.NewAgentStateCache(), sysLogger)
	studyMaterialService, err := service.NewStudyMaterialService(c.Engine, uowFactory, dispatcher, sysLogger)
	if err != nil {
		return nil, err
	}

	// 7. Controllers
	c.ChatbotController = controller.NewChatbotController(chatbotService, sysLogger)
	c.StudyMaterialController = controller.NewStudyMaterialController(studyMaterialService, sysLogger)
	c.HealthController = controller.NewHealthController(version)
	c.WatchHandler = handler.NewWatchHandler(c.Engine, c.WebSocketHub, definition.Labels(), sysLogger)

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func connectRedis(url string, log logger.ILogger) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("BOOTSTRAP", "Invalid REDIS_URL, using in-process leases", map[string]interface{}{"error": err.Error()})
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("BOOTSTRAP", "Redis unreachable, using in-process leases", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		return nil
	}
	return rdb
}
