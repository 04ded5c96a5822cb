package application

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KH-Pua/ai-chatbot/internal/application/usecase"
	"github.com/KH-Pua/ai-chatbot/internal/domain/service"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/config"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/embedding"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/eventbus"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/knowledge"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/llm"
	_ "github.com/KH-Pua/ai-chatbot/internal/infrastructure/llm/openai" // register openai provider factory
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/monitoring"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/persistence"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/prompt"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/ratelimit"
	toolpkg "github.com/KH-Pua/ai-chatbot/internal/infrastructure/tool"
	httpServer "github.com/KH-Pua/ai-chatbot/internal/interfaces/http"
	"github.com/KH-Pua/ai-chatbot/internal/interfaces/websocket"
	"github.com/KH-Pua/ai-chatbot/pkg/safego"
)

const collectorInterval = time.Minute

// App is the dependency injection container of the support server.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB
	repos  *persistence.Repositories

	// infrastructure
	bus           *eventbus.InMemoryBus
	monitor       *monitoring.Monitor
	knowledgeBase *knowledge.Base
	kbWatcher     *knowledge.Watcher
	llmRouter     *llm.Router
	toolRegistry  domaintool.Registry
	toolExecutor  *toolpkg.Executor
	chatLoop      *service.ChatLoop
	composer      *prompt.Composer
	redis         *redis.Client
	limiter       *ratelimit.Limiter
	sweeper       *ratelimit.Sweeper
	gate          *ratelimit.Gate

	// application services
	chatTurn      *usecase.ChatTurnUseCase
	support       *usecase.SupportUseCase
	conversations *usecase.ConversationUseCase
	dashboard     *usecase.DashboardUseCase

	// interfaces
	wsHub      *websocket.Hub
	httpServer *httpServer.Server

	cancel context.CancelFunc
}

// NewApp wires every component from cfg. Nothing is started until Start.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	if err := app.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := app.initInfrastructure(); err != nil {
		app.closeDB()
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}

	app.initApplicationServices()
	app.initInterfaces()

	if cfg.Database.SeedDemoData {
		if err := app.seedData(context.Background()); err != nil {
			app.closeDB()
			return nil, fmt.Errorf("failed to seed data: %w", err)
		}
	}

	return app, nil
}

func (app *App) initRepositories() error {
	db, err := persistence.NewDBConnection(&app.config.Database, app.logger)
	if err != nil {
		return err
	}
	app.db = db
	app.repos = persistence.NewGormRepositories(db)
	return nil
}

func (app *App) initInfrastructure() error {
	cfg := app.config
	ctx := context.Background()

	// events and metrics
	app.bus = eventbus.NewInMemoryBus(app.logger, cfg.Events.BufferSize)
	app.monitor = monitoring.NewMonitor(app.logger)
	monitoring.NewMetricsHook(app.monitor).Subscribe(app.bus)
	newAnalyticsBridge(app.repos.Analytics, app.logger).subscribe(app.bus)

	// knowledge base
	var embedder knowledge.Embedder
	if cfg.Embedding.Enabled && cfg.Embedding.APIKey != "" {
		embedder = embedding.NewOpenAIEmbedder(embedding.Config{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
			Timeout: cfg.Embedding.Timeout,
		}, app.logger)
	} else if cfg.Embedding.Enabled {
		app.logger.Warn("Embeddings enabled without an API key, using keyword search")
	}
	app.knowledgeBase = knowledge.NewBase(embedder, app.repos.Knowledge, app.logger)
	if err := app.knowledgeBase.Load(ctx); err != nil {
		return err
	}
	if cfg.Knowledge.File != "" {
		entries, err := knowledge.LoadFile(cfg.Knowledge.File)
		if err != nil {
			return err
		}
		app.knowledgeBase.Replace(entries)
		if cfg.Knowledge.Watch {
			w, err := knowledge.NewWatcher(cfg.Knowledge.File, app.knowledgeBase, app.logger)
			if err != nil {
				return err
			}
			app.kbWatcher = w
		}
	}

	// model providers
	app.llmRouter = llm.NewRouter(app.logger)
	app.llmRouter.SetObserver(app.monitor.ObserveProviderCall)
	for _, p := range cfg.LLM.Providers {
		provider, err := llm.CreateProvider(llm.ProviderConfig{
			Name:         p.Name,
			Type:         p.Type,
			BaseURL:      p.BaseURL,
			APIKey:       p.APIKey,
			Organization: p.Organization,
			Models:       p.Models,
			Timeout:      p.Timeout,
		}, app.logger)
		if err != nil {
			return fmt.Errorf("provider %s: %w", p.Name, err)
		}
		app.llmRouter.AddProvider(provider)
	}
	if len(cfg.LLM.Providers) == 0 {
		app.logger.Warn("No LLM provider configured, chat turns will fail")
	}

	// tools
	app.toolRegistry = domaintool.NewInMemoryRegistry()
	resultCache := toolpkg.NewResultCache(cfg.Tools.CacheTTL, cfg.Tools.CacheSize)
	if err := toolpkg.RegisterSupportTools(toolpkg.SupportToolDeps{
		Registry:      app.toolRegistry,
		Logger:        app.logger,
		Knowledge:     app.knowledgeBase,
		Tickets:       app.repos.Tickets,
		Orders:        app.repos.Orders,
		Conversations: app.repos.Conversations,
		Publisher:     app.bus,
		SearchCache:   resultCache,
	}); err != nil {
		return err
	}
	app.toolExecutor = toolpkg.NewExecutor(app.toolRegistry, app.logger,
		toolpkg.WithResultCache(resultCache),
		toolpkg.WithPublisher(app.bus),
		toolpkg.WithObserver(app.monitor.ObserveTool),
	)

	// chat loop and prompt
	loopCfg := service.DefaultChatLoopConfig()
	loopCfg.Model = cfg.LLM.DefaultModel
	if cfg.LLM.MaxTokens > 0 {
		loopCfg.MaxTokens = cfg.LLM.MaxTokens
	}
	loopCfg.Temperature = cfg.LLM.Temperature
	if cfg.LLM.MaxToolRoundTrips > 0 {
		loopCfg.MaxToolRoundTrips = cfg.LLM.MaxToolRoundTrips
	}
	if cfg.LLM.ToolTimeout > 0 {
		loopCfg.ToolTimeout = cfg.LLM.ToolTimeout
	}
	if cfg.LLM.CallTimeout > 0 {
		loopCfg.CallTimeout = cfg.LLM.CallTimeout
	}
	if cfg.LLM.MaxRetries > 0 {
		loopCfg.MaxRetries = cfg.LLM.MaxRetries
	}
	if cfg.LLM.RetryBaseWait > 0 {
		loopCfg.RetryBaseWait = cfg.LLM.RetryBaseWait
	}
	app.chatLoop = service.NewChatLoop(app.llmRouter, app.toolExecutor, loopCfg, app.logger)

	tmpl := prompt.DefaultTemplate()
	if cfg.Prompt.BaseFile != "" {
		t, err := prompt.LoadTemplateFile(cfg.Prompt.BaseFile)
		if err != nil {
			return err
		}
		tmpl = t
	}
	app.composer = prompt.NewComposer(tmpl)

	// rate limiting
	if cfg.RateLimit.Enabled {
		var store ratelimit.Store
		switch cfg.RateLimit.Store {
		case "redis":
			rdb, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			app.redis = rdb
			store = ratelimit.NewRedisStore(rdb, config.AppName+":ratelimit:")
		default:
			store = ratelimit.NewMemoryStore()
		}
		app.limiter = ratelimit.NewLimiter(store, ratelimit.Config{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		}, app.logger)

		if cfg.RateLimit.SweepSpec != "" {
			sweeper, err := ratelimit.NewSweeper(store, cfg.RateLimit.SweepSpec, app.logger)
			if err != nil {
				return err
			}
			app.sweeper = sweeper
		}
	}
	app.gate = ratelimit.NewGate(app.limiter, app.bus, app.logger)

	return nil
}

func (app *App) initApplicationServices() {
	app.chatTurn = usecase.NewChatTurnUseCase(
		app.repos.Conversations,
		app.repos.Messages,
		app.composer,
		app.chatLoop,
		service.NewTurnLocker(),
		app.bus,
		usecase.ChatTurnConfig{
			MaxHistory:         app.config.LLM.MaxHistory,
			ToolOutputMaxChars: app.config.LLM.ToolOutputMaxChars,
		},
		app.logger,
	)
	app.support = usecase.NewSupportUseCase(app.repos.Tickets, app.repos.Orders, app.repos.Feedback, app.bus, app.logger)
	app.conversations = usecase.NewConversationUseCase(app.repos.Conversations, app.repos.Messages, nil, app.logger)
	app.dashboard = usecase.NewDashboardUseCase(app.repos.Analytics, app.repos.Tickets, app.repos.Feedback)
}

func (app *App) initInterfaces() {
	srv := app.config.Server

	app.wsHub = websocket.NewHub(app.logger)
	ws := websocket.NewHandler(app.wsHub, app.chatTurn, app.gate, srv.CORSOrigins, app.logger)

	app.httpServer = httpServer.NewServer(httpServer.Config{
		Host:        srv.Host,
		Port:        srv.Port,
		Mode:        srv.Mode,
		CORSOrigins: srv.CORSOrigins,
	}, httpServer.Deps{
		ChatTurn:      app.chatTurn,
		Support:       app.support,
		Conversations: app.conversations,
		Dashboard:     app.dashboard,
		Knowledge:     app.knowledgeBase,
		Suggestions:   app.composer,
		Tools:         app.toolExecutor,
		Providers:     app.llmRouter,
		Gate:          app.gate,
		Monitor:       app.monitor,
		WebSocket:     ws,
	}, app.logger)
}

func (app *App) seedData(ctx context.Context) error {
	n, err := persistence.SeedDemoOrders(ctx, app.repos.Orders)
	if err != nil {
		return err
	}
	if n > 0 {
		app.logger.Info("Demo orders seeded",
			zap.Int("orders", n),
			zap.String("customer_email", persistence.DemoCustomerEmail),
		)
	}
	return nil
}

// Start launches the servers and background jobs.
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("Starting application")

	runCtx, cancel := context.WithCancel(ctx)
	app.cancel = cancel

	safego.Go(app.logger, "ws-hub", func() { app.wsHub.Run(runCtx) })
	safego.Go(app.logger, "metrics-collector", func() {
		app.monitor.StartCollector(runCtx, collectorInterval)
	})

	if app.kbWatcher != nil {
		if err := app.kbWatcher.Start(runCtx); err != nil {
			app.logger.Warn("Knowledge file watching disabled", zap.Error(err))
		}
	}
	if app.sweeper != nil {
		app.sweeper.Start()
	}

	if err := app.httpServer.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	app.logger.Info("Application started successfully",
		zap.String("address", app.config.Server.Addr()),
	)
	return nil
}

// Stop shuts everything down in reverse start order.
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application")

	if err := app.httpServer.Stop(ctx); err != nil {
		app.logger.Error("Failed to stop HTTP server", zap.Error(err))
	}
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.kbWatcher != nil {
		if err := app.kbWatcher.Close(); err != nil {
			app.logger.Warn("Failed to close knowledge watcher", zap.Error(err))
		}
	}
	if app.cancel != nil {
		app.cancel()
	}

	// drains queued analytics before the database goes away
	app.bus.Close()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	app.closeDB()

	app.logger.Info("Application stopped successfully")
	return nil
}

func (app *App) closeDB() {
	if app.db == nil {
		return
	}
	sqlDB, err := app.db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			app.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
}

// SeedDatabase opens the configured database, seeds the demo orders and
// the built-in knowledge articles, and closes it again.
func SeedDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (int, error) {
	db, err := persistence.NewDBConnection(&cfg.Database, logger)
	if err != nil {
		return 0, err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	repos := persistence.NewGormRepositories(db)
	n, err := persistence.SeedDemoOrders(ctx, repos.Orders)
	if err != nil {
		return 0, err
	}
	if err := knowledge.NewBase(nil, repos.Knowledge, logger).Load(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// Logger returns the application logger.
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// AppConfig returns the application config.
func (app *App) AppConfig() *config.Config {
	return app.config
}
