package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/application/usecase"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/monitoring"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/ratelimit"
	"github.com/KH-Pua/ai-chatbot/internal/interfaces/http/handlers"
)

// Server is the REST, SSE and websocket front of the support backend.
type Server struct {
	server *http.Server
	router *gin.Engine
	logger *zap.Logger
}

type Config struct {
	Host        string
	Port        int
	Mode        string // debug, release, test
	CORSOrigins []string
}

// Deps are the application services the routes call into. WebSocket may
// be nil to disable /ws.
type Deps struct {
	ChatTurn      handlers.ChatRunner
	Support       *usecase.SupportUseCase
	Conversations *usecase.ConversationUseCase
	Dashboard     *usecase.DashboardUseCase
	Knowledge     handlers.KnowledgeBase
	Suggestions   handlers.Suggestions
	Tools         handlers.ToolLister
	Providers     handlers.ProviderLister
	Gate          *ratelimit.Gate
	Monitor       *monitoring.Monitor
	WebSocket     http.Handler
}

func NewServer(cfg Config, deps Deps, logger *zap.Logger) *Server {
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))
	router.Use(cors(cfg.CORSOrigins))

	setupRoutes(router, deps, logger)

	return &Server{
		server: &http.Server{
			Addr:              addr(cfg),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		router: router,
		logger: logger.With(zap.String("component", "http")),
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func setupRoutes(router *gin.Engine, deps Deps, logger *zap.Logger) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	if deps.Monitor != nil {
		router.GET("/metrics", gin.WrapH(deps.Monitor.PrometheusHandler()))
	}
	if deps.WebSocket != nil {
		router.GET("/ws", gin.WrapH(deps.WebSocket))
	}

	var streams handlers.StreamObserver
	if deps.Monitor != nil {
		streams = deps.Monitor
	}

	v1 := router.Group("/api/v1")
	{
		chat := handlers.NewChatHandler(deps.ChatTurn, deps.Gate, deps.Suggestions, deps.Tools, streams, logger)
		v1.POST("/chat", chat.Chat)
		v1.GET("/chat/suggestions", chat.GetSuggestions)
		v1.GET("/chat/tools", chat.GetTools)

		convs := handlers.NewConversationHandler(deps.Conversations, logger)
		v1.GET("/conversations", convs.ListConversations)
		v1.GET("/conversations/:id/messages", convs.GetMessages)
		v1.GET("/conversations/:id/transcript", convs.GetTranscript)
		v1.PATCH("/conversations/:id/status", convs.UpdateStatus)

		support := handlers.NewSupportHandler(deps.Support, logger)
		v1.GET("/tickets", support.ListTickets)
		v1.POST("/tickets", support.CreateTicket)
		v1.GET("/tickets/:id", support.GetTicket)
		v1.PATCH("/tickets/:id", support.UpdateTicket)
		v1.GET("/orders", support.ListOrders)
		v1.POST("/feedback", support.SubmitFeedback)

		analytics := handlers.NewAnalyticsHandler(deps.Dashboard, logger)
		v1.GET("/analytics", analytics.GetStats)
		v1.GET("/analytics/metrics/:metric", analytics.GetMetric)

		kb := handlers.NewKnowledgeHandler(deps.Knowledge, logger)
		v1.GET("/knowledge/search", kb.Search)
		v1.POST("/knowledge", kb.Add)

		if deps.Monitor != nil {
			debug := handlers.NewDebugHandler(deps.Monitor, deps.Providers, logger)
			v1.GET("/providers", debug.GetProviders)
			v1.GET("/debug/metrics", debug.GetMetrics)
			v1.GET("/debug/dashboard", debug.GetDashboard)
			v1.GET("/debug/runtime", debug.GetRuntime)
		}
	}
}
