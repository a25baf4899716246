package router

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/vorbi/internal/config"
	"github.com/mbeoliero/vorbi/internal/gateway"
	"github.com/mbeoliero/vorbi/internal/handler"
	"github.com/mbeoliero/vorbi/internal/middleware"
)

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, handlers *Handlers, wsServer *gateway.WsServer) {
	cfg := config.GlobalConfig

	// CORS middleware
	h.Use(middleware.CORS())

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	// Message routes (auth required)
	msgGroup := h.Group("/msg", middleware.JWTAuth())
	{
		msgGroup.POST("/send", handlers.Message.SendMessage)
		msgGroup.GET("/pull", handlers.Message.PullMessages)
		msgGroup.GET("/newest_seq", handlers.Message.GetNewestSeq)
	}

	// Conversation routes (auth required)
	convGroup := h.Group("/conversation", middleware.JWTAuth())
	{
		convGroup.GET("/list", handlers.Conversation.ListConversations)
		convGroup.GET("/info", handlers.Conversation.GetConversation)
		convGroup.GET("/counterpart", handlers.Conversation.GetCounterpart)
		convGroup.POST("/mark_read", handlers.Conversation.MarkRead)
	}

	// Presence routes (auth required)
	presenceGroup := h.Group("/presence", middleware.JWTAuth())
	{
		presenceGroup.POST("/heartbeat", handlers.Presence.Heartbeat)
		presenceGroup.POST("/typing", handlers.Presence.SetTyping)
		presenceGroup.POST("/leave", handlers.Presence.Leave)
		presenceGroup.GET("/info", handlers.Presence.GetPresence)
	}

	// WebSocket route using hertz-contrib/websocket with proper origin validation
	allowedOrigins := cfg.Server.AllowedOrigins
	upgrader := &websocket.HertzUpgrader{
		CheckOrigin: func(ctx *app.RequestContext) bool {
			return checkOrigin(ctx, allowedOrigins)
		},
	}

	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		wsServer.HandleHertzConnection(ctx, c, upgrader)
	})
}

// checkOrigin validates the Origin header against allowed origins
func checkOrigin(ctx *app.RequestContext, allowedOrigins []string) bool {
	origin := string(ctx.Request.Header.Peek("Origin"))

	// If no origin header, allow (same-origin request or non-browser client)
	if origin == "" {
		return true
	}

	// If no allowed origins configured, reject all cross-origin requests in production
	if len(allowedOrigins) == 0 {
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			// Wildcard - allow all (only use in development!)
			return true
		}
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}

	return false
}

// Handlers holds all HTTP handlers
type Handlers struct {
	Message      *handler.MessageHandler
	Conversation *handler.ConversationHandler
	Presence     *handler.PresenceHandler
}
