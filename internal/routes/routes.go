package routes

import (
	"context"
	"net/http"

	"calendar-sync-api/internal/handlers"
	"calendar-sync-api/internal/middleware"
	"calendar-sync-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Options tunes route behavior.
type Options struct {
	// ServerPush sends CRUD changes to every realtime connection of the account.
	ServerPush bool
	// Context bounds background maintenance started by the routes. When nil
	// nothing is started.
	Context context.Context
}

func SetupRoutes(relay *realtime.Relay, opts Options) *gin.Engine {
	ginRouter := gin.Default()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	ws := handlers.WebSocketHandler(relay)
	health := healthHandler(relay.Registry())

	// Clients may open the socket on the root path as well as on /ws
	ginRouter.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			ws(c)
			return
		}
		health(c)
	})
	ginRouter.GET("/health", health)
	ginRouter.GET("/ws", ws)

	api := ginRouter.Group("/api")

	// Public routes
	users := api.Group("/users")
	{
		users.POST("/register", handlers.Register)
		users.POST("/login", handlers.Login)
	}

	// Protected routes
	eventHandler := handlers.NewEventHandler(relay, opts.ServerPush)
	if opts.Context != nil {
		go eventHandler.PurgeOwners(opts.Context, handlers.OwnershipPurgeInterval)
	}
	events := api.Group("/events")
	events.Use(middleware.JWTAuthMiddleware())
	{
		events.GET("", eventHandler.GetEvents)
		events.POST("", eventHandler.CreateEvent)
		events.GET("/calendars", eventHandler.GetCalendars)
		events.GET("/export.ics", eventHandler.ExportICS)
		events.GET("/occurrences", eventHandler.GetOccurrences)
		events.PUT("/:id", eventHandler.UpdateEvent)
		events.DELETE("/:id", eventHandler.DeleteEvent)
	}

	return ginRouter
}

func healthHandler(registry *realtime.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		identities, connections := registry.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"realtime": gin.H{
				"identities":  identities,
				"connections": connections,
			},
		})
	}
}
