package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fileflow/fileflow-server/internal/auth"
	"github.com/fileflow/fileflow-server/internal/config"
	"github.com/fileflow/fileflow-server/internal/core"
	"github.com/fileflow/fileflow-server/internal/service/files"
	"github.com/fileflow/fileflow-server/internal/service/friends"
	"github.com/fileflow/fileflow-server/internal/store"
)

// ServerVersion is reported by /api/info.
const ServerVersion = "1.0.0"

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Engine        *core.Engine
	AuthService   *auth.Service
	FriendService *friends.Service
	FileService   *files.Service
	Store         store.Store
	Config        config.Config
	Log           *zerolog.Logger
}

// NewServer builds the HTTP server with REST routes and the WebSocket
// endpoint.
func NewServer(deps Deps) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(deps.Log))

	authHandlers := NewAuthHandlers(deps.AuthService, deps.Store, deps.Log)
	userHandlers := NewUserHandlers(deps.Store, deps.Log)
	friendsHandlers := NewFriendsHandlers(deps.FriendService, deps.Log)
	roomHandlers := NewRoomHandlers(deps.Store, deps.FileService, deps.Log)
	fileHandlers := NewFileHandlers(deps.FileService, deps.Store, deps.Log)

	router.GET("/health", func(c *gin.Context) {
		if err := deps.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(stdhttp.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/info", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{
			"name":    "fileflow-server",
			"version": ServerVersion,
		})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/register", authHandlers.Register)
		api.POST("/auth/login", authHandlers.Login)
	}

	authorized := router.Group("/api")
	authorized.Use(AuthMiddleware(deps.AuthService, deps.Log))
	{
		authorized.POST("/auth/logout", authHandlers.Logout)
		authorized.GET("/auth/profile", authHandlers.Profile)
		authorized.PUT("/auth/profile", authHandlers.UpdateProfile)

		authorized.GET("/users/search", userHandlers.Search)
		authorized.GET("/users/online", userHandlers.ListOnline)

		authorized.GET("/notifications", userHandlers.ListNotifications)
		authorized.POST("/notifications/:notificationId/read", userHandlers.MarkNotificationRead)

		authorized.GET("/friends", friendsHandlers.ListFriends)
		authorized.POST("/friends/requests", friendsHandlers.SendRequest)
		authorized.GET("/friends/requests", friendsHandlers.ListPendingRequests)
		authorized.POST("/friends/requests/:requestId/accept", friendsHandlers.AcceptRequest)
		authorized.DELETE("/friends/requests/:requestId", friendsHandlers.RejectRequest)

		authorized.POST("/rooms", roomHandlers.Create)
		authorized.GET("/rooms", roomHandlers.List)
		authorized.GET("/rooms/:roomId", roomHandlers.Get)
		authorized.GET("/rooms/:roomId/members", roomHandlers.ListMembers)
		authorized.POST("/rooms/:roomId/invite", roomHandlers.Invite)
		authorized.DELETE("/rooms/:roomId/members/me", roomHandlers.Leave)
		authorized.GET("/rooms/:roomId/messages", roomHandlers.ListMessages)
		authorized.GET("/rooms/:roomId/files", roomHandlers.ListFiles)

		authorized.POST("/files", fileHandlers.Upload)
		authorized.GET("/files", fileHandlers.List)
		authorized.GET("/files/:fileId/download", fileHandlers.Download)
		authorized.DELETE("/files/:fileId", fileHandlers.Delete)
	}

	// The websocket upgrade hijacks the connection, which gin's buffered
	// response writer cannot do. /ws is served on a plain mux in front of
	// the router.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Engine, deps.AuthService, deps.Config.WSMessageLimit, deps.Log))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              deps.Config.Addr,
		Handler:           mux,
		ReadHeaderTimeout: deps.Config.ReadHeaderTimeout,
	}
}
