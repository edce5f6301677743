package routes

import (
	"net/http"
	"strings"
	"time"

	"picfeed/config"
	"picfeed/handlers"
	"picfeed/middleware"
	"picfeed/storage"
	"picfeed/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// maxUploadBody leaves room for the other form fields next to the image.
const maxUploadBody = storage.MaxImageSize + 1<<20

func SetupRouter(cfg *config.Config, wsManager *websocket.Manager) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
			"ws":     wsManager != nil,
		})
	}
	router.GET("/health", health)
	router.GET("/api/health", health)

	// Public auth routes, rate limited per client IP
	limiter := middleware.NewIPRateLimiter(cfg.AuthRateLimit, time.Minute)
	auth := router.Group("/api/auth")
	auth.POST("/signup", middleware.RateLimitMiddleware(limiter), handlers.Signup)
	auth.POST("/login", middleware.RateLimitMiddleware(limiter), handlers.Login)
	auth.GET("/me", middleware.JWTAuthMiddleware(), handlers.Me)

	router.GET("/api/push/vapid-public-key", handlers.GetVapidPublicKey)

	// Protected routes group
	protected := router.Group("/api")
	protected.Use(middleware.JWTAuthMiddleware())

	protected.GET("/posts", handlers.GetPosts)
	protected.POST("/posts", middleware.MaxBodySize(maxUploadBody), handlers.CreatePost)
	protected.POST("/posts/:id/like", handlers.LikePost)
	protected.POST("/posts/:id/comment", handlers.AddComment)

	protected.POST("/push/subscribe", handlers.SubscribePush)

	router.Static(storage.PublicPath, cfg.UploadDir)

	if wsManager != nil {
		router.GET("/ws", middleware.JWTAuthMiddleware(), func(c *gin.Context) {
			websocket.ServeWS(wsManager, c.Writer, c.Request, c.GetString("userId"))
		})
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Endpoint not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return router
}
