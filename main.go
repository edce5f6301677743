package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"picfeed/config"
	"picfeed/database"
	"picfeed/handlers"
	"picfeed/middleware"
	"picfeed/routes"
	"picfeed/storage"
	"picfeed/websocket"

	"github.com/gin-gonic/gin"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "vapid-keys":
			runVAPIDKeys()
			return
		case "dump":
			runDump()
			return
		case "latest":
			runLatest()
			return
		case "cleanup-posts":
			runCleanupPosts()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func startServer() {
	log.Println("🚀 Starting picfeed server...")

	cfg := mustLoadConfig()
	mustConnect(cfg)
	defer func() {
		if err := database.DisconnectMongo(); err != nil {
			log.Println("❌ MongoDB disconnect:", err)
		}
	}()

	middleware.SetJWTSecret(cfg.JWTSecret)

	// ===== GIN MODE =====
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
		log.Println("⚙️ Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("⚙️ Running in DEBUG mode")
	}

	// ===== IMAGE STORAGE =====
	if cfg.CloudinaryURL != "" {
		store, err := storage.NewCloudinaryStore(cfg.CloudinaryURL, "picfeed")
		if err != nil {
			log.Fatal("❌ Cloudinary setup failed:", err)
		}
		handlers.SetImageStore(store)
		log.Println("🖼️ Images are stored on Cloudinary")
	} else {
		store, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			log.Fatal("❌ Upload directory setup failed:", err)
		}
		handlers.SetImageStore(store)
		log.Printf("🖼️ Images are stored in %s", cfg.UploadDir)
	}

	// ===== PUSH =====
	if cfg.PushEnabled() {
		handlers.SetVAPIDKeys(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
		log.Println("🔔 Web push enabled")
	} else {
		log.Println("🔕 VAPID keys not set, web push disabled")
	}

	// ===== WEBSOCKET =====
	log.Println("🔌 Initializing WebSocket manager...")
	wsManager := websocket.NewManager()
	go wsManager.Start()
	defer wsManager.Stop()
	handlers.SetWebSocketManager(wsManager)

	// ===== ROUTER =====
	router := routes.SetupRouter(cfg, wsManager)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Server error:", err)
		}
	}()

	// ===== GRACEFUL SHUTDOWN =====
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("❌ Forced shutdown:", err)
	}

	log.Println("👋 Server stopped gracefully")
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ ", err)
	}
	return cfg
}

// mustConnect tries MongoDB three times, two seconds apart, then gives up.
func mustConnect(cfg *config.Config) {
	log.Println("🔌 Connecting to MongoDB...")

	var dbErr error
	for i := 1; i <= 3; i++ {
		if dbErr = database.ConnectMongo(cfg.MongoURI, cfg.MongoDatabase); dbErr == nil {
			break
		}
		log.Printf("❌ MongoDB connection attempt %d failed: %v", i, dbErr)
		if i < 3 {
			time.Sleep(2 * time.Second)
		}
	}
	if dbErr != nil {
		log.Fatal("❌ Failed to connect to MongoDB:", dbErr)
	}

	log.Println("✅ MongoDB connected successfully")
}
