package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"notebook-backend/internal/config"
	"notebook-backend/internal/handler"
	"notebook-backend/internal/model"
	"notebook-backend/internal/service"
	"notebook-backend/internal/storage"
	"notebook-backend/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Init logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	chatModel, err := model.NewChatModel(context.Background(), cfg.LLM)
	if err != nil {
		logger.Fatalf("Failed to init chat model: %v", err)
	}

	// Services
	notebooks := service.NewNotebookService(store)
	chatService := service.NewChatService(chatModel, notebooks, cfg.Generation)
	presentations := service.NewPresentationService(chatModel, notebooks, store, cfg.Generation)

	router := setupRouter(cfg,
		handler.NewChatHandler(chatService, cfg.Server),
		handler.NewNotebookHandler(notebooks),
		handler.NewPresentationHandler(presentations, cfg.Player, cfg.CORS.AllowedOrigins),
	)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("Server listening on port %d (llm=%s, storage=%s)", cfg.Server.Port, cfg.LLM.Provider, cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for a signal, then shut down gracefully
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	if err := store.Backup(); err != nil {
		logger.Warnf("Backup on shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}

type routes interface {
	Register(api *gin.RouterGroup)
}

func setupRouter(cfg *config.Config, handlers ...routes) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	for _, h := range handlers {
		h.Register(api)
	}
	return router
}
