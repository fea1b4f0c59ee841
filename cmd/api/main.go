package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/anime-shed/ingrediscan-go/internal/config"
	"github.com/anime-shed/ingrediscan-go/internal/container"
	"github.com/anime-shed/ingrediscan-go/internal/logger"
	"github.com/anime-shed/ingrediscan-go/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)

	// Initialize dependency injection container
	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Wait for interrupt signal to gracefully shutdown the server
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, c.Handler()); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}
