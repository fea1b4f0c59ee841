package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/anime-shed/ingrediscan-go/internal/container"
	"github.com/anime-shed/ingrediscan-go/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes the analysis pipeline over HTTP:

  POST /api/v1/analyze   {"image_base64": "...", "image_type": "image/jpeg"}
  GET  /health
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("host", "", "Listen host (overrides HOST)")
	cmd.Flags().String("port", "", "Listen port (overrides PORT)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Host = host
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	gin.SetMode(gin.ReleaseMode)

	c, err := container.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, cfg, c.Handler())
}
