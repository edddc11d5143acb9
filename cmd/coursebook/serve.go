package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"frameworks/coursebook/internal/chat"
	appconfig "frameworks/coursebook/internal/config"
	"frameworks/coursebook/internal/mcpspoke"
	"frameworks/coursebook/pkg/middleware"
	"frameworks/coursebook/pkg/monitoring"
	"frameworks/coursebook/pkg/server"
	"frameworks/coursebook/pkg/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	logger := newLogger()
	logger.WithField("version", version.Version).Info("Starting coursebook")

	cfg := appconfig.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.IngestOnStart && cfg.DocsDir != "" {
		courses, chunks, err := a.service.AddCourseFolder(ctx, cfg.DocsDir, false)
		if err != nil {
			logger.WithError(err).WithField("dir", cfg.DocsDir).Warn("Startup ingestion failed")
		} else {
			logger.WithField("courses", courses).WithField("chunks", chunks).Info("Loaded course documents")
		}
	}

	metricsCollector := monitoring.NewMetricsCollector("coursebook", version.Version, version.GitCommit)
	router := server.SetupServiceRouter(logger, "coursebook", a.health, metricsCollector)

	chatHandler := chat.NewChatHandler(a.service, logger)
	router.GET("/", chatHandler.HandleRoot)
	apiGroup := router.Group("")
	apiGroup.Use(middleware.TimeoutMiddleware(cfg.QueryTimeout))
	chat.RegisterRoutes(apiGroup, chatHandler)

	mcpServer := mcpspoke.NewServer(mcpspoke.Config{
		Registry: a.registry,
		Asker:    a.service,
		Logger:   logger,
	})
	router.Any("/mcp/*path", gin.WrapH(mcpspoke.NewHandler(mcpServer)))

	serverConfig := server.DefaultConfig("coursebook", cfg.Port)
	return server.Start(ctx, serverConfig, router, logger)
}
