package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kischat/internal/config"
	"kischat/internal/logger"
	"kischat/internal/metrics"
	"kischat/internal/server"
	"kischat/internal/settings"
	"kischat/pkg/agent"
	"kischat/pkg/mcp"
	"kischat/pkg/session"
)

const mcpConnectTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat backend server",
	Long: `Start the HTTP server in the foreground. Connects to the KIS MCP
tool server, then serves the chat, session and settings endpoints until
interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()

	store := settings.New(cfg.SettingsFile, settings.Settings{
		TradingMode:     settings.ModeDemo,
		ClaudeModel:     cfg.Claude.Model,
		ClaudeMaxTokens: cfg.Claude.MaxTokens,
	}, cfg.HasLiveCredentials, zl)

	sessions := session.NewStore()

	gateway := mcp.NewGateway(cfg.MCP.Command, cfg.MCP.Args, store, zl)
	connectCtx, cancel := context.WithTimeout(context.Background(), mcpConnectTimeout)
	if err := gateway.Connect(connectCtx); err != nil {
		// The server still answers chats without tools; /health reports degraded.
		zl.Warn().Err(err).Str("command", cfg.MCP.Command).
			Msg("MCP server unavailable, starting without tools")
	}
	cancel()

	loop := agent.NewLoop(agent.NewClaudeStreamer(cfg.AnthropicAPIKey), gateway, store, zl)

	srv, err := server.NewServer(server.Options{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, store, gateway, loop, sessions, metrics.NewMetrics(), zl)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		gateway.Disconnect()
		return err
	case sig := <-sigCh:
		zl.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	if err := srv.Stop(); err != nil {
		zl.Error().Err(err).Msg("Server shutdown failed")
	}
	gateway.Disconnect()
	return nil
}
