package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/enzo-prism/ship-api/internal/allowlist"
	"github.com/enzo-prism/ship-api/internal/config"
	"github.com/enzo-prism/ship-api/internal/gateway"
	"github.com/enzo-prism/ship-api/internal/server"
	"github.com/enzo-prism/ship-api/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the commit feed HTTP server",
	Long: `Serves GET /api/commits: paginated commit activity across the
allow-listed repositories with per-day rollups. An upstream credential is
read from GITHUB_TOKEN (or SHIP_GITHUB_TOKEN, GH_TOKEN); without one the
server still works, under stricter upstream rate limits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		token := config.GitHubToken()

		githubGateway, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			return fmt.Errorf("failed to create GitHub gateway: %w", err)
		}
		directory := allowlist.Default()
		aggregator := usecase.NewAggregator(githubGateway, directory, token != "", logger)

		gin.SetMode(cfg.GinMode)
		srv := &http.Server{
			Addr:    cfg.Addr(),
			Handler: server.NewRouter(aggregator, logger),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", cfg.Addr(), "authenticated", token != "", "repos", len(directory.Repos()))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
