package main

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

	"github.com/quidome/carvtrainer-go/pkg/analysis"
	"github.com/quidome/carvtrainer-go/pkg/config"
	"github.com/quidome/carvtrainer-go/pkg/logger"
	"github.com/quidome/carvtrainer-go/pkg/server"
)

const shutdownTimeout = 10 * time.Second

// keylessModel stands in when the selected provider has no key, so the API still starts
// and reports the problem per request.
type keylessModel struct{}

func (keylessModel) Generate(context.Context, analysis.Request) (string, error) {
	return "", analysis.ErrMissingAPIKey
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP API",
		Long:  "Serve /health, /extract-metadata, /analyze and /generate-plan until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{EnvFile: opts.envFile, ConfigFile: opts.configFile})
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level := cfg.Log.Level
			if opts.verbose {
				level = "debug"
			}
			log, err := logger.NewSugared(level)
			if err != nil {
				return err
			}
			defer log.Sync()

			if level == "debug" {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			model, err := analysis.NewModel(cfg.Model)
			switch {
			case errors.Is(err, analysis.ErrMissingAPIKey):
				model = keylessModel{}
			case err != nil:
				return fmt.Errorf("create model client: %w", err)
			}
			if cfg.Model.APIKey() == "" {
				log.Warnf("No API key configured for provider %s; analysis requests will fail until one is set", cfg.Model.Provider)
			}

			analyzer := analysis.NewAnalyzer(model, cfg.Model.MaxTokens, log.Desugar())
			srv := server.New(cfg, analyzer, log.Desugar())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Infof("Starting server on %s", cfg.Server.Addr())
				if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("Shutting down gracefully...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Errorf("Server forced to shutdown: %v", err)
				return err
			}

			log.Info("Server exited")
			return nil
		},
	}
}
