// Package server exposes screenshot analysis, training plans and timestamp extraction over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quidome/carvtrainer-go/pkg/config"
)

type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, analyzer Analyzer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog(log))
	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(corsMiddleware(cfg.Server.CORSOrigins))
	}

	h := NewHandler(analyzer, cfg, log)

	router.GET("/health", h.HealthCheck)
	router.POST("/extract-metadata", h.ExtractMetadata)
	router.POST("/analyze", h.Analyze)
	router.POST("/generate-plan", h.GeneratePlan)

	server := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Minute,
			// Model calls can take minutes; the write deadline has to outlive them.
			WriteTimeout:   cfg.Model.Timeout + 30*time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		router: router,
		cfg:    cfg,
		log:    log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.Strings("cors_origins", cfg.Server.CORSOrigins))

	return server
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("address", s.httpServer.Addr),
		zap.String("model_provider", s.cfg.Model.Provider),
		zap.Bool("api_key_configured", s.cfg.Model.APIKey() != ""))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
