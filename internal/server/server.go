package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filmbox/config"
	"filmbox/internal/handler"
	"filmbox/internal/middleware"
	"filmbox/internal/redis"
	"filmbox/internal/transport/httpdto"
	"filmbox/internal/websocket"
	"filmbox/pkg/database"
	"filmbox/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Upload *handler.UploadHandler
	Video  *handler.VideoHandler
	WS     *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	limited := middleware.UploadRateLimitMiddleware(limiter)

	films := s.engine.Group("/v1/films")
	{
		films.POST("/:id/upload", limited, handlers.Upload.Start)
		films.POST("/:id/upload/pause", limited, handlers.Upload.Pause)
		films.POST("/:id/upload/resume", limited, handlers.Upload.Resume)
		films.POST("/:id/upload/retry", limited, handlers.Upload.Retry)
		films.DELETE("/:id/upload", limited, handlers.Upload.Cancel)
		films.GET("/:id/upload", handlers.Upload.Status)
		films.GET("/:id/upload/live", handlers.Upload.Live)

		films.GET("/:id/video", handlers.Video.ResolveFilm)
		films.POST("/:id/video-link", limited, handlers.Video.SetManualLink)
	}

	s.engine.GET("/v1/resolve", handlers.Video.Resolve)
	s.engine.POST("/v1/resolve", handlers.Video.Resolve)
	s.engine.GET("/v1/files/:id/playable", handlers.Video.Playable)

	s.engine.GET("/ws", handlers.WS.Connect)
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
