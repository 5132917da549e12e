package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/micronest/micronest-api/internal/api"
	"github.com/micronest/micronest-api/internal/auth"
	"github.com/micronest/micronest-api/internal/config"
)

const requestIDHeader = "X-Request-ID"

type Server struct {
	config         *config.AppConfig
	log            *zap.Logger
	engine         *gin.Engine
	httpServer     *http.Server
	authHandler    *auth.Handler
	authMiddleware *auth.AuthMiddleware
}

type Params struct {
	fx.In

	Config         *config.AppConfig
	Logger         *zap.Logger
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.AuthMiddleware
}

func NewServer(p Params) *Server {
	if os.Getenv("APP_ENV") == EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	api.RegisterValidation()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(requestLogger(p.Logger), recovery(p.Logger))

	engine.NoRoute(func(c *gin.Context) {
		api.Error(c, http.StatusNotFound, "Endpoint not found")
	})
	engine.NoMethod(func(c *gin.Context) {
		api.Error(c, http.StatusMethodNotAllowed, "Method not allowed")
	})
	engine.GET(api.Health, func(c *gin.Context) {
		api.Success(c, http.StatusOK, "MicroNest API is running", gin.H{"status": "ok"})
	})

	p.AuthHandler.RegisterRoutes(engine, p.AuthMiddleware.RequireAccessToken())

	addr := net.JoinHostPort(p.Config.Server.Host, p.Config.Server.Port)
	return &Server{
		config: p.Config,
		log:    p.Logger,
		engine: engine,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  p.Config.HTTP.ReadTimeout,
			WriteTimeout: p.Config.HTTP.WriteTimeout,
			IdleTimeout:  p.Config.HTTP.IdleTimeout,
		},
		authHandler:    p.AuthHandler,
		authMiddleware: p.AuthMiddleware,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.log.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr),
		zap.Object("config", serverConfigToField(s.config)),
	)

	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", os.Getenv("APP_ENV"))
		enc.AddDuration("read_timeout", config.HTTP.ReadTimeout)
		enc.AddDuration("write_timeout", config.HTTP.WriteTimeout)
		enc.AddDuration("access_token_ttl", config.Auth.AccessTokenDuration)
		enc.AddDuration("refresh_token_ttl", config.Auth.RefreshTokenDuration)
		enc.AddBool("smtp_enabled", config.Email.SMTPHost != "")
		return nil
	})
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if timeout := s.config.HTTP.ShutdownTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

func recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("panic recovered",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))
		api.Error(c, http.StatusInternalServerError, "Internal server error")
	})
}
