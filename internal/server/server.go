// Package server expone el panel de revisión por HTTP
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/PhelGc/furina-review/internal/review"
)

const requestIDHeader = "X-Request-ID"

// Pinger comprobación de salud del almacén
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server servidor HTTP del panel de revisión
type Server struct {
	controller *review.Controller
	pinger     Pinger
	logger     *zap.Logger
	router     *gin.Engine
}

// NewServer crea el servidor y registra las rutas
func NewServer(controller *review.Controller, pinger Pinger, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		controller: controller,
		pinger:     pinger,
		logger:     logger,
		router:     router,
	}
	router.Use(s.requestLogger)

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	evaluations := router.Group("/evaluations")
	{
		evaluations.GET("", s.handleListEvaluations)
		evaluations.GET("/pending", s.handleListPending)
		evaluations.GET("/stats", s.handleStats)
		evaluations.GET("/:identifier", s.handleGetEvaluation)
	}
	router.POST("/feedback", s.handleDispatch)

	return s
}

// Handler devuelve el router; usado por los tests y por Run
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run sirve en addr hasta que ctx se cancela y luego cierra ordenadamente
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Servidor HTTP escuchando", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Deteniendo servidor HTTP")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger asigna un X-Request-ID y registra cada petición
func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)
	c.Set("request_id", requestID)

	c.Next()

	s.logger.Debug("Petición HTTP",
		zap.String("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("duration", time.Since(start)),
	)
}
