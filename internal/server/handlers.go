package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PhelGc/furina-review/internal/database"
	"github.com/PhelGc/furina-review/internal/evaluation"
	"github.com/PhelGc/furina-review/internal/review"
)

// listMeta metadatos de paginación del listado
type listMeta struct {
	Total    int `json:"total"`
	Limit    int `json:"limit"`
	Offset   int `json:"offset"`
	Returned int `json:"returned"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.pinger.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("Health check fallido", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListEvaluations GET /evaluations?feedback_sent=&status=&limit=&offset=
func (s *Server) handleListEvaluations(c *gin.Context) {
	s.listEvaluations(c, c.Query("feedback_sent"))
}

// handleListPending GET /evaluations/pending, atajo de feedback_sent=false
func (s *Server) handleListPending(c *gin.Context) {
	s.listEvaluations(c, "false")
}

func (s *Server) listEvaluations(c *gin.Context, feedbackSent string) {
	start := time.Now()

	filter, err := database.ParseFilter(feedbackSent, c.Query("status"), c.Query("limit"), c.Query("offset"), s.controller.Limits())
	if err != nil {
		s.writeError(c, err)
		return
	}

	page, err := s.controller.ListEvaluations(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}

	evals := page.Evaluations
	if evals == nil {
		evals = []evaluation.Evaluation{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    evals,
		"meta": listMeta{
			Total:    page.Total,
			Limit:    page.Limit,
			Offset:   page.Offset,
			Returned: len(evals),
		},
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// handleStats GET /evaluations/stats
func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.controller.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// handleGetEvaluation GET /evaluations/:identifier, evaluación más borrador
func (s *Server) handleGetEvaluation(c *gin.Context) {
	rev, err := s.controller.GetReview(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rev})
}

// handleDispatch POST /feedback {identifier, message}
func (s *Server) handleDispatch(c *gin.Context) {
	var req review.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, evaluation.NewError(evaluation.ErrInvalidRequest, "invalid_body",
			"el cuerpo debe ser JSON con identifier y message", err))
		return
	}

	result, err := s.controller.Dispatch(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// writeError traduce un error de la taxonomía a la respuesta HTTP. La causa nunca se expone.
func (s *Server) writeError(c *gin.Context, err error) {
	status := evaluation.HTTPStatus(err)
	body := gin.H{
		"success": false,
		"error":   "internal error",
		"reason":  evaluation.Reason(err),
		"message": "error interno",
	}

	var e *evaluation.Error
	if errors.As(err, &e) {
		body["error"] = e.Kind.Error()
		body["message"] = e.Message
	}
	if evaluation.Handled(err) {
		body["handled"] = true
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Error atendiendo petición",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}

	c.JSON(status, body)
}
