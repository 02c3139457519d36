// Package review orquesta la revisión humana y el envío único del feedback de cada evaluación.
//
// Estados por evaluación: PENDING (feedback_sent=false), DISPATCHING (entre el intento de
// reclamo y su resultado) y SENT (feedback_sent=true, terminal). La única transición
// PENDING→SENT es la actualización condicional del almacén; no hay bloqueos en memoria
// porque el controlador puede correr en varias instancias.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/PhelGc/furina-review/internal/database"
	"github.com/PhelGc/furina-review/internal/evaluation"
	"github.com/PhelGc/furina-review/internal/feedback"
	"github.com/PhelGc/furina-review/internal/notify"
	"github.com/PhelGc/furina-review/internal/storage"
)

// Store operaciones del almacén de evaluaciones usadas por el controlador
type Store interface {
	GetEvaluation(ctx context.Context, identifier string) (*evaluation.Evaluation, error)
	ListEvaluations(ctx context.Context, f database.EvaluationFilter) ([]evaluation.Evaluation, int, error)
	CountEvaluations(ctx context.Context, f database.EvaluationFilter) (int, error)
	ClaimFeedback(ctx context.Context, identifier string, now time.Time) (bool, error)
}

// Journal registro de envíos reclamados
type Journal interface {
	SaveEntry(entry *storage.Entry) error
}

// Options configuración explícita del controlador
type Options struct {
	Limits       database.Limits
	SendTimeout  time.Duration
	ClaimTimeout time.Duration
	Now          func() time.Time
}

func (o *Options) setDefaults() {
	if o.Limits.Max == 0 {
		o.Limits = database.DefaultLimits
	}
	if o.SendTimeout == 0 {
		o.SendTimeout = 30 * time.Second
	}
	if o.ClaimTimeout == 0 {
		o.ClaimTimeout = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Controller único componente que escribe feedback_sent y que invoca el envío externo
type Controller struct {
	store   Store
	sender  notify.Sender
	journal Journal
	metrics *Metrics
	logger  *zap.Logger
	opts    Options
}

func NewController(store Store, sender notify.Sender, journal Journal, metrics *Metrics, logger *zap.Logger, opts Options) *Controller {
	opts.setDefaults()
	return &Controller{
		store:   store,
		sender:  sender,
		journal: journal,
		metrics: metrics,
		logger:  logger,
		opts:    opts,
	}
}

// Limits límites de paginación vigentes
func (c *Controller) Limits() database.Limits {
	return c.opts.Limits
}

// Page página de evaluaciones con el total sin paginar
type Page struct {
	Evaluations []evaluation.Evaluation
	Total       int
	Limit       int
	Offset      int
}

// ListEvaluations devuelve una página filtrada. Los filtros inválidos se rechazan antes de consultar.
func (c *Controller) ListEvaluations(ctx context.Context, f database.EvaluationFilter) (*Page, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Limit > c.opts.Limits.Max {
		f.Limit = c.opts.Limits.Max
	}

	start := time.Now()
	evals, total, err := c.store.ListEvaluations(ctx, f)
	c.observe("list", start)
	if err != nil {
		return nil, c.storeError(ctx, "error listando evaluaciones", err)
	}

	return &Page{Evaluations: evals, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Stats contadores del panel de revisión
type Stats struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Total   int `json:"total"`
}

// Stats cuenta evaluaciones pendientes y enviadas con la consulta de conteo del listado
func (c *Controller) Stats(ctx context.Context) (*Stats, error) {
	start := time.Now()
	defer c.observe("stats", start)

	pendingFlag, sentFlag := false, true
	pending, err := c.store.CountEvaluations(ctx, database.EvaluationFilter{FeedbackSent: &pendingFlag})
	if err != nil {
		return nil, c.storeError(ctx, "error contando pendientes", err)
	}
	sent, err := c.store.CountEvaluations(ctx, database.EvaluationFilter{FeedbackSent: &sentFlag})
	if err != nil {
		return nil, c.storeError(ctx, "error contando enviadas", err)
	}

	return &Stats{Pending: pending, Sent: sent, Total: pending + sent}, nil
}

// Review evaluación con el borrador de mensaje que el revisor puede editar
type Review struct {
	Evaluation *evaluation.Evaluation `json:"evaluation"`
	Draft      string                 `json:"draft"`
}

// GetReview carga la evaluación y compila su borrador
func (c *Controller) GetReview(ctx context.Context, identifier string) (*Review, error) {
	ev, err := c.getEvaluation(ctx, identifier)
	if err != nil {
		return nil, err
	}

	draft, err := feedback.Compile(ev)
	if err != nil {
		return nil, err
	}
	return &Review{Evaluation: ev, Draft: draft}, nil
}

// DispatchResult resultado de un envío confirmado
type DispatchResult struct {
	Identifier string    `json:"dr_number"`
	Recipient  string    `json:"recipient,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// Dispatch reclama la evaluación y envía el mensaje final.
//
// Solo la petición que gana el reclamo atómico invoca al sender. Si el envío falla después
// del reclamo, feedback_sent queda en true: se prefiere perder una entrega a duplicarla.
func (c *Controller) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		c.count("invalid")
		return nil, err
	}
	if limit := c.sender.MaxMessageLength(); utf8.RuneCountInString(req.Message) > limit {
		c.count("invalid")
		return nil, evaluation.NewError(evaluation.ErrInvalidRequest, "message_too_long",
			fmt.Sprintf("el mensaje supera el máximo de %d caracteres del canal", limit), nil)
	}

	ev, err := c.getEvaluation(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}
	if ev.FeedbackSent {
		c.count("already_sent")
		c.logger.Info("Feedback ya enviado previamente", zap.String("dr_number", ev.Identifier))
		return nil, evaluation.NewError(evaluation.ErrAlreadySent, "already_sent",
			fmt.Sprintf("el feedback de %s ya fue enviado", ev.Identifier), nil)
	}

	// Abandonar antes del reclamo no tiene efectos
	if err := ctx.Err(); err != nil {
		return nil, evaluation.NewError(evaluation.ErrCanceled, "canceled", "solicitud cancelada antes del envío", err)
	}

	// PENDING → DISPATCHING. Una vez iniciado, el reclamo no depende de la cancelación del cliente.
	claimedAt := c.opts.Now()
	claimCtx, cancelClaim := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ClaimTimeout)
	start := time.Now()
	claimed, err := c.store.ClaimFeedback(claimCtx, ev.Identifier, claimedAt)
	c.observe("claim", start)
	cancelClaim()
	if err != nil {
		c.logger.Error("Error reclamando envío; estado de feedback_sent incierto",
			zap.String("dr_number", ev.Identifier), zap.Error(err))
		return nil, evaluation.NewError(evaluation.ErrStoreUnavailable, "store_unavailable",
			"no se pudo reclamar el envío", err)
	}
	if !claimed {
		c.count("race_lost")
		c.logger.Info("Otra solicitud reclamó el envío primero", zap.String("dr_number", ev.Identifier))
		return nil, evaluation.NewError(evaluation.ErrRaceLost, "race_lost",
			fmt.Sprintf("el feedback de %s acaba de ser enviado por otra solicitud", ev.Identifier), nil)
	}

	// DISPATCHING → SENT. El envío corre hasta completarse o fallar.
	sendCtx, cancelSend := context.WithTimeout(context.WithoutCancel(ctx), c.opts.SendTimeout)
	sendErr := c.sender.Send(sendCtx, ev.Recipient, req.Message)
	cancelSend()

	entry := &storage.Entry{
		Identifier:  ev.Identifier,
		Recipient:   ev.Recipient,
		Message:     req.Message,
		Outcome:     storage.OutcomeSent,
		ClaimedAt:   claimedAt,
		CompletedAt: c.opts.Now(),
	}

	var result error
	switch {
	case sendErr == nil:
		c.count("sent")
		c.logger.Info("Feedback enviado", zap.String("dr_number", ev.Identifier), zap.String("recipient", ev.Recipient))
	case errors.Is(sendErr, notify.ErrOutcomeUnknown):
		entry.Outcome, entry.Error = storage.OutcomeUnknown, sendErr.Error()
		c.count("unknown")
		c.logger.Error("Resultado de entrega desconocido; requiere verificación manual",
			zap.String("dr_number", ev.Identifier), zap.Error(sendErr))
		result = evaluation.NewError(evaluation.ErrDeliveryUnknown, "delivery_unknown",
			fmt.Sprintf("no se sabe si el feedback de %s fue entregado", ev.Identifier), sendErr)
	default:
		entry.Outcome, entry.Error = storage.OutcomeFailed, sendErr.Error()
		c.count("failed")
		c.logger.Error("Envío reclamado pero no entregado",
			zap.String("dr_number", ev.Identifier), zap.Error(sendErr))
		result = evaluation.NewError(evaluation.ErrDispatchFailed, "claimed_not_delivered",
			fmt.Sprintf("el feedback de %s quedó marcado como enviado pero no se entregó", ev.Identifier), sendErr)
	}

	if c.journal != nil {
		if err := c.journal.SaveEntry(entry); err != nil {
			c.logger.Error("Error guardando registro de envío", zap.String("dr_number", ev.Identifier), zap.Error(err))
		}
	}

	if result != nil {
		return nil, result
	}
	return &DispatchResult{Identifier: ev.Identifier, Recipient: ev.Recipient, SentAt: entry.CompletedAt}, nil
}

func (c *Controller) getEvaluation(ctx context.Context, identifier string) (*evaluation.Evaluation, error) {
	start := time.Now()
	ev, err := c.store.GetEvaluation(ctx, identifier)
	c.observe("get", start)
	if err != nil {
		return nil, c.storeError(ctx, "error consultando evaluación", err)
	}
	if ev == nil {
		return nil, evaluation.NewError(evaluation.ErrNotFound, "not_found",
			fmt.Sprintf("evaluación %s no encontrada", identifier), nil)
	}
	return ev, nil
}

// storeError traduce errores del almacén a la taxonomía; nunca se filtran errores del driver
func (c *Controller) storeError(ctx context.Context, message string, err error) error {
	if errors.Is(err, evaluation.ErrInvalidFilter) {
		return err
	}
	if ctx.Err() != nil {
		return evaluation.NewError(evaluation.ErrCanceled, "canceled", "solicitud cancelada", err)
	}
	c.logger.Error(message, zap.Error(err))
	return evaluation.NewError(evaluation.ErrStoreUnavailable, "store_unavailable", "almacén de evaluaciones no disponible", err)
}

func (c *Controller) count(outcome string) {
	if c.metrics != nil {
		c.metrics.DispatchTotal.WithLabelValues(outcome).Inc()
	}
}

func (c *Controller) observe(operation string, start time.Time) {
	if c.metrics != nil {
		c.metrics.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
