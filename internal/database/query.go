package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PhelGc/furina-review/internal/evaluation"
)

const evaluationsTable = "foto_evaluations"

const evaluationColumns = `dr_number, overall_status, average_score, total_steps, passed_steps,
	step_results, recipient, markdown_report, feedback_sent, evaluation_date, created_at, updated_at`

// Limits límites de paginación del listado
type Limits struct {
	Default int
	Max     int
}

// DefaultLimits 100 por página, máximo 500
var DefaultLimits = Limits{Default: 100, Max: 500}

// EvaluationFilter filtros opcionales del listado. Un puntero nil no restringe.
type EvaluationFilter struct {
	FeedbackSent *bool
	Status       *evaluation.Status
	Limit        int
	Offset       int
}

// Query sentencia SQL con sus parámetros posicionales
type Query struct {
	SQL  string
	Args []any
}

// ParseFilter convierte los parámetros de la petición en un filtro validado.
// Un valor vacío equivale a un parámetro ausente.
func ParseFilter(feedbackSent, status, limit, offset string, limits Limits) (EvaluationFilter, error) {
	f := EvaluationFilter{Limit: limits.Default}

	if feedbackSent != "" {
		sent, err := strconv.ParseBool(feedbackSent)
		if err != nil {
			return f, invalidFilter("invalid_feedback_sent",
				fmt.Sprintf("feedback_sent debe ser booleano, recibido %q", feedbackSent))
		}
		f.FeedbackSent = &sent
	}

	if status != "" {
		s, err := evaluation.ParseStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = &s
	}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return f, invalidFilter("invalid_limit",
				fmt.Sprintf("limit debe ser un entero no negativo, recibido %q", limit))
		}
		f.Limit = n
	}
	if f.Limit > limits.Max {
		f.Limit = limits.Max
	}

	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return f, invalidFilter("invalid_offset",
				fmt.Sprintf("offset debe ser un entero no negativo, recibido %q", offset))
		}
		f.Offset = n
	}

	return f, nil
}

// Validate rechaza filtros construidos a mano que ParseFilter no habría aceptado
func (f EvaluationFilter) Validate() error {
	if f.Status != nil && !f.Status.Valid() {
		_, err := evaluation.ParseStatus(string(*f.Status))
		return err
	}
	if f.Limit < 0 {
		return invalidFilter("invalid_limit", "limit negativo")
	}
	if f.Offset < 0 {
		return invalidFilter("invalid_offset", "offset negativo")
	}
	return nil
}

// whereClause acumula un predicado por filtro presente y sus parámetros.
// Los valores nunca se interpolan en el texto SQL.
func whereClause(f EvaluationFilter) (string, []any) {
	var conditions []string
	var args []any

	if f.FeedbackSent != nil {
		conditions = append(conditions, "feedback_sent = ?")
		args = append(args, *f.FeedbackSent)
	}
	if f.Status != nil {
		conditions = append(conditions, "overall_status = ?")
		args = append(args, string(*f.Status))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// BuildListQueries construye la consulta paginada y la de conteo con el mismo predicado.
// El conteo ignora limit y offset.
func BuildListQueries(f EvaluationFilter) (page Query, count Query, err error) {
	if err := f.Validate(); err != nil {
		return Query{}, Query{}, err
	}

	where, args := whereClause(f)

	pageArgs := make([]any, 0, len(args)+2)
	pageArgs = append(pageArgs, args...)
	pageArgs = append(pageArgs, f.Limit, f.Offset)

	page = Query{
		SQL: fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY evaluation_date DESC, dr_number ASC LIMIT ? OFFSET ?`,
			evaluationColumns, evaluationsTable, where),
		Args: pageArgs,
	}
	count = Query{
		SQL:  fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, evaluationsTable, where),
		Args: args,
	}
	return page, count, nil
}

func invalidFilter(reason, message string) error {
	return evaluation.NewError(evaluation.ErrInvalidFilter, reason, message, nil)
}
