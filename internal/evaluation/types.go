package evaluation

import (
	"fmt"
	"time"
)

// Status estado global de una evaluación QA, calculado aguas arriba
type Status string

const (
	StatusPass    Status = "PASS"
	StatusPartial Status = "PARTIAL"
	StatusFail    Status = "FAIL"
)

// ParseStatus convierte el valor recibido en un Status válido.
// Los valores son sensibles a mayúsculas; cualquier otro valor es un filtro inválido.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPass, StatusPartial, StatusFail:
		return Status(s), nil
	}
	return "", NewError(ErrInvalidFilter, "invalid_status",
		fmt.Sprintf("estado desconocido %q (esperado PASS, PARTIAL o FAIL)", s), nil)
}

// Valid indica si el estado pertenece al enum
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Evaluation representa la evaluación QA de un trabajo enviado (clave: número DR)
type Evaluation struct {
	Identifier     string       `json:"dr_number"`
	OverallStatus  Status       `json:"overall_status"`
	AverageScore   float64      `json:"average_score"` // 0–10
	TotalSteps     int          `json:"total_steps"`
	PassedSteps    int          `json:"passed_steps"`
	StepResults    []StepResult `json:"step_results"` // ordenados por step_number
	Recipient      string       `json:"recipient,omitempty"`
	MarkdownReport string       `json:"markdown_report,omitempty"` // informe del evaluador, opcional
	FeedbackSent   bool         `json:"feedback_sent"`
	EvaluationDate time.Time    `json:"evaluation_date"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// StepResult resultado de un paso del checklist dentro de una evaluación
type StepResult struct {
	StepNumber int     `json:"step_number"`
	StepName   string  `json:"step_name,omitempty"`
	StepLabel  string  `json:"step_label"`
	Score      float64 `json:"score"` // 0–10
	Passed     bool    `json:"passed"`
	Comment    string  `json:"comment"`
}

// Validate comprueba las invariantes del modelo antes de persistir una evaluación.
func (e *Evaluation) Validate() error {
	if e.Identifier == "" {
		return fmt.Errorf("evaluación sin identificador")
	}
	if !e.OverallStatus.Valid() {
		return fmt.Errorf("evaluación %s: estado inválido %q", e.Identifier, e.OverallStatus)
	}
	if e.AverageScore < 0 || e.AverageScore > 10 {
		return fmt.Errorf("evaluación %s: puntaje fuera de rango: %v", e.Identifier, e.AverageScore)
	}
	if e.TotalSteps < 0 || e.PassedSteps < 0 || e.PassedSteps > e.TotalSteps {
		return fmt.Errorf("evaluación %s: pasos inválidos %d/%d", e.Identifier, e.PassedSteps, e.TotalSteps)
	}

	seen := make(map[int]bool, len(e.StepResults))
	passed := 0
	for _, step := range e.StepResults {
		if step.StepNumber <= 0 {
			return fmt.Errorf("evaluación %s: step_number debe ser positivo (%d)", e.Identifier, step.StepNumber)
		}
		if seen[step.StepNumber] {
			return fmt.Errorf("evaluación %s: step_number duplicado %d", e.Identifier, step.StepNumber)
		}
		seen[step.StepNumber] = true
		if step.Score < 0 || step.Score > 10 {
			return fmt.Errorf("evaluación %s: paso %d con puntaje fuera de rango: %v", e.Identifier, step.StepNumber, step.Score)
		}
		if step.Passed {
			passed++
		}
	}
	if passed != e.PassedSteps {
		return fmt.Errorf("evaluación %s: passed_steps=%d no coincide con %d pasos aprobados",
			e.Identifier, e.PassedSteps, passed)
	}
	return nil
}
