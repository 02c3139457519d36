// Package feedback convierte una evaluación QA en el mensaje de texto que recibe el técnico.
package feedback

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PhelGc/furina-review/internal/evaluation"
)

const (
	// MaxStepLines pasos detallados como máximo en el mensaje
	MaxStepLines = 5
	// MaxCommentLength comentarios más largos se recortan a MaxCommentLength-3 + "..."
	MaxCommentLength = 100
)

type statusText struct {
	marker         string
	header         string
	recommendation string
}

var statusTexts = map[evaluation.Status]statusText{
	evaluation.StatusPass: {
		marker:         "✅",
		header:         "QA PASSED",
		recommendation: "✅ Good work! All quality standards met.",
	},
	evaluation.StatusPartial: {
		marker:         "⚠️",
		header:         "QA PARTIAL PASS",
		recommendation: "⚠️ Please review and address the noted issues.",
	},
	evaluation.StatusFail: {
		marker:         "❌",
		header:         "QA FAILED",
		recommendation: "❌ Significant issues found. Please rework and resubmit.",
	},
}

// Compile genera el borrador del mensaje para una evaluación.
// Es una función pura: la misma evaluación produce siempre el mismo texto y no se modifica.
func Compile(e *evaluation.Evaluation) (string, error) {
	text, ok := statusTexts[e.OverallStatus]
	if !ok {
		return "", evaluation.NewError(evaluation.ErrInvalidRequest, "invalid_status",
			fmt.Sprintf("evaluación %s con estado desconocido %q", e.Identifier, e.OverallStatus), nil)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\nDR: %s\n\n", text.marker, text.header, e.Identifier)
	fmt.Fprintf(&b, "📊 Overall Score: %s/10\n", formatScore(e.AverageScore))
	fmt.Fprintf(&b, "✔️ Steps Passed: %d/%d\n\n", e.PassedSteps, e.TotalSteps)

	if len(e.StepResults) > 0 {
		steps := sortedSteps(e.StepResults)

		b.WriteString("*Detailed Results:*\n")
		for i, step := range steps {
			if i == MaxStepLines {
				break
			}
			marker := "✗"
			if step.Passed {
				marker = "✓"
			}
			fmt.Fprintf(&b, "%s %s: %s/10\n", marker, step.StepLabel, formatScore(step.Score))
			if !step.Passed && step.Comment != "" {
				fmt.Fprintf(&b, "  ↳ %s\n", TruncateComment(step.Comment))
			}
		}

		if omitted := len(steps) - MaxStepLines; omitted > 0 {
			fmt.Fprintf(&b, "\n_...and %d more steps_\n", omitted)
		}
	}

	b.WriteString("\n*Recommendations:*\n")
	b.WriteString(text.recommendation)
	b.WriteString("\n")

	return b.String(), nil
}

// TruncateComment recorta comentarios de más de MaxCommentLength caracteres (runas)
func TruncateComment(comment string) string {
	runes := []rune(comment)
	if len(runes) <= MaxCommentLength {
		return comment
	}
	return string(runes[:MaxCommentLength-3]) + "..."
}

// sortedSteps copia ordenada por step_number; la evaluación original no se toca
func sortedSteps(steps []evaluation.StepResult) []evaluation.StepResult {
	out := make([]evaluation.StepResult, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StepNumber < out[j].StepNumber
	})
	return out
}

// formatScore usa la representación decimal más corta: 10 → "10", 7.5 → "7.5"
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
