package feedback

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhelGc/furina-review/internal/evaluation"
)

func steps(n int, passed func(i int) bool) []evaluation.StepResult {
	out := make([]evaluation.StepResult, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, evaluation.StepResult{
			StepNumber: i,
			StepLabel:  fmt.Sprintf("Step %d", i),
			Score:      float64(i),
			Passed:     passed(i),
			Comment:    fmt.Sprintf("comment %d", i),
		})
	}
	return out
}

func countLines(msg, prefix string) int {
	n := 0
	for _, line := range strings.Split(msg, "\n") {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestCompile_PassScenario(t *testing.T) {
	e := &evaluation.Evaluation{
		Identifier:    "DR1734472",
		OverallStatus: evaluation.StatusPass,
		AverageScore:  10,
		TotalSteps:    5,
		PassedSteps:   5,
		StepResults:   steps(3, func(int) bool { return true }),
	}

	msg, err := Compile(e)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(msg, "✅ *QA PASSED*\nDR: DR1734472\n"))
	assert.Contains(t, msg, "📊 Overall Score: 10/10\n")
	assert.Contains(t, msg, "✔️ Steps Passed: 5/5\n")
	assert.Equal(t, 3, countLines(msg, "✓ "))
	assert.NotContains(t, msg, "more steps")
	assert.True(t, strings.HasSuffix(msg, "*Recommendations:*\n✅ Good work! All quality standards met.\n"))
}

func TestCompile_ExactFormat(t *testing.T) {
	e := &evaluation.Evaluation{
		Identifier:    "DR42",
		OverallStatus: evaluation.StatusPartial,
		AverageScore:  6.5,
		TotalSteps:    2,
		PassedSteps:   1,
		StepResults: []evaluation.StepResult{
			{StepNumber: 2, StepLabel: "Cable Span", Score: 3, Passed: false, Comment: "cable not visible"},
			{StepNumber: 1, StepLabel: "House Photo", Score: 10, Passed: true, Comment: "ignored when passed"},
		},
	}

	msg, err := Compile(e)
	require.NoError(t, err)

	want := "⚠️ *QA PARTIAL PASS*\nDR: DR42\n\n" +
		"📊 Overall Score: 6.5/10\n" +
		"✔️ Steps Passed: 1/2\n\n" +
		"*Detailed Results:*\n" +
		"✓ House Photo: 10/10\n" +
		"✗ Cable Span: 3/10\n" +
		"  ↳ cable not visible\n" +
		"\n*Recommendations:*\n" +
		"⚠️ Please review and address the noted issues.\n"
	assert.Equal(t, want, msg)
}

func TestCompile_FailWithoutSteps(t *testing.T) {
	e := &evaluation.Evaluation{Identifier: "DR7", OverallStatus: evaluation.StatusFail, AverageScore: 1.25}

	msg, err := Compile(e)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(msg, "❌ *QA FAILED*"))
	assert.Contains(t, msg, "1.25/10")
	assert.NotContains(t, msg, "*Detailed Results:*")
	assert.Contains(t, msg, "❌ Significant issues found. Please rework and resubmit.")
}

func TestCompile_OmitsStepsBeyondFive(t *testing.T) {
	e := &evaluation.Evaluation{
		Identifier:    "DR8",
		OverallStatus: evaluation.StatusPartial,
		AverageScore:  5,
		TotalSteps:    8,
		PassedSteps:   4,
		StepResults:   steps(8, func(i int) bool { return i%2 == 0 }),
	}

	msg, err := Compile(e)
	require.NoError(t, err)

	assert.Equal(t, 5, countLines(msg, "✓ ")+countLines(msg, "✗ "))
	assert.Contains(t, msg, "_...and 3 more steps_")
	assert.Contains(t, msg, "Step 5:")
	assert.NotContains(t, msg, "Step 6:")
}

func TestCompile_StepOrderFollowsStepNumber(t *testing.T) {
	e := &evaluation.Evaluation{
		Identifier:    "DR9",
		OverallStatus: evaluation.StatusPass,
		AverageScore:  9,
		TotalSteps:    7,
		PassedSteps:   7,
	}
	for _, n := range []int{7, 3, 1, 6, 2, 5, 4} {
		e.StepResults = append(e.StepResults, evaluation.StepResult{
			StepNumber: n, StepLabel: fmt.Sprintf("Step %d", n), Score: 9, Passed: true,
		})
	}
	original := append([]evaluation.StepResult(nil), e.StepResults...)

	msg, err := Compile(e)
	require.NoError(t, err)

	assert.Less(t, strings.Index(msg, "Step 1:"), strings.Index(msg, "Step 2:"))
	assert.Less(t, strings.Index(msg, "Step 4:"), strings.Index(msg, "Step 5:"))
	assert.NotContains(t, msg, "Step 6:")
	assert.Equal(t, original, e.StepResults, "la evaluación no debe modificarse")
}

func TestCompile_Deterministic(t *testing.T) {
	e := &evaluation.Evaluation{
		Identifier:     "DR10",
		OverallStatus:  evaluation.StatusFail,
		AverageScore:   2.5,
		TotalSteps:     6,
		PassedSteps:    1,
		StepResults:    steps(6, func(i int) bool { return i == 1 }),
		EvaluationDate: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	first, err := Compile(e)
	require.NoError(t, err)
	second, err := Compile(e)
	require.NoError(t, err)

	assert.Equal(t, []byte(first), []byte(second))
}

func TestCompile_ReportsPassedStepCount(t *testing.T) {
	for n := 0; n <= 9; n++ {
		passed := 0
		st := steps(n, func(i int) bool { return i%3 != 0 })
		for _, s := range st {
			if s.Passed {
				passed++
			}
		}
		e := &evaluation.Evaluation{
			Identifier:    fmt.Sprintf("DR%d", n),
			OverallStatus: evaluation.StatusPartial,
			TotalSteps:    n,
			PassedSteps:   passed,
			StepResults:   st,
		}
		require.NoError(t, e.Validate())

		msg, err := Compile(e)
		require.NoError(t, err)
		assert.Contains(t, msg, fmt.Sprintf("✔️ Steps Passed: %d/%d\n", passed, n))
	}
}

func TestCompile_UnknownStatus(t *testing.T) {
	_, err := Compile(&evaluation.Evaluation{Identifier: "DR1", OverallStatus: "UNKNOWN"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, evaluation.ErrInvalidRequest))
}

func TestCompile_FailedCommentTruncated(t *testing.T) {
	long := strings.Repeat("a", 150)
	e := &evaluation.Evaluation{
		Identifier:    "DR11",
		OverallStatus: evaluation.StatusFail,
		TotalSteps:    1,
		StepResults:   []evaluation.StepResult{{StepNumber: 1, StepLabel: "Pole", Comment: long}},
	}

	msg, err := Compile(e)
	require.NoError(t, err)

	assert.Contains(t, msg, "  ↳ "+strings.Repeat("a", 97)+"...\n")
	assert.NotContains(t, msg, strings.Repeat("a", 98))
}

func TestTruncateComment(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    string
	}{
		{"vacío", "", ""},
		{"corto", "blurry photo", "blurry photo"},
		{"exactamente 100", strings.Repeat("x", 100), strings.Repeat("x", 100)},
		{"101 caracteres", strings.Repeat("x", 101), strings.Repeat("x", 97) + "..."},
		{"multibyte", strings.Repeat("é", 120), strings.Repeat("é", 97) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateComment(tt.comment)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), MaxCommentLength)
		})
	}
}
