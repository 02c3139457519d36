package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PhelGc/furina-review/internal/evaluation"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	client, err := NewClient(ctx, &Config{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "evaluations.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.CreateEvaluationTable(ctx))
	return client
}

var baseDate = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func testEvaluation(id string, status evaluation.Status, sent bool, daysAgo int) *evaluation.Evaluation {
	return &evaluation.Evaluation{
		Identifier:    id,
		OverallStatus: status,
		AverageScore:  7.5,
		TotalSteps:    2,
		PassedSteps:   1,
		StepResults: []evaluation.StepResult{
			{StepNumber: 1, StepLabel: "House Photo", Score: 9, Passed: true},
			{StepNumber: 2, StepLabel: "Cable Span", Score: 4, Passed: false, Comment: "cable not visible"},
		},
		FeedbackSent:   sent,
		EvaluationDate: baseDate.AddDate(0, 0, -daysAgo),
	}
}

func seed(t *testing.T, c *Client, evals ...*evaluation.Evaluation) {
	t.Helper()
	ctx := context.Background()
	for _, e := range evals {
		require.NoError(t, c.UpsertEvaluation(ctx, e))
		if e.FeedbackSent {
			claimed, err := c.ClaimFeedback(ctx, e.Identifier, time.Now())
			require.NoError(t, err)
			require.True(t, claimed)
		}
	}
}

func identifiers(evals []evaluation.Evaluation) []string {
	ids := make([]string, 0, len(evals))
	for _, e := range evals {
		ids = append(ids, e.Identifier)
	}
	return ids
}

func boolPtr(b bool) *bool { return &b }

func statusPtr(s evaluation.Status) *evaluation.Status { return &s }

func TestUpsertAndGetEvaluation(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	in := testEvaluation("DR1734472", evaluation.StatusPartial, false, 0)
	in.Recipient = "contractor-a"
	in.MarkdownReport = "## Informe QA\n- Cable Span: cable not visible"
	seed(t, c, in)

	got, err := c.GetEvaluation(ctx, "DR1734472")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, in.Identifier, got.Identifier)
	assert.Equal(t, in.OverallStatus, got.OverallStatus)
	assert.Equal(t, in.AverageScore, got.AverageScore)
	assert.Equal(t, "contractor-a", got.Recipient)
	assert.Equal(t, in.MarkdownReport, got.MarkdownReport)
	assert.False(t, got.FeedbackSent)
	assert.True(t, got.EvaluationDate.Equal(baseDate))
	assert.False(t, got.CreatedAt.IsZero())
	if diff := cmp.Diff(in.StepResults, got.StepResults); diff != "" {
		t.Errorf("step_results distintos (-want +got):\n%s", diff)
	}
}

func TestGetEvaluation_NotFound(t *testing.T) {
	c := newTestClient(t)

	got, err := c.GetEvaluation(context.Background(), "DR-missing")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertEvaluation_RejectsInvalid(t *testing.T) {
	c := newTestClient(t)

	bad := testEvaluation("DR1", evaluation.StatusPass, false, 0)
	bad.PassedSteps = 2 // solo un paso aprobado

	assert.Error(t, c.UpsertEvaluation(context.Background(), bad))
}

func TestUpsertEvaluation_NewEvaluationIsPending(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	// Un archivo de importación que ya trae feedback_sent=true no salta el reclamo
	in := testEvaluation("DR1", evaluation.StatusPass, true, 0)
	require.NoError(t, c.UpsertEvaluation(ctx, in))

	got, err := c.GetEvaluation(ctx, "DR1")
	require.NoError(t, err)
	assert.False(t, got.FeedbackSent)
	assert.Empty(t, got.MarkdownReport)

	claimed, err := c.ClaimFeedback(ctx, "DR1", time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestUpsertEvaluation_NeverResetsFeedbackSent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seed(t, c, testEvaluation("DR1", evaluation.StatusFail, false, 0))
	claimed, err := c.ClaimFeedback(ctx, "DR1", time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	// Re-evaluación aguas arriba con feedback_sent=false
	seed(t, c, testEvaluation("DR1", evaluation.StatusPass, false, 0))

	got, err := c.GetEvaluation(ctx, "DR1")
	require.NoError(t, err)
	assert.True(t, got.FeedbackSent)
	assert.Equal(t, evaluation.StatusPass, got.OverallStatus)
}

func TestListEvaluations_OrderingAndTieBreak(t *testing.T) {
	c := newTestClient(t)

	seed(t, c,
		testEvaluation("DR-B", evaluation.StatusPass, false, 1),
		testEvaluation("DR-C", evaluation.StatusPass, false, 0),
		testEvaluation("DR-A", evaluation.StatusPass, false, 1),
		testEvaluation("DR-D", evaluation.StatusPass, false, 5),
	)

	page, total, err := c.ListEvaluations(context.Background(), EvaluationFilter{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"DR-C", "DR-A", "DR-B", "DR-D"}, identifiers(page))
}

func TestListEvaluations_Pagination(t *testing.T) {
	c := newTestClient(t)
	for i := 0; i < 7; i++ {
		seed(t, c, testEvaluation(fmt.Sprintf("DR%02d", i), evaluation.StatusPass, false, i))
	}
	ctx := context.Background()

	page, total, err := c.ListEvaluations(ctx, EvaluationFilter{Limit: 3, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, []string{"DR03", "DR04", "DR05"}, identifiers(page))

	t.Run("offset más allá del total devuelve página vacía", func(t *testing.T) {
		page, total, err := c.ListEvaluations(ctx, EvaluationFilter{Limit: 3, Offset: 50})
		require.NoError(t, err)
		assert.Equal(t, 7, total)
		assert.Empty(t, page)
		assert.NotNil(t, page)
	})

	t.Run("limit cero devuelve el total real", func(t *testing.T) {
		page, total, err := c.ListEvaluations(ctx, EvaluationFilter{FeedbackSent: boolPtr(false), Limit: 0})
		require.NoError(t, err)
		assert.Equal(t, 7, total)
		assert.Empty(t, page)
	})
}

func TestListEvaluations_CountMatchesUnpagedResult(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	statuses := []evaluation.Status{evaluation.StatusPass, evaluation.StatusPartial, evaluation.StatusFail}
	for i := 0; i < 12; i++ {
		seed(t, c, testEvaluation(fmt.Sprintf("DR%03d", i), statuses[i%3], i%4 == 0, i))
	}

	sentOptions := []*bool{nil, boolPtr(true), boolPtr(false)}
	statusOptions := []*evaluation.Status{nil}
	for _, s := range statuses {
		statusOptions = append(statusOptions, statusPtr(s))
	}

	for _, sent := range sentOptions {
		for _, status := range statusOptions {
			f := EvaluationFilter{FeedbackSent: sent, Status: status, Limit: DefaultLimits.Max}

			all, total, err := c.ListEvaluations(ctx, f)
			require.NoError(t, err)
			assert.Equal(t, len(all), total)

			counted, err := c.CountEvaluations(ctx, f)
			require.NoError(t, err)
			assert.Equal(t, total, counted)

			for _, e := range all {
				if sent != nil {
					assert.Equal(t, *sent, e.FeedbackSent)
				}
				if status != nil {
					assert.Equal(t, *status, e.OverallStatus)
				}
			}
		}
	}
}

func TestClaimFeedback(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	seed(t, c, testEvaluation("DR1", evaluation.StatusPass, false, 0))

	claimed, err := c.ClaimFeedback(ctx, "DR1", time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = c.ClaimFeedback(ctx, "DR1", time.Now())
	require.NoError(t, err)
	assert.False(t, claimed, "un segundo reclamo no afecta filas")

	claimed, err = c.ClaimFeedback(ctx, "DR-missing", time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestClaimFeedback_ConcurrentSingleWinner(t *testing.T) {
	c := newTestClient(t)
	seed(t, c, testEvaluation("DR1", evaluation.StatusPass, false, 0))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := c.ClaimFeedback(context.Background(), "DR1", time.Now())
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
