package grading_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/tests"
)

var (
	ctx    = context.Background()
	period = grading.Period{Term: "Second Term", AcademicYear: "2023/2024"}
)

func TestService_RecordScores(t *testing.T) {
	env := testutil.NewEnv(t)
	sch := env.CreateSchool(t, 2)
	math := sch.Subjects[0].ID

	saved, err := env.Grades.RecordScores(ctx, grading.ScoreSheet{SubjectID: math, Period: period, Lines: []grading.ScoreLine{
		{StudentID: sch.Students[0].ID, Score: "42", MaximumScore: "50"},
		{StudentID: sch.Students[1].ID, Score: "77"},
	}}, "teacher")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.True(t, decimal.NewFromInt(100).Equal(saved[1].MaximumScore), "maximum defaults to 100")

	t.Run("re-recording updates in place", func(t *testing.T) {
		env.RecordScores(t, math, period, sch.Students, "45")
		scores, err := env.Grades.StudentScores(ctx, sch.Students[0].ID, period)
		require.NoError(t, err)
		require.Len(t, scores, 1)
		assert.True(t, decimal.NewFromInt(45).Equal(scores[0].Score))
		assert.Equal(t, saved[0].ID, scores[0].ID)
	})

	t.Run("one bad line rejects the sheet", func(t *testing.T) {
		_, err := env.Grades.RecordScores(ctx, grading.ScoreSheet{SubjectID: math, Period: period, Lines: []grading.ScoreLine{
			{StudentID: sch.Students[0].ID, Score: "10"},
			{StudentID: sch.Students[1].ID, Score: "120"},
		}}, "teacher")
		var valErr *core.ValidationError
		require.True(t, errors.As(err, &valErr))
		assert.Equal(t, "lines[1].score", valErr.Fields[0].Field)

		scores, err := env.Grades.StudentScores(ctx, sch.Students[0].ID, period)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(45).Equal(scores[0].Score))
	})

	tests := []struct {
		name  string
		line  grading.ScoreLine
		field string
	}{
		{"negative", grading.ScoreLine{StudentID: "s", Score: "-1"}, "lines[0].score"},
		{"zero maximum", grading.ScoreLine{StudentID: "s", Score: "0", MaximumScore: "0"}, "lines[0].maximum_score"},
		{"not a number", grading.ScoreLine{StudentID: "s", Score: "ten"}, "lines[0].score"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Grades.RecordScores(ctx, grading.ScoreSheet{SubjectID: math, Period: period, Lines: []grading.ScoreLine{tt.line}}, "teacher")
			var valErr *core.ValidationError
			require.True(t, errors.As(err, &valErr))
			assert.Equal(t, tt.field, valErr.Fields[0].Field)
		})
	}
}

func TestService_ClassPerformance(t *testing.T) {
	env := testutil.NewEnv(t)
	sch := env.CreateSchool(t, 4)
	env.RecordScores(t, sch.Subjects[0].ID, period, sch.Students, "90", "70", "90")
	env.RecordScores(t, sch.Subjects[1].ID, period, sch.Students, "70", "50", "70")

	perf, err := env.Grades.ClassPerformance(ctx, sch.Class.ID, period)
	require.NoError(t, err)
	assert.Equal(t, []string{sch.Students[3].ID}, perf.Unscored)
	require.Len(t, perf.Placements, 3)

	positions := make(map[string]int, len(perf.Placements))
	for _, p := range perf.Placements {
		positions[p.StudentID] = p.Position
	}
	assert.Equal(t, map[string]int{
		sch.Students[0].ID: 1,
		sch.Students[2].ID: 1,
		sch.Students[1].ID: 3,
	}, positions)

	totals, ok := perf.TotalsOf(sch.Students[1].ID)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(60).Equal(totals.Percentage))

	_, err = env.Grades.StudentTotals(ctx, sch.Students[3].ID, period)
	assert.Equal(t, grading.ErrNoScores, errors.Cause(err))
}
