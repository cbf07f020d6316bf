package pdfsvc_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/reportcard"
	logsvc "github.com/excellacademy/academia/services/logger"
	pdfsvc "github.com/excellacademy/academia/services/pdf"
)

func document() reportcard.Document {
	return reportcard.Document{
		SchoolName:  "Excel International Academy",
		StudentName: "Amélie Mensah",
		ClassName:   "Grade 5 A",
		Record: reportcard.Record{
			ID:            "rc-1",
			Term:          "First Term",
			AcademicYear:  "2023/2024",
			OverallGrade:  grading.Grade("A"),
			Percentage:    decimal.RequireFromString("85.5"),
			ClassPosition: null.IntFrom(2),
			Remarks:       "Très bien",
		},
		Lines: []reportcard.DocumentLine{
			{Subject: "Mathematics", Score: decimal.NewFromInt(90), MaximumScore: decimal.NewFromInt(100), Percentage: decimal.NewFromInt(90)},
			{Subject: "English", Score: decimal.NewFromInt(81), MaximumScore: decimal.NewFromInt(100), Percentage: decimal.NewFromInt(81)},
		},
		Totals: grading.Totals{
			Subjects: 2, TotalScore: decimal.NewFromInt(171), TotalMaximum: decimal.NewFromInt(200), Percentage: decimal.RequireFromString("85.5"),
		},
		AveragePercentage: decimal.NewFromInt(72),
		GeneratedOn:       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestRenderer_Render(t *testing.T) {
	conf := core.NewTestConfig()
	r := pdfsvc.NewRenderer(logsvc.NewRollbarLogger(io.Discard, conf))

	out, err := r.Render(context.Background(), document())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("%%EOF")))

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Render(ctx, document())
		assert.True(t, core.IsRetryable(err))
	})
}
