package grading

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrNoScores is returned by Aggregate for an empty input.
// Callers skip the student instead of treating it as a 0% result.
var ErrNoScores = errors.New("no score entries")

// Aggregate sums the scores and maximum scores of one student's entries for a Period.
func Aggregate(entries []ScoreEntry) (Totals, error) {
	if len(entries) == 0 {
		return Totals{}, ErrNoScores
	}

	totals := Totals{
		StudentID:    entries[0].StudentID,
		Subjects:     len(entries),
		TotalScore:   decimal.Zero,
		TotalMaximum: decimal.Zero,
	}
	for _, e := range entries {
		totals.TotalScore = totals.TotalScore.Add(e.Score)
		totals.TotalMaximum = totals.TotalMaximum.Add(e.MaximumScore)
	}
	totals.Percentage = percentage(totals.TotalScore, totals.TotalMaximum)
	return totals, nil
}

func groupByStudent(entries []ScoreEntry) map[string][]ScoreEntry {
	groups := make(map[string][]ScoreEntry)
	for _, e := range entries {
		groups[e.StudentID] = append(groups[e.StudentID], e)
	}
	return groups
}
