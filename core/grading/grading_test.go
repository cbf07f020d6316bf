package grading

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func entry(student, score, max string) ScoreEntry {
	return ScoreEntry{StudentID: student, Score: d(score), MaximumScore: d(max)}
}

func TestScoreEntry_Percentage(t *testing.T) {
	tests := []struct {
		name  string
		entry ScoreEntry
		want  string
	}{
		{"full marks", entry("s", "100", "100"), "100"},
		{"half", entry("s", "25", "50"), "50"},
		{"zero score", entry("s", "0", "80"), "0"},
		{"zero maximum", entry("s", "10", "0"), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, d(tt.want).Equal(tt.entry.Percentage()), "got %s", tt.entry.Percentage())
		})
	}
}

func TestAggregate(t *testing.T) {
	t.Run("no entries", func(t *testing.T) {
		_, err := Aggregate(nil)
		assert.Equal(t, ErrNoScores, err)
	})

	t.Run("sums every subject", func(t *testing.T) {
		totals, err := Aggregate([]ScoreEntry{entry("s1", "80", "100"), entry("s1", "45", "50"), entry("s1", "15", "50")})
		require.NoError(t, err)
		assert.Equal(t, "s1", totals.StudentID)
		assert.Equal(t, 3, totals.Subjects)
		assert.True(t, d("140").Equal(totals.TotalScore))
		assert.True(t, d("200").Equal(totals.TotalMaximum))
		assert.True(t, d("70").Equal(totals.Percentage))
		assert.True(t, totals.HasMaximum())
	})

	t.Run("zero maximum differs from no entries", func(t *testing.T) {
		totals, err := Aggregate([]ScoreEntry{entry("s1", "0", "0")})
		require.NoError(t, err)
		assert.True(t, totals.Percentage.IsZero())
		assert.False(t, totals.HasMaximum())
		assert.Equal(t, 1, totals.Subjects)
	})
}

func TestAggregate_percentageBounds(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := rnd.Intn(8) + 1
		entries := make([]ScoreEntry, 0, n)
		for j := 0; j < n; j++ {
			max := rnd.Intn(100) + 1
			score := rnd.Intn(max + 1)
			entries = append(entries, entry("s", fmt.Sprint(score), fmt.Sprint(max)))
		}
		totals, err := Aggregate(entries)
		require.NoError(t, err)
		assert.False(t, totals.Percentage.IsNegative())
		assert.True(t, totals.Percentage.LessThanOrEqual(hundred), "got %s", totals.Percentage)
	}
}

func positions(pcts ...string) []int {
	standings := make([]Standing, 0, len(pcts))
	for i, p := range pcts {
		standings = append(standings, Standing{StudentID: fmt.Sprintf("s%02d", i), Percentage: d(p)})
	}
	out := make([]int, 0, len(pcts))
	for _, p := range Rank(standings) {
		out = append(out, p.Position)
	}
	return out
}

func TestRank(t *testing.T) {
	tests := []struct {
		name string
		pcts []string
		want []int
	}{
		{"empty", nil, []int{}},
		{"single student", []string{"42"}, []int{1}},
		{"tie in the middle", []string{"95", "90", "90", "80"}, []int{1, 2, 2, 4}},
		{"all tied", []string{"70", "70", "70"}, []int{1, 1, 1}},
		{"unsorted input", []string{"80", "90", "95", "90"}, []int{1, 2, 2, 4}},
		{"within tolerance", []string{"90.05", "90", "85"}, []int{1, 1, 3}},
		{"at tolerance is not a tie", []string{"90.1", "90", "85"}, []int{1, 2, 3}},
		{"tie at the top", []string{"99", "99", "50", "50", "10"}, []int{1, 1, 3, 3, 5}},
		{"no ties", []string{"10", "20", "30"}, []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, positions(tt.pcts...))
		})
	}
}

func TestRank_competitionProperty(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		n := rnd.Intn(30) + 1
		pcts := make([]string, 0, n)
		for j := 0; j < n; j++ {
			pcts = append(pcts, fmt.Sprint(rnd.Intn(10)*10)) // plenty of exact ties
		}
		got := positions(pcts...)

		require.Equal(t, 1, got[0])
		for j := 1; j < len(got); j++ {
			if got[j] != got[j-1] {
				// the next group starts right after every student placed before it
				assert.Equal(t, j+1, got[j])
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		pct  string
		want Grade
	}{
		{"100", GradeAPlus},
		{"90", GradeAPlus},
		{"89.999", GradeA},
		{"80", GradeA},
		{"79.99", GradeB},
		{"70", GradeB},
		{"69.9", GradeC},
		{"60", GradeC},
		{"59.999", GradeD},
		{"50", GradeD},
		{"49.999", GradeF},
		{"0", GradeF},
		{"-5", GradeF},
		{"150", GradeAPlus},
	}
	for _, tt := range tests {
		t.Run(tt.pct, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(d(tt.pct)))
		})
	}
}

func TestClassify_monotonic(t *testing.T) {
	prev := Classify(decimal.Zero)
	for i := 1; i <= 1200; i++ {
		pct := decimal.New(int64(i), -1) // 0.1 steps up to 120
		g := Classify(pct)
		assert.GreaterOrEqual(t, g.Rank(), prev.Rank(), "at %s", pct)
		prev = g
	}
}

func TestScoreLine_parse(t *testing.T) {
	tests := []struct {
		name      string
		line      ScoreLine
		wantField string
	}{
		{"valid default maximum", ScoreLine{StudentID: "s", Score: "77.5"}, ""},
		{"valid custom maximum", ScoreLine{StudentID: "s", Score: "20", MaximumScore: "40"}, ""},
		{"non numeric", ScoreLine{StudentID: "s", Score: "abc"}, "score"},
		{"negative", ScoreLine{StudentID: "s", Score: "-1"}, "score"},
		{"above maximum", ScoreLine{StudentID: "s", Score: "51", MaximumScore: "50"}, "score"},
		{"zero maximum", ScoreLine{StudentID: "s", Score: "0", MaximumScore: "0"}, "maximum_score"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, flds := tt.line.parse()
			if tt.wantField == "" {
				assert.Empty(t, flds)
				return
			}
			require.NotEmpty(t, flds)
			assert.Equal(t, tt.wantField, flds[0].Field)
		})
	}
}
