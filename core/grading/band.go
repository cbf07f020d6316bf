package grading

import "github.com/shopspring/decimal"

type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

type band struct {
	min   decimal.Decimal // inclusive
	grade Grade
}

// bands is ordered from the highest lower bound down; anything below the last bound is an F.
var bands = []band{
	{decimal.NewFromInt(90), GradeAPlus},
	{decimal.NewFromInt(80), GradeA},
	{decimal.NewFromInt(70), GradeB},
	{decimal.NewFromInt(60), GradeC},
	{decimal.NewFromInt(50), GradeD},
}

// Classify maps an overall percentage to its letter grade.
func Classify(pct decimal.Decimal) Grade {
	for _, b := range bands {
		if pct.GreaterThanOrEqual(b.min) {
			return b.grade
		}
	}
	return GradeF
}

// Rank of the letter, higher is better. Used to compare grades.
func (g Grade) Rank() int {
	switch g {
	case GradeAPlus:
		return 5
	case GradeA:
		return 4
	case GradeB:
		return 3
	case GradeC:
		return 2
	case GradeD:
		return 1
	default:
		return 0
	}
}
