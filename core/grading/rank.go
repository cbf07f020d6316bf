package grading

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TieTolerance is the largest percentage gap (exclusive) at which two students share a position.
var TieTolerance = decimal.NewFromFloat(0.1)

// Rank assigns competition ranking positions ("1224") by descending percentage.
// A student whose percentage is within TieTolerance of the previous one shares its position;
// the next untied student is placed after the whole tied group.
func Rank(standings []Standing) []Placement {
	sorted := make([]Standing, len(standings))
	copy(sorted, standings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Percentage.Cmp(sorted[j].Percentage); c != 0 {
			return c > 0
		}
		return sorted[i].StudentID < sorted[j].StudentID
	})

	placements := make([]Placement, 0, len(sorted))
	position, groupSize := 1, 0
	for i, s := range sorted {
		if i > 0 && s.Percentage.Sub(sorted[i-1].Percentage).Abs().LessThan(TieTolerance) {
			groupSize++
		} else {
			position += groupSize
			groupSize = 1
		}
		placements = append(placements, Placement{Standing: s, Position: position})
	}
	return placements
}
