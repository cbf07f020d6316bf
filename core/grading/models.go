package grading

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/excellacademy/academia/core"
)

var (
	hundred        = decimal.NewFromInt(100)
	defaultMaximum = hundred
)

// Period is one term of an academic year, e.g. {"First Term", "2023/2024"}.
type Period struct {
	Term         string `json:"term" query:"term" validate:"required"`
	AcademicYear string `json:"academic_year" query:"academic_year" validate:"required,academic_year"`
}

func (p *Period) Clean() {
	p.Term = core.CleanString(p.Term)
	p.AcademicYear = core.CleanString(p.AcademicYear)
}

func (p Period) Validate(validate *validator.Validate) error {
	return validate.Struct(p)
}

// ScoreEntry is the score of a student in a subject for a Period.
type ScoreEntry struct {
	ID           string          `json:"id"`
	StudentID    string          `json:"student_id"`
	SubjectID    string          `json:"subject_id"`
	Term         string          `json:"term"`
	AcademicYear string          `json:"academic_year"`
	Score        decimal.Decimal `json:"score"`
	MaximumScore decimal.Decimal `json:"maximum_score"`
	Remarks      string          `json:"remarks"`
	RecordedBy   string          `json:"recorded_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (e ScoreEntry) Period() Period {
	return Period{Term: e.Term, AcademicYear: e.AcademicYear}
}

// Percentage is Score / MaximumScore * 100, or 0 when MaximumScore is 0.
func (e ScoreEntry) Percentage() decimal.Decimal {
	return percentage(e.Score, e.MaximumScore)
}

func percentage(score, max decimal.Decimal) decimal.Decimal {
	if max.IsZero() {
		return decimal.Zero
	}
	return score.Div(max).Mul(hundred)
}

// ScoreSheet records the scores of several students in one subject for a Period.
type ScoreSheet struct {
	SubjectID string      `json:"subject_id" validate:"required"`
	Period    Period      `json:"period"`
	Lines     []ScoreLine `json:"lines" validate:"required,min=1,dive"`
}

// ScoreLine holds numbers as strings so that malformed input is rejected as a whole.
type ScoreLine struct {
	StudentID    string `json:"student_id" validate:"required"`
	Score        string `json:"score" validate:"required,decimal"`
	MaximumScore string `json:"maximum_score" validate:"omitempty,decimal"`
	Remarks      string `json:"remarks" validate:"max=200"`
}

func (s *ScoreSheet) Validate(validate *validator.Validate) error {
	s.SubjectID = core.CleanString(s.SubjectID)
	s.Period.Clean()
	for i := range s.Lines {
		s.Lines[i].StudentID = core.CleanString(s.Lines[i].StudentID)
		s.Lines[i].Score = core.CleanString(s.Lines[i].Score)
		s.Lines[i].MaximumScore = core.CleanString(s.Lines[i].MaximumScore)
		s.Lines[i].Remarks = core.CleanString(s.Lines[i].Remarks)
	}
	return validate.Struct(s)
}

// parse converts the line to numbers, checking 0 <= score <= maximum and maximum > 0.
func (l ScoreLine) parse() (score, max decimal.Decimal, flds []core.FieldError) {
	score, err := decimal.NewFromString(l.Score)
	if err != nil {
		return score, max, []core.FieldError{{Field: "score", Error: "must be a valid number"}}
	}
	max = defaultMaximum
	if l.MaximumScore != "" {
		if max, err = decimal.NewFromString(l.MaximumScore); err != nil {
			return score, max, []core.FieldError{{Field: "maximum_score", Error: "must be a valid number"}}
		}
	}
	if !max.IsPositive() {
		flds = append(flds, core.FieldError{Field: "maximum_score", Error: "must be greater than 0"})
	}
	if score.IsNegative() {
		flds = append(flds, core.FieldError{Field: "score", Error: "must not be negative"})
	} else if score.GreaterThan(max) {
		flds = append(flds, core.FieldError{Field: "score", Error: "must not exceed the maximum score"})
	}
	return score, max, flds
}

// ScoreFilter applies AND on the set fields.
type ScoreFilter struct {
	StudentIDs []string
	SubjectID  string
	Period     *Period
}

// Totals is the aggregate of a student's ScoreEntries for a Period.
type Totals struct {
	StudentID    string          `json:"student_id"`
	Subjects     int             `json:"subjects"`
	TotalScore   decimal.Decimal `json:"total_score"`
	TotalMaximum decimal.Decimal `json:"total_maximum"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// HasMaximum distinguishes a real 0% from the degenerate "all maximums are 0" case.
func (t Totals) HasMaximum() bool {
	return t.TotalMaximum.IsPositive()
}

// Standing is the input of Rank.
type Standing struct {
	StudentID  string          `json:"student_id"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Placement is a ranked Standing.
type Placement struct {
	Standing
	Position int `json:"position"`
}

// Performance is the ranked result of a class for a Period.
type Performance struct {
	ClassID    string      `json:"class_id"`
	Period     Period      `json:"period"`
	Placements []Placement `json:"placements"`
	Totals     []Totals    `json:"totals"`
	Unscored   []string    `json:"unscored"` // students without any entry
}

// TotalsOf returns the Totals of studentID in p.
func (p Performance) TotalsOf(studentID string) (Totals, bool) {
	for _, t := range p.Totals {
		if t.StudentID == studentID {
			return t, true
		}
	}
	return Totals{}, false
}
