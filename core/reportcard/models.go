package reportcard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/grading"
)

type State string

const (
	StateDraft     State = "draft"
	StateFinalized State = "finalized"
)

// Record is the report card of a student for a Period. There is at most one per (student, term, academic year).
type Record struct {
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	ClassID       string          `json:"class_id"`
	Term          string          `json:"term"`
	AcademicYear  string          `json:"academic_year"`
	OverallGrade  grading.Grade   `json:"overall_grade"`
	Percentage    decimal.Decimal `json:"percentage"`
	ClassPosition null.Int        `json:"class_position"`
	Remarks       string          `json:"remarks"`
	Finalized     bool            `json:"finalized"`
	DocumentRef   null.String     `json:"document_ref"`
	GeneratedBy   string          `json:"generated_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (r Record) State() State {
	if r.Finalized {
		return StateFinalized
	}
	return StateDraft
}

func (r Record) Period() grading.Period {
	return grading.Period{Term: r.Term, AcademicYear: r.AcademicYear}
}

// DocumentName is the storage name of the document of the report card of studentID for p.
// The hash keeps names unique for terms that slugify alike.
func DocumentName(studentID string, p grading.Period) string {
	sum := sha256.Sum256([]byte(studentID + "\x00" + p.Term + "\x00" + p.AcademicYear))
	return fmt.Sprintf("report_cards/%s/%s_%s_%s.pdf",
		studentID, core.Slugify(p.AcademicYear), core.Slugify(p.Term), hex.EncodeToString(sum[:4]))
}

// QueryFilter applies AND on the set fields.
type QueryFilter struct {
	StudentIDs      []string
	ClassID         string
	Period          *grading.Period
	Finalized       *bool
	MissingDocument bool // only records without a document reference
}

// GenerateResult is the outcome of Service.Generate.
type GenerateResult struct {
	Records  []Record `json:"records"`
	Skipped  []string `json:"skipped"`  // students whose report card is finalized
	Unscored []string `json:"unscored"` // students without scores
	Cleared  []string `json:"cleared"`  // students whose stale draft lost its position
}

// Document is what a Renderer lays out.
type Document struct {
	SchoolName        string
	StudentName       string
	ClassName         string
	Record            Record
	Lines             []DocumentLine
	Totals            grading.Totals
	AveragePercentage decimal.Decimal
	GeneratedOn       time.Time
}

type DocumentLine struct {
	Subject      string
	Score        decimal.Decimal
	MaximumScore decimal.Decimal
	Percentage   decimal.Decimal
	Remarks      string
}
