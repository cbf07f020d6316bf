package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/excellacademy/academia/core"
)

const DateLayout = "2006-01-02"

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

// Attended tells whether the status counts toward the attendance rate.
func (s Status) Attended() bool {
	return s == StatusPresent || s == StatusLate || s == StatusExcused
}

// Record is the attendance of a student on a day. There is at most one per (student, date).
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	Date      time.Time `json:"date"`
	Status    Status    `json:"status"`
	Remarks   string    `json:"remarks"`
	MarkedBy  string    `json:"marked_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sheet marks the attendance of several students of a class on one day.
type Sheet struct {
	ClassID string      `json:"class_id" validate:"required"`
	Date    string      `json:"date" validate:"required,datetime=2006-01-02"`
	Lines   []SheetLine `json:"lines" validate:"required,min=1,dive"`
}

type SheetLine struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    Status `json:"status" validate:"required,oneof=present absent late excused"`
	Remarks   string `json:"remarks" validate:"max=200"`
}

func (s *Sheet) Validate(validate *validator.Validate) error {
	s.ClassID = core.CleanString(s.ClassID)
	s.Date = core.CleanString(s.Date)
	for i := range s.Lines {
		s.Lines[i].StudentID = core.CleanString(s.Lines[i].StudentID)
		s.Lines[i].Status = Status(core.CleanString(string(s.Lines[i].Status), true /* lower */))
		s.Lines[i].Remarks = core.CleanString(s.Lines[i].Remarks)
	}
	return validate.Struct(s)
}

// QueryFilter applies AND on the set fields. From and To are inclusive.
type QueryFilter struct {
	StudentIDs []string
	ClassID    string
	From       time.Time
	To         time.Time
}

// Summary counts the attendance of a class on a day.
type Summary struct {
	ClassID   string          `json:"class_id"`
	Date      time.Time       `json:"date"`
	ClassSize int             `json:"class_size"`
	Counts    map[Status]int  `json:"counts"`
	Unmarked  int             `json:"unmarked"`
	Rate      decimal.Decimal `json:"rate"` // percent
}
