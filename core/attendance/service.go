package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/grading"
)

type (
	Repository interface {
		// UpsertRecords inserts the records or updates the ones matching (student, date).
		UpsertRecords(ctx context.Context, recs []Record) ([]Record, error)
		QueryRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
	}

	Service struct {
		repo   Repository
		roster grading.Roster
	}
)

func NewService(repo Repository, roster grading.Roster) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(roster, "roster"),
	).CheckAndPanic()
	return &Service{repo: repo, roster: roster}
}

// Mark upserts the attendance of every line of the sheet. Every student must belong to the class.
func (svc *Service) Mark(ctx context.Context, sheet Sheet, markedBy string) ([]Record, error) {
	date, err := time.Parse(DateLayout, sheet.Date)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "date", Error: "must be a date like 2006-01-02"})
	}

	ids, err := svc.roster.ClassStudentIDs(ctx, sheet.ClassID)
	if err != nil {
		return nil, errors.Wrap(err, "listing class students")
	}
	inClass := make(map[string]bool, len(ids))
	for _, id := range ids {
		inClass[id] = true
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(sheet.Lines))
	recs := make([]Record, 0, len(sheet.Lines))
	var fldErrs []core.FieldError
	for i, line := range sheet.Lines {
		field := fmt.Sprintf("lines[%d].student_id", i)
		switch {
		case seen[line.StudentID]:
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: "duplicate student in sheet"})
			continue
		case !inClass[line.StudentID]:
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: "student is not in this class"})
			continue
		}
		seen[line.StudentID] = true
		recs = append(recs, Record{
			ID:        uuid.New().String(),
			StudentID: line.StudentID,
			ClassID:   sheet.ClassID,
			Date:      date,
			Status:    line.Status,
			Remarks:   line.Remarks,
			MarkedBy:  markedBy,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(errors.New("invalid attendance sheet"), fldErrs...)
	}
	return svc.repo.UpsertRecords(ctx, recs)
}

func (svc *Service) Records(ctx context.Context, filter QueryFilter) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter)
}

// Summary counts the statuses of a class on a day. The rate is 0 for an empty class.
func (svc *Service) Summary(ctx context.Context, classID string, date time.Time) (Summary, error) {
	sum := Summary{ClassID: classID, Date: date, Counts: make(map[Status]int, len(Statuses)), Rate: decimal.Zero}
	for _, s := range Statuses {
		sum.Counts[s] = 0
	}

	ids, err := svc.roster.ClassStudentIDs(ctx, classID)
	if err != nil {
		return sum, errors.Wrap(err, "listing class students")
	}
	sum.ClassSize = len(ids)
	if sum.ClassSize == 0 {
		return sum, nil
	}

	recs, err := svc.repo.QueryRecords(ctx, QueryFilter{StudentIDs: ids, From: date, To: date})
	if err != nil {
		return sum, errors.Wrap(err, "querying attendance")
	}
	var attended int
	for _, r := range recs {
		sum.Counts[r.Status]++
		if r.Status.Attended() {
			attended++
		}
	}
	sum.Unmarked = sum.ClassSize - len(recs)
	sum.Rate = decimal.NewFromInt(int64(attended)).
		Div(decimal.NewFromInt(int64(sum.ClassSize))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	return sum, nil
}
