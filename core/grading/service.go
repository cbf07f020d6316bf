package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/excellacademy/academia/core"
)

var ErrPeriodLocked = errors.New("report card already finalized for this period")

type (
	Repository interface {
		// UpsertScores inserts the entries or updates the ones matching (student, subject, term, academic year).
		UpsertScores(ctx context.Context, entries []ScoreEntry) ([]ScoreEntry, error)
		QueryScores(ctx context.Context, filter ScoreFilter) ([]ScoreEntry, error)
		// WithinTx runs fn with a Repository bound to a single transaction.
		WithinTx(ctx context.Context, fn func(Repository) error) error
	}

	// Roster lists the students of a class.
	Roster interface {
		ClassStudentIDs(ctx context.Context, classID string) ([]string, error)
	}

	// Locker tells whether a student's scores for a Period are frozen.
	Locker interface {
		IsLocked(ctx context.Context, studentID string, period Period) (bool, error)
	}

	Service struct {
		repo   Repository
		roster Roster
		locker Locker
	}
)

func NewService(repo Repository, roster Roster, locker Locker) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(roster, "roster"),
		vala.IsNotNil(locker, "locker"),
	).CheckAndPanic()
	return &Service{repo: repo, roster: roster, locker: locker}
}

// RecordScores validates every line of the sheet before writing any, then upserts them all in one transaction.
func (svc *Service) RecordScores(ctx context.Context, sheet ScoreSheet, recordedBy string) ([]ScoreEntry, error) {
	now := time.Now().UTC()
	seen := make(map[string]bool, len(sheet.Lines))
	entries := make([]ScoreEntry, 0, len(sheet.Lines))
	var fldErrs []core.FieldError

	for i, line := range sheet.Lines {
		prefix := fmt.Sprintf("lines[%d].", i)
		if seen[line.StudentID] {
			fldErrs = append(fldErrs, core.FieldError{Field: prefix + "student_id", Error: "duplicate student in sheet"})
			continue
		}
		seen[line.StudentID] = true

		score, max, errs := line.parse()
		for _, e := range errs {
			fldErrs = append(fldErrs, core.FieldError{Field: prefix + e.Field, Error: e.Error})
		}
		if len(errs) > 0 {
			continue
		}
		entries = append(entries, ScoreEntry{
			ID:           uuid.New().String(),
			StudentID:    line.StudentID,
			SubjectID:    sheet.SubjectID,
			Term:         sheet.Period.Term,
			AcademicYear: sheet.Period.AcademicYear,
			Score:        score,
			MaximumScore: max,
			Remarks:      line.Remarks,
			RecordedBy:   recordedBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(errors.New("invalid score sheet"), fldErrs...)
	}

	for _, e := range entries {
		locked, err := svc.locker.IsLocked(ctx, e.StudentID, sheet.Period)
		if err != nil {
			return nil, errors.Wrap(err, "checking report card lock")
		}
		if locked {
			return nil, core.NewValidationError(ErrPeriodLocked, core.FieldError{Field: "student_id", Error: ErrPeriodLocked.Error() + ": " + e.StudentID})
		}
	}

	var saved []ScoreEntry
	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		var err error
		saved, err = repo.UpsertScores(ctx, entries)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "upserting scores")
	}
	return saved, nil
}

func (svc *Service) StudentScores(ctx context.Context, studentID string, period Period) ([]ScoreEntry, error) {
	return svc.repo.QueryScores(ctx, ScoreFilter{StudentIDs: []string{studentID}, Period: &period})
}

// StudentTotals returns ErrNoScores when the student has no entry for the Period.
func (svc *Service) StudentTotals(ctx context.Context, studentID string, period Period) (Totals, error) {
	entries, err := svc.StudentScores(ctx, studentID, period)
	if err != nil {
		return Totals{}, errors.Wrap(err, "querying scores")
	}
	return Aggregate(entries)
}

// ClassPerformance aggregates every student of the class roster and ranks the ones having scores.
func (svc *Service) ClassPerformance(ctx context.Context, classID string, period Period) (Performance, error) {
	perf := Performance{ClassID: classID, Period: period, Placements: []Placement{}, Totals: []Totals{}, Unscored: []string{}}

	studentIDs, err := svc.roster.ClassStudentIDs(ctx, classID)
	if err != nil {
		return perf, errors.Wrap(err, "listing class students")
	}
	if len(studentIDs) == 0 {
		return perf, nil
	}

	entries, err := svc.repo.QueryScores(ctx, ScoreFilter{StudentIDs: studentIDs, Period: &period})
	if err != nil {
		return perf, errors.Wrap(err, "querying scores")
	}
	groups := groupByStudent(entries)

	standings := make([]Standing, 0, len(studentIDs))
	for _, id := range studentIDs {
		totals, err := Aggregate(groups[id])
		if errors.Is(err, ErrNoScores) {
			perf.Unscored = append(perf.Unscored, id)
			continue
		}
		perf.Totals = append(perf.Totals, totals)
		standings = append(standings, Standing{StudentID: id, Percentage: totals.Percentage})
	}
	perf.Placements = Rank(standings)
	return perf, nil
}
