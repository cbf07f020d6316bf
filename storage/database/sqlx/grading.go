package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/excellacademy/academia/core/grading"
)

const scoreColumns = "id, student_id, subject_id, term, academic_year, score, maximum_score, remarks, recorded_by, created_at, updated_at"

type gradingRepository struct {
	db dbtx
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *sqlx.DB) *gradingRepository {
	return &gradingRepository{db: bind(db)}
}

func (repo *gradingRepository) UpsertScores(ctx context.Context, entries []grading.ScoreEntry) ([]grading.ScoreEntry, error) {
	saved := make([]grading.ScoreEntry, 0, len(entries))
	err := withinTx(ctx, repo.db, func(tx dbtx) error {
		for _, e := range entries {
			var out grading.ScoreEntry
			err := namedGet(ctx, tx, &out, `
				INSERT INTO scores (`+scoreColumns+`)
				VALUES (:id, :student_id, :subject_id, :term, :academic_year, :score, :maximum_score, :remarks,
				        :recorded_by, :created_at, :updated_at)
				ON CONFLICT ON CONSTRAINT scores_student_subject_period_key DO UPDATE
				SET score = EXCLUDED.score, maximum_score = EXCLUDED.maximum_score, remarks = EXCLUDED.remarks,
				    recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
				RETURNING `+scoreColumns, e)
			if err != nil {
				return translate(err)
			}
			saved = append(saved, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *gradingRepository) QueryScores(ctx context.Context, sf grading.ScoreFilter) ([]grading.ScoreEntry, error) {
	var f filter
	if len(sf.StudentIDs) > 0 {
		f.where("student_id IN (?)", sf.StudentIDs)
	}
	if sf.SubjectID != "" {
		f.where("subject_id = ?", sf.SubjectID)
	}
	if sf.Period != nil {
		f.where("term = ? AND academic_year = ?", sf.Period.Term, sf.Period.AcademicYear)
	}
	entries := make([]grading.ScoreEntry, 0)
	err := f.sel(ctx, repo.db, &entries, "SELECT "+scoreColumns+" FROM scores", "ORDER BY student_id, subject_id")
	return entries, err
}

func (repo *gradingRepository) WithinTx(ctx context.Context, fn func(grading.Repository) error) error {
	return withinTx(ctx, repo.db, func(tx dbtx) error {
		return fn(&gradingRepository{db: tx})
	})
}
