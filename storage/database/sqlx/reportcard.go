package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/reportcard"
)

const reportCardColumns = "id, student_id, class_id, term, academic_year, overall_grade, percentage, class_position, " +
	"remarks, finalized, document_ref, generated_by, created_at, updated_at"

type reportCardRepository struct {
	db dbtx
}

var _ reportcard.Repository = (*reportCardRepository)(nil)

func NewReportCardRepository(db *sqlx.DB) *reportCardRepository {
	return &reportCardRepository{db: bind(db)}
}

func (repo *reportCardRepository) Upsert(ctx context.Context, rec reportcard.Record) (reportcard.Record, error) {
	var out reportcard.Record
	err := namedGet(ctx, repo.db, &out, `
		INSERT INTO report_cards (`+reportCardColumns+`)
		VALUES (:id, :student_id, :class_id, :term, :academic_year, :overall_grade, :percentage, :class_position,
		        :remarks, :finalized, :document_ref, :generated_by, :created_at, :updated_at)
		ON CONFLICT ON CONSTRAINT report_cards_student_period_key DO UPDATE
		SET class_id = EXCLUDED.class_id, overall_grade = EXCLUDED.overall_grade, percentage = EXCLUDED.percentage,
		    class_position = EXCLUDED.class_position, remarks = EXCLUDED.remarks,
		    generated_by = EXCLUDED.generated_by, updated_at = EXCLUDED.updated_at
		RETURNING `+reportCardColumns, rec)
	return out, translate(err)
}

func (repo *reportCardRepository) Get(ctx context.Context, id string) (reportcard.Record, error) {
	var rec reportcard.Record
	err := get(ctx, repo.db, &rec, "SELECT "+reportCardColumns+" FROM report_cards WHERE id = ?", id)
	return rec, notFound(err, reportcard.ErrNotFound)
}

func (repo *reportCardRepository) GetByKey(ctx context.Context, studentID string, period grading.Period) (reportcard.Record, error) {
	var rec reportcard.Record
	err := get(ctx, repo.db, &rec,
		"SELECT "+reportCardColumns+" FROM report_cards WHERE student_id = ? AND term = ? AND academic_year = ?",
		studentID, period.Term, period.AcademicYear)
	return rec, notFound(err, reportcard.ErrNotFound)
}

func (repo *reportCardRepository) Query(ctx context.Context, qf reportcard.QueryFilter) ([]reportcard.Record, error) {
	var f filter
	if len(qf.StudentIDs) > 0 {
		f.where("student_id IN (?)", qf.StudentIDs)
	}
	if qf.ClassID != "" {
		f.where("class_id = ?", qf.ClassID)
	}
	if qf.Period != nil {
		f.where("term = ? AND academic_year = ?", qf.Period.Term, qf.Period.AcademicYear)
	}
	if qf.Finalized != nil {
		f.where("finalized = ?", *qf.Finalized)
	}
	if qf.MissingDocument {
		f.where("document_ref IS NULL")
	}
	recs := make([]reportcard.Record, 0)
	err := f.sel(ctx, repo.db, &recs, "SELECT "+reportCardColumns+" FROM report_cards",
		"ORDER BY academic_year DESC, term, class_position NULLS LAST, student_id")
	return recs, err
}

func (repo *reportCardRepository) MarkFinalized(ctx context.Context, id, documentRef string, at time.Time) (reportcard.Record, error) {
	var rec reportcard.Record
	err := get(ctx, repo.db, &rec, `
		UPDATE report_cards SET finalized = true, document_ref = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+reportCardColumns, documentRef, at, id)
	return rec, notFound(err, reportcard.ErrNotFound)
}

func (repo *reportCardRepository) MarkDraft(ctx context.Context, id string, at time.Time) (reportcard.Record, error) {
	var rec reportcard.Record
	err := get(ctx, repo.db, &rec, `
		UPDATE report_cards SET finalized = false, document_ref = NULL, updated_at = ?
		WHERE id = ?
		RETURNING `+reportCardColumns, at, id)
	return rec, notFound(err, reportcard.ErrNotFound)
}

func (repo *reportCardRepository) WithinTx(ctx context.Context, fn func(reportcard.Repository) error) error {
	return withinTx(ctx, repo.db, func(tx dbtx) error {
		return fn(&reportCardRepository{db: tx})
	})
}
