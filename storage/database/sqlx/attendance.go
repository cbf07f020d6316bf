package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/excellacademy/academia/core/attendance"
)

const attendanceColumns = "id, student_id, class_id, date, status, remarks, marked_by, created_at, updated_at"

type attendanceRepository struct {
	db dbtx
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: bind(db)}
}

func (repo *attendanceRepository) UpsertRecords(ctx context.Context, recs []attendance.Record) ([]attendance.Record, error) {
	saved := make([]attendance.Record, 0, len(recs))
	err := withinTx(ctx, repo.db, func(tx dbtx) error {
		for _, rec := range recs {
			var out attendance.Record
			err := namedGet(ctx, tx, &out, `
				INSERT INTO attendance (`+attendanceColumns+`)
				VALUES (:id, :student_id, :class_id, :date, :status, :remarks, :marked_by, :created_at, :updated_at)
				ON CONFLICT ON CONSTRAINT attendance_student_id_date_key DO UPDATE
				SET class_id = EXCLUDED.class_id, status = EXCLUDED.status, remarks = EXCLUDED.remarks,
				    marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
				RETURNING `+attendanceColumns, rec)
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

func (repo *attendanceRepository) QueryRecords(ctx context.Context, qf attendance.QueryFilter) ([]attendance.Record, error) {
	var f filter
	if len(qf.StudentIDs) > 0 {
		f.where("student_id IN (?)", qf.StudentIDs)
	}
	if qf.ClassID != "" {
		f.where("class_id = ?", qf.ClassID)
	}
	if !qf.From.IsZero() {
		f.where("date >= ?", qf.From)
	}
	if !qf.To.IsZero() {
		f.where("date <= ?", qf.To)
	}
	recs := make([]attendance.Record, 0)
	err := f.sel(ctx, repo.db, &recs, "SELECT "+attendanceColumns+" FROM attendance", "ORDER BY date, student_id")
	return recs, err
}
