package inmemdb

import (
	"context"
	"sort"

	"github.com/excellacademy/academia/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) UpsertRecords(_ context.Context, recs []attendance.Record) ([]attendance.Record, error) {
	saved := make([]attendance.Record, 0, len(recs))
	err := repo.db.write(false, func(t *tables) error {
		for _, rec := range recs {
			for id, o := range t.attendance {
				if o.StudentID == rec.StudentID && o.Date.Equal(rec.Date) {
					rec.ID = id
					rec.CreatedAt = o.CreatedAt
					break
				}
			}
			t.attendance[rec.ID] = rec
			saved = append(saved, rec)
		}
		return nil
	})
	return saved, err
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	recs := make([]attendance.Record, 0)
	repo.db.read(func(t *tables) {
		for _, r := range t.attendance {
			if len(filter.StudentIDs) > 0 && !containsStr(filter.StudentIDs, r.StudentID) {
				continue
			}
			if filter.ClassID != "" && r.ClassID != filter.ClassID {
				continue
			}
			if !filter.From.IsZero() && r.Date.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && r.Date.After(filter.To) {
				continue
			}
			recs = append(recs, r)
		}
	})
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.Before(recs[j].Date)
		}
		return recs[i].StudentID < recs[j].StudentID
	})
	return recs, nil
}
