package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/reportcard"
)

type reportCardRepository struct {
	db   *DB
	inTx bool
}

var _ reportcard.Repository = (*reportCardRepository)(nil)

func NewReportCardRepository(db *DB) *reportCardRepository {
	return &reportCardRepository{db: db}
}

func (repo *reportCardRepository) Upsert(_ context.Context, rec reportcard.Record) (reportcard.Record, error) {
	err := repo.db.write(repo.inTx, func(t *tables) error {
		for _, o := range t.reportCards {
			if o.StudentID == rec.StudentID && o.Term == rec.Term && o.AcademicYear == rec.AcademicYear {
				o.ClassID = rec.ClassID
				o.OverallGrade = rec.OverallGrade
				o.Percentage = rec.Percentage
				o.ClassPosition = rec.ClassPosition
				o.Remarks = rec.Remarks
				o.GeneratedBy = rec.GeneratedBy
				o.UpdatedAt = rec.UpdatedAt
				rec = o
				break
			}
		}
		t.reportCards[rec.ID] = rec
		return nil
	})
	return rec, err
}

func (repo *reportCardRepository) Get(_ context.Context, id string) (reportcard.Record, error) {
	var (
		rec reportcard.Record
		ok  bool
	)
	repo.db.read(func(t *tables) { rec, ok = t.reportCards[id] })
	if !ok {
		return reportcard.Record{}, reportcard.ErrNotFound
	}
	return rec, nil
}

func (repo *reportCardRepository) GetByKey(_ context.Context, studentID string, period grading.Period) (reportcard.Record, error) {
	var (
		rec reportcard.Record
		ok  bool
	)
	repo.db.read(func(t *tables) {
		for _, o := range t.reportCards {
			if o.StudentID == studentID && o.Term == period.Term && o.AcademicYear == period.AcademicYear {
				rec, ok = o, true
				return
			}
		}
	})
	if !ok {
		return reportcard.Record{}, reportcard.ErrNotFound
	}
	return rec, nil
}

func (repo *reportCardRepository) Query(_ context.Context, filter reportcard.QueryFilter) ([]reportcard.Record, error) {
	recs := make([]reportcard.Record, 0)
	repo.db.read(func(t *tables) {
		for _, r := range t.reportCards {
			if len(filter.StudentIDs) > 0 && !containsStr(filter.StudentIDs, r.StudentID) {
				continue
			}
			if filter.ClassID != "" && r.ClassID != filter.ClassID {
				continue
			}
			if filter.Period != nil && (r.Term != filter.Period.Term || r.AcademicYear != filter.Period.AcademicYear) {
				continue
			}
			if filter.Finalized != nil && r.Finalized != *filter.Finalized {
				continue
			}
			if filter.MissingDocument && r.DocumentRef.Valid {
				continue
			}
			recs = append(recs, r)
		}
	})
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.AcademicYear != b.AcademicYear {
			return a.AcademicYear > b.AcademicYear
		}
		if a.Term != b.Term {
			return a.Term < b.Term
		}
		if a.ClassPosition.Int != b.ClassPosition.Int {
			return a.ClassPosition.Int < b.ClassPosition.Int
		}
		return a.StudentID < b.StudentID
	})
	return recs, nil
}

func (repo *reportCardRepository) update(id string, fn func(rec *reportcard.Record)) (reportcard.Record, error) {
	var rec reportcard.Record
	err := repo.db.write(repo.inTx, func(t *tables) error {
		var ok bool
		if rec, ok = t.reportCards[id]; !ok {
			return reportcard.ErrNotFound
		}
		fn(&rec)
		t.reportCards[id] = rec
		return nil
	})
	return rec, err
}

func (repo *reportCardRepository) MarkFinalized(_ context.Context, id, documentRef string, at time.Time) (reportcard.Record, error) {
	return repo.update(id, func(rec *reportcard.Record) {
		rec.Finalized = true
		rec.DocumentRef = null.StringFrom(documentRef)
		rec.UpdatedAt = at
	})
}

func (repo *reportCardRepository) MarkDraft(_ context.Context, id string, at time.Time) (reportcard.Record, error) {
	return repo.update(id, func(rec *reportcard.Record) {
		rec.Finalized = false
		rec.DocumentRef = null.String{}
		rec.UpdatedAt = at
	})
}

func (repo *reportCardRepository) WithinTx(_ context.Context, fn func(reportcard.Repository) error) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return fn(&reportCardRepository{db: repo.db, inTx: true})
	})
}
