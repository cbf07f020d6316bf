package inmemdb

import (
	"context"
	"sort"

	"github.com/excellacademy/academia/core/grading"
)

type gradingRepository struct {
	db   *DB
	inTx bool
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *DB) *gradingRepository {
	return &gradingRepository{db: db}
}

func (repo *gradingRepository) UpsertScores(_ context.Context, entries []grading.ScoreEntry) ([]grading.ScoreEntry, error) {
	saved := make([]grading.ScoreEntry, 0, len(entries))
	err := repo.db.write(repo.inTx, func(t *tables) error {
		for _, e := range entries {
			for id, o := range t.scores {
				if o.StudentID == e.StudentID && o.SubjectID == e.SubjectID && o.Term == e.Term && o.AcademicYear == e.AcademicYear {
					e.ID = id
					e.CreatedAt = o.CreatedAt
					break
				}
			}
			t.scores[e.ID] = e
			saved = append(saved, e)
		}
		return nil
	})
	return saved, err
}

func (repo *gradingRepository) QueryScores(_ context.Context, filter grading.ScoreFilter) ([]grading.ScoreEntry, error) {
	entries := make([]grading.ScoreEntry, 0)
	repo.db.read(func(t *tables) {
		for _, e := range t.scores {
			if len(filter.StudentIDs) > 0 && !containsStr(filter.StudentIDs, e.StudentID) {
				continue
			}
			if filter.SubjectID != "" && e.SubjectID != filter.SubjectID {
				continue
			}
			if filter.Period != nil && (e.Term != filter.Period.Term || e.AcademicYear != filter.Period.AcademicYear) {
				continue
			}
			entries = append(entries, e)
		}
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StudentID != entries[j].StudentID {
			return entries[i].StudentID < entries[j].StudentID
		}
		return entries[i].SubjectID < entries[j].SubjectID
	})
	return entries, nil
}

func (repo *gradingRepository) WithinTx(_ context.Context, fn func(grading.Repository) error) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return fn(&gradingRepository{db: repo.db, inTx: true})
	})
}
