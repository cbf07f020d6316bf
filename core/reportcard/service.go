package reportcard

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/grading"
)

var (
	ErrNotFound       = core.NewNotFoundError("report card")
	ErrNothingToPrint = errors.New("student has no scores for this period")
	ErrNotInClass     = errors.New("student is no longer in the class of this report card")
)

type (
	Repository interface {
		// Upsert inserts rec or, for an existing (student, term, academic year), overwrites its
		// grade, percentage, position, class, remarks and author. Finalization state is kept.
		Upsert(ctx context.Context, rec Record) (Record, error)
		Get(ctx context.Context, id string) (Record, error)
		GetByKey(ctx context.Context, studentID string, period grading.Period) (Record, error)
		Query(ctx context.Context, filter QueryFilter) ([]Record, error)
		MarkFinalized(ctx context.Context, id, documentRef string, at time.Time) (Record, error)
		// MarkDraft clears the finalized flag and the document reference.
		MarkDraft(ctx context.Context, id string, at time.Time) (Record, error)
		WithinTx(ctx context.Context, fn func(Repository) error) error
	}

	// Renderer lays out a report card document.
	Renderer interface {
		Render(ctx context.Context, doc Document) ([]byte, error)
	}

	// DocumentStore persists rendered documents. Save returns the reference to store on the Record.
	DocumentStore interface {
		Save(ctx context.Context, name string, content []byte) (ref string, err error)
		Exists(ctx context.Context, ref string) (bool, error)
		Load(ctx context.Context, ref string) ([]byte, error)
	}

	// Directory resolves display names.
	Directory interface {
		StudentName(ctx context.Context, studentID string) (string, error)
		ClassName(ctx context.Context, classID string) (string, error)
		SubjectNames(ctx context.Context) (map[string]string, error)
	}

	Service struct {
		repo       Repository
		grades     *grading.Service
		dir        Directory
		renderer   Renderer
		store      DocumentStore
		schoolName string
		logger     core.Logger
		now        func() time.Time
	}
)

func NewService(
	repo Repository,
	grades *grading.Service,
	dir Directory,
	renderer Renderer,
	store DocumentStore,
	conf *core.Config,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(grades, "grades"),
		vala.IsNotNil(dir, "dir"),
		vala.IsNotNil(renderer, "renderer"),
		vala.IsNotNil(store, "store"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()
	return &Service{
		repo:       repo,
		grades:     grades,
		dir:        dir,
		renderer:   renderer,
		store:      store,
		schoolName: conf.SchoolName,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) Get(ctx context.Context, id string) (Record, error) {
	return svc.repo.Get(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	return svc.repo.Query(ctx, filter)
}

// Generate ranks the class for the period and upserts the draft report card of every scored student.
// Other drafts of the class lose their position. Finalized report cards are left as they are.
func (svc *Service) Generate(ctx context.Context, classID string, period grading.Period, generatedBy string) (GenerateResult, error) {
	res := GenerateResult{Records: []Record{}, Skipped: []string{}, Cleared: []string{}}

	perf, err := svc.grades.ClassPerformance(ctx, classID, period)
	if err != nil {
		return res, errors.Wrap(err, "computing class performance")
	}
	res.Unscored = perf.Unscored

	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		for _, p := range perf.Placements {
			existing, err := repo.GetByKey(ctx, p.StudentID, period)
			switch {
			case err == nil && existing.Finalized:
				res.Skipped = append(res.Skipped, p.StudentID)
				continue
			case err != nil && !errors.Is(err, ErrNotFound):
				return errors.Wrap(err, "getting report card")
			}

			now := svc.now()
			rec, err := repo.Upsert(ctx, Record{
				ID:            uuid.New().String(),
				StudentID:     p.StudentID,
				ClassID:       classID,
				Term:          period.Term,
				AcademicYear:  period.AcademicYear,
				OverallGrade:  grading.Classify(p.Percentage),
				Percentage:    p.Percentage.Round(2),
				ClassPosition: null.IntFrom(p.Position),
				GeneratedBy:   generatedBy,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
			if err != nil {
				return errors.Wrap(err, "upserting report card")
			}
			res.Records = append(res.Records, rec)
		}

		placed := make(map[string]bool, len(perf.Placements))
		for _, p := range perf.Placements {
			placed[p.StudentID] = true
		}
		draft := false
		stale, err := repo.Query(ctx, QueryFilter{ClassID: classID, Period: &period, Finalized: &draft})
		if err != nil {
			return errors.Wrap(err, "querying drafts")
		}
		for _, rec := range stale {
			if placed[rec.StudentID] || !rec.ClassPosition.Valid {
				continue
			}
			rec.ClassPosition = null.Int{}
			rec.UpdatedAt = svc.now()
			if _, err = repo.Upsert(ctx, rec); err != nil {
				return errors.Wrap(err, "clearing report card position")
			}
			res.Cleared = append(res.Cleared, rec.StudentID)
		}
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}
	return res, nil
}

// refresh recomputes the class placements of the period so that a draft matches the current scores.
func (svc *Service) refresh(ctx context.Context, rec Record) (Record, error) {
	res, err := svc.Generate(ctx, rec.ClassID, rec.Period(), rec.GeneratedBy)
	if err != nil {
		return rec, err
	}
	for _, r := range res.Records {
		if r.StudentID == rec.StudentID {
			return r, nil
		}
	}
	for _, id := range res.Unscored {
		if id == rec.StudentID {
			return rec, core.NewValidationError(ErrNothingToPrint)
		}
	}
	for _, id := range res.Skipped {
		if id == rec.StudentID {
			// finalized meanwhile
			return svc.repo.Get(ctx, rec.ID)
		}
	}
	return rec, core.NewValidationError(ErrNotInClass)
}

// Finalize renders and stores the document of the report card, then marks it finalized.
// A draft is regenerated first, so the locked grade, percentage and position match the printed scores.
// On a rendering or storage failure the record stays a draft and a retryable error is returned.
func (svc *Service) Finalize(ctx context.Context, id string) (Record, error) {
	rec, err := svc.repo.Get(ctx, id)
	if err != nil {
		return Record{}, errors.Wrap(err, "getting report card")
	}
	if !rec.Finalized {
		if rec, err = svc.refresh(ctx, rec); err != nil {
			return rec, err
		}
	}
	if rec.Finalized && rec.DocumentRef.Valid {
		return rec, nil
	}

	ref, err := svc.produceDocument(ctx, rec)
	if err != nil {
		return rec, err
	}
	rec, err = svc.repo.MarkFinalized(ctx, rec.ID, ref, svc.now())
	return rec, errors.Wrap(err, "marking report card finalized")
}

// Document returns the stored document of a finalized report card.
func (svc *Service) Document(ctx context.Context, id string) ([]byte, Record, error) {
	rec, err := svc.repo.Get(ctx, id)
	if err != nil {
		return nil, rec, errors.Wrap(err, "getting report card")
	}
	if !rec.DocumentRef.Valid {
		return nil, rec, core.NewNotFoundError("report card document")
	}
	content, err := svc.store.Load(ctx, rec.DocumentRef.String)
	if err != nil {
		return nil, rec, core.NewExternalServiceError("document store", err)
	}
	return content, rec, nil
}

// RegenerateMissingDocuments produces the document of every finalized report card lacking one.
func (svc *Service) RegenerateMissingDocuments(ctx context.Context) (int, error) {
	finalized := true
	recs, err := svc.repo.Query(ctx, QueryFilter{Finalized: &finalized, MissingDocument: true})
	if err != nil {
		return 0, errors.Wrap(err, "querying report cards")
	}

	var count int
	for _, rec := range recs {
		ref, err := svc.produceDocument(ctx, rec)
		if err != nil {
			svc.logger.Error("regenerating report card document", err, map[string]interface{}{"report_card": rec.ID})
			continue
		}
		if _, err = svc.repo.MarkFinalized(ctx, rec.ID, ref, svc.now()); err != nil {
			svc.logger.Error("marking report card finalized", err, map[string]interface{}{"report_card": rec.ID})
			continue
		}
		count++
	}
	return count, nil
}

// VerifyDocuments moves finalized report cards whose document vanished back to draft.
// Store failures are not evidence of a missing document and leave the record alone.
func (svc *Service) VerifyDocuments(ctx context.Context) (int, error) {
	finalized := true
	recs, err := svc.repo.Query(ctx, QueryFilter{Finalized: &finalized})
	if err != nil {
		return 0, errors.Wrap(err, "querying report cards")
	}

	var repaired int
	for _, rec := range recs {
		if !rec.DocumentRef.Valid {
			continue // handled by RegenerateMissingDocuments
		}
		exists, err := svc.store.Exists(ctx, rec.DocumentRef.String)
		if err != nil {
			svc.logger.Warn("checking report card document", core.NewExternalServiceError("document store", err))
			continue
		}
		if exists {
			continue
		}

		anomaly := core.NewDataIntegrityError(errors.Errorf("finalized report card %s has no document at %q", rec.ID, rec.DocumentRef.String))
		svc.logger.Warn("repairing report card", anomaly)
		if _, err = svc.repo.MarkDraft(ctx, rec.ID, svc.now()); err != nil {
			return repaired, errors.Wrap(err, "marking report card draft")
		}
		repaired++
	}
	return repaired, nil
}

func (svc *Service) produceDocument(ctx context.Context, rec Record) (string, error) {
	doc, err := svc.buildDocument(ctx, rec)
	if err != nil {
		return "", err
	}
	content, err := svc.renderer.Render(ctx, doc)
	if err != nil {
		return "", core.NewExternalServiceError("document renderer", err)
	}
	ref, err := svc.store.Save(ctx, DocumentName(rec.StudentID, rec.Period()), content)
	if err != nil {
		return "", core.NewExternalServiceError("document store", err)
	}
	return ref, nil
}

func (svc *Service) buildDocument(ctx context.Context, rec Record) (Document, error) {
	entries, err := svc.grades.StudentScores(ctx, rec.StudentID, rec.Period())
	if err != nil {
		return Document{}, errors.Wrap(err, "querying scores")
	}
	totals, err := grading.Aggregate(entries)
	if errors.Is(err, grading.ErrNoScores) {
		return Document{}, core.NewValidationError(ErrNothingToPrint)
	}
	if err != nil {
		return Document{}, errors.Wrap(err, "aggregating scores")
	}

	studentName, err := svc.dir.StudentName(ctx, rec.StudentID)
	if err != nil {
		return Document{}, errors.Wrap(err, "getting student name")
	}
	className, err := svc.dir.ClassName(ctx, rec.ClassID)
	if err != nil {
		return Document{}, errors.Wrap(err, "getting class name")
	}
	subjects, err := svc.dir.SubjectNames(ctx)
	if err != nil {
		return Document{}, errors.Wrap(err, "getting subject names")
	}

	lines := make([]DocumentLine, 0, len(entries))
	for _, e := range entries {
		name, ok := subjects[e.SubjectID]
		if !ok {
			name = e.SubjectID
		}
		lines = append(lines, DocumentLine{
			Subject:      name,
			Score:        e.Score,
			MaximumScore: e.MaximumScore,
			Percentage:   e.Percentage().Round(2),
			Remarks:      e.Remarks,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Subject < lines[j].Subject })

	return Document{
		SchoolName:        svc.schoolName,
		StudentName:       studentName,
		ClassName:         className,
		Record:            rec,
		Lines:             lines,
		Totals:            totals,
		AveragePercentage: totals.Percentage.Round(2),
		GeneratedOn:       svc.now(),
	}, nil
}

// Locker reports a student's scores as frozen once the report card of the period is finalized.
type Locker struct {
	repo Repository
}

var _ grading.Locker = (*Locker)(nil)

func NewLocker(repo Repository) *Locker {
	return &Locker{repo: repo}
}

func (l *Locker) IsLocked(ctx context.Context, studentID string, period grading.Period) (bool, error) {
	rec, err := l.repo.GetByKey(ctx, studentID, period)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Finalized, nil
}
