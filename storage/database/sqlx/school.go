package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core/school"
)

const (
	classColumns   = "id, name, section, academic_year, class_teacher_id, created_at, updated_at"
	subjectColumns = "id, name, code, description, created_at"
	parentColumns  = "id, user_id, occupation, emergency_contact, created_at"
	teacherColumns = "id, user_id, employee_id, hire_date, class_id, subject_ids, created_at, updated_at"
	studentColumns = "id, user_id, admission_number, admission_date, class_id, parent_id, created_at, updated_at"
)

type teacherRow struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	EmployeeID string         `json:"employee_id"`
	HireDate   time.Time      `json:"hire_date"`
	ClassID    null.String    `json:"class_id"`
	SubjectIDs pq.StringArray `json:"subject_ids"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func newTeacherRow(t school.Teacher) teacherRow {
	ids := pq.StringArray(t.SubjectIDs)
	if ids == nil {
		ids = pq.StringArray{}
	}
	return teacherRow{
		ID: t.ID, UserID: t.UserID, EmployeeID: t.EmployeeID, HireDate: t.HireDate, ClassID: t.ClassID,
		SubjectIDs: ids, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func (row teacherRow) toTeacher() school.Teacher {
	return school.Teacher{
		ID: row.ID, UserID: row.UserID, EmployeeID: row.EmployeeID, HireDate: row.HireDate, ClassID: row.ClassID,
		SubjectIDs: []string(row.SubjectIDs), CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

type schoolRepository struct {
	db dbtx
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: bind(db)}
}

func (repo *schoolRepository) CreateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO classes (`+classColumns+`)
		VALUES (:id, :name, :section, :academic_year, :class_teacher_id, :created_at, :updated_at)`, cls)
	return cls, translate(err)
}

func (repo *schoolRepository) GetClass(ctx context.Context, id string) (school.Class, error) {
	var cls school.Class
	err := get(ctx, repo.db, &cls, "SELECT "+classColumns+" FROM classes WHERE id = ?", id)
	return cls, notFound(err, school.ErrClassNotFound)
}

func (repo *schoolRepository) QueryClasses(ctx context.Context, cf school.ClassFilter) ([]school.Class, error) {
	var f filter
	if cf.AcademicYear != "" {
		f.where("academic_year = ?", cf.AcademicYear)
	}
	classes := make([]school.Class, 0)
	err := f.sel(ctx, repo.db, &classes, "SELECT "+classColumns+" FROM classes", "ORDER BY academic_year DESC, name, section")
	return classes, err
}

func (repo *schoolRepository) UpdateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE classes
		SET name = :name, section = :section, academic_year = :academic_year,
		    class_teacher_id = :class_teacher_id, updated_at = :updated_at
		WHERE id = :id`, cls)
	return cls, mustAffect(res, translate(err), school.ErrClassNotFound)
}

func (repo *schoolRepository) CreateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO subjects (`+subjectColumns+`)
		VALUES (:id, :name, :code, :description, :created_at)`, sub)
	return sub, translate(err)
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context) ([]school.Subject, error) {
	subjects := make([]school.Subject, 0)
	err := repo.db.SelectContext(ctx, &subjects, "SELECT "+subjectColumns+" FROM subjects ORDER BY code")
	return subjects, err
}

func (repo *schoolRepository) CreateParent(ctx context.Context, p school.Parent) (school.Parent, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO parents (`+parentColumns+`)
		VALUES (:id, :user_id, :occupation, :emergency_contact, :created_at)`, p)
	return p, translate(err)
}

// profileWhere selects a profile by ID, or by UserID.
func profileWhere(pf school.ProfileFilter) (string, string) {
	if pf.ID != "" {
		return "id = ?", pf.ID
	}
	return "user_id = ?", pf.UserID
}

func (repo *schoolRepository) GetParent(ctx context.Context, pf school.ProfileFilter) (school.Parent, error) {
	var p school.Parent
	cond, arg := profileWhere(pf)
	err := get(ctx, repo.db, &p, "SELECT "+parentColumns+" FROM parents WHERE "+cond, arg)
	return p, notFound(err, school.ErrParentNotFound)
}

func (repo *schoolRepository) CreateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO teachers (`+teacherColumns+`)
		VALUES (:id, :user_id, :employee_id, :hire_date, :class_id, :subject_ids, :created_at, :updated_at)`,
		newTeacherRow(t))
	return t, translate(err)
}

func (repo *schoolRepository) GetTeacher(ctx context.Context, pf school.ProfileFilter) (school.Teacher, error) {
	var row teacherRow
	cond, arg := profileWhere(pf)
	if err := get(ctx, repo.db, &row, "SELECT "+teacherColumns+" FROM teachers WHERE "+cond, arg); err != nil {
		return school.Teacher{}, notFound(err, school.ErrTeacherNotFound)
	}
	return row.toTeacher(), nil
}

func (repo *schoolRepository) UpdateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE teachers
		SET employee_id = :employee_id, hire_date = :hire_date, class_id = :class_id,
		    subject_ids = :subject_ids, updated_at = :updated_at
		WHERE id = :id`, newTeacherRow(t))
	return t, mustAffect(res, translate(err), school.ErrTeacherNotFound)
}

func (repo *schoolRepository) CreateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES (:id, :user_id, :admission_number, :admission_date, :class_id, :parent_id, :created_at, :updated_at)`, s)
	return s, translate(err)
}

func (repo *schoolRepository) UpdateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE students
		SET admission_number = :admission_number, admission_date = :admission_date, class_id = :class_id,
		    parent_id = :parent_id, updated_at = :updated_at
		WHERE id = :id`, s)
	return s, mustAffect(res, translate(err), school.ErrStudentNotFound)
}

func (repo *schoolRepository) GetStudent(ctx context.Context, pf school.ProfileFilter) (school.Student, error) {
	var s school.Student
	cond, arg := profileWhere(pf)
	err := get(ctx, repo.db, &s, "SELECT "+studentColumns+" FROM students WHERE "+cond, arg)
	return s, notFound(err, school.ErrStudentNotFound)
}

func (repo *schoolRepository) QueryStudents(ctx context.Context, sf school.StudentFilter) ([]school.Student, error) {
	var f filter
	if sf.ClassID != "" {
		f.where("class_id = ?", sf.ClassID)
	}
	if sf.ParentID != "" {
		f.where("parent_id = ?", sf.ParentID)
	}
	students := make([]school.Student, 0)
	err := f.sel(ctx, repo.db, &students, "SELECT "+studentColumns+" FROM students", "ORDER BY admission_number")
	return students, err
}
