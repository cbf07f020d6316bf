package inmemdb

import (
	"context"
	"sort"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateClass(_ context.Context, cls school.Class) (school.Class, error) {
	err := repo.db.write(false, func(t *tables) error {
		for _, c := range t.classes {
			if c.Name == cls.Name && c.Section == cls.Section && c.AcademicYear == cls.AcademicYear {
				return core.NewDuplicateKeyError("class", school.ErrClassExists)
			}
		}
		t.classes[cls.ID] = cls
		return nil
	})
	return cls, err
}

func (repo *schoolRepository) GetClass(_ context.Context, id string) (school.Class, error) {
	var (
		cls school.Class
		ok  bool
	)
	repo.db.read(func(t *tables) { cls, ok = t.classes[id] })
	if !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	return cls, nil
}

func (repo *schoolRepository) QueryClasses(_ context.Context, filter school.ClassFilter) ([]school.Class, error) {
	classes := make([]school.Class, 0)
	repo.db.read(func(t *tables) {
		for _, c := range t.classes {
			if filter.AcademicYear == "" || c.AcademicYear == filter.AcademicYear {
				classes = append(classes, c)
			}
		}
	})
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].AcademicYear != classes[j].AcademicYear {
			return classes[i].AcademicYear > classes[j].AcademicYear
		}
		return classes[i].DisplayName() < classes[j].DisplayName()
	})
	return classes, nil
}

func (repo *schoolRepository) UpdateClass(_ context.Context, cls school.Class) (school.Class, error) {
	err := repo.db.write(false, func(t *tables) error {
		if _, ok := t.classes[cls.ID]; !ok {
			return school.ErrClassNotFound
		}
		t.classes[cls.ID] = cls
		return nil
	})
	return cls, err
}

func (repo *schoolRepository) CreateSubject(_ context.Context, sub school.Subject) (school.Subject, error) {
	err := repo.db.write(false, func(t *tables) error {
		for _, s := range t.subjects {
			if s.Code == sub.Code {
				return core.NewDuplicateKeyError("code", school.ErrSubjectExists)
			}
		}
		t.subjects[sub.ID] = sub
		return nil
	})
	return sub, err
}

func (repo *schoolRepository) QuerySubjects(_ context.Context) ([]school.Subject, error) {
	subjects := make([]school.Subject, 0)
	repo.db.read(func(t *tables) {
		for _, s := range t.subjects {
			subjects = append(subjects, s)
		}
	})
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Code < subjects[j].Code })
	return subjects, nil
}

func (repo *schoolRepository) CreateParent(_ context.Context, p school.Parent) (school.Parent, error) {
	err := repo.db.write(false, func(t *tables) error {
		for _, o := range t.parents {
			if o.UserID == p.UserID {
				return core.NewDuplicateKeyError("user_id", school.ErrProfileExists)
			}
		}
		t.parents[p.ID] = p
		return nil
	})
	return p, err
}

func (repo *schoolRepository) GetParent(_ context.Context, filter school.ProfileFilter) (school.Parent, error) {
	var (
		p  school.Parent
		ok bool
	)
	repo.db.read(func(t *tables) {
		if filter.ID != "" {
			p, ok = t.parents[filter.ID]
			return
		}
		for _, o := range t.parents {
			if o.UserID == filter.UserID {
				p, ok = o, true
				return
			}
		}
	})
	if !ok {
		return school.Parent{}, school.ErrParentNotFound
	}
	return p, nil
}

func cloneTeacher(tc school.Teacher) school.Teacher {
	tc.SubjectIDs = cloneStrings(tc.SubjectIDs)
	return tc
}

func (repo *schoolRepository) CreateTeacher(_ context.Context, tc school.Teacher) (school.Teacher, error) {
	tc = cloneTeacher(tc)
	err := repo.db.write(false, func(t *tables) error {
		for _, o := range t.teachers {
			if o.UserID == tc.UserID {
				return core.NewDuplicateKeyError("user_id", school.ErrProfileExists)
			}
			if o.EmployeeID == tc.EmployeeID {
				return core.NewDuplicateKeyError("employee_id", school.ErrEmployeeIDExists)
			}
		}
		t.teachers[tc.ID] = tc
		return nil
	})
	return cloneTeacher(tc), err
}

func (repo *schoolRepository) GetTeacher(_ context.Context, filter school.ProfileFilter) (school.Teacher, error) {
	var (
		tc school.Teacher
		ok bool
	)
	repo.db.read(func(t *tables) {
		if filter.ID != "" {
			tc, ok = t.teachers[filter.ID]
			return
		}
		for _, o := range t.teachers {
			if o.UserID == filter.UserID {
				tc, ok = o, true
				return
			}
		}
	})
	if !ok {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	return cloneTeacher(tc), nil
}

func (repo *schoolRepository) UpdateTeacher(_ context.Context, tc school.Teacher) (school.Teacher, error) {
	tc = cloneTeacher(tc)
	err := repo.db.write(false, func(t *tables) error {
		if _, ok := t.teachers[tc.ID]; !ok {
			return school.ErrTeacherNotFound
		}
		t.teachers[tc.ID] = tc
		return nil
	})
	return cloneTeacher(tc), err
}

func (repo *schoolRepository) CreateStudent(_ context.Context, s school.Student) (school.Student, error) {
	err := repo.db.write(false, func(t *tables) error {
		for _, o := range t.students {
			if o.UserID == s.UserID {
				return core.NewDuplicateKeyError("user_id", school.ErrProfileExists)
			}
			if o.AdmissionNumber == s.AdmissionNumber {
				return core.NewDuplicateKeyError("admission_number", school.ErrAdmissionNumberExists)
			}
		}
		t.students[s.ID] = s
		return nil
	})
	return s, err
}

func (repo *schoolRepository) UpdateStudent(_ context.Context, s school.Student) (school.Student, error) {
	err := repo.db.write(false, func(t *tables) error {
		if _, ok := t.students[s.ID]; !ok {
			return school.ErrStudentNotFound
		}
		for _, o := range t.students {
			if o.ID != s.ID && o.AdmissionNumber == s.AdmissionNumber {
				return core.NewDuplicateKeyError("admission_number", school.ErrAdmissionNumberExists)
			}
		}
		t.students[s.ID] = s
		return nil
	})
	return s, err
}

func (repo *schoolRepository) GetStudent(_ context.Context, filter school.ProfileFilter) (school.Student, error) {
	var (
		s  school.Student
		ok bool
	)
	repo.db.read(func(t *tables) {
		if filter.ID != "" {
			s, ok = t.students[filter.ID]
			return
		}
		for _, o := range t.students {
			if o.UserID == filter.UserID {
				s, ok = o, true
				return
			}
		}
	})
	if !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	return s, nil
}

func (repo *schoolRepository) QueryStudents(_ context.Context, filter school.StudentFilter) ([]school.Student, error) {
	students := make([]school.Student, 0)
	repo.db.read(func(t *tables) {
		for _, s := range t.students {
			if filter.ClassID != "" && s.ClassID != filter.ClassID {
				continue
			}
			if filter.ParentID != "" && s.ParentID.String != filter.ParentID {
				continue
			}
			students = append(students, s)
		}
	})
	sort.Slice(students, func(i, j int) bool { return students[i].AdmissionNumber < students[j].AdmissionNumber })
	return students, nil
}
