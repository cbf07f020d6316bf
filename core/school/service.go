package school

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/user"
)

var (
	ErrClassNotFound   = core.NewNotFoundError("class")
	ErrSubjectNotFound = core.NewNotFoundError("subject")
	ErrParentNotFound  = core.NewNotFoundError("parent")
	ErrTeacherNotFound = core.NewNotFoundError("teacher")
	ErrStudentNotFound = core.NewNotFoundError("student")

	ErrClassExists           = errors.New("a class with this name and section already exists for the academic year")
	ErrSubjectExists         = errors.New("a subject with this code already exists")
	ErrProfileExists         = errors.New("this user already has a profile of this kind")
	ErrAdmissionNumberExists = errors.New("a student with this admission number already exists")
	ErrEmployeeIDExists      = errors.New("a teacher with this employee id already exists")
)

type (
	// Repository returns core.DuplicateKeyError wrapping the Err*Exists errors on unique violations.
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)

		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		QuerySubjects(ctx context.Context) ([]Subject, error)

		CreateParent(ctx context.Context, p Parent) (Parent, error)
		GetParent(ctx context.Context, filter ProfileFilter) (Parent, error)

		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, filter ProfileFilter) (Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)

		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, filter ProfileFilter) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
	}

	Service struct {
		repo  Repository
		users *user.Service
	}
)

func NewService(repo Repository, users *user.Service) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
	).CheckAndPanic()
	return &Service{repo: repo, users: users}
}

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	return svc.repo.CreateClass(ctx, Class{
		ID:           uuid.New().String(),
		Name:         nc.Name,
		Section:      nc.Section,
		AcademicYear: nc.AcademicYear,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *Service) Class(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) Classes(ctx context.Context, filter ClassFilter) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter)
}

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	return svc.repo.CreateSubject(ctx, Subject{
		ID:          uuid.New().String(),
		Name:        ns.Name,
		Code:        ns.Code,
		Description: ns.Description,
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *Service) Subjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}

// profileUser resolves the User a new profile is attached to. It must exist and carry role.
func (svc *Service) profileUser(ctx context.Context, userID, role string) (user.User, error) {
	usr, err := svc.users.GetByID(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return usr, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: "user not found"})
	}
	if err != nil {
		return usr, errors.Wrap(err, "getting user")
	}
	if !usr.RoleStartsWith(role) {
		return usr, core.NewValidationError(
			errors.Errorf("user lacks the %q role", role),
			core.FieldError{Field: "user_id", Error: "user lacks the " + role + " role"},
		)
	}
	return usr, nil
}

func (svc *Service) RegisterParent(ctx context.Context, np NewParent) (Parent, error) {
	if _, err := svc.profileUser(ctx, np.UserID, user.RoleParent); err != nil {
		return Parent{}, err
	}
	return svc.repo.CreateParent(ctx, Parent{
		ID:               uuid.New().String(),
		UserID:           np.UserID,
		Occupation:       np.Occupation,
		EmergencyContact: np.EmergencyContact,
		CreatedAt:        time.Now().UTC(),
	})
}

func (svc *Service) RegisterTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	if _, err := svc.profileUser(ctx, nt.UserID, user.RoleTeacher); err != nil {
		return Teacher{}, err
	}
	hired, err := time.Parse(DateLayout, nt.HireDate)
	if err != nil {
		return Teacher{}, core.NewValidationError(err, core.FieldError{Field: "hire_date", Error: "must be a date like 2006-01-02"})
	}
	now := time.Now().UTC()
	return svc.repo.CreateTeacher(ctx, Teacher{
		ID:         uuid.New().String(),
		UserID:     nt.UserID,
		EmployeeID: nt.EmployeeID,
		HireDate:   hired,
		SubjectIDs: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *Service) RegisterStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if _, err := svc.profileUser(ctx, ns.UserID, user.RoleStudent); err != nil {
		return Student{}, err
	}
	admitted, err := time.Parse(DateLayout, ns.AdmissionDate)
	if err != nil {
		return Student{}, core.NewValidationError(err, core.FieldError{Field: "admission_date", Error: "must be a date like 2006-01-02"})
	}
	if _, err = svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		return Student{}, fieldNotFound(err, ErrClassNotFound, "class_id")
	}

	var parentID null.String
	if ns.ParentID != "" {
		if _, err = svc.repo.GetParent(ctx, ProfileFilter{ID: ns.ParentID}); err != nil {
			return Student{}, fieldNotFound(err, ErrParentNotFound, "parent_id")
		}
		parentID = null.StringFrom(ns.ParentID)
	}

	now := time.Now().UTC()
	return svc.repo.CreateStudent(ctx, Student{
		ID:              uuid.New().String(),
		UserID:          ns.UserID,
		AdmissionNumber: ns.AdmissionNumber,
		AdmissionDate:   admitted,
		ClassID:         ns.ClassID,
		ParentID:        parentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

// AssignTeacher sets the class and subjects of a teacher. The teacher becomes the class teacher when the class has none.
func (svc *Service) AssignTeacher(ctx context.Context, teacherID string, ta TeacherAssignment) (Teacher, error) {
	t, err := svc.repo.GetTeacher(ctx, ProfileFilter{ID: teacherID})
	if err != nil {
		return t, err
	}
	cls, err := svc.repo.GetClass(ctx, ta.ClassID)
	if err != nil {
		return t, fieldNotFound(err, ErrClassNotFound, "class_id")
	}

	subjects, err := svc.repo.QuerySubjects(ctx)
	if err != nil {
		return t, errors.Wrap(err, "querying subjects")
	}
	known := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		known[s.ID] = true
	}
	for _, id := range ta.SubjectIDs {
		if !known[id] {
			return t, core.NewValidationError(ErrSubjectNotFound, core.FieldError{Field: "subject_ids", Error: "unknown subject " + id})
		}
	}

	t.ClassID = null.StringFrom(cls.ID)
	t.SubjectIDs = ta.SubjectIDs
	t.UpdatedAt = time.Now().UTC()
	if t, err = svc.repo.UpdateTeacher(ctx, t); err != nil {
		return t, errors.Wrap(err, "updating teacher")
	}

	if !cls.ClassTeacherID.Valid {
		cls.ClassTeacherID = null.StringFrom(t.ID)
		cls.UpdatedAt = t.UpdatedAt
		if _, err = svc.repo.UpdateClass(ctx, cls); err != nil {
			return t, errors.Wrap(err, "updating class")
		}
	}
	return t, nil
}

// TransferStudent moves a student to another class. Report cards already generated stay with the old class.
func (svc *Service) TransferStudent(ctx context.Context, studentID, classID string) (Student, error) {
	s, err := svc.repo.GetStudent(ctx, ProfileFilter{ID: studentID})
	if err != nil {
		return s, err
	}
	if _, err = svc.repo.GetClass(ctx, classID); err != nil {
		return s, fieldNotFound(err, ErrClassNotFound, "class_id")
	}
	if s.ClassID == classID {
		return s, nil
	}
	s.ClassID = classID
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *Service) Student(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, ProfileFilter{ID: id})
}

func (svc *Service) Students(ctx context.Context, filter StudentFilter) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter)
}

// ClassStudentIDs lists the students of a class.
func (svc *Service) ClassStudentIDs(ctx context.Context, classID string) ([]string, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	students, err := svc.repo.QueryStudents(ctx, StudentFilter{ClassID: classID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// Guardian returns the account of the parent of a student, falling back to the student's own account.
func (svc *Service) Guardian(ctx context.Context, studentID string) (user.User, error) {
	s, err := svc.repo.GetStudent(ctx, ProfileFilter{ID: studentID})
	if err != nil {
		return user.User{}, err
	}
	userID := s.UserID
	if s.ParentID.Valid {
		p, err := svc.repo.GetParent(ctx, ProfileFilter{ID: s.ParentID.String})
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting parent")
		}
		userID = p.UserID
	}
	usr, err := svc.users.GetByID(ctx, userID)
	return usr, errors.Wrap(err, "getting guardian user")
}

func (svc *Service) StudentName(ctx context.Context, studentID string) (string, error) {
	s, err := svc.repo.GetStudent(ctx, ProfileFilter{ID: studentID})
	if err != nil {
		return "", err
	}
	usr, err := svc.users.GetByID(ctx, s.UserID)
	if err != nil {
		return "", errors.Wrap(err, "getting student user")
	}
	return usr.Name, nil
}

func (svc *Service) ClassName(ctx context.Context, classID string) (string, error) {
	cls, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return "", err
	}
	return cls.DisplayName(), nil
}

// SubjectNames maps subject ids to names.
func (svc *Service) SubjectNames(ctx context.Context) (map[string]string, error) {
	subjects, err := svc.repo.QuerySubjects(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(subjects))
	for _, s := range subjects {
		names[s.ID] = s.Name
	}
	return names, nil
}

// Actor resolves the profiles of usr for authorization checks.
func (svc *Service) Actor(ctx context.Context, usr user.User) (user.Actor, error) {
	actor := user.Actor{User: usr}

	if usr.IsStudent() {
		s, err := svc.repo.GetStudent(ctx, ProfileFilter{UserID: usr.ID})
		switch {
		case err == nil:
			actor.StudentID = s.ID
		case !errors.Is(err, ErrStudentNotFound):
			return actor, errors.Wrap(err, "getting student profile")
		}
	}

	if usr.IsParent() {
		p, err := svc.repo.GetParent(ctx, ProfileFilter{UserID: usr.ID})
		switch {
		case err == nil:
			actor.ParentID = p.ID
			children, err := svc.repo.QueryStudents(ctx, StudentFilter{ParentID: p.ID})
			if err != nil {
				return actor, errors.Wrap(err, "querying children")
			}
			for _, c := range children {
				actor.ChildIDs = append(actor.ChildIDs, c.ID)
			}
		case !errors.Is(err, ErrParentNotFound):
			return actor, errors.Wrap(err, "getting parent profile")
		}
	}

	if usr.IsTeacher() {
		t, err := svc.repo.GetTeacher(ctx, ProfileFilter{UserID: usr.ID})
		switch {
		case err == nil:
			actor.TeacherID = t.ID
			actor.ClassID = t.ClassID.String
			actor.SubjectIDs = t.SubjectIDs
		case !errors.Is(err, ErrTeacherNotFound):
			return actor, errors.Wrap(err, "getting teacher profile")
		}
	}
	return actor, nil
}

func fieldNotFound(err, notFound error, field string) error {
	if errors.Is(err, notFound) {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: notFound.Error()})
	}
	return err
}
