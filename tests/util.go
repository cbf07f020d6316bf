package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/attendance"
	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/notification"
	"github.com/excellacademy/academia/core/reportcard"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/core/user"
	"github.com/excellacademy/academia/fs"
	"github.com/excellacademy/academia/services/email"
	"github.com/excellacademy/academia/services/logger"
	"github.com/excellacademy/academia/storage/database/inmem"
)

// DefaultPassword satisfies the password policy.
const DefaultPassword = "Kx7#vLq2Wm"

// Env wires every service on top of the in-memory database with fake external collaborators.
type Env struct {
	Conf   *core.Config
	DB     *inmemdb.DB
	Logger core.Logger
	Mailer core.EmailService

	Gateway  *FakeGateway
	Renderer *FakeRenderer
	Store    *MemoryStore

	UserRepo         user.Repository
	SchoolRepo       school.Repository
	GradingRepo      grading.Repository
	ReportCardRepo   reportcard.Repository
	FinanceRepo      finance.Repository
	AttendanceRepo   attendance.Repository
	NotificationRepo notification.Repository

	Users         *user.Service
	School        *school.Service
	Grades        *grading.Service
	ReportCards   *reportcard.Service
	Attendance    *attendance.Service
	Finance       *finance.Service
	Notifications *notification.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(io.Discard, conf)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	emailsvc.ResetSentMessages()

	env := &Env{
		Conf:     conf,
		DB:       inmemdb.Open(),
		Logger:   logger,
		Mailer:   emailsvc.NewConsoleServiceMock(conf, logger),
		Gateway:  NewFakeGateway(),
		Renderer: &FakeRenderer{},
		Store:    NewMemoryStore(),
	}
	env.UserRepo = inmemdb.NewUserRepository(env.DB)
	env.SchoolRepo = inmemdb.NewSchoolRepository(env.DB)
	env.GradingRepo = inmemdb.NewGradingRepository(env.DB)
	env.ReportCardRepo = inmemdb.NewReportCardRepository(env.DB)
	env.FinanceRepo = inmemdb.NewFinanceRepository(env.DB)
	env.AttendanceRepo = inmemdb.NewAttendanceRepository(env.DB)
	env.NotificationRepo = inmemdb.NewNotificationRepository(env.DB)

	env.Users = user.NewService(env.UserRepo)
	env.School = school.NewService(env.SchoolRepo, env.Users)
	env.Grades = grading.NewService(env.GradingRepo, env.School, reportcard.NewLocker(env.ReportCardRepo))
	env.ReportCards = reportcard.NewService(env.ReportCardRepo, env.Grades, env.School, env.Renderer, env.Store, conf, logger)
	env.Attendance = attendance.NewService(env.AttendanceRepo, env.School)
	env.Notifications = notification.NewService(env.NotificationRepo, env.Users)
	env.Finance = finance.NewService(env.FinanceRepo, env.School, env.Gateway, env.School, env.Mailer, env.Notifications, conf, logger)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// School is a class with its students, their parents and a teacher.
type School struct {
	Class    school.Class
	Subjects []school.Subject
	Teacher  school.Teacher

	TeacherUser user.User
	ParentUser  user.User
	Parent      school.Parent
	Students    []school.Student
	Users       map[string]user.User // by student id
}

// CreateSchool creates a class of n students sharing one parent, two subjects and a teacher assigned to both.
func (env *Env) CreateSchool(t *testing.T, n int) School {
	t.Helper()
	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("CreateSchool() failed: %+v", err)
		}
	}
	suffix := uuid.New().String()[:6]

	var (
		sch School
		err error
	)
	sch.Users = make(map[string]user.User, n)
	sch.Class, err = env.School.CreateClass(ctx, school.NewClass{Name: "Grade 5", Section: suffix, AcademicYear: "2023/2024"})
	must(err)

	for _, code := range []string{"MATH", "ENG"} {
		sub, err := env.School.CreateSubject(ctx, school.NewSubject{Name: code + " " + suffix, Code: code + suffix[:4]})
		must(err)
		sch.Subjects = append(sch.Subjects, sub)
	}

	sch.TeacherUser = CreateUser(t, env.UserRepo, "Teacher "+suffix, "teacher_"+suffix, "teacher_"+suffix+"@example.com", DefaultPassword, []string{user.RoleTeacher}, true)
	sch.Teacher, err = env.School.RegisterTeacher(ctx, school.NewTeacher{UserID: sch.TeacherUser.ID, EmployeeID: "EMP" + suffix, HireDate: "2020-01-06"})
	must(err)
	sch.Teacher, err = env.School.AssignTeacher(ctx, sch.Teacher.ID, school.TeacherAssignment{
		ClassID:    sch.Class.ID,
		SubjectIDs: []string{sch.Subjects[0].ID, sch.Subjects[1].ID},
	})
	must(err)

	sch.ParentUser = CreateUser(t, env.UserRepo, "Parent "+suffix, "parent_"+suffix, "parent_"+suffix+"@example.com", DefaultPassword, []string{user.RoleParent}, true)
	sch.Parent, err = env.School.RegisterParent(ctx, school.NewParent{UserID: sch.ParentUser.ID})
	must(err)

	for i := 0; i < n; i++ {
		uname := fmt.Sprintf("student%d_%s", i, suffix)
		usr := CreateUser(t, env.UserRepo, fmt.Sprintf("Student %d", i), uname, uname+"@example.com", DefaultPassword, []string{user.RoleStudent}, true)
		s, err := env.School.RegisterStudent(ctx, school.NewStudent{
			UserID:          usr.ID,
			AdmissionNumber: fmt.Sprintf("ADM%s%02d", suffix, i),
			AdmissionDate:   "2023-09-04",
			ClassID:         sch.Class.ID,
			ParentID:        sch.Parent.ID,
		})
		must(err)
		sch.Students = append(sch.Students, s)
		sch.Users[s.ID] = usr
	}
	return sch
}

// RecordScores records one score per student in subject, in student order.
func (env *Env) RecordScores(t *testing.T, subjectID string, period grading.Period, students []school.Student, scores ...string) {
	t.Helper()
	lines := make([]grading.ScoreLine, 0, len(scores))
	for i, score := range scores {
		lines = append(lines, grading.ScoreLine{StudentID: students[i].ID, Score: score})
	}
	_, err := env.Grades.RecordScores(context.Background(), grading.ScoreSheet{SubjectID: subjectID, Period: period, Lines: lines}, "tester")
	if err != nil {
		t.Fatalf("RecordScores() failed: %+v", err)
	}
}

// FakeGateway is a programmable finance.Gateway.
type FakeGateway struct {
	mu            sync.Mutex
	InitErr       error
	VerifyErr     error
	Delay         time.Duration
	verifications map[string]finance.Verification
	Checkouts     []finance.CheckoutRequest
	VerifyCalls   int
}

var _ finance.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{verifications: make(map[string]finance.Verification)}
}

func (g *FakeGateway) Name() string { return "fake" }

// Settle makes Verify report reference as a successful transaction of amount for inv.
func (g *FakeGateway) Settle(inv finance.Invoice, reference, amount string) {
	g.SetVerification(finance.Verification{
		Reference: reference,
		Status:    finance.GatewaySuccess,
		Amount:    decimal.RequireFromString(amount),
		Metadata: map[string]string{
			finance.MetaInvoiceID:        inv.ID,
			finance.MetaInvoiceReference: inv.GatewayReference,
		},
		Authorization: []byte(`{"channel":"card"}`),
		PaidAt:        time.Now().UTC(),
	})
}

func (g *FakeGateway) SetVerification(v finance.Verification) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifications[v.Reference] = v
}

func (g *FakeGateway) Initialize(ctx context.Context, req finance.CheckoutRequest) (finance.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.InitErr != nil {
		return finance.Checkout{}, g.InitErr
	}
	g.Checkouts = append(g.Checkouts, req)
	return finance.Checkout{AuthorizationURL: "https://checkout.example.com/" + req.Reference, Reference: req.Reference}, nil
}

func (g *FakeGateway) Verify(ctx context.Context, reference string) (finance.Verification, error) {
	g.mu.Lock()
	g.VerifyCalls++
	delay, verifyErr := g.Delay, g.VerifyErr
	v, ok := g.verifications[reference]
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return finance.Verification{}, core.NewExternalServiceError(g.Name(), ctx.Err())
		}
	}
	if verifyErr != nil {
		return finance.Verification{}, verifyErr
	}
	if !ok {
		return finance.Verification{Reference: reference, Status: finance.GatewayAbandoned, Amount: decimal.Zero}, nil
	}
	return v, nil
}

// FakeRenderer renders a fixed document, or fails with Err.
type FakeRenderer struct {
	mu    sync.Mutex
	Err   error
	Calls int
	Last  reportcard.Document
}

func (r *FakeRenderer) Render(_ context.Context, doc reportcard.Document) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	r.Last = doc
	if r.Err != nil {
		return nil, r.Err
	}
	return []byte("%PDF-1.3 " + doc.StudentName), nil
}

func (r *FakeRenderer) Fail(err error) {
	r.mu.Lock()
	r.Err = err
	r.mu.Unlock()
}

// MemoryStore is a reportcard.DocumentStore keeping documents in memory. The reference is the name.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string][]byte
	SaveErr   error
	ExistsErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, name string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return "", s.SaveErr
	}
	s.docs[name] = append([]byte(nil), content...)
	return name, nil
}

func (s *MemoryStore) Exists(_ context.Context, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ExistsErr != nil {
		return false, s.ExistsErr
	}
	_, ok := s.docs[ref]
	return ok, nil
}

func (s *MemoryStore) Load(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.docs[ref]
	if !ok {
		return nil, errors.Errorf("document %q not found", ref)
	}
	return content, nil
}

func (s *MemoryStore) Delete(ref string) {
	s.mu.Lock()
	delete(s.docs, ref)
	s.mu.Unlock()
}
