package school

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
)

// DateLayout is the layout of every date-only field.
const DateLayout = "2006-01-02"

type Class struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Section        string      `json:"section"`
	AcademicYear   string      `json:"academic_year"`
	ClassTeacherID null.String `json:"class_teacher_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// DisplayName is "Name Section", e.g. "Grade 5 A".
func (c Class) DisplayName() string {
	if c.Section == "" {
		return c.Name
	}
	return c.Name + " " + c.Section
}

type NewClass struct {
	Name         string `json:"name" validate:"required,max=50"`
	Section      string `json:"section" validate:"max=10"`
	AcademicYear string `json:"academic_year" validate:"required,academic_year"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Section = core.CleanString(nc.Section)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	return validate.Struct(nc)
}

type ClassFilter struct {
	AcademicYear string `query:"academic_year"`
}

type Subject struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewSubject struct {
	Name        string `json:"name" validate:"required,max=100"`
	Code        string `json:"code" validate:"required,max=10,alphanum_"`
	Description string `json:"description"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = strings.ToUpper(core.CleanString(ns.Code))
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

// Parent is the guardian profile of a User.
type Parent struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Occupation       string    `json:"occupation"`
	EmergencyContact string    `json:"emergency_contact"`
	CreatedAt        time.Time `json:"created_at"`
}

type NewParent struct {
	UserID           string `json:"user_id" validate:"required"`
	Occupation       string `json:"occupation" validate:"max=100"`
	EmergencyContact string `json:"emergency_contact" validate:"max=15"`
}

func (np *NewParent) Validate(validate *validator.Validate) error {
	np.UserID = core.CleanString(np.UserID)
	np.Occupation = core.CleanString(np.Occupation)
	np.EmergencyContact = core.CleanString(np.EmergencyContact)
	return validate.Struct(np)
}

// Teacher is the staff profile of a User.
type Teacher struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	EmployeeID string      `json:"employee_id"`
	HireDate   time.Time   `json:"hire_date"`
	ClassID    null.String `json:"class_id"`
	SubjectIDs []string    `json:"subject_ids"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type NewTeacher struct {
	UserID     string `json:"user_id" validate:"required"`
	EmployeeID string `json:"employee_id" validate:"required,max=20,alphanum_"`
	HireDate   string `json:"hire_date" validate:"required,datetime=2006-01-02"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.UserID = core.CleanString(nt.UserID)
	nt.EmployeeID = core.CleanString(nt.EmployeeID)
	nt.HireDate = core.CleanString(nt.HireDate)
	return validate.Struct(nt)
}

// TeacherAssignment sets the class and the subjects a Teacher teaches.
type TeacherAssignment struct {
	ClassID    string   `json:"class_id" validate:"required"`
	SubjectIDs []string `json:"subject_ids" validate:"required,min=1,dive,required"`
}

// Student is the pupil profile of a User.
type Student struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	AdmissionNumber string      `json:"admission_number"`
	AdmissionDate   time.Time   `json:"admission_date"`
	ClassID         string      `json:"class_id"`
	ParentID        null.String `json:"parent_id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type NewStudent struct {
	UserID          string `json:"user_id" validate:"required"`
	AdmissionNumber string `json:"admission_number" validate:"required,max=20"`
	AdmissionDate   string `json:"admission_date" validate:"required,datetime=2006-01-02"`
	ClassID         string `json:"class_id" validate:"required"`
	ParentID        string `json:"parent_id"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.UserID = core.CleanString(ns.UserID)
	ns.AdmissionNumber = core.CleanString(ns.AdmissionNumber)
	ns.AdmissionDate = core.CleanString(ns.AdmissionDate)
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.ParentID = core.CleanString(ns.ParentID)
	return validate.Struct(ns)
}

type StudentTransfer struct {
	ClassID string `json:"class_id" validate:"required"`
}

type StudentFilter struct {
	ClassID  string `query:"class_id"`
	ParentID string `query:"parent_id"`
}

// ProfileFilter selects a single profile by its ID or by its UserID.
type ProfileFilter struct {
	ID     string
	UserID string
}
