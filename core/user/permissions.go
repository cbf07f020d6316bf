package user

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrForbidden = errors.New("permission denied")

type Action string

const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionFinalize Action = "finalize"
	ActionPay      Action = "pay"
)

type ResourceKind string

const (
	ResourceUser         ResourceKind = "user"
	ResourceClass        ResourceKind = "class"
	ResourceSubject      ResourceKind = "subject"
	ResourceProfile      ResourceKind = "profile"
	ResourceAttendance   ResourceKind = "attendance"
	ResourceScore        ResourceKind = "score"
	ResourceReportCard   ResourceKind = "report_card"
	ResourceFeeStructure ResourceKind = "fee_structure"
	ResourceInvoice      ResourceKind = "invoice"
	ResourcePayment      ResourceKind = "payment"
	ResourceBroadcast    ResourceKind = "broadcast"
)

// Actor is an authenticated User with its profile ids resolved (one profile per kind at most).
type Actor struct {
	User       User
	StudentID  string
	ParentID   string
	TeacherID  string
	ClassID    string   // teacher's assigned class
	SubjectIDs []string // subjects the teacher teaches
	ChildIDs   []string // parent's students
}

// Resource describes what an Action targets. Only the fields relevant to Kind are set.
type Resource struct {
	Kind      ResourceKind
	OwnerID   string // user id owning the resource (ResourceUser)
	StudentID string
	ClassID   string
	SubjectID string
}

type grant func(actor Actor, res Resource) bool

type rule struct {
	kind   ResourceKind
	action Action
}

var (
	anyone = func(Actor, Resource) bool { return true }

	self = func(a Actor, res Resource) bool { return res.OwnerID != "" && res.OwnerID == a.User.ID }

	ownClass = func(a Actor, res Resource) bool { return a.ClassID != "" && res.ClassID == a.ClassID }

	ownClassSubject = func(a Actor, res Resource) bool {
		return ownClass(a, res) && contains(a.SubjectIDs, res.SubjectID)
	}

	ownChild = func(a Actor, res Resource) bool { return res.StudentID != "" && contains(a.ChildIDs, res.StudentID) }

	ownRecord = func(a Actor, res Resource) bool { return a.StudentID != "" && res.StudentID == a.StudentID }

	// grants per base role; admins are granted everything.
	grants = map[string]map[rule]grant{
		RoleTeacher: {
			{ResourceUser, ActionView}:           self,
			{ResourceUser, ActionUpdate}:         self,
			{ResourceClass, ActionView}:          ownClass,
			{ResourceProfile, ActionView}:        ownClass,
			{ResourceSubject, ActionView}:        anyone,
			{ResourceAttendance, ActionView}:     ownClass,
			{ResourceAttendance, ActionUpdate}:   ownClass,
			{ResourceScore, ActionView}:          ownClass,
			{ResourceScore, ActionUpdate}:        ownClassSubject,
			{ResourceReportCard, ActionView}:     ownClass,
			{ResourceReportCard, ActionCreate}:   ownClass,
			{ResourceReportCard, ActionFinalize}: ownClass,
		},
		RoleParent: {
			{ResourceUser, ActionView}:       self,
			{ResourceUser, ActionUpdate}:     self,
			{ResourceProfile, ActionView}:    ownChild,
			{ResourceSubject, ActionView}:    anyone,
			{ResourceAttendance, ActionView}: ownChild,
			{ResourceScore, ActionView}:      ownChild,
			{ResourceReportCard, ActionView}: ownChild,
			{ResourceInvoice, ActionView}:    ownChild,
			{ResourceInvoice, ActionPay}:     ownChild,
			{ResourcePayment, ActionView}:    ownChild,
		},
		RoleStudent: {
			{ResourceUser, ActionView}:       self,
			{ResourceUser, ActionUpdate}:     self,
			{ResourceProfile, ActionView}:    ownRecord,
			{ResourceSubject, ActionView}:    anyone,
			{ResourceAttendance, ActionView}: ownRecord,
			{ResourceScore, ActionView}:      ownRecord,
			{ResourceReportCard, ActionView}: ownRecord,
			{ResourceInvoice, ActionView}:    ownRecord,
			{ResourcePayment, ActionView}:    ownRecord,
		},
	}
)

// Authorize returns ErrForbidden unless one of the actor's roles grants action on res.
func Authorize(actor Actor, action Action, res Resource) error {
	if !actor.User.IsActive {
		return ErrForbidden
	}
	if actor.User.IsAdmin() {
		return nil
	}
	for _, role := range actor.User.Roles {
		g, ok := grants[baseRole(role)][rule{res.Kind, action}]
		if ok && g(actor, res) {
			return nil
		}
	}
	return ErrForbidden
}

// Can is Authorize as a boolean.
func Can(actor Actor, action Action, res Resource) bool {
	return Authorize(actor, action, res) == nil
}

// baseRole drops the role qualifier: "admin:owner" -> "admin:".
func baseRole(role string) string {
	if i := strings.Index(role, ":"); i >= 0 {
		return role[:i+1]
	}
	return role
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
