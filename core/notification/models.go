package notification

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/excellacademy/academia/core"
)

type Type string

const (
	TypeInfo       Type = "info"
	TypeWarning    Type = "warning"
	TypeSuccess    Type = "success"
	TypeError      Type = "error"
	TypeFee        Type = "fee"
	TypeAcademic   Type = "academic"
	TypeAttendance Type = "attendance"
)

var Types = []Type{TypeInfo, TypeWarning, TypeSuccess, TypeError, TypeFee, TypeAcademic, TypeAttendance}

// Notification is an entry of the in-app inbox of a user.
type Notification struct {
	ID          string      `json:"id"`
	RecipientID string      `json:"recipient_id"`
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	Type        Type        `json:"type"`
	IsRead      bool        `json:"is_read"`
	RelatedURL  null.String `json:"related_url"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewNotification is a notification posted by the system to one user.
type NewNotification struct {
	RecipientID string
	Title       string
	Message     string
	Type        Type // TypeInfo when empty
	RelatedURL  string
}

// Audience selects the recipients of a Broadcast.
type Audience string

const (
	AudienceParents  Audience = "all_parents"
	AudienceTeachers Audience = "all_teachers"
	AudienceStudents Audience = "all_students"
	AudienceAdmins   Audience = "all_admins"
	AudienceSpecific Audience = "specific"
)

// Broadcast posts the same notification to every active user of an audience.
type Broadcast struct {
	Audience     Audience `json:"audience" validate:"required,oneof=all_parents all_teachers all_students all_admins specific"`
	RecipientIDs []string `json:"recipient_ids" validate:"required_if=Audience specific,dive,required"`
	Title        string   `json:"title" validate:"required,max=200"`
	Message      string   `json:"message" validate:"required"`
	Type         Type     `json:"type" validate:"omitempty,oneof=info warning success error fee academic attendance"`
	RelatedURL   string   `json:"related_url" validate:"max=200"`
}

func (b *Broadcast) Validate(validate *validator.Validate) error {
	b.Title = core.CleanString(b.Title)
	b.Message = core.CleanString(b.Message)
	b.RelatedURL = core.CleanString(b.RelatedURL)
	for i := range b.RecipientIDs {
		b.RecipientIDs[i] = core.CleanString(b.RecipientIDs[i])
	}
	return validate.Struct(b)
}

type QueryFilter struct {
	RecipientID string
	UnreadOnly  bool `query:"unread"`
	Limit       int  `query:"limit"`
}

// Inbox is the notification list of a user with its unread count.
type Inbox struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
