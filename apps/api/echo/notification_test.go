package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excellacademy/academia/core/notification"
)

func Test_notificationApi(t *testing.T) {
	ae := setup(t)
	sch := ae.CreateSchool(t, 1)
	adminToken := ae.token(t, ae.createAdmin(t))
	parentToken := ae.token(t, sch.ParentUser)
	teacherToken := ae.token(t, sch.TeacherUser)

	rec := ae.do(t, http.MethodGet, "/api/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	broadcast := notification.Broadcast{Audience: notification.AudienceParents, Title: "School closed", Message: "No classes on Friday."}

	rec = ae.do(t, http.MethodPost, "/api/notifications/broadcast", teacherToken, broadcast)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ae.do(t, http.MethodPost, "/api/notifications/broadcast", adminToken, notification.Broadcast{Audience: notification.AudienceSpecific, Title: "Hi", Message: "Hello"})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var fields map[string]string
	decode(t, rec, &fields)
	assert.Contains(t, fields, "recipient_ids")

	rec = ae.do(t, http.MethodPost, "/api/notifications/broadcast", adminToken, broadcast)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent map[string]int
	decode(t, rec, &sent)
	assert.Equal(t, 1, sent["sent"])

	_, err := ae.Notifications.Notify(ctx, notification.NewNotification{RecipientID: sch.ParentUser.ID, Title: "Fees", Message: "Invoice issued", Type: notification.TypeFee})
	require.NoError(t, err)

	rec = ae.do(t, http.MethodGet, "/api/notifications", parentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var inbox notification.Inbox
	decode(t, rec, &inbox)
	require.Len(t, inbox.Notifications, 2)
	assert.Equal(t, 2, inbox.UnreadCount)
	assert.Equal(t, "Fees", inbox.Notifications[0].Title)

	rec = ae.do(t, http.MethodGet, "/api/notifications", teacherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty notification.Inbox
	decode(t, rec, &empty)
	assert.Empty(t, empty.Notifications)

	t.Run("mark read", func(t *testing.T) {
		id := inbox.Notifications[0].ID

		rec := ae.do(t, http.MethodPost, "/api/notifications/"+id+"/read", teacherToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ae.do(t, http.MethodPost, "/api/notifications/"+id+"/read", parentToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var n notification.Notification
		decode(t, rec, &n)
		assert.True(t, n.IsRead)

		rec = ae.do(t, http.MethodGet, "/api/notifications/count", parentToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var count map[string]int
		decode(t, rec, &count)
		assert.Equal(t, 1, count["count"])

		rec = ae.do(t, http.MethodGet, "/api/notifications?unread=true", parentToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var unread notification.Inbox
		decode(t, rec, &unread)
		require.Len(t, unread.Notifications, 1)
		assert.Equal(t, "School closed", unread.Notifications[0].Title)
	})

	t.Run("mark all read", func(t *testing.T) {
		rec := ae.do(t, http.MethodPost, "/api/notifications/read-all", parentToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var marked map[string]int
		decode(t, rec, &marked)
		assert.Equal(t, 1, marked["marked"])

		rec = ae.do(t, http.MethodGet, "/api/notifications/count", parentToken, nil)
		var count map[string]int
		decode(t, rec, &count)
		assert.Equal(t, 0, count["count"])
	})
}
