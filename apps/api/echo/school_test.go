package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excellacademy/academia/core/attendance"
	"github.com/excellacademy/academia/core/school"
)

func Test_schoolApi_classes(t *testing.T) {
	ae := setup(t)
	sch := ae.CreateSchool(t, 2)
	adminToken := ae.token(t, ae.createAdmin(t))
	teacherToken := ae.token(t, sch.TeacherUser)

	newClass := school.NewClass{Name: "Grade 6", Section: "B", AcademicYear: "2023/2024"}

	rec := ae.do(t, http.MethodPost, "/api/classes", teacherToken, newClass)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ae.do(t, http.MethodPost, "/api/classes", adminToken, school.NewClass{Name: "Grade 6", AcademicYear: "2023"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var fields map[string]string
	decode(t, rec, &fields)
	assert.Contains(t, fields, "academic_year")

	rec = ae.do(t, http.MethodPost, "/api/classes", adminToken, newClass)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var other school.Class
	decode(t, rec, &other)
	assert.Equal(t, "Grade 6", other.Name)

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
	}{
		{"teacher: own class", "/api/classes/" + sch.Class.ID, teacherToken, http.StatusOK},
		{"teacher: other class", "/api/classes/" + other.ID, teacherToken, http.StatusForbidden},
		{"teacher: own class students", "/api/classes/" + sch.Class.ID + "/students", teacherToken, http.StatusOK},
		{"parent: class students", "/api/classes/" + sch.Class.ID + "/students", ae.token(t, sch.ParentUser), http.StatusForbidden},
		{"admin: unknown class", "/api/classes/nope", adminToken, http.StatusNotFound},
		{"admin: all classes", "/api/classes", adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ae.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	rec = ae.do(t, http.MethodGet, "/api/classes/"+sch.Class.ID+"/students", teacherToken, nil)
	var students []school.Student
	decode(t, rec, &students)
	assert.Len(t, students, 2)
}

func Test_schoolApi_students(t *testing.T) {
	ae := setup(t)
	sch := ae.CreateSchool(t, 2)
	own, other := sch.Students[0], sch.Students[1]
	ownToken := ae.token(t, sch.Users[own.ID])

	rec := ae.do(t, http.MethodGet, "/api/students/"+own.ID, ownToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s school.Student
	decode(t, rec, &s)
	assert.Equal(t, own.AdmissionNumber, s.AdmissionNumber)

	rec = ae.do(t, http.MethodGet, "/api/students/"+other.ID, ownToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ae.do(t, http.MethodGet, "/api/students/"+other.ID, ae.token(t, sch.ParentUser), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ae.do(t, http.MethodGet, "/api/students/nope", ownToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "student not found", decodeErr(t, rec).Error)
}

func Test_attendanceApi(t *testing.T) {
	ae := setup(t)
	sch := ae.CreateSchool(t, 3)
	teacherToken := ae.token(t, sch.TeacherUser)

	sheet := attendance.Sheet{
		ClassID: sch.Class.ID,
		Date:    "2024-01-15",
		Lines: []attendance.SheetLine{
			{StudentID: sch.Students[0].ID, Status: attendance.StatusPresent},
			{StudentID: sch.Students[1].ID, Status: "LATE"},
		},
	}

	rec := ae.do(t, http.MethodPost, "/api/attendance", ae.token(t, sch.ParentUser), sheet)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ae.do(t, http.MethodPost, "/api/attendance", teacherToken, sheet)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var recs []attendance.Record
	decode(t, rec, &recs)
	assert.Len(t, recs, 2)

	rec = ae.do(t, http.MethodGet, "/api/classes/"+sch.Class.ID+"/attendance-summary?date=2024-01-15", teacherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum attendance.Summary
	decode(t, rec, &sum)
	assert.Equal(t, 3, sum.ClassSize)
	assert.Equal(t, 1, sum.Counts[attendance.StatusPresent])
	assert.Equal(t, 1, sum.Counts[attendance.StatusLate])
	assert.Equal(t, 1, sum.Unmarked)
	assert.True(t, decimal.RequireFromString("66.67").Equal(sum.Rate), sum.Rate.String())

	rec = ae.do(t, http.MethodGet, "/api/classes/"+sch.Class.ID+"/attendance-summary?date=15/01/2024", teacherToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("student sees own records only", func(t *testing.T) {
		token := ae.token(t, sch.Users[sch.Students[1].ID])
		rec := ae.do(t, http.MethodGet, "/api/attendance?student_id="+sch.Students[1].ID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var recs []attendance.Record
		decode(t, rec, &recs)
		require.Len(t, recs, 1)
		assert.Equal(t, attendance.StatusLate, recs[0].Status)

		rec = ae.do(t, http.MethodGet, "/api/attendance?student_id="+sch.Students[0].ID, token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = ae.do(t, http.MethodGet, "/api/attendance?class_id="+sch.Class.ID, token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func Test_schoolApi_transferStudent(t *testing.T) {
	ae := setup(t)
	sch := ae.CreateSchool(t, 2)
	target := ae.CreateSchool(t, 0)
	adminToken := ae.token(t, ae.createAdmin(t))
	path := "/api/students/" + sch.Students[0].ID + "/class"

	rec := ae.do(t, http.MethodPut, path, ae.token(t, sch.TeacherUser), school.StudentTransfer{ClassID: target.Class.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ae.do(t, http.MethodPut, path, adminToken, school.StudentTransfer{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ae.do(t, http.MethodPut, path, adminToken, school.StudentTransfer{ClassID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ae.do(t, http.MethodPut, path, adminToken, school.StudentTransfer{ClassID: target.Class.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s school.Student
	decode(t, rec, &s)
	assert.Equal(t, target.Class.ID, s.ClassID)

	rec = ae.do(t, http.MethodGet, "/api/classes/"+sch.Class.ID+"/students", adminToken, nil)
	var students []school.Student
	decode(t, rec, &students)
	assert.Len(t, students, 1)
}
