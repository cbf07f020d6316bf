package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/attendance"
	"github.com/excellacademy/academia/core/school"
	"github.com/excellacademy/academia/tests"
)

var ctx = context.Background()

const day = "2024-02-05"

func sheet(classID string, students []school.Student, statuses ...attendance.Status) attendance.Sheet {
	s := attendance.Sheet{ClassID: classID, Date: day}
	for i, st := range statuses {
		s.Lines = append(s.Lines, attendance.SheetLine{StudentID: students[i].ID, Status: st})
	}
	return s
}

func TestService_Mark(t *testing.T) {
	env := testutil.NewEnv(t)
	sch := env.CreateSchool(t, 4)
	date, _ := time.Parse(attendance.DateLayout, day)

	recs, err := env.Attendance.Mark(ctx, sheet(sch.Class.ID, sch.Students,
		attendance.StatusPresent, attendance.StatusLate, attendance.StatusAbsent), sch.TeacherUser.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	sum, err := env.Attendance.Summary(ctx, sch.Class.ID, date)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.ClassSize)
	assert.Equal(t, 1, sum.Unmarked)
	assert.Equal(t, map[attendance.Status]int{
		attendance.StatusPresent: 1,
		attendance.StatusLate:    1,
		attendance.StatusAbsent:  1,
		attendance.StatusExcused: 0,
	}, sum.Counts)
	assert.True(t, decimal.NewFromInt(50).Equal(sum.Rate), "got %s", sum.Rate)

	t.Run("marking again overwrites", func(t *testing.T) {
		s := attendance.Sheet{ClassID: sch.Class.ID, Date: day, Lines: []attendance.SheetLine{
			{StudentID: sch.Students[2].ID, Status: attendance.StatusExcused, Remarks: "sick note"},
		}}
		_, err := env.Attendance.Mark(ctx, s, sch.TeacherUser.ID)
		require.NoError(t, err)

		recs, err := env.Attendance.Records(ctx, attendance.QueryFilter{StudentIDs: []string{sch.Students[2].ID}})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, attendance.StatusExcused, recs[0].Status)
		assert.Equal(t, "sick note", recs[0].Remarks)

		sum, err := env.Attendance.Summary(ctx, sch.Class.ID, date)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(75).Equal(sum.Rate), "got %s", sum.Rate)
	})

	t.Run("other days are not counted", func(t *testing.T) {
		sum, err := env.Attendance.Summary(ctx, sch.Class.ID, date.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, 4, sum.Unmarked)
		assert.True(t, sum.Rate.IsZero())
	})
}

func TestService_Mark_invalid(t *testing.T) {
	env := testutil.NewEnv(t)
	sch := env.CreateSchool(t, 2)
	other := env.CreateSchool(t, 1)

	tests := []struct {
		name  string
		sheet attendance.Sheet
		field string
	}{
		{
			"duplicate student",
			attendance.Sheet{ClassID: sch.Class.ID, Date: day, Lines: []attendance.SheetLine{
				{StudentID: sch.Students[0].ID, Status: attendance.StatusPresent},
				{StudentID: sch.Students[0].ID, Status: attendance.StatusAbsent},
			}},
			"lines[1].student_id",
		},
		{
			"student of another class",
			attendance.Sheet{ClassID: sch.Class.ID, Date: day, Lines: []attendance.SheetLine{
				{StudentID: other.Students[0].ID, Status: attendance.StatusPresent},
			}},
			"lines[0].student_id",
		},
		{
			"bad date",
			attendance.Sheet{ClassID: sch.Class.ID, Date: "05/02/2024", Lines: []attendance.SheetLine{
				{StudentID: sch.Students[0].ID, Status: attendance.StatusPresent},
			}},
			"date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Attendance.Mark(ctx, tt.sheet, sch.TeacherUser.ID)
			var valErr *core.ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			assert.Equal(t, tt.field, valErr.Fields[0].Field)
		})
	}

	recs, err := env.Attendance.Records(ctx, attendance.QueryFilter{ClassID: sch.Class.ID})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestService_Summary_emptyClass(t *testing.T) {
	env := testutil.NewEnv(t)
	cls, err := env.School.CreateClass(ctx, school.NewClass{Name: "Grade 1", Section: "A", AcademicYear: "2023/2024"})
	require.NoError(t, err)

	sum, err := env.Attendance.Summary(ctx, cls.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, sum.ClassSize)
	assert.True(t, sum.Rate.IsZero())
	assert.Len(t, sum.Counts, len(attendance.Statuses))
}
