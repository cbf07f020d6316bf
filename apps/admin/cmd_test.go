package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excellacademy/academia/core/finance"
	"github.com/excellacademy/academia/core/grading"
	"github.com/excellacademy/academia/core/reportcard"
	"github.com/excellacademy/academia/core/user"
	"github.com/excellacademy/academia/tests"
)

var (
	ctx    = context.Background()
	period = grading.Period{Term: "First Term", AcademicYear: "2023/2024"}
)

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	var out bytes.Buffer

	// start CLI
	return &commandLine{
		usrRepo:     env.UserRepo,
		reportCards: env.ReportCards,
		finance:     env.Finance,
		out:         &out,
		now:         time.Now,
	}, env, &out
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func runAll(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	runAll(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "adduser: no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "recalculate-positions: missing year", args: []string{"recalculate-positions", "-class", "c", "-term", "First Term"}, wantErr: errHelp},
		{name: "generate-invoices: no fee", args: []string{"generate-invoices"}, wantErr: errHelp},
	})
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	var gotCommand string
	var gotArgs []string
	orig := migrateFunc
	migrateFunc = func(db *sqlx.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		if command == "lol" {
			return errors.New("\"lol\": no such command")
		}
		return nil
	}
	defer func() { migrateFunc = orig }()

	require.ErrorIs(t, cli.run([]string{"admin", "migrate"}), errHelp)

	require.NoError(t, cli.run([]string{"admin", "migrate", "up"}))
	assert.Equal(t, "up", gotCommand)
	assert.Empty(t, gotArgs)

	require.NoError(t, cli.run([]string{"admin", "migrate", "up-to", "2"}))
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, []string{"2"}, gotArgs)

	assert.EqualError(t, cli.run([]string{"admin", "migrate", "lol"}), "\"lol\": no such command")
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env, _ := setup(t)

	mockPassword(t, "")
	require.ErrorIs(t, cli.run([]string{"admin", "adduser", "-name", "Awe", "-username", "awe"}), errHelp)

	mockPassword(t, testutil.DefaultPassword)
	require.NoError(t, cli.run([]string{"admin", "adduser", "-name", "Awe", "-username", "Awe", "-email", "AWE@test.cd", "-admin"}))

	usr, err := env.UserRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"awe"}})
	require.NoError(t, err)
	assert.Equal(t, "awe@test.cd", usr.Email)
	assert.True(t, usr.IsActive)
	assert.ElementsMatch(t, user.AllRoles, usr.Roles)
	assert.NoError(t, usr.CheckPassword(testutil.DefaultPassword))

	t.Run("existing user is updated", func(t *testing.T) {
		usr.IsActive = false
		_, err := env.UserRepo.UpdateUser(ctx, usr)
		require.NoError(t, err)

		mockPassword(t, "n3w-Secret!")
		require.NoError(t, cli.run([]string{"admin", "adduser", "-name", "Awe Bis", "-email", "awe@test.cd"}))

		got, err := env.UserRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.Equal(t, "Awe Bis", got.Name)
		assert.True(t, got.IsActive)
		assert.NoError(t, got.CheckPassword("n3w-Secret!"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env, _ := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []struct {
		cliTest
		pwd string
	}{
		{cliTest: cliTest{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, wantErr: user.ErrNotFound}, pwd: "lol"},
		{cliTest: cliTest{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}}, pwd: "lol"},
		{cliTest: cliTest{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.cd"}}, pwd: "lmao"},
	}
	for _, tt := range tests {
		mockPassword(t, tt.pwd)
		runAll(t, cli, []cliTest{tt.cliTest})

		if tt.wantErr == nil {
			got, err := env.UserRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, got.CheckPassword(tt.pwd), tt.name)
		}
	}
}

func Test_commandLine_reportCards(t *testing.T) {
	cli, env, out := setup(t)
	sch := env.CreateSchool(t, 3)
	env.RecordScores(t, sch.Subjects[0].ID, period, sch.Students, "95", "85")

	args := []string{"admin", "recalculate-positions", "-class", sch.Class.ID, "-term", period.Term, "-year", period.AcademicYear}
	require.NoError(t, cli.run(args))
	assert.Contains(t, out.String(), "2 report cards updated, 0 finalized skipped, 1 students unscored")

	recs, err := env.ReportCards.Query(ctx, reportcard.QueryFilter{ClassID: sch.Class.ID})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, cliAuthor, r.GeneratedBy)
		_, err = env.ReportCards.Finalize(ctx, r.ID)
		require.NoError(t, err)
	}

	out.Reset()
	require.NoError(t, cli.run(args))
	assert.Contains(t, out.String(), "0 report cards updated, 2 finalized skipped")

	env.Store.Delete(reportcard.DocumentName(sch.Students[0].ID, period))
	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "check-report-cards"}))
	assert.Contains(t, out.String(), "1 report cards moved back to draft")

	// finalized without a document, as left by an interrupted finalization
	second := grading.Period{Term: "Second Term", AcademicYear: period.AcademicYear}
	env.RecordScores(t, sch.Subjects[0].ID, second, sch.Students, "45")
	now := time.Now().UTC()
	_, err = env.ReportCardRepo.Upsert(ctx, reportcard.Record{
		ID: "rc-orphan", StudentID: sch.Students[0].ID, ClassID: sch.Class.ID,
		Term: second.Term, AcademicYear: second.AcademicYear, OverallGrade: grading.GradeF,
		Finalized: true, GeneratedBy: cliAuthor, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "generate-missing-pdfs"}))
	assert.Contains(t, out.String(), "1 documents generated")
}

func Test_commandLine_invoices(t *testing.T) {
	cli, env, out := setup(t)
	sch := env.CreateSchool(t, 2)
	fee, err := env.Finance.CreateFeeStructure(ctx, finance.NewFeeStructure{
		ClassID:      sch.Class.ID,
		AcademicYear: "2023/2024",
		Term:         "First Term",
		Amount:       "500",
		DueDate:      "2099-12-31",
	})
	require.NoError(t, err)

	require.NoError(t, cli.run([]string{"admin", "generate-invoices", "-fee", fee.ID}))
	assert.Contains(t, out.String(), "2 invoices created, 0 students already invoiced")

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "generate-invoices", "-fee", fee.ID}))
	assert.Contains(t, out.String(), "0 invoices created, 2 students already invoiced")

	require.ErrorIs(t, cli.run([]string{"admin", "generate-invoices", "-fee", "nope"}), finance.ErrFeeNotFound)

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "refresh-overdue"}))
	assert.Contains(t, out.String(), "0 invoices marked overdue")

	cli.now = func() time.Time { return time.Date(2100, 1, 15, 0, 0, 0, 0, time.UTC) }
	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "refresh-overdue"}))
	assert.Contains(t, out.String(), "2 invoices marked overdue")
}
