package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/enrolment"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

type fixture struct {
	cli    *commandLine
	db     *inmemdb.DB
	users  user.Repository
	school school.Repository
	enrol  enrolment.Repository
	out    *bytes.Buffer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.Open()
	f := &fixture{
		db:     db,
		users:  inmemdb.NewUserRepository(db),
		school: inmemdb.NewSchoolRepository(db),
		enrol:  inmemdb.NewEnrolmentRepository(db),
		out:    new(bytes.Buffer),
	}
	f.cli = &commandLine{
		usrRepo: f.users,
		syncer:  enrolment.NewService(f.enrol, f.school, db, db),
		out:     f.out,
	}
	return f
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (f *fixture) check(t *testing.T, tt cliTest) {
	t.Helper()
	mockPassword(t, tt.pwd)
	err := f.cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	orig := runMigrationsFunc
	t.Cleanup(func() { runMigrationsFunc = orig })
	runMigrationsFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.check(t, tt)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "awe"}, pwd: "lol", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "awe", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "create", args: []string{"adduser", "-username", " AWE ", "-email", "awe@test.cd"}, pwd: "lol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.check(t, tt)
		})
	}

	usr, err := f.users.GetUser(ctx, user.GetFilter{Username: "awe"})
	require.NoError(t, err)
	assert.Equal(t, "awe@test.cd", usr.Email)
	assert.True(t, usr.Active())
	assert.Empty(t, usr.Roles)
	assert.NoError(t, usr.CheckPassword("lol"))

	t.Run("promote existing user", func(t *testing.T) {
		f.check(t, cliTest{args: []string{"adduser", "-username", "awe", "-email", "awe@test.cd", "-admin"}, pwd: "lmao"})

		got, err := f.users.GetUser(ctx, user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		assert.ElementsMatch(t, user.AllRoles, got.Roles)
		assert.NoError(t, got.CheckPassword("lmao"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.users, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.check(t, tt)
			if tt.wantErr != nil {
				return
			}
			refreshedUsr, err := f.users.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshedUsr.CheckPassword(tt.pwd))
		})
	}
}

func Test_commandLine_syncGrades(t *testing.T) {
	f := setup(t)
	grade := testutil.CreateGrade(t, f.school, "Grade 7", "", 7, school.SecondaryLower)
	maths := testutil.CreateSubject(t, f.school, "Mathematics", "MAT")
	testutil.CreateGradeSubject(t, f.enrol, grade.ID, maths.ID, false, true)
	alice := testutil.CreateStudent(t, f.school, "G7-001", "Alice", "Atieno", grade.ID, "")

	f.check(t, cliTest{args: []string{"syncgrades"}})
	assert.Contains(t, f.out.String(), grade.ID+": 1 added, 0 promoted, 0 removed")

	records, err := f.enrol.ListStudentSubjects(context.Background(), &enrolment.StudentSubjectFilter{StudentIDs: []string{alice.ID}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, enrolment.Inherited, records[0].SourceType)

	// nothing left to do
	f.out.Reset()
	f.check(t, cliTest{args: []string{"syncgrades", "-remove-orphaned"}})
	assert.Contains(t, f.out.String(), grade.ID+": 0 added, 0 promoted, 0 removed")
}
