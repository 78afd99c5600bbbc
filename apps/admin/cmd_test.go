package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/lojf/nextgen/core/staff"
	inmemdb "github.com/lojf/nextgen/storage/database/inmem"
)

var staffRepo staff.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed, %v", err)
	}
	staffRepo = inmemdb.NewStaffRepository(db)

	return &commandLine{staffRepo: staffRepo}
}

func createStaff(t *testing.T, name, email, pwd string) staff.Staff {
	t.Helper()

	now := time.Now().UTC()
	stf := staff.Staff{
		Name:        name,
		Email:       email,
		AccessLevel: staff.LevelVolunteer,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := stf.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword() failed, %v", err)
	}
	stf, err := staffRepo.CreateStaff(context.Background(), stf)
	if err != nil {
		t.Fatalf("CreateStaff() failed, %v", err)
	}
	return stf
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
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
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "guardian", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addStaff(t *testing.T) {
	cli := setup(t)

	existing := createStaff(t, "Grace Ilunga", "grace@test.cd", "mdr")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"addstaff"}, wantErr: errHelp},
		{name: "name but no email", args: []string{"addstaff", "-name", "Jojo"}, wantErr: errHelp},
		{name: "no password", args: []string{"addstaff", "-name", "Jojo", "-email", "jojo@test.cd"}, wantErr: errHelp},
		{name: "create", args: []string{"addstaff", "-name", "Jojo", "-email", "jojo@test.cd"}, extra: extra{pwd: "s3cr3t!!"}},
		{name: "create admin", args: []string{"addstaff", "-name", "Dada", "-email", "dada@test.cd", "-admin"}, extra: extra{pwd: "s3cr3t!!"}},
		{name: "update existing", args: []string{"addstaff", "-name", "Grace I.", "-email", existing.Email, "-admin"}, extra: extra{pwd: "n3w-pwd!"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				email := args[len(args)-1]
				if args[len(args)-1] == "-admin" {
					email = args[len(args)-2]
				}
				stf, err := staffRepo.GetStaff(context.Background(), staff.GetFilter{Email: email})
				if err != nil {
					t.Fatalf("GetStaff() failed, %v", err)
				}
				if !stf.IsActive {
					t.Error("staff member should be active")
				}
				if extra, ok := tt.extra.(extra); ok {
					if err := stf.CheckPassword(extra.pwd); err != nil {
						t.Error("failed to set new password")
					}
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("admin flag grants admin level", func(t *testing.T) {
		stf, err := staffRepo.GetStaff(context.Background(), staff.GetFilter{Email: "dada@test.cd"})
		if err != nil {
			t.Fatalf("GetStaff() failed, %v", err)
		}
		if !stf.IsAdmin() {
			t.Errorf("AccessLevel = %d, want %d", stf.AccessLevel, staff.LevelAdmin)
		}
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	stf := createStaff(t, "Awe Mwamba", "awe@test.cd", "mdr")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "staff not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "lol"}, wantErr: staff.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", stf.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := staffRepo.GetStaff(context.Background(), staff.GetFilter{ID: stf.ID})
				if err != nil {
					t.Fatalf("GetStaff() failed, %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, stf.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
