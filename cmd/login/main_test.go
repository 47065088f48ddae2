package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"expense-guard/internal/config"
	"expense-guard/internal/mail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`is: (\d{6})`)

// typist answers the prompt with whatever code it was mailed.
type typist struct {
	stdin *bytes.Buffer
	wrong bool
	err   error
}

func (ty *typist) Send(_ context.Context, msg mail.Message) error {
	if ty.err != nil {
		return ty.err
	}
	code := codePattern.FindStringSubmatch(msg.Body)[1]
	if ty.wrong {
		code = "000000"
	}
	ty.stdin.WriteString(code + "\n")
	return nil
}

func withSender(t *testing.T, s mail.Sender) {
	t.Helper()
	prev := newSender
	newSender = func(*config.Config) (mail.Sender, error) { return s, nil }
	t.Cleanup(func() { newSender = prev })
}

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("MAIL_TRANSPORT", "drop")
	t.Setenv("MAIL_DROP_DIR", t.TempDir())
	t.Setenv("OTP_HASH_COST", "4")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "")
	return filepath.Join(t.TempDir(), "login.db")
}

func TestRun_Success(t *testing.T) {
	dbPath := setupEnv(t)
	stdin := new(bytes.Buffer)
	withSender(t, &typist{stdin: stdin})

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	args := []string{"-email", "user@example.com", "-db", dbPath}
	err := run(args, stdin, stdout, stderr)
	require.NoError(t, err)

	output := stdout.String()
	assert.Contains(t, output, "A code was sent to user@example.com")
	assert.Contains(t, output, "Code: ")
	assert.Contains(t, output, "Logged in as user@example.com (user id 1)")
	assert.Contains(t, output, "Total spend: 0.00")
}

func TestRun_SameUserOnSecondLogin(t *testing.T) {
	dbPath := setupEnv(t)
	args := []string{"-email", "user@example.com", "-db", dbPath}

	for i := 0; i < 2; i++ {
		stdin := new(bytes.Buffer)
		withSender(t, &typist{stdin: stdin})
		stdout := new(bytes.Buffer)
		require.NoError(t, run(args, stdin, stdout, new(bytes.Buffer)))
		assert.Contains(t, stdout.String(), "(user id 1)")
	}
}

func TestRun_WrongCode(t *testing.T) {
	dbPath := setupEnv(t)
	stdin := new(bytes.Buffer)
	withSender(t, &typist{stdin: stdin, wrong: true})

	args := []string{"-email", "user@example.com", "-db", dbPath}
	err := run(args, stdin, new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid or expired OTP")
}

func TestRun_EmptyInput(t *testing.T) {
	dbPath := setupEnv(t)
	withSender(t, &typist{stdin: new(bytes.Buffer)})

	// The prompt reads from a different, empty stdin.
	args := []string{"-email", "user@example.com", "-db", dbPath}
	err := run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no code entered")
}

func TestRun_MailFailure(t *testing.T) {
	dbPath := setupEnv(t)
	withSender(t, &typist{stdin: new(bytes.Buffer), err: errors.New("relay refused")})

	args := []string{"-email", "user@example.com", "-db", dbPath}
	err := run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send code")
}

func TestRun_InvalidEmail(t *testing.T) {
	dbPath := setupEnv(t)
	withSender(t, &typist{stdin: new(bytes.Buffer)})

	args := []string{"-email", "not-an-address", "-db", dbPath}
	err := run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email address")
}

func TestRun_MissingEmailFlag(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	err := run([]string{"-db", "x.db"}, stdin, stdout, stderr)
	require.Error(t, err, "expected error for missing email flag")
	assert.Contains(t, err.Error(), "missing required flags: email")

	// Usage should be printed
	assert.Contains(t, stdout.String(), "Usage:")
}

func TestRun_EnvVarDatabase(t *testing.T) {
	dbPath := setupEnv(t)
	t.Setenv("DB_PATH", dbPath)
	stdin := new(bytes.Buffer)
	withSender(t, &typist{stdin: stdin})

	// Do not pass -db flag, let it use env var
	err := run([]string{"-email", "user@example.com"}, stdin, new(bytes.Buffer), new(bytes.Buffer))
	require.NoError(t, err)

	// Verify DB file was created at dbPath
	assert.FileExists(t, dbPath)
}

func TestRun_InvalidDBPath(t *testing.T) {
	setupEnv(t)
	withSender(t, &typist{stdin: new(bytes.Buffer)})

	// Use a directory path as DB file path, which should fail
	args := []string{"-email", "user@example.com", "-db", t.TempDir()}
	err := run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err, "expected error for invalid db path")
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestRun_InvalidFlag(t *testing.T) {
	args := []string{"-invalid"}
	err := run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err, "expected error for invalid flag")
	assert.Contains(t, err.Error(), "flag provided but not defined")
}
