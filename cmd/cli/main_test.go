package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/sitepipe/internal/cli"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_StartupError(t *testing.T) {
	t.Parallel()

	invalidHCL := `
task "a" {
  action "print" {
    message = "hi"
  # missing closing braces
`
	path := writeFile(t, t.TempDir(), "sitepipe.hcl", invalidHCL)
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-f", path, "--no-history", "a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load taskfile")
	var exitErr *cli.ExitError
	assert.False(t, errors.As(err, &exitErr), "startup errors exit with the generic code")
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "sitepipe.hcl", `
task "hello" {
  action "print" { message = "hello from sitepipe" }
}
`)
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-f", path, "--state-dir", filepath.Join(dir, ".state"), "--env-file", "", "hello"})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "hello from sitepipe")
	assert.FileExists(t, filepath.Join(dir, ".state", "history.sqlite"))
}

func TestRun_TaskFailureExitsOne(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "sitepipe.hcl", `
task "check" {
  action "http_request" {
    url           = "http://127.0.0.1:1/unreachable"
    expect_status = 200
    timeout       = "200ms"
  }
}
`)
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-f", path, "--no-history", "--env-file", "", "check"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, out.String(), "check failed")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_InitThenList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sitepipe.hcl")
	out := &bytes.Buffer{}

	require.NoError(t, run(context.Background(), out, []string{"init", "-f", path}))
	assert.FileExists(t, path)
	require.Error(t, run(context.Background(), out, []string{"init", "-f", path}), "init must not overwrite")

	// The stock taskfile has deploy tasks, so the webhost config must exist.
	writeFile(t, dir, "webhost-config.json", `{"address":"example.com","ssh":{"username":"me"}}`)
	out.Reset()
	err := run(context.Background(), out, []string{
		"-f", path, "--list", "--env-file", "", "--log-level", "error",
		"--webhost", filepath.Join(dir, "webhost-config.json"),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "serveBuild")
	assert.Contains(t, out.String(), "ftp-deploy")
}

func TestRun_History(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"history", "--state-dir", filepath.Join(t.TempDir(), "none")})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "No runs recorded yet.")
}
