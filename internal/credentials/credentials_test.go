package credentials

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	secret string
	err    error
	calls  int
}

func (s *staticProvider) Secret(context.Context, string) (string, error) {
	s.calls++
	return s.secret, s.err
}

func TestEnv(t *testing.T) {
	env := map[string]string{EnvFTPPassword: "hunter2", "EMPTY": ""}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	s, err := Env{Name: EnvFTPPassword, Lookup: lookup}.Secret(context.Background(), "pw")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", s)

	_, err = Env{Name: "EMPTY", Lookup: lookup}.Secret(context.Background(), "pw")
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = Env{Name: "MISSING", Lookup: lookup}.Secret(context.Background(), "pw")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestChain(t *testing.T) {
	t.Run("first hit wins", func(t *testing.T) {
		empty := &staticProvider{err: ErrNoSecret}
		hit := &staticProvider{secret: "s3cret"}
		never := &staticProvider{secret: "other"}

		s, err := Chain{empty, hit, never}.Secret(context.Background(), "pw")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", s)
		assert.Equal(t, 0, never.calls)
	})

	t.Run("hard error stops the chain", func(t *testing.T) {
		boom := errors.New("tty gone")
		never := &staticProvider{secret: "x"}

		_, err := Chain{&staticProvider{err: boom}, never}.Secret(context.Background(), "pw")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, never.calls)
	})

	t.Run("exhausted", func(t *testing.T) {
		_, err := Chain{}.Secret(context.Background(), "pw")
		assert.ErrorIs(t, err, ErrNoSecret)
	})
}

func TestTerminal_PipedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte("piped-pass\n"), 0o600))
	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	var out bytes.Buffer
	s, err := (&Terminal{In: in, Out: &out}).Secret(context.Background(), "FTP password")

	require.NoError(t, err)
	assert.Equal(t, "piped-pass", s)
	assert.Equal(t, "FTP password: ", out.String())
}

func TestTerminal_PipedInputKeepsLaterLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte("first-pass\nsecond-pass\n"), 0o600))
	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	term := &Terminal{In: in, Out: &bytes.Buffer{}}

	first, err := term.Secret(context.Background(), "FTP password")
	require.NoError(t, err)
	second, err := term.Secret(context.Background(), "FTP password")
	require.NoError(t, err)
	_, err = term.Secret(context.Background(), "FTP password")

	assert.Equal(t, "first-pass", first)
	assert.Equal(t, "second-pass", second)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestTerminal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Terminal{In: os.Stdin, Out: &bytes.Buffer{}}).Secret(ctx, "pw")
	assert.ErrorIs(t, err, context.Canceled)
}
