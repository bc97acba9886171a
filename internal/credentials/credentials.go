// Package credentials acquires deploy secrets. Acquisition is synchronous and
// happens before any transfer target is built.
package credentials

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// EnvFTPPassword is read by Env before falling back to an interactive prompt.
const EnvFTPPassword = "SITEPIPE_FTP_PASSWORD"

// ErrNoSecret is returned when a provider has nothing to offer.
var ErrNoSecret = errors.New("no secret available")

// Provider yields a secret for the given prompt.
type Provider interface {
	Secret(ctx context.Context, prompt string) (string, error)
}

// Terminal reads a secret from a terminal without echo. When In is not a
// terminal a single line is read instead, which keeps piped input working.
type Terminal struct {
	In  *os.File
	Out io.Writer

	mu     sync.Mutex
	reader *bufio.Reader
}

// NewTerminal returns a Terminal bound to stdin and stderr.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr}
}

// Secret implements Provider.
func (t *Terminal) Secret(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(t.Out, "%s: ", prompt)

	fd := int(t.In.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(t.Out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	// One reader per Terminal so bytes buffered past the first line are kept
	// for the next prompt.
	t.mu.Lock()
	if t.reader == nil {
		t.reader = bufio.NewReader(t.In)
	}
	line, err := t.reader.ReadString('\n')
	t.mu.Unlock()
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", ErrNoSecret
	}
	return line, nil
}

// Env reads a secret from an environment variable.
type Env struct {
	Name   string
	Lookup func(string) (string, bool)
}

// Secret implements Provider.
func (e Env) Secret(_ context.Context, _ string) (string, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(e.Name); ok && v != "" {
		return v, nil
	}
	return "", ErrNoSecret
}

// Chain asks each provider in turn and returns the first secret found.
type Chain []Provider

// Secret implements Provider.
func (c Chain) Secret(ctx context.Context, prompt string) (string, error) {
	for _, p := range c {
		s, err := p.Secret(ctx, prompt)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrNoSecret) {
			return "", err
		}
	}
	return "", ErrNoSecret
}

// Default is the provider used by the CLI: the environment, then the terminal.
func Default() Provider {
	return Chain{Env{Name: EnvFTPPassword}, NewTerminal()}
}
