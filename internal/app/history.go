package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/vk/sitepipe/internal/history"
)

var (
	statusOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusOther  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// PrintHistory writes the most recent runs journaled under stateDir as a
// table. A state dir without a journal prints a short notice.
func PrintHistory(ctx context.Context, w io.Writer, stateDir string, limit int) error {
	if _, err := os.Stat(filepath.Join(stateDir, history.FileName)); errors.Is(err, fs.ErrNotExist) {
		_, err := fmt.Fprintln(w, "No runs recorded yet.")
		return err
	}

	store, err := history.Open(ctx, stateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded yet.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "TASK", "STATUS", "DURATION", "ERROR")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.Duration().Round(time.Millisecond).String()
		}
		t.Row(
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Task,
			statusStyle(r.Status).Render(string(r.Status)),
			duration,
			truncate(r.Error, 60),
		)
	}
	_, err = fmt.Fprintln(w, t.Render())
	return err
}

func statusStyle(s history.Status) lipgloss.Style {
	switch s {
	case history.StatusSucceeded:
		return statusOK
	case history.StatusFailed:
		return statusFailed
	default:
		return statusOther
	}
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
