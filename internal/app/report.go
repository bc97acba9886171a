package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vk/sitepipe/internal/dag"
)

var (
	reportTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	reportTask   = lipgloss.NewStyle().Bold(true)
	reportDetail = lipgloss.NewStyle().Faint(true)
	reportBox    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1)
)

// renderFailureReport builds the human readable summary printed when a run
// fails: one line per failed leaf, nested under the parallel groups that
// collected them.
func renderFailureReport(root string, err error) string {
	var sb strings.Builder
	sb.WriteString(reportTitle.Render(fmt.Sprintf("✖ %s failed", root)))
	sb.WriteByte('\n')
	writeFailure(&sb, err, 0)

	leaves := dag.LeafFailures(err)
	if len(leaves) > 1 {
		fmt.Fprintf(&sb, "\n%d tasks failed.", len(leaves))
	}
	return reportBox.Render(strings.TrimRight(sb.String(), "\n")) + "\n"
}

func writeFailure(sb *strings.Builder, err error, depth int) {
	indent := strings.Repeat("  ", depth)

	var composite *dag.CompositeFailure
	if errors.As(err, &composite) {
		fmt.Fprintf(sb, "%s%s %s\n", indent, reportTask.Render(composite.Task),
			reportDetail.Render(fmt.Sprintf("(%d of its parallel tasks failed)", len(composite.Errors))))
		for _, child := range composite.Errors {
			writeFailure(sb, child, depth+1)
		}
		return
	}

	var leaf *dag.ActionFailure
	if errors.As(err, &leaf) {
		fmt.Fprintf(sb, "%s%s\n", indent, reportTask.Render(leaf.Task))
		for _, line := range strings.Split(leaf.Err.Error(), "\n") {
			fmt.Fprintf(sb, "%s  %s\n", indent, reportDetail.Render(line))
		}
		return
	}

	fmt.Fprintf(sb, "%s%s\n", indent, reportDetail.Render(err.Error()))
}
