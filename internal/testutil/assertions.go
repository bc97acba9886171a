package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertTaskRan checks the log output within a HarnessResult to confirm that
// a specific leaf task has completed.
func AssertTaskRan(t *testing.T, result *HarnessResult, task string) {
	t.Helper()

	expected := fmt.Sprintf("task=%s", task)
	for _, line := range strings.Split(result.LogOutput, "\n") {
		if strings.Contains(line, "msg=Finished.") && strings.Contains(line, expected) {
			return
		}
	}
	require.Failf(t, "task did not run", "expected a completion log line for task '%s'", task)
}
