package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/vk/sitepipe/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command selects what the process does after parsing.
type Command int

const (
	// CommandRun runs, lists or plans a task from the taskfile.
	CommandRun Command = iota
	// CommandInit writes the stock taskfile.
	CommandInit
	// CommandHistory prints recent runs.
	CommandHistory
)

// Invocation is the parsed command line.
type Invocation struct {
	Command Command
	Config  *app.Config

	// Force lets init overwrite an existing taskfile.
	Force bool
	// Limit is the number of runs history prints.
	Limit int
}

// DefaultHistoryLimit is the number of runs `history` prints by default.
const DefaultHistoryLimit = 20

// Parse processes command-line arguments. It returns the parsed Invocation,
// a boolean indicating if the program should exit cleanly (help was
// printed), or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")

	var (
		inv  *Invocation
		opts app.Config
	)
	force := false
	limit := DefaultHistoryLimit

	build := func(cmd Command) error {
		cfg, cfgErr := app.NewConfig(opts)
		if cfgErr != nil {
			return &ExitError{Code: 2, Message: cfgErr.Error()}
		}
		inv = &Invocation{Command: cmd, Config: cfg, Force: force, Limit: limit}
		return nil
	}

	root := &cobra.Command{
		Use:   "sitepipe [flags] [task]",
		Short: "Run static-site build and deploy tasks declared in an HCL taskfile",
		Long: `sitepipe runs the tasks declared in a taskfile (sitepipe.hcl by default).

A task either runs one built-in action (sass, copy, minify_js, minify_css,
clean, serve, rsync, ftp, http_request, socketio, print) or runs other
tasks in series or in parallel. Without a task argument the "default"
task runs.`,
		Example: `  sitepipe               # run the default task
  sitepipe build         # rebuild ./dist
  sitepipe deploy --all  # deploy every file, not only changed ones
  sitepipe --plan build  # show what build would run`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Task = args[0]
			}
			return build(CommandRun)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.TaskfilePath, "file", "f", app.DefaultTaskfile, "Path to the taskfile, or a directory of .hcl files.")
	pf.StringVar(&opts.EnvFile, "env-file", app.DefaultEnvFile, "Dotenv file loaded before the taskfile; ignored when missing. Empty disables it.")
	pf.StringVar(&opts.LogFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&opts.StateDir, "state-dir", app.DefaultStateDir, "Directory holding the run history journal.")

	f := root.Flags()
	f.BoolVar(&opts.All, "all", false, "Deploy every file instead of only changed ones.")
	f.StringVar(&opts.WebhostPath, "webhost", app.DefaultWebhost, "Path to the webhost config (JSON or YAML), needed by deploy tasks.")
	f.IntVar(&opts.Workers, "workers", 0, "Maximum concurrent tasks per parallel group. 0 is unbounded.")
	f.BoolVar(&opts.List, "list", false, "List the tasks of the taskfile and exit.")
	f.BoolVar(&opts.Plan, "plan", false, "Print the resolved plan of the task and exit without running it.")
	f.BoolVar(&opts.NoHistory, "no-history", false, "Do not record this run in the history journal.")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a stock taskfile for a SCSS static site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(CommandInit)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing taskfile.")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return &ExitError{Code: 2, Message: "--limit must be positive"}
			}
			return build(CommandHistory)
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", DefaultHistoryLimit, "Number of runs to show.")

	root.AddCommand(initCmd, historyCmd)

	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if inv == nil {
		// Help was printed.
		slog.Debug("No command ran, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "command", inv.Command, "config", inv.Config)
	return inv, false, nil
}
