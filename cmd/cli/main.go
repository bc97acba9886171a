package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/sitepipe/internal/app"
	"github.com/vk/sitepipe/internal/cli"
	"github.com/vk/sitepipe/internal/dag"
	"github.com/vk/sitepipe/internal/hcl"
)

// main is the entrypoint for the sitepipe application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()

	// The real main function handles errors and exit codes.
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	inv, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}
	cfg := inv.Config

	switch inv.Command {
	case cli.CommandInit:
		if err := app.WriteStockTaskfile(cfg.TaskfilePath, inv.Force); err != nil {
			return err
		}
		fmt.Fprintf(outW, "Wrote %s. Run `sitepipe --list` to see its tasks.\n", cfg.TaskfilePath)
		return nil
	case cli.CommandHistory:
		return app.PrintHistory(ctx, outW, cfg.StateDir, inv.Limit)
	}

	if loaded, err := app.LoadEnvFile(cfg.EnvFile); err != nil {
		return err
	} else if loaded {
		slog.Debug("Environment file loaded.", "path", cfg.EnvFile)
	}

	// The loader reads the environment after the env file has been applied.
	loader := hcl.NewLoader(os.Environ())
	sitepipe, err := app.NewApp(outW, cfg, loader)
	if err != nil {
		return err
	}
	defer sitepipe.Close()

	if err := sitepipe.Run(ctx); err != nil {
		// Run has already printed the failure report for action failures.
		if len(dag.LeafFailures(err)) > 0 {
			return &cli.ExitError{Code: 1, Message: fmt.Sprintf("task %q failed", cfg.Task)}
		}
		return err
	}
	return nil
}
