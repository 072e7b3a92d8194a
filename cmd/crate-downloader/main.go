package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jarri2di/crate-downloader/internal/config"
	"github.com/jarri2di/crate-downloader/internal/download"
	"github.com/jarri2di/crate-downloader/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes
const (
	ExitSuccess     = 0
	ExitScanError   = 1
	ExitInvalidArgs = 2
	ExitInterrupted = 130
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cmd := newRootCommand(viper.New(), stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	return exitCode(cmd.Execute(), stderr)
}

// exitCode reports err on stderr and maps it to the process exit code.
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "\nDownload cancelled.")
		return ExitInterrupted
	case errors.Is(err, errUsage), errors.Is(err, config.ErrInvalid):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	default:
		fmt.Fprintf(stderr, "Application error: %v\n", err)
		return ExitScanError
	}
}

func newRootCommand(v *viper.Viper, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crate-downloader",
		Short: "Download Rust crates for offline development",
		Long: `Mirror crates.io locally.

Compares a local checkout of the crates.io index against a download
directory and fetches every crate archive that is not there yet.
Every flag can also be set through the environment variable of the
same name in upper case, e.g. INDEX_PATH or MAX_CONCURRENT_DOWNLOADS.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMirror(cmd.Context(), v, stdout)
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "console", "Log format (console, json)")
	config.BindFlags(f, v)

	return cmd
}

func runMirror(parent context.Context, v *viper.Viper, stdout io.Writer) error {
	settings, err := config.FromViper(v)
	if err != nil {
		return err
	}
	if err := settings.Validate(afero.NewOsFs()); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  v.GetString("log-level"),
		Format: v.GetString("log-format"),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	manager := download.NewManager(settings, logging.Reporter(logger))
	if _, err := manager.Run(ctx, stdout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
