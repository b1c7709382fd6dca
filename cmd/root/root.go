// Package root wires the docflow command tree: the long-running ingestion
// loop, the DLQ replayer, and the local one-shot tools.
package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docflowhq/docflow/pkg/logging"
)

type rootFlags struct {
	enableOtel  bool
	debugMode   bool
	logFilePath string
	configPath  string
	logFile     io.Closer
}

func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "docflow",
		Short: "docflow - document ingestion and routing",
		Long:  "docflow consumes document notifications, profiles each document's layout, and routes it to the right parser strategy",
		Example: `  docflow ingest
  docflow route --body notification.json
  docflow replay --limit 100`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.setupLogging(cmd.ErrOrStderr()); err != nil {
				return err
			}
			if flags.enableOtel {
				if err := initOTelSDK(cmd.Context()); err != nil {
					slog.Warn("Failed to initialize OpenTelemetry SDK", "error", err)
				} else {
					slog.Debug("OpenTelemetry SDK initialized successfully")
				}
			}
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if flags.logFile != nil {
				if err := flags.logFile.Close(); err != nil {
					slog.Error("Failed to close log file", "error", err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.debugMode, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.enableOtel, "otel", "o", false, "Enable OpenTelemetry tracing")
	cmd.PersistentFlags().StringVar(&flags.logFilePath, "log-file", "", "Write logs to this file instead of stderr")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a docflow.yaml configuration file")

	cmd.AddCommand(newIngestCmd(&flags))
	cmd.AddCommand(newReplayCmd(&flags))
	cmd.AddCommand(newRouteCmd(&flags))
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func Execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args ...string) error {
	rootCmd := NewRootCmd()
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetContext(ctx)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		return processErr(ctx, err, stderr, rootCmd)
	}
	return nil
}

func processErr(ctx context.Context, err error, stderr io.Writer, rootCmd *cobra.Command) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var runtimeErr RuntimeError
	if errors.As(err, &runtimeErr) {
		// Runtime errors were already logged by the command itself.
		return err
	}
	fmt.Fprintln(stderr, err)
	if strings.HasPrefix(err.Error(), "unknown command ") || strings.HasPrefix(err.Error(), "accepts ") {
		fmt.Fprintln(stderr)
		_ = rootCmd.Usage()
	}
	return err
}

// setupLogging installs the process-wide slog handler. Service code logs
// through slog and never configures handlers itself.
func (f *rootFlags) setupLogging(stderr io.Writer) error {
	level := slog.LevelInfo
	if f.debugMode {
		level = slog.LevelDebug
	}

	out := stderr
	if path := strings.TrimSpace(f.logFilePath); path != "" {
		logFile, err := logging.NewRotatingFile(path)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		f.logFile = logFile
		out = logFile
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return nil
}

// RuntimeError wraps runtime errors to distinguish them from usage errors.
type RuntimeError struct {
	Err error
}

func (e RuntimeError) Error() string {
	return e.Err.Error()
}

func (e RuntimeError) Unwrap() error {
	return e.Err
}
