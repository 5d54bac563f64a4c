package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// errUsage marks invalid command-line input.
	errUsage = errors.New("usage error")
	// errMissingKernel is returned after the usage line has already been printed.
	errMissingKernel = fmt.Errorf("%w: missing kernel name", errUsage)
)

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		cfgFile  string
	)

	cmd := &cobra.Command{
		Use:   "scryptbench KERNEL",
		Short: "Validate and benchmark an OpenCL scrypt kernel",
		Long: `scryptbench compiles kernel/KERNEL.cl, runs it concurrently on the first GPU,
checks every digest against a host-computed scrypt reference and reports throughput.
Stop it with Ctrl-C to print the aggregate hashrate.`,
		Args:          requireKernel,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(newLogger(cmd.OutOrStdout(), level))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd.Flags(), cfgFile)
			if err != nil {
				return err
			}
			return runBenchmark(cmd, args[0], s)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml, json, toml)")
	registerBenchFlags(cmd.Flags())

	cmd.AddCommand(newVersionCmd(), newRunsCmd())
	return cmd
}

func requireKernel(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		fmt.Fprintf(cmd.OutOrStdout(), "usage: %s KERNEL\n", cmd.Root().Name())
		return errMissingKernel
	}
	if len(args) > 1 {
		return fmt.Errorf("%w: expected one kernel name, got %d arguments", errUsage, len(args))
	}
	return nil
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", errUsage, name)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
