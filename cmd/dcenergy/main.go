package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:          "dcenergy",
		Short:        "Data center energy loss and PUE calculator",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.redisAddr, "redis-addr", "", "use the redis store at this address")

	rootCmd.AddCommand(calculateCmd(&opts))
	rootCmd.AddCommand(reportCmd(&opts))
	rootCmd.AddCommand(catalogCmd(&opts))
	rootCmd.AddCommand(serveCmd(&opts))
	rootCmd.AddCommand(historyCmd(&opts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func calculateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "calculate [project-file]",
		Short: "Apply a project file and print its energy breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalculate(cmd.Context(), opts, args[0])
		},
	}
}

func reportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report [project-dir]",
		Short: "Calculate every project file in a directory and summarize PUE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), opts, args[0])
		},
	}
}

func catalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the active equipment reference catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCatalog(opts)
		},
	}
}

func serveCmd(opts *options) *cobra.Command {
	var (
		addr   string
		reload time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve [project-dir]",
		Short: "Calculate a project directory and expose metrics over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, args[0], addr, reload)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to metrics.addr)")
	cmd.Flags().DurationVar(&reload, "reload", -1, "project directory rescan interval, 0 disables (defaults to serve.reload_interval)")
	return cmd
}

func historyCmd(opts *options) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "history [project-id]",
		Short: "Print the recorded PUE snapshots of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, args[0], since)
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "how far back to read")
	return cmd
}
