// Package main is the entry point for the idrsched CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/idrsched/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "idrsched",
		Short:         "Keep replication subscriptions running on cron schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		versionCmd(),
		runCmd(),
		sealCmd(),
		configCmd(),
		subscriptionCmd(),
		serviceCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "idrsched %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// runFlags are shared by "run" and "service".
type runFlags struct {
	keyFile      string
	logLevel     string
	adminAddr    string
	adminToken   string
	waitInterval time.Duration
	accessURL    string
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.keyFile, "key-file", "", "AES key file (default $"+app.KeyFileEnv+" or key.dat next to the config)")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&f.adminAddr, "admin-addr", "", "admin HTTP listen address (empty disables)")
	fs.StringVar(&f.adminToken, "admin-token", "", "bearer token required on POST /reload")
	fs.DurationVar(&f.waitInterval, "wait-interval", 60*time.Second, "stop-flag poll interval")
	fs.StringVar(&f.accessURL, "access-url", "", "access server base URL template (default http://{host}:{port})")
}

// args rebuilds the flag list so an installed service starts with the same settings.
func (f *runFlags) args() []string {
	out := []string{"--log-level", f.logLevel, "--wait-interval", f.waitInterval.String()}
	for _, kv := range [][2]string{
		{"--key-file", f.keyFile},
		{"--admin-addr", f.adminAddr},
		{"--admin-token", f.adminToken},
		{"--access-url", f.accessURL},
	} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}

func (f *runFlags) params(configPath string) (app.RunParams, error) {
	level, err := parseLevel(f.logLevel)
	if err != nil {
		return app.RunParams{}, err
	}
	return app.RunParams{
		ConfigPath:   configPath,
		KeyFile:      f.keyFile,
		LogLevel:     level,
		AdminAddr:    f.adminAddr,
		AdminToken:   f.adminToken,
		WaitInterval: f.waitInterval,
		AccessURL:    f.accessURL,
		Version:      version,
	}, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return level, nil
}

func runCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Schedule the subscriptions in <config> and keep them in sync with the file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			params, err := flags.params(args[0])
			if err != nil {
				return err
			}
			return app.Run(params)
		},
	}
	flags.register(cmd)
	return cmd
}
