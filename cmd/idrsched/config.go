package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/flemzord/idrsched/internal/accessserver"
	"github.com/flemzord/idrsched/internal/config"
	"github.com/flemzord/idrsched/internal/cron"
	"github.com/flemzord/idrsched/internal/seal"
	"github.com/flemzord/idrsched/internal/strategy"
	"github.com/flemzord/idrsched/pkg/app"
)

// errSkipped makes "config check" exit nonzero when any enabled
// subscription would not be scheduled.
var errSkipped = errors.New("some enabled subscriptions would not be scheduled")

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate a configuration and list what would be scheduled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategies := builtinStrategies()
			cfg, res, err := app.Check(args[0], strategies)
			if err != nil {
				return err
			}
			return printCheck(cmd.OutOrStdout(), cfg, res)
		},
	}
}

func printCheck(w io.Writer, cfg *config.Config, res cron.Result) error {
	fmt.Fprintf(w, "Configuration OK: %s:%s (%d subscriptions, %d scheduled)\n",
		cfg.AccessServer, cfg.Port, len(cfg.Subscriptions), len(res.Scheduled))
	for _, id := range res.Scheduled {
		fmt.Fprintf(w, "  scheduled %s\n", id)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "  skipped   %s: %v\n", s.ID, s.Err)
	}
	if len(res.Skipped) > 0 {
		return errSkipped
	}
	return nil
}

func configInitCmd() *cobra.Command {
	var path, keyFile string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(path); err == nil {
				overwrite := false
				if err := huh.NewConfirm().
					Title(fmt.Sprintf("%s exists. Overwrite?", path)).
					Value(&overwrite).
					Run(); err != nil {
					return err
				}
				if !overwrite {
					return nil
				}
			}

			var cfg config.Config
			var plain string
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Access server host").Value(&cfg.AccessServer).Validate(required),
				huh.NewInput().Title("Access server port").Value(&cfg.Port).Validate(required),
				huh.NewInput().Title("User").Value(&cfg.UserID).Validate(required),
				huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&plain).Validate(required),
			))
			if err := form.Run(); err != nil {
				return err
			}

			sealer, err := seal.LoadKeyFile(app.ResolveKeyFile(keyFile, path))
			if err != nil {
				return err
			}
			if cfg.Password, err = sealer.Seal(plain); err != nil {
				return err
			}
			if err := config.Validate(&cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			if err := config.Save(&cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", app.DefaultConfigPath(), "configuration file to create")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "AES key file used to seal the password")
	return cmd
}

func subscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Manage scheduled subscriptions",
	}
	cmd.AddCommand(subscriptionAddCmd())
	return cmd
}

func subscriptionAddCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Interactively add a subscription to a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			strategies := builtinStrategies()
			sub := config.Subscription{LoaderClass: strategy.SimpleStarterID, Enabled: true}
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Subscription id").Value(&sub.ID).Validate(uniqueID(cfg)),
				huh.NewInput().Title("Subscription name").Value(&sub.Name).Validate(required),
				huh.NewInput().Title("Source data store").Value(&sub.SourceDataStore).Validate(required),
				huh.NewInput().Title("Cron pattern").Placeholder("0 0/5 * * * ?").Value(&sub.CronPattern).Validate(validPattern),
				huh.NewSelect[string]().Title("Strategy").
					Options(huh.NewOptions(strategies.IDs()...)...).
					Value(&sub.LoaderClass),
				huh.NewConfirm().Title("Enabled").Value(&sub.Enabled),
			))
			if err := form.Run(); err != nil {
				return err
			}

			if err := addSubscription(path, sub); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", sub.ID, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", app.DefaultConfigPath(), "configuration file to edit")
	return cmd
}

// addSubscription appends sub to the document at path. The expanded
// document is validated; the unexpanded one is written back so ${VAR}
// references survive the edit.
func addSubscription(path string, sub config.Subscription) error {
	expanded, err := config.Load(path)
	if err != nil {
		return err
	}
	raw, err := config.LoadRaw(path)
	if err != nil {
		return err
	}

	expanded.Subscriptions = append(expanded.Subscriptions, sub)
	if err := config.Validate(expanded); err != nil {
		return err
	}
	raw.Subscriptions = append(raw.Subscriptions, sub)
	return config.Save(raw, path)
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func uniqueID(cfg *config.Config) func(string) error {
	return func(id string) error {
		if err := required(id); err != nil {
			return err
		}
		for _, s := range cfg.Subscriptions {
			if s.ID == id {
				return fmt.Errorf("subscription %q already exists", id)
			}
		}
		return nil
	}
}

func validPattern(pattern string) error {
	if _, err := cron.Parser.Parse(pattern); err != nil {
		return err
	}
	return nil
}

// builtinStrategies lists the registered strategy ids. The dialer is never
// used: checks and editors do not connect.
func builtinStrategies() *strategy.Registry {
	return strategy.Builtin(accessserver.NewDialer(accessserver.Config{}), slog.New(slog.DiscardHandler))
}
