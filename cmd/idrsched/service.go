package main

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/flemzord/idrsched/pkg/app"
)

func serviceCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "service <action> <config>",
		Short: "Manage idrsched under the OS service manager",
		Long: "Actions: run, " + fmt.Sprint(app.ControlActions) + ".\n" +
			"\"run\" is what the installed service executes.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]
			if action != "run" && !slices.Contains(app.ControlActions, action) {
				return fmt.Errorf("unknown service action %q", action)
			}
			configPath, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			params, err := flags.params(configPath)
			if err != nil {
				return err
			}

			svcArgs := append([]string{"service", "run", configPath}, flags.args()...)
			svc, err := app.NewService(params, svcArgs)
			if err != nil {
				return err
			}
			if action == "run" {
				return svc.Run()
			}
			if err := app.Control(svc, action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
