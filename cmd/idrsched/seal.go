package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flemzord/idrsched/internal/seal"
	"github.com/flemzord/idrsched/pkg/app"
)

func sealCmd() *cobra.Command {
	var keyFile, configPath string
	cmd := &cobra.Command{
		Use:   "seal <plaintext>",
		Short: "Print the sealed form of a password for the configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sealer, err := seal.LoadKeyFile(app.ResolveKeyFile(keyFile, configPath))
			if err != nil {
				return err
			}
			sealed, err := sealer.Seal(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "AES key file")
	cmd.Flags().StringVarP(&configPath, "config", "c", app.DefaultConfigPath(), "configuration file the key sits next to")
	return cmd
}
