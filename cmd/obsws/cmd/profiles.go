package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newProfilesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the connection profiles defined by --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg == nil {
				return errors.New("no --config was given")
			}

			for _, name := range cfg.ConnectionNames() {
				conn, _ := cfg.Connection(name)
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, conn.Endpoint); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
