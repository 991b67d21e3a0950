package cli

import (
	"fmt"

	"noteenvelope-sync/internal/identity"

	"github.com/spf13/cobra"
)

func NewDeviceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Print this install's device id, creating it on first use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.LoadOrCreate(rootOpts.Config.Storage.DataDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
