package identity

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masaar/masaar-node/pkg/node"
)

func NewIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Generate a fresh node identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), node.GenerateID())
			return err
		},
	}
}
