package build

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masaar/masaar-node/pkg/node"
	"github.com/masaar/masaar-node/pkg/protocol"
)

type options struct {
	id     string
	dst    string
	seq    uint64
	reason string
}

func NewBuildCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a wire message",
		Example: `  masaar build hello --id N1
  masaar build data --id N1 --dst N2 --seq 3 "hi there"
  masaar build ack --dst N1 --seq 3
  masaar build nack --dst N1 --seq 3 --reason busy`,
	}

	cmd.PersistentFlags().StringVar(&opts.id, "id", "", "Node identifier stamped as src (default: unknown)")

	helloCmd := &cobra.Command{
		Use:   "hello",
		Short: "Build a HELLO announcement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return emit(cmd, newBuilder(cmd, opts).Hello())
		},
	}

	dataCmd := &cobra.Command{
		Use:   "data <payload>",
		Short: "Build a DATA message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return emit(cmd, newBuilder(cmd, opts).Data(args[0], opts.dst, opts.seq))
		},
	}
	dataCmd.Flags().StringVar(&opts.dst, "dst", "", "Destination node")
	dataCmd.Flags().Uint64Var(&opts.seq, "seq", 0, "Sequence number (0 = unsequenced)")

	ackCmd := &cobra.Command{
		Use:   "ack",
		Short: "Build an ACK",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return emit(cmd, newBuilder(cmd, opts).Ack(opts.dst, opts.seq))
		},
	}
	ackCmd.Flags().StringVar(&opts.dst, "dst", "", "Node whose message is acknowledged")
	ackCmd.Flags().Uint64Var(&opts.seq, "seq", 0, "Acknowledged sequence number")

	nackCmd := &cobra.Command{
		Use:   "nack",
		Short: "Build a NACK",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return emit(cmd, newBuilder(cmd, opts).Nack(opts.dst, opts.seq, opts.reason))
		},
	}
	nackCmd.Flags().StringVar(&opts.dst, "dst", "", "Node whose message is rejected")
	nackCmd.Flags().Uint64Var(&opts.seq, "seq", 0, "Rejected sequence number")
	nackCmd.Flags().StringVar(&opts.reason, "reason", "", "Rejection reason")

	cmd.AddCommand(helloCmd, dataCmd, ackCmd, nackCmd)

	return cmd
}

// newBuilder keeps the default identity unless --id was given
func newBuilder(cmd *cobra.Command, opts options) *protocol.Builder {
	ident := &node.Identity{}
	if cmd.Flags().Changed("id") {
		ident.Set(opts.id)
	}
	return protocol.NewBuilder(ident)
}

func emit(cmd *cobra.Command, wire string) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), wire)
	return err
}
