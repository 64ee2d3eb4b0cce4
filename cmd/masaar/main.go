// masaar - offline mesh message node
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/masaar/masaar-node/cmd/masaar/internal/build"
	"github.com/masaar/masaar-node/cmd/masaar/internal/identity"
	"github.com/masaar/masaar-node/cmd/masaar/internal/route"
	"github.com/masaar/masaar-node/cmd/masaar/internal/serve"
)

func NewMasaarCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "masaar",
		Short: "🛰️  masaar - offline mesh message node",
		Example: `  masaar build data --id N1 --dst N2 "hi there"
  masaar route '{"type":"DATA","src":"N1","dst":"N2","payload":"hi","seq":0}'
  masaar serve --port 8080`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		identity.NewIDCommand(),
		build.NewBuildCommand(),
		route.NewRouteCommand(),
		serve.NewServeCommand(),
	)

	return cmd
}

func main() {
	cmd := NewMasaarCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
