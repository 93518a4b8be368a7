// Command maestro runs Maestro, a persistent conversational construction
// superintendent assistant: one project, one continuous thread, one
// heartbeat loop deciding when it has something worth saying.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "maestro",
		Short: "Maestro — a persistent construction superintendent's assistant",
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "maestro.yaml", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newChatCmd(&configPath))
	return root
}
