package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var opts struct {
	ConfigPath string
	NodeID     int
	LocalPort  int
}

var rootCmd = &cobra.Command{
	Use:   "gcmesh-node",
	Short: "Graph-coloring clustering node",
	Long: `gcmesh-node runs one participant of the decentralized graph-coloring
clustering protocol: it discovers neighbors over a UDP multicast group,
converges on a conflict-free color, derives its cluster role and forwards
application data across the resulting hierarchy.

Examples:
  # Start node 3 of a 16-node network
  gcmesh-node --config node.yaml --node-id 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if code := run(cmd); code != 0 {
			return fmt.Errorf("node exited with code %d", code)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to YAML config file")
	rootCmd.Flags().IntVarP(&opts.NodeID, "node-id", "n", -1, "Override node id from config")
	rootCmd.Flags().IntVarP(&opts.LocalPort, "local-port", "p", 0, "Override local UDP port from config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
