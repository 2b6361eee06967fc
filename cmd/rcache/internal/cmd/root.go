// Package cmd wires the cobra command tree for the rcache binary.
package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rcache",
	Short: "rcache is a minimal network-accessible LRU key/value cache",
}

// Execute runs the CLI. Positional socket addresses are parsed by each
// subcommand, not here — "host:port" is a plain positional argument of
// server/client, not a global flag.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")
	rootCmd.AddCommand(serverCmd, clientCmd)
}
