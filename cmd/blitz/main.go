// Command blitz is a companion CLI for the session client bindings:
// inspect session tokens, watch public-data changes across execution
// contexts, and run the reference session server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blitz",
		Short: "Session client bindings toolbox",
		Long: `Blitz is a toolbox for the session client bindings.

It decodes and mints public-data tokens, tails session changes
across execution contexts sharing a durable storage backend, and
runs a reference session server to develop against.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		tokenCmd(),
		sessionCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
