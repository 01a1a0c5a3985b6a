// hydra drives persistent browser sessions: log in once on the canonical
// profile, verify the session stuck, fan it out to the replica pool, and
// serve automation commands over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hydraspecter/hydra/internal/logging"
	"github.com/hydraspecter/hydra/internal/sites"
)

var (
	flagSitesFile string
	flagQuiet     bool
)

var rootCmd = &cobra.Command{
	Use:           "hydra",
	Short:         "Persistent browser-session automation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagQuiet {
			logging.Disable()
		}
	},
}

// loadRegistry returns the site registry, merged with --sites if given.
func loadRegistry() (*sites.Registry, error) {
	registry := sites.NewRegistry()
	if flagSitesFile != "" {
		if err := registry.LoadFile(flagSitesFile); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagSitesFile, "sites", "", "YAML file with additional site descriptors")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress diagnostic logging")

	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
