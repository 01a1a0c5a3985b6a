package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hydraspecter/hydra/internal/config"
	"github.com/hydraspecter/hydra/internal/pool"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replicate session artifacts from pool-0 to all replica profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return runSync(poolLayout(cfg))
	},
}

func runSync(layout pool.Layout) error {
	pterm.DefaultSection.Printf("Syncing %s -> %d replicas", layout.Canonical(), layout.Replicas)

	result, err := pool.Sync(layout)
	if err != nil {
		return err
	}

	pterm.Success.Printf("%d items synced (%d absent in canonical)\n", result.Synced, result.Skipped)
	for _, failure := range result.Failures {
		pterm.Warning.Printf("failed: %s\n", failure.Error())
	}
	return nil
}
