package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hydraspecter/hydra/internal/config"
	"github.com/hydraspecter/hydra/internal/sites"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <site>",
	Short: "Check whether the canonical profile's session still persists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		site, ok := registry.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown site %q (available: %s)", args[0], strings.Join(registry.Names(), ", "))
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		verification, err := verifySite(cmd.Context(), site, poolLayout(cfg).Canonical(), cfg)
		if err != nil {
			return err
		}
		printVerification(verification)
		if verification.Outcome != sites.Success {
			return fmt.Errorf("verification outcome: %s", verification.Outcome)
		}
		return nil
	},
}
