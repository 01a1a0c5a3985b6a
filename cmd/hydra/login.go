package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hydraspecter/hydra/internal/config"
	"github.com/hydraspecter/hydra/internal/driver"
	"github.com/hydraspecter/hydra/internal/pool"
	"github.com/hydraspecter/hydra/internal/sites"
)

var (
	flagPoolDir  string
	flagReplicas int
	flagNoSync   bool
)

var loginCmd = &cobra.Command{
	Use:   "login <site>",
	Short: "Log in to a site interactively, verify persistence, sync the pool",
	Long: `Opens a visible browser on the canonical profile (pool-0) at the site's
login page. Log in by hand, then type 'done'. The profile is reopened to
verify the session persisted; on success the session artifacts are
replicated to every pool profile.`,
	Args: cobra.ExactArgs(1),
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
		layout := poolLayout(cfg)
		canonical := layout.Canonical()
		if err := os.MkdirAll(canonical, 0o755); err != nil {
			return fmt.Errorf("create canonical profile: %w", err)
		}

		ctx := cmd.Context()

		pterm.DefaultSection.Printf("Manual login: %s", site.Name)
		pterm.Info.Printf("Profile:   %s\n", canonical)
		pterm.Info.Printf("Login URL: %s\n", site.LoginURL)

		done, err := interactiveLogin(ctx, site, canonical, cfg)
		if err != nil {
			return err
		}
		if !done {
			pterm.Warning.Println("Skipped")
			return nil
		}

		verification, err := verifySite(ctx, site, canonical, cfg)
		if err != nil {
			return err
		}
		printVerification(verification)
		if verification.Outcome != sites.Success {
			return fmt.Errorf("session did not persist for %s", site.Name)
		}

		if flagNoSync {
			return nil
		}
		return runSync(layout)
	},
}

// interactiveLogin opens the login page and waits for the operator.
// Returns false when the operator skipped.
func interactiveLogin(ctx context.Context, site sites.Descriptor, profileDir string, cfg *config.Config) (bool, error) {
	d, err := driver.New(ctx, driver.Options{
		ProfileDir: profileDir,
		Width:      cfg.WindowSize.Width,
		Height:     cfg.WindowSize.Height,
	})
	if err != nil {
		return false, err
	}
	defer d.Close(ctx)

	if err := d.Navigate(ctx, site.LoginURL); err != nil {
		return false, err
	}

	pterm.Println()
	pterm.Info.Println("Browser is open. Log in to your account.")
	pterm.Info.Println("Type 'done' when finished, or 'skip' to abort.")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(">>> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			// Closed stdin counts as done: the operator may be piping.
			return true, nil
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "done":
			return true, nil
		case "skip":
			return false, nil
		}
	}
}

// verifySite reopens the profile and checks that the login persisted.
func verifySite(ctx context.Context, site sites.Descriptor, profileDir string, cfg *config.Config) (*sites.Verification, error) {
	// Give the closing browser a moment to flush profile state to disk.
	time.Sleep(2 * time.Second)

	pterm.DefaultSection.Println("Testing persistence")

	d, err := driver.New(ctx, driver.Options{
		ProfileDir: profileDir,
		Headless:   cfg.Headless,
		Width:      cfg.WindowSize.Width,
		Height:     cfg.WindowSize.Height,
	})
	if err != nil {
		return nil, err
	}
	defer d.Close(ctx)

	return sites.Verify(ctx, verifyPage{d}, site)
}

// verifyPage adapts the driver to the minimal capability verification
// needs; chooser clicks use the stealth path.
type verifyPage struct {
	d *driver.Driver
}

func (p verifyPage) Navigate(ctx context.Context, url string) error {
	return p.d.Navigate(ctx, url)
}

func (p verifyPage) Click(ctx context.Context, selector string) error {
	return p.d.Click(ctx, selector, true)
}

func (p verifyPage) URL(ctx context.Context) (string, error) {
	return p.d.URL(ctx)
}

func printVerification(v *sites.Verification) {
	switch v.Outcome {
	case sites.Success:
		pterm.Success.Println(v.Message)
		if v.ChooserStrategy != "" {
			pterm.Info.Printf("Account chooser handled via %s\n", v.ChooserStrategy)
		}
	case sites.StillOnLogin:
		pterm.Error.Println(v.Message)
		pterm.Info.Println("The session did not persist; try logging in again.")
	default:
		pterm.Error.Println(v.Message)
	}
}

func poolLayout(cfg *config.Config) pool.Layout {
	layout := pool.Layout{Root: cfg.PoolDir, Replicas: cfg.Replicas}
	if flagPoolDir != "" {
		layout.Root = flagPoolDir
	}
	if flagReplicas > 0 {
		layout.Replicas = flagReplicas
	}
	return layout
}

func init() {
	for _, cmd := range []*cobra.Command{loginCmd, syncCmd, verifyCmd} {
		cmd.Flags().StringVar(&flagPoolDir, "pool-dir", "", "profile pool root (default: $HYDRA_POOL_DIR or ~/.hydraspecter/profiles)")
	}
	for _, cmd := range []*cobra.Command{loginCmd, syncCmd} {
		cmd.Flags().IntVar(&flagReplicas, "replicas", 0, "number of replica profiles (default: $HYDRA_REPLICAS or 9)")
	}
	loginCmd.Flags().BoolVar(&flagNoSync, "no-sync", false, "skip pool sync after a successful login")
}
