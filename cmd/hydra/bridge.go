package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/hydraspecter/hydra/internal/bridge"
	"github.com/hydraspecter/hydra/internal/driver"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve automation commands over stdio",
	Long: `The bridge reads one JSON command per line from stdin and writes one
JSON response per line to stdout, in order. It owns a single browser
session, created by the first init command, and exits when stdin is
closed. All diagnostics go to stderr; stdout carries only responses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := bridge.NewServer(os.Stdin, os.Stdout, newDriverSession)
		return srv.Run(cmd.Context())
	},
}

// newDriverSession adapts an init command to a playwright driver launch.
func newDriverSession(ctx context.Context, opts bridge.InitOptions) (bridge.Driver, error) {
	launch := driver.Options{
		ProfileDir: opts.ProfileDir,
		Headless:   opts.Headless,
		Proxy:      opts.Proxy,
		Width:      opts.Width,
		Height:     opts.Height,
	}
	if opts.HasPosition {
		launch.Position = &driver.Point{X: opts.PositionX, Y: opts.PositionY}
	}
	return driver.New(ctx, launch)
}
