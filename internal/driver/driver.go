// Package driver runs one Chromium instance bound to one profile
// directory through Playwright. A Driver owns a persistent browser context
// whose on-disk state (cookies, storage, IndexedDB) survives across runs;
// that persistence is the whole point of the profile pool.
package driver

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/hydraspecter/hydra/internal/logging"
)

// Point is a screen coordinate.
type Point struct {
	X int
	Y int
}

// Options configures a Driver launch.
type Options struct {
	// ProfileDir is the user-data directory holding the profile's
	// persistent state. Required.
	ProfileDir string
	Headless   bool
	// Proxy is an optional proxy server address, e.g. "http://host:port".
	Proxy  string
	Width  int
	Height int
	// Position optionally places the window on screen.
	Position *Point
}

// Driver is one live browser session bound to one profile directory.
// It is owned by exactly one caller and is not safe for concurrent use.
type Driver struct {
	id      string
	opts    Options
	browser playwright.BrowserContext
	page    playwright.Page
	closed  bool
}

var (
	pwOnce     sync.Once
	pwInstance *playwright.Playwright
	pwErr      error
)

// runtime returns the singleton Playwright runtime, installing browsers on
// first use. Install output is discarded: stdout carries the bridge
// protocol.
func runtime() (*playwright.Playwright, error) {
	pwOnce.Do(func() {
		opts := &playwright.RunOptions{
			Verbose: false,
			Stdout:  io.Discard,
			Stderr:  io.Discard,
		}
		if err := playwright.Install(opts); err != nil {
			pwErr = fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		pw, err := playwright.Run(opts)
		if err != nil {
			pwErr = fmt.Errorf("failed to start playwright: %w", err)
			return
		}
		pwInstance = pw
	})
	return pwInstance, pwErr
}

// stealthArgs keep the managed Chrome from announcing itself as automated.
// Sites gate logins on these signals, so the launch must look like a
// regular user profile.
func stealthArgs(opts Options) []string {
	args := []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-infobars",
		"--disable-dev-shm-usage",
		"--no-first-run",
		"--no-default-browser-check",
		fmt.Sprintf("--window-size=%d,%d", opts.Width, opts.Height),
	}
	if opts.Position != nil {
		args = append(args, fmt.Sprintf("--window-position=%d,%d", opts.Position.X, opts.Position.Y))
	}
	return args
}

// New launches a browser on the given profile directory.
func New(ctx context.Context, opts Options) (*Driver, error) {
	if opts.ProfileDir == "" {
		return nil, fmt.Errorf("profileDir is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1280, 720
	}

	pw, err := runtime()
	if err != nil {
		return nil, err
	}

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:          playwright.Bool(opts.Headless),
		Channel:           playwright.String("chrome"),
		Args:              stealthArgs(opts),
		IgnoreDefaultArgs: []string{"--enable-automation"},
		NoViewport:        playwright.Bool(true),
	}
	if opts.Proxy != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.Proxy}
	}

	browserCtx, err := pw.Chromium.LaunchPersistentContext(opts.ProfileDir, launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser on %s: %w", opts.ProfileDir, err)
	}

	d := &Driver{
		id:      uuid.New().String()[:8],
		opts:    opts,
		browser: browserCtx,
	}

	// A persistent context opens with one blank page; reuse it.
	if pages := browserCtx.Pages(); len(pages) > 0 {
		d.page = pages[0]
	} else {
		page, err := browserCtx.NewPage()
		if err != nil {
			_ = browserCtx.Close()
			return nil, fmt.Errorf("failed to open page: %w", err)
		}
		d.page = page
	}

	logging.Infof("driver %s: launched on %s (headless=%v)", d.id, opts.ProfileDir, opts.Headless)
	return d, nil
}

// ID is the short session id used in diagnostics.
func (d *Driver) ID() string {
	return d.id
}

// Close releases the browser and its profile lock. Safe to call twice.
func (d *Driver) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true

	logging.Infof("driver %s: closing", d.id)
	if err := d.browser.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func (d *Driver) ensureOpen() error {
	if d.closed {
		return fmt.Errorf("driver session is closed")
	}
	return nil
}
