package driver

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/hydraspecter/hydra/internal/logging"
)

const defaultActionTimeout = 30 * time.Second

// Navigate loads a URL and waits for the page to stabilize.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(defaultActionTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Click clicks the element matched by selector. With stealth set, the click
// goes through real mouse movement at the element's center instead of the
// synthetic element click, which some bot checks flag.
func (d *Driver) Click(ctx context.Context, selector string, stealth bool) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	locator := d.page.Locator(selector).First()
	if !stealth {
		if err := locator.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(float64(defaultActionTimeout.Milliseconds())),
		}); err != nil {
			return fmt.Errorf("click failed: %w", err)
		}
		return nil
	}

	box, err := locator.BoundingBox()
	if err != nil || box == nil {
		return fmt.Errorf("click failed: element %q has no bounding box", selector)
	}

	x := box.X + box.Width/2
	y := box.Y + box.Height/2
	mouse := d.page.Mouse()
	if err := mouse.Move(x, y, playwright.MouseMoveOptions{Steps: playwright.Int(12)}); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	if err := mouse.Click(x, y, playwright.MouseClickOptions{
		Delay: playwright.Float(40),
	}); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

// Type inputs text into the element matched by selector, optionally
// clearing it first. Keystrokes are delayed slightly to look human.
func (d *Driver) Type(ctx context.Context, selector, text string, clear bool) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	locator := d.page.Locator(selector).First()
	if clear {
		if err := locator.Clear(); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
	}
	if err := locator.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   playwright.Float(30),
		Timeout: playwright.Float(float64(defaultActionTimeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("type failed: %w", err)
	}
	return nil
}

// Fill clears the element matched by selector and sets its value.
func (d *Driver) Fill(ctx context.Context, selector, value string) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	if err := d.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(defaultActionTimeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// Screenshot captures the current viewport as base64-encoded PNG bytes.
func (d *Driver) Screenshot(ctx context.Context) (string, error) {
	if err := d.ensureOpen(); err != nil {
		return "", err
	}

	data, err := d.page.Screenshot()
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Snapshot captures the page content. Format "html" returns the serialized
// DOM; anything else returns the rendered text of the body.
func (d *Driver) Snapshot(ctx context.Context, format string) (string, error) {
	if err := d.ensureOpen(); err != nil {
		return "", err
	}

	if format == "html" {
		content, err := d.page.Content()
		if err != nil {
			return "", fmt.Errorf("snapshot failed: %w", err)
		}
		return content, nil
	}

	text, err := d.page.Locator("body").InnerText()
	if err != nil {
		return "", fmt.Errorf("snapshot failed: %w", err)
	}
	return text, nil
}

// Evaluate runs a script in the page context and returns its result.
func (d *Driver) Evaluate(ctx context.Context, script string) (any, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}

	result, err := d.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("evaluate failed: %w", err)
	}
	return result, nil
}

// WaitElement blocks until selector is attached or the timeout elapses.
func (d *Driver) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	_, err := d.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	return nil
}

// ScrollTo scrolls the element matched by selector into view.
func (d *Driver) ScrollTo(ctx context.Context, selector string) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	if err := d.page.Locator(selector).First().ScrollIntoViewIfNeeded(); err != nil {
		return fmt.Errorf("scroll into view failed: %w", err)
	}
	return nil
}

// ScrollBy scrolls the page by amount pixels in the given direction
// ("up" or "down").
func (d *Driver) ScrollBy(ctx context.Context, direction string, amount int) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	delta := amount
	if direction == "up" {
		delta = -amount
	}
	if _, err := d.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", delta)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// URL reports the current page URL.
func (d *Driver) URL(ctx context.Context) (string, error) {
	if err := d.ensureOpen(); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

// Title reports the current page title.
func (d *Driver) Title(ctx context.Context) (string, error) {
	if err := d.ensureOpen(); err != nil {
		return "", err
	}

	title, err := d.page.Title()
	if err != nil {
		return "", fmt.Errorf("title failed: %w", err)
	}
	return title, nil
}

// turnstileFrame matches the Cloudflare Turnstile challenge iframe.
const turnstileFrame = `iframe[src*="challenges.cloudflare.com"]`

// SolveTurnstile clicks the checkbox inside a Cloudflare Turnstile widget.
// Best effort: the widget frequently self-solves, in which case the click
// target never appears and the deadline error is the expected result.
func (d *Driver) SolveTurnstile(ctx context.Context) error {
	if err := d.ensureOpen(); err != nil {
		return err
	}

	frame := d.page.FrameLocator(turnstileFrame)
	checkbox := frame.Locator(`input[type="checkbox"], .ctp-checkbox-label`).First()
	if err := checkbox.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		return fmt.Errorf("turnstile click failed: %w", err)
	}

	logging.Infof("driver %s: turnstile checkbox clicked", d.id)
	return nil
}
