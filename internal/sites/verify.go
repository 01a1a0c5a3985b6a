package sites

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hydraspecter/hydra/internal/logging"
)

// Pager is the browser capability verification needs. The playwright-backed
// driver satisfies it; tests substitute a scripted fake.
type Pager interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	URL(ctx context.Context) (string, error)
}

// Outcome classifies a persistence check. The three-way split is load
// bearing: a caller reacting to StillOnLogin re-runs the login flow, while
// Mismatch usually means the descriptor's indicator is wrong.
type Outcome int

const (
	// Success means the stored session carried the check navigation through
	// to a page matching the success indicator.
	Success Outcome = iota
	// StillOnLogin means the final page is a login/signin page, so the
	// session did not persist.
	StillOnLogin
	// Mismatch means the final page is neither a login page nor a match
	// for the indicator.
	Mismatch
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case StillOnLogin:
		return "still-on-login"
	default:
		return "mismatch"
	}
}

// Verification is the result of one persistence check.
type Verification struct {
	Outcome  Outcome
	HostPath string // normalized final host+path
	Message  string
	// ChooserStrategy names the account-chooser selector that was clicked,
	// or is empty when no interstitial was encountered.
	ChooserStrategy string
}

// loginPathPattern matches paths that mean "you are being asked to log in
// again". Kept deliberately broad: any of these hosts/paths after a check
// navigation is a failed persistence, whatever the query string says.
var loginPathPattern = regexp.MustCompile(`(?i)(/log[-_]?in|/sign[-_]?in|/ap/signin|/sessions?/new|accounts\.google\.com/)`)

// chooserPattern matches Google's account-chooser interstitial, which can
// appear even with a live session when multiple accounts are stored.
var chooserPattern = regexp.MustCompile(`(?i)accountchooser`)

// chooserStrategies are tried in order against the account-chooser page.
// Each one targets the first listed account a different way.
var chooserStrategies = []struct {
	name     string
	selector string
}{
	{"data-identifier", `ul li [data-identifier]`},
	{"authuser-0", `div[data-authuser="0"]`},
	{"first-list-item", `ul li:first-child`},
}

// Verify navigates to the site's check URL on an already-open session and
// classifies whether the stored login persisted.
func Verify(ctx context.Context, page Pager, site Descriptor) (*Verification, error) {
	if err := page.Navigate(ctx, site.CheckURL); err != nil {
		return nil, fmt.Errorf("check navigation failed: %w", err)
	}

	raw, err := page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read post-check url: %w", err)
	}

	v := &Verification{}

	// Account-chooser interstitial: pick the first account, then judge the
	// URL we land on instead of the interstitial's.
	if chooserPattern.MatchString(raw) {
		v.ChooserStrategy = clickFirstAccount(ctx, page)
		if raw, err = page.URL(ctx); err != nil {
			return nil, fmt.Errorf("read post-chooser url: %w", err)
		}
	}

	v.HostPath = HostPath(raw)
	return classify(v, site), nil
}

// Classify judges an already-observed final URL against a descriptor.
// Verify uses it after navigation; callers that captured the URL some other
// way (e.g. the login command reading it off the bridge) can use it alone.
func Classify(finalURL string, site Descriptor) *Verification {
	v := &Verification{HostPath: HostPath(finalURL)}
	return classify(v, site)
}

func classify(v *Verification, site Descriptor) *Verification {
	// Login detection runs first: broad indicators like "amazon.fr" also
	// match that site's own signin URL.
	switch {
	case loginPathPattern.MatchString(v.HostPath):
		v.Outcome = StillOnLogin
		v.Message = fmt.Sprintf("landed back on a login page: %s", v.HostPath)
	case strings.Contains(v.HostPath, site.SuccessIndicator):
		v.Outcome = Success
		v.Message = fmt.Sprintf("session persisted for %s (%s)", site.Name, v.HostPath)
	default:
		v.Outcome = Mismatch
		v.Message = fmt.Sprintf("expected %q in final url, got %s", site.SuccessIndicator, v.HostPath)
	}
	return v
}

// clickFirstAccount tries each chooser strategy until one clicks, and
// reports which one did. An empty return means none worked; the caller
// still re-reads the URL and classifies whatever page we are on.
func clickFirstAccount(ctx context.Context, page Pager) string {
	for _, strategy := range chooserStrategies {
		clickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := page.Click(clickCtx, strategy.selector)
		cancel()
		if err == nil {
			logging.Infof("account chooser: strategy %q clicked", strategy.name)
			return strategy.name
		}
		logging.Debugf("account chooser: strategy %q failed: %v", strategy.name, err)
	}
	logging.Warn("account chooser: no strategy matched, judging current page")
	return ""
}

// HostPath reduces a URL to host+path, dropping scheme, query and fragment.
// Query strings routinely smuggle the indicator substring (e.g.
// ?next=/account on a login page), so they never take part in matching.
func HostPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Not parseable as an absolute URL; match on the raw string minus
		// an obvious query suffix rather than failing the whole check.
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	return u.Host + u.Path
}
