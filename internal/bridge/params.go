package bridge

import (
	"encoding/json"
	"fmt"
)

// Per-method parameter schemas. Each method decodes its params into one of
// these before dispatch, so a malformed or incomplete request fails with a
// decode error instead of reaching the driver.

// decodeParams decodes raw params into a schema struct. A missing or null
// params object decodes to the zero value so per-method defaults apply.
func decodeParams[T any](raw json.RawMessage) (T, error) {
	var params T
	if len(raw) == 0 || string(raw) == "null" {
		return params, nil
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, fmt.Errorf("invalid params: %w", err)
	}
	return params, nil
}

type sizeParam struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type positionParam struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type initParams struct {
	ProfileDir     string         `json:"profileDir"`
	Headless       bool           `json:"headless"`
	Proxy          string         `json:"proxy"`
	WindowSize     *sizeParam     `json:"windowSize"`
	WindowPosition *positionParam `json:"windowPosition"`
}

func (p initParams) validate() error {
	if p.ProfileDir == "" {
		return fmt.Errorf("profileDir is required")
	}
	return nil
}

type navigateParams struct {
	URL string `json:"url"`
}

func (p navigateParams) validate() error {
	if p.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

type clickParams struct {
	Selector string `json:"selector"`
	// UCClick selects the stealth click path; defaults to true.
	UCClick *bool `json:"ucClick"`
}

func (p clickParams) validate() error {
	if p.Selector == "" {
		return fmt.Errorf("selector is required")
	}
	return nil
}

func (p clickParams) stealth() bool {
	return p.UCClick == nil || *p.UCClick
}

type typeParams struct {
	Selector string  `json:"selector"`
	Text     *string `json:"text"`
	Clear    bool    `json:"clear"`
}

func (p typeParams) validate() error {
	if p.Selector == "" {
		return fmt.Errorf("selector is required")
	}
	if p.Text == nil {
		return fmt.Errorf("text is required")
	}
	return nil
}

type fillParams struct {
	Selector string  `json:"selector"`
	Value    *string `json:"value"`
}

func (p fillParams) validate() error {
	if p.Selector == "" {
		return fmt.Errorf("selector is required")
	}
	if p.Value == nil {
		return fmt.Errorf("value is required")
	}
	return nil
}

type snapshotParams struct {
	Format string `json:"format"`
}

func (p snapshotParams) format() string {
	if p.Format == "" {
		return "html"
	}
	return p.Format
}

type evaluateParams struct {
	Script string `json:"script"`
}

func (p evaluateParams) validate() error {
	if p.Script == "" {
		return fmt.Errorf("script is required")
	}
	return nil
}

type waitElementParams struct {
	Selector string `json:"selector"`
	// Timeout is in seconds; defaults to 10.
	Timeout *float64 `json:"timeout"`
}

func (p waitElementParams) validate() error {
	if p.Selector == "" {
		return fmt.Errorf("selector is required")
	}
	return nil
}

func (p waitElementParams) timeoutSeconds() float64 {
	if p.Timeout == nil || *p.Timeout <= 0 {
		return 10
	}
	return *p.Timeout
}

type scrollParams struct {
	Selector  string `json:"selector"`
	Direction string `json:"direction"`
	Amount    int    `json:"amount"`
}

func (p scrollParams) direction() string {
	if p.Direction == "" {
		return "down"
	}
	return p.Direction
}

func (p scrollParams) amount() int {
	if p.Amount == 0 {
		return 300
	}
	return p.Amount
}
