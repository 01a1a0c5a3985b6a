package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver records calls and plays back scripted results.
type fakeDriver struct {
	url         string
	title       string
	closed      bool
	closeCalls  int
	clickErr    error
	navErr      error
	calls       []string
	waitTimeout time.Duration
	scrollDir   string
	scrollAmt   int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{url: "about:blank"}
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	f.calls = append(f.calls, "navigate")
	if f.navErr != nil {
		return f.navErr
	}
	f.url = url
	return nil
}

func (f *fakeDriver) Click(ctx context.Context, selector string, stealth bool) error {
	f.calls = append(f.calls, fmt.Sprintf("click:%s:stealth=%v", selector, stealth))
	return f.clickErr
}

func (f *fakeDriver) Type(ctx context.Context, selector, text string, clear bool) error {
	f.calls = append(f.calls, fmt.Sprintf("type:%s:%q:clear=%v", selector, text, clear))
	return nil
}

func (f *fakeDriver) Fill(ctx context.Context, selector, value string) error {
	f.calls = append(f.calls, fmt.Sprintf("fill:%s:%q", selector, value))
	return nil
}

func (f *fakeDriver) Screenshot(ctx context.Context) (string, error) {
	f.calls = append(f.calls, "screenshot")
	return "aW1hZ2U=", nil
}

func (f *fakeDriver) Snapshot(ctx context.Context, format string) (string, error) {
	f.calls = append(f.calls, "snapshot:"+format)
	return "<html></html>", nil
}

func (f *fakeDriver) Evaluate(ctx context.Context, script string) (any, error) {
	f.calls = append(f.calls, "evaluate")
	return map[string]any{"answer": float64(42)}, nil
}

func (f *fakeDriver) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	f.calls = append(f.calls, "wait_element:"+selector)
	f.waitTimeout = timeout
	return nil
}

func (f *fakeDriver) ScrollTo(ctx context.Context, selector string) error {
	f.calls = append(f.calls, "scroll_to:"+selector)
	return nil
}

func (f *fakeDriver) ScrollBy(ctx context.Context, direction string, amount int) error {
	f.calls = append(f.calls, "scroll_by")
	f.scrollDir = direction
	f.scrollAmt = amount
	return nil
}

func (f *fakeDriver) URL(ctx context.Context) (string, error)   { return f.url, nil }
func (f *fakeDriver) Title(ctx context.Context) (string, error) { return f.title, nil }

func (f *fakeDriver) SolveTurnstile(ctx context.Context) error {
	f.calls = append(f.calls, "solve_turnstile")
	return nil
}

func (f *fakeDriver) Close(ctx context.Context) error {
	f.closeCalls++
	f.closed = true
	return nil
}

// runBridge feeds the given lines through a server backed by fake and
// returns the decoded responses in output order.
func runBridge(t *testing.T, fake *fakeDriver, factoryErr error, lines ...string) []Response {
	t.Helper()

	factory := func(ctx context.Context, opts InitOptions) (Driver, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return fake, nil
	}

	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	srv := NewServer(in, &out, factory)
	require.NoError(t, srv.Run(context.Background()))

	var responses []Response
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp), "line: %s", line)
		responses = append(responses, resp)
	}
	return responses
}

const initLine = `{"id": 1, "method": "init", "params": {"profileDir": "/tmp/pool-0"}}`

func TestUninitializedMethodsFail(t *testing.T) {
	methods := []string{
		"navigate", "click", "type", "fill", "screenshot", "snapshot",
		"evaluate", "wait_element", "scroll", "solve_turnstile",
	}

	var lines []string
	for i, m := range methods {
		lines = append(lines, fmt.Sprintf(`{"id": %d, "method": %q, "params": {}}`, i, m))
	}

	responses := runBridge(t, newFakeDriver(), nil, lines...)
	require.Len(t, responses, len(methods))
	for i, resp := range responses {
		assert.False(t, resp.Success, "method %s should fail before init", methods[i])
		assert.Contains(t, resp.Error, "initialized")
	}
}

func TestGetURLAndTitleSentinelsWithoutSession(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), nil,
		`{"id": "a", "method": "get_url"}`,
		`{"id": "b", "method": "get_title"}`,
	)
	require.Len(t, responses, 2)

	assert.True(t, responses[0].Success)
	assert.Equal(t, "about:blank", responses[0].Data)
	assert.True(t, responses[1].Success)
	assert.Equal(t, "", responses[1].Data)
}

func TestResponsesPreserveOrderAndEchoIDs(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), nil,
		initLine,
		`{"id": "nav-1", "method": "navigate", "params": {"url": "https://example.com"}}`,
		`{"id": 3, "method": "get_url"}`,
		`{"id": {"k": "v"}, "method": "get_title"}`,
	)
	require.Len(t, responses, 4)

	assert.JSONEq(t, `1`, string(responses[0].ID))
	assert.JSONEq(t, `"nav-1"`, string(responses[1].ID))
	assert.JSONEq(t, `3`, string(responses[2].ID))
	assert.JSONEq(t, `{"k": "v"}`, string(responses[3].ID))

	assert.True(t, responses[1].Success)
	assert.Equal(t, "https://example.com", responses[2].Data)
}

func TestUnknownMethod(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), nil,
		`{"id": 7, "method": "teleport", "params": {"to": "mars"}}`,
	)
	require.Len(t, responses, 1)

	assert.False(t, responses[0].Success)
	assert.Equal(t, "Unknown method: teleport", responses[0].Error)
	assert.JSONEq(t, `7`, string(responses[0].ID))
}

func TestDoubleCloseIsNoOp(t *testing.T) {
	fake := newFakeDriver()
	responses := runBridge(t, fake, nil,
		initLine,
		`{"id": 2, "method": "close"}`,
		`{"id": 3, "method": "close"}`,
	)
	require.Len(t, responses, 3)

	assert.True(t, responses[1].Success)
	assert.True(t, responses[2].Success)
	assert.Equal(t, 1, fake.closeCalls)
}

func TestInitThenGetURLYieldsBlankSentinel(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), nil,
		initLine,
		`{"id": 2, "method": "get_url"}`,
	)
	require.Len(t, responses, 2)

	assert.True(t, responses[0].Success)
	assert.Equal(t, true, responses[0].Data)
	assert.True(t, responses[1].Success)
	assert.Equal(t, "about:blank", responses[1].Data)
}

func TestMalformedLineIsSkippedWithoutResponse(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), nil,
		`this is not json`,
		`{"id": 1, "method": "get_url"}`,
	)
	// Exactly one response: the malformed line produced none.
	require.Len(t, responses, 1)
	assert.True(t, responses[0].Success)
}

func TestMissingRequiredParams(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), nil,
		initLine,
		`{"id": 2, "method": "navigate", "params": {}}`,
		`{"id": 3, "method": "click", "params": {}}`,
		`{"id": 4, "method": "type", "params": {"selector": "#q"}}`,
		`{"id": 5, "method": "fill", "params": {"selector": "#q"}}`,
		`{"id": 6, "method": "evaluate", "params": {}}`,
		`{"id": 7, "method": "wait_element", "params": {}}`,
		`{"id": 8, "method": "init", "params": {}}`,
	)
	require.Len(t, responses, 8)

	assert.Contains(t, responses[1].Error, "url is required")
	assert.Contains(t, responses[2].Error, "selector is required")
	assert.Contains(t, responses[3].Error, "text is required")
	assert.Contains(t, responses[4].Error, "value is required")
	assert.Contains(t, responses[5].Error, "script is required")
	assert.Contains(t, responses[6].Error, "selector is required")
	assert.Contains(t, responses[7].Error, "profileDir is required")
	for _, resp := range responses[1:] {
		assert.False(t, resp.Success)
	}
}

func TestTypeAllowsEmptyText(t *testing.T) {
	fake := newFakeDriver()
	responses := runBridge(t, fake, nil,
		initLine,
		`{"id": 2, "method": "type", "params": {"selector": "#q", "text": ""}}`,
	)
	require.Len(t, responses, 2)
	assert.True(t, responses[1].Success)
	assert.Contains(t, fake.calls, `type:#q:"":clear=false`)
}

func TestFailedClickDoesNotBlockClose(t *testing.T) {
	fake := newFakeDriver()
	fake.clickErr = errors.New("selector not found: #missing")

	responses := runBridge(t, fake, nil,
		initLine,
		`{"id": 2, "method": "click", "params": {"selector": "#missing"}}`,
		`{"id": 3, "method": "close"}`,
	)
	require.Len(t, responses, 3)

	assert.False(t, responses[1].Success)
	assert.Contains(t, responses[1].Error, "selector not found")
	assert.True(t, responses[2].Success)
	assert.True(t, fake.closed)
}

func TestInitFailureLeavesSessionUninitialized(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), errors.New("chrome not found"),
		initLine,
		`{"id": 2, "method": "navigate", "params": {"url": "https://example.com"}}`,
	)
	require.Len(t, responses, 2)

	assert.False(t, responses[0].Success)
	assert.Contains(t, responses[0].Error, "init failed")
	assert.False(t, responses[1].Success)
	assert.Contains(t, responses[1].Error, "initialized")
}

func TestReinitReplacesSession(t *testing.T) {
	fake := newFakeDriver()
	responses := runBridge(t, fake, nil,
		initLine,
		initLine,
		`{"id": 3, "method": "get_url"}`,
	)
	require.Len(t, responses, 3)

	assert.True(t, responses[0].Success)
	assert.True(t, responses[1].Success)
	// Closed once by the second init, once more at end of input.
	assert.Equal(t, 2, fake.closeCalls)
	assert.True(t, responses[2].Success)
}

func TestClickStealthDefault(t *testing.T) {
	fake := newFakeDriver()
	runBridge(t, fake, nil,
		initLine,
		`{"id": 2, "method": "click", "params": {"selector": "#a"}}`,
		`{"id": 3, "method": "click", "params": {"selector": "#b", "ucClick": false}}`,
	)
	assert.Contains(t, fake.calls, "click:#a:stealth=true")
	assert.Contains(t, fake.calls, "click:#b:stealth=false")
}

func TestWaitElementDefaultTimeout(t *testing.T) {
	fake := newFakeDriver()
	runBridge(t, fake, nil,
		initLine,
		`{"id": 2, "method": "wait_element", "params": {"selector": "#q"}}`,
	)
	assert.Equal(t, 10*time.Second, fake.waitTimeout)
}

func TestScrollDefaults(t *testing.T) {
	fake := newFakeDriver()
	runBridge(t, fake, nil,
		initLine,
		`{"id": 2, "method": "scroll", "params": {}}`,
		`{"id": 3, "method": "scroll", "params": {"selector": "#footer"}}`,
	)
	assert.Equal(t, "down", fake.scrollDir)
	assert.Equal(t, 300, fake.scrollAmt)
	assert.Contains(t, fake.calls, "scroll_to:#footer")
}

func TestSnapshotDefaultFormat(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), nil,
		initLine,
		`{"id": 2, "method": "snapshot"}`,
	)
	require.Len(t, responses, 2)
	require.True(t, responses[1].Success)

	data, ok := responses[1].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "html", data["format"])
	assert.Equal(t, "<html></html>", data["content"])
}

func TestEvaluateReturnsScriptValue(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), nil,
		initLine,
		`{"id": 2, "method": "evaluate", "params": {"script": "6*7"}}`,
	)
	require.Len(t, responses, 2)
	require.True(t, responses[1].Success)

	data, ok := responses[1].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), data["answer"])
}

func TestEOFClosesActiveSession(t *testing.T) {
	fake := newFakeDriver()
	runBridge(t, fake, nil, initLine)
	assert.True(t, fake.closed, "session must be released when input ends")
}

func TestBlankLinesAreIgnored(t *testing.T) {
	responses := runBridge(t, newFakeDriver(), nil,
		``,
		`{"id": 1, "method": "get_title"}`,
		``,
	)
	require.Len(t, responses, 1)
	assert.True(t, responses[0].Success)
}

func TestInitPassesWindowGeometry(t *testing.T) {
	var got InitOptions
	factory := func(ctx context.Context, opts InitOptions) (Driver, error) {
		got = opts
		return newFakeDriver(), nil
	}

	in := strings.NewReader(`{"id": 1, "method": "init", "params": {"profileDir": "/p", "headless": true, "proxy": "http://proxy:8080", "windowSize": {"width": 1920, "height": 1080}, "windowPosition": {"x": 5, "y": 6}}}` + "\n")
	var out bytes.Buffer
	srv := NewServer(in, &out, factory)
	require.NoError(t, srv.Run(context.Background()))

	assert.Equal(t, "/p", got.ProfileDir)
	assert.True(t, got.Headless)
	assert.Equal(t, "http://proxy:8080", got.Proxy)
	assert.Equal(t, 1920, got.Width)
	assert.Equal(t, 1080, got.Height)
	assert.True(t, got.HasPosition)
	assert.Equal(t, 5, got.PositionX)
	assert.Equal(t, 6, got.PositionY)
}
