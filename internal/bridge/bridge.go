package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hydraspecter/hydra/internal/logging"
)

// Driver is the browser capability the bridge drives. The playwright-backed
// implementation lives in internal/driver; tests substitute a fake.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string, stealth bool) error
	Type(ctx context.Context, selector, text string, clear bool) error
	Fill(ctx context.Context, selector, value string) error
	Screenshot(ctx context.Context) (string, error)
	Snapshot(ctx context.Context, format string) (string, error)
	Evaluate(ctx context.Context, script string) (any, error)
	WaitElement(ctx context.Context, selector string, timeout time.Duration) error
	ScrollTo(ctx context.Context, selector string) error
	ScrollBy(ctx context.Context, direction string, amount int) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	SolveTurnstile(ctx context.Context) error
	Close(ctx context.Context) error
}

// InitOptions is what an init command resolves to. The bridge stays
// decoupled from the driver package by describing the launch in its own
// terms; the factory adapts.
type InitOptions struct {
	ProfileDir string
	Headless   bool
	Proxy      string
	Width      int
	Height     int
	// PositionX/PositionY place the window when HasPosition is set.
	HasPosition bool
	PositionX   int
	PositionY   int
}

// Factory creates a driver session for an init command.
type Factory func(ctx context.Context, opts InitOptions) (Driver, error)

// SessionState is the lifecycle of the bridge's single driver session.
type SessionState int

const (
	// StateUninitialized means no driver exists; only init is valid.
	StateUninitialized SessionState = iota
	// StateActive means the driver is live.
	StateActive
	// StateClosed means the driver was released. A later init is allowed.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// blankURL is the sentinel reported by get_url before any session exists.
const blankURL = "about:blank"

// sensitiveMethods get their audit line at warn level because they carry
// scripts or credentials-adjacent input.
var sensitiveMethods = map[string]bool{
	"evaluate": true,
	"type":     true,
	"fill":     true,
}

// Server is the command bridge. It owns at most one driver session and
// processes commands strictly one at a time.
type Server struct {
	in      io.Reader
	out     io.Writer
	factory Factory

	session Driver
	state   SessionState

	audit *slog.Logger
}

// NewServer builds a bridge reading commands from in and writing responses
// to out.
func NewServer(in io.Reader, out io.Writer, factory Factory) *Server {
	return &Server{
		in:      in,
		out:     out,
		factory: factory,
		state:   StateUninitialized,
		audit:   slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "bridge"),
	}
}

// State reports the session lifecycle state.
func (s *Server) State() SessionState {
	return s.state
}

// Run processes commands until the input stream ends. Malformed lines are
// reported to diagnostics and skipped; they never produce a response and
// never stop the loop. Any live session is released on the way out.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	// Scripts and typed text can push a command line well past the
	// default 64K token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			logging.Errorf("invalid command line: %v", err)
			continue
		}

		resp := s.dispatch(ctx, cmd)
		if err := s.write(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if s.session != nil {
		_ = s.session.Close(ctx)
		s.session = nil
		s.state = StateClosed
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

func (s *Server) write(resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		// A result that cannot be serialized must still produce exactly
		// one response for this command id.
		data, _ = json.Marshal(fail(resp.ID, fmt.Sprintf("unserializable result: %v", err)))
	}
	data = append(data, '\n')
	_, err = s.out.Write(data)
	return err
}

// dispatch routes one command to its handler. Handler errors and panics
// become failed responses; the loop always survives to the next command.
func (s *Server) dispatch(ctx context.Context, cmd Command) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("handler panic in %s: %v", cmd.Method, r)
			resp = fail(cmd.ID, fmt.Sprintf("internal error in %s: %v", cmd.Method, r))
		}
	}()

	s.auditCommand(cmd.Method)

	switch cmd.Method {
	case "init":
		return s.handleInit(ctx, cmd)
	case "close":
		return s.handleClose(ctx, cmd)
	case "get_url":
		return s.handleGetURL(ctx, cmd)
	case "get_title":
		return s.handleGetTitle(ctx, cmd)
	case "navigate", "click", "type", "fill", "screenshot", "snapshot",
		"evaluate", "wait_element", "scroll", "solve_turnstile":
		if s.state != StateActive {
			return fail(cmd.ID, fmt.Sprintf("%s requires an initialized session (state: %s)", cmd.Method, s.state))
		}
		return s.handleActive(ctx, cmd)
	default:
		return fail(cmd.ID, fmt.Sprintf("Unknown method: %s", cmd.Method))
	}
}

func (s *Server) auditCommand(method string) {
	if sensitiveMethods[method] {
		s.audit.Warn("command", "method", method, "state", s.state.String())
		return
	}
	s.audit.Info("command", "method", method, "state", s.state.String())
}

func (s *Server) handleInit(ctx context.Context, cmd Command) Response {
	params, err := decodeParams[initParams](cmd.Params)
	if err != nil {
		return fail(cmd.ID, err.Error())
	}
	if err := params.validate(); err != nil {
		return fail(cmd.ID, err.Error())
	}

	// Re-init replaces the session rather than leaking the old browser.
	if s.session != nil {
		logging.Warn("init on an active session; replacing it")
		_ = s.session.Close(ctx)
		s.session = nil
		s.state = StateUninitialized
	}

	opts := InitOptions{
		ProfileDir: params.ProfileDir,
		Headless:   params.Headless,
		Proxy:      params.Proxy,
		Width:      1280,
		Height:     720,
	}
	if params.WindowSize != nil && params.WindowSize.Width > 0 && params.WindowSize.Height > 0 {
		opts.Width = params.WindowSize.Width
		opts.Height = params.WindowSize.Height
	}
	if params.WindowPosition != nil {
		opts.HasPosition = true
		opts.PositionX = params.WindowPosition.X
		opts.PositionY = params.WindowPosition.Y
	}

	session, err := s.factory(ctx, opts)
	if err != nil {
		return fail(cmd.ID, fmt.Sprintf("init failed: %v", err))
	}

	s.session = session
	s.state = StateActive
	return ok(cmd.ID, true)
}

func (s *Server) handleClose(ctx context.Context, cmd Command) Response {
	// Closing an absent session is a no-op, not an error: callers issue a
	// final close unconditionally during teardown.
	if s.session == nil {
		return ok(cmd.ID, true)
	}

	err := s.session.Close(ctx)
	s.session = nil
	s.state = StateClosed
	if err != nil {
		return fail(cmd.ID, fmt.Sprintf("close failed: %v", err))
	}
	return ok(cmd.ID, true)
}

func (s *Server) handleGetURL(ctx context.Context, cmd Command) Response {
	// Pollable without a session: report the blank-page sentinel.
	if s.state != StateActive {
		return ok(cmd.ID, blankURL)
	}
	url, err := s.session.URL(ctx)
	if err != nil {
		return fail(cmd.ID, err.Error())
	}
	return ok(cmd.ID, url)
}

func (s *Server) handleGetTitle(ctx context.Context, cmd Command) Response {
	if s.state != StateActive {
		return ok(cmd.ID, "")
	}
	title, err := s.session.Title(ctx)
	if err != nil {
		return fail(cmd.ID, err.Error())
	}
	return ok(cmd.ID, title)
}

// handleActive handles every method that requires an Active session.
func (s *Server) handleActive(ctx context.Context, cmd Command) Response {
	switch cmd.Method {
	case "navigate":
		params, err := decodeParams[navigateParams](cmd.Params)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := params.validate(); err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := s.session.Navigate(ctx, params.URL); err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, true)

	case "click":
		params, err := decodeParams[clickParams](cmd.Params)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := params.validate(); err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := s.session.Click(ctx, params.Selector, params.stealth()); err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, true)

	case "type":
		params, err := decodeParams[typeParams](cmd.Params)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := params.validate(); err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := s.session.Type(ctx, params.Selector, *params.Text, params.Clear); err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, true)

	case "fill":
		params, err := decodeParams[fillParams](cmd.Params)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := params.validate(); err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := s.session.Fill(ctx, params.Selector, *params.Value); err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, true)

	case "screenshot":
		data, err := s.session.Screenshot(ctx)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, data)

	case "snapshot":
		params, err := decodeParams[snapshotParams](cmd.Params)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		content, err := s.session.Snapshot(ctx, params.format())
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, map[string]any{"content": content, "format": params.format()})

	case "evaluate":
		params, err := decodeParams[evaluateParams](cmd.Params)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := params.validate(); err != nil {
			return fail(cmd.ID, err.Error())
		}
		result, err := s.session.Evaluate(ctx, params.Script)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, result)

	case "wait_element":
		params, err := decodeParams[waitElementParams](cmd.Params)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		if err := params.validate(); err != nil {
			return fail(cmd.ID, err.Error())
		}
		timeout := time.Duration(params.timeoutSeconds() * float64(time.Second))
		if err := s.session.WaitElement(ctx, params.Selector, timeout); err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, true)

	case "scroll":
		params, err := decodeParams[scrollParams](cmd.Params)
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		if params.Selector != "" {
			if err := s.session.ScrollTo(ctx, params.Selector); err != nil {
				return fail(cmd.ID, err.Error())
			}
		} else {
			if err := s.session.ScrollBy(ctx, params.direction(), params.amount()); err != nil {
				return fail(cmd.ID, err.Error())
			}
		}
		return ok(cmd.ID, true)

	case "solve_turnstile":
		if err := s.session.SolveTurnstile(ctx); err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, true)
	}

	// Unreachable: dispatch routes only the methods handled above.
	return fail(cmd.ID, fmt.Sprintf("Unknown method: %s", cmd.Method))
}
