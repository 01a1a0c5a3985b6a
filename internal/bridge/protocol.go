// Package bridge implements the stdio command bridge: a line-oriented
// JSON request/response server that drives one browser session on behalf
// of a supervising process. One command in, exactly one response out, in
// order. Diagnostics never touch stdout.
package bridge

import "encoding/json"

// Command is one decoded request line.
type Command struct {
	// ID is an opaque correlation token assigned by the caller and echoed
	// verbatim in the response.
	ID json.RawMessage `json:"id"`
	// Method names the operation to perform.
	Method string `json:"method"`
	// Params carries method-specific parameters; decoded per method.
	Params json.RawMessage `json:"params"`
}

// Response is one emitted response line. Exactly one of Data/Error is
// populated, keyed off Success.
type Response struct {
	ID      json.RawMessage `json:"id"`
	Success bool            `json:"success"`
	Data    any             `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func ok(id json.RawMessage, data any) Response {
	return Response{ID: id, Success: true, Data: data}
}

func fail(id json.RawMessage, msg string) Response {
	return Response{ID: id, Success: false, Error: msg}
}
