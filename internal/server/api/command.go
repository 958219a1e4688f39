// Package api is the boundary between a transport front end and the
// services. A front end turns each request into a Command, hands it to a
// Router and serialises the Result it gets back. Dispatch is total: every
// Command yields a Result.
package api

import (
	"context"
	"encoding/json"
	"strings"
)

// Command is a normalised inbound request.
type Command struct {
	// Path is the resource name without surrounding slashes, e.g. "accounts".
	Path   string
	Method string
	Query  map[string]string
	// Headers are keyed by lower-case name.
	Headers map[string]string
	// Body is a JSON document; "{}" when the request had none.
	Body json.RawMessage
}

// Header returns the value of the named header, matched case-insensitively.
func (c Command) Header(name string) string {
	return c.Headers[strings.ToLower(name)]
}

// Param returns the named query parameter.
func (c Command) Param(name string) string {
	return c.Query[name]
}

// Result is what a front end writes back: a status code and an optional
// JSON-serialisable payload.
type Result struct {
	StatusCode int
	Payload    any
}

// ErrorPayload is the payload of every failed Result.
type ErrorPayload struct {
	Error string `json:"Error"`
}

// Resource handles the four methods of one path.
type Resource interface {
	Post(ctx context.Context, cmd Command) Result
	Get(ctx context.Context, cmd Command) Result
	Put(ctx context.Context, cmd Command) Result
	Delete(ctx context.Context, cmd Command) Result
}
