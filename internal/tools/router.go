// Package tools holds the dispatch table from tool name to implementation
// plus the HTTP clients behind each tool. Timeouts live on the HTTP clients;
// callers await executions sequentially.
package tools

import (
	"context"
	"fmt"
)

// Handler executes one tool. A recoverable business failure is reported as
// {"ok": false, "error": ...} in the result; transport errors come back as
// a Go error. Callers treat both as a failed call.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

type Router struct {
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

func (r *Router) Register(name string, h Handler) {
	r.handlers[name] = h
}

func (r *Router) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return h(ctx, args)
}

// Failed reports whether a tool outcome counts as a failure: an error, or a
// result carrying ok=false / an error field.
func Failed(res map[string]any, err error) bool {
	if err != nil {
		return true
	}
	if res == nil {
		return true
	}
	if ok, present := res["ok"].(bool); present && !ok {
		return true
	}
	if _, present := res["error"]; present {
		return true
	}
	return false
}
