package ai

import (
	"context"
	"fmt"
	"strings"

	"huddle/pkg/types"
)

// Reply is a backend's answer to one tutoring query, optionally proposing
// tool invocations the participants must approve before anything runs
type Reply struct {
	Text         string
	ToolRequests []types.ToolRequestSpec
}

// Backend produces hint/tutor completions
// ARCHITECTURAL DISCOVERY: The interface is the entire LLM integration
// surface - a production backend drops in without the worker, the approval
// tracker, or the reducer knowing anything changed
type Backend interface {
	// Answer produces a reply for the query in the requested mode. Called
	// out-of-band from the action stream; implementations may block up to
	// the context deadline.
	Answer(ctx context.Context, query string, mode types.AIMode) (Reply, error)
}

// NewBackend constructs the backend named in configuration
func NewBackend(kind string) (Backend, error) {
	switch kind {
	case "stub":
		return &StubBackend{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
}

// StubBackend is a deterministic stand-in for development and tests
// FUNCTIONAL DISCOVERY: Deterministic replies keep integration tests stable;
// the "run" keyword trigger exercises the full tool-approval path without a
// real model in the loop
type StubBackend struct{}

func (b *StubBackend) Answer(ctx context.Context, query string, mode types.AIMode) (Reply, error) {
	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	default:
	}

	reply := Reply{}
	switch mode {
	case types.AIModeTutor:
		reply.Text = fmt.Sprintf("Let's work through this together. You asked: %q. Start by restating the problem in your own words, then identify the smallest input you could solve by hand.", query)
	default:
		reply.Text = fmt.Sprintf("Hint: for %q, consider which data structure gives you the lookup you need.", query)
	}

	if strings.Contains(strings.ToLower(query), "run") {
		reply.ToolRequests = []types.ToolRequestSpec{
			{Tool: "run_code", Message: "Run the shared code buffer and report the output?"},
		}
	}

	return reply, nil
}
