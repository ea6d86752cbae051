// Package engineerr defines the error taxonomy shared by every component of
// the orchestration engine. Each component raises a typed Error carrying one
// of a small set of Kinds; callers classify and route on Kind rather than on
// string matching.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an engine error for routing and recovery purposes.
type Kind string

const (
	// KindIdentityMissing is raised by the prompt loader when SOUL.md or
	// AGENT.md is absent from the workspace. Fatal for the Invoke call.
	KindIdentityMissing Kind = "identity-missing"

	// KindConfigMissing is raised by MCP config loading when mcp_servers.json
	// does not exist. Fatal at Agent construction.
	KindConfigMissing Kind = "config-missing"

	// KindConfigMalformed is raised when mcp_servers.json fails to parse or
	// fails validation. Fatal at Agent construction.
	KindConfigMalformed Kind = "config-malformed"

	// KindLLMTransport is raised by an LLM provider on a transport-level
	// failure. Retried inside the provider; fatal to the caller once
	// retries are exhausted.
	KindLLMTransport Kind = "llm-transport"

	// KindLLMStructuredParse is raised when a structured completion cannot
	// be parsed or fails schema validation after all retries, including
	// fenced-block extraction. Surfaces as state.error.
	KindLLMStructuredParse Kind = "llm-structured-parse"

	// KindPlanEmpty is raised by the Planner when it produces a plan with
	// no tasks. Surfaces as state.error, triggering a replan.
	KindPlanEmpty Kind = "plan-empty"

	// KindToolServerDisabled is raised by the MCP Executor when the
	// requested server is known but not enabled.
	KindToolServerDisabled Kind = "tool-server-disabled"

	// KindToolNotFound is raised by the MCP Executor when the requested
	// server:tool pair does not resolve to any discovered tool.
	KindToolNotFound Kind = "tool-not-found"

	// KindDependencyUnsatisfied is raised by the Executor when a task's
	// depends_on references a task that has not produced a successful
	// result.
	KindDependencyUnsatisfied Kind = "dependency-unsatisfied"

	// KindTransportUnavailable is raised by a transport when it cannot
	// reach or has lost its connection to an MCP server.
	KindTransportUnavailable Kind = "transport-unavailable"

	// KindTimeout is raised by a transport when a request exceeds its
	// deadline.
	KindTimeout Kind = "timeout"

	// KindRemoteError is raised by a transport when the remote MCP server
	// returns a JSON-RPC error response.
	KindRemoteError Kind = "remote-error"

	// KindTransitionLimitExceeded is raised by the Agent/Graph when a
	// session exceeds its maximum node-transition budget. Forces
	// finalization with a failure message.
	KindTransitionLimitExceeded Kind = "transition-limit-exceeded"

	// KindCheckpoint is raised by the checkpoint store on a persistence
	// failure (get, put, or delete).
	KindCheckpoint Kind = "checkpoint-error"
)

// recoverable maps a Kind to whether it is recorded into state and routed
// back through the graph (true) or escapes Invoke as a fatal error (false).
var recoverable = map[Kind]bool{
	KindIdentityMissing:         false,
	KindConfigMissing:           false,
	KindConfigMalformed:         false,
	KindLLMTransport:            false,
	KindLLMStructuredParse:      true,
	KindPlanEmpty:               true,
	KindToolServerDisabled:      true,
	KindToolNotFound:            true,
	KindDependencyUnsatisfied:   true,
	KindTransportUnavailable:    true,
	KindTimeout:                 true,
	KindRemoteError:             true,
	KindTransitionLimitExceeded: true,
	KindCheckpoint:              false,
}

// Recoverable reports whether errors of this kind should be converted into a
// state.error or TaskResult.error rather than propagated out of a node.
func (k Kind) Recoverable() bool {
	return recoverable[k]
}

// Error is a structured engine error carrying a Kind for routing plus
// enough context to explain the failure to an operator.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Component, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind raised by the named component.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap builds an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, component string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Component: component, Message: msg, Cause: cause}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is or wraps an *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	if e, ok := As(err); ok {
		return e.Kind, true
	}
	return "", false
}
