// Package graph provides the token-based flow-graph scheduler for MIND.
package graph

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph indicates that a graph document failed load-time validation.
// Every *ValidationError unwraps to it.
var ErrInvalidGraph = errors.New("invalid graph")

// ErrNoGraph indicates that a compile request or session carried no graph.
var ErrNoGraph = errors.New("missing flow graph")

// ErrSafetyCap indicates that the safety governor stopped a bar early.
// It is never returned from CompileBar (the halt is reported as a warning
// diagnostic); Governor.Check returns it so callers can test with errors.Is.
var ErrSafetyCap = errors.New("safety cap reached")

// ValidationError describes a single problem found while decoding or
// validating a graph. NodeID or EdgeID identify the offending element; Field
// names the parameter or attribute when one is involved.
type ValidationError struct {
	NodeID  string
	EdgeID  string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	where := ""
	switch {
	case e.NodeID != "" && e.Field != "":
		where = fmt.Sprintf("node %s: %s: ", e.NodeID, e.Field)
	case e.NodeID != "":
		where = fmt.Sprintf("node %s: ", e.NodeID)
	case e.EdgeID != "":
		where = fmt.Sprintf("edge %s: ", e.EdgeID)
	case e.Field != "":
		where = e.Field + ": "
	}
	return "invalid graph: " + where + e.Message
}

// Unwrap lets errors.Is(err, ErrInvalidGraph) match.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidGraph
}

// EngineError represents an operational failure of the engine or a session,
// such as a store that cannot be read. Code is machine-readable.
type EngineError struct {
	Message string
	Code    string
	Cause   error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}
