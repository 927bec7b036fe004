// Package tools defines the shared [Tool] type used by all built-in tool
// packages. Each sub-package exports a constructor function that returns a
// slice of [Tool] values ready for registration with the MCP server.
package tools

import "context"

// Definition is a tool's public descriptor: its name, description, JSON
// Schema parameter specification, and behaviour annotations surfaced to the
// calling assistant.
type Definition struct {
	// Name is the tool's unique identifier.
	Name string

	// Title is a human-readable display name.
	Title string

	// Description explains what the tool does and how to call it.
	Description string

	// Parameters is the JSON Schema describing the tool's input object.
	Parameters map[string]any

	// ReadOnly indicates the tool never mutates its environment.
	ReadOnly bool

	// Idempotent indicates repeated calls with the same arguments return
	// the same result (false for e.g. random card draws).
	Idempotent bool

	// OpenWorld indicates the tool reaches out to external services.
	OpenWorld bool
}

// Tool pairs a definition with the handler invoked when the tool is called.
type Tool struct {
	// Definition is the tool's public descriptor.
	Definition Definition

	// Handler executes the tool with JSON-encoded args and returns a text
	// result on success, or a descriptive error. Implementations must be
	// safe for concurrent use and must respect context cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}
