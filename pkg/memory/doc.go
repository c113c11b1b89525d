// Package memory defines the scoped memory model shared by every mnemo
// component: entries, queries, list results, typed pagination cursors and the
// Store contract that storage backends implement.
//
// Entries are partitioned by Scope (agent, team, global) and a namespace
// string within the scope. Backends are pluggable via configuration:
//
//	[storage]
//	backend = "sqlite"   # or "inmemory", "postgres"
//
// Every backend error surfaced to callers is a *Error carrying a wire Code so
// that transports (HTTP, MCP, CLI) can render it without inspecting backend
// specifics.
package memory
