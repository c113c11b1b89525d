// Package api provides the HTTP API server for the mnemo memory service.
package api

import (
	"net/http"

	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/prune"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/tool"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// Tool serves the memory tool contract on POST /v1/memory.
	Tool *tool.Handler

	// Retrieval and Injector serve search and prompt injection.
	Retrieval *retrieval.Service
	Injector  *retrieval.Injector

	// Recorder serves session recording (optional).
	Recorder *session.Recorder

	// Pruner serves explicit pruning (optional).
	Pruner *prune.Pruner

	// Metrics serves the in-process operation tally on GET /v1/metrics
	// (optional).
	Metrics *metrics.Recorder

	// MCP is mounted at /mcp when set.
	MCP http.Handler
}
