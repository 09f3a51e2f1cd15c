// Package mcp provides an MCP (Model Context Protocol) server adapter for supplymatch.
// It lets AI assistants search the donation catalog and request advisory
// allocation suggestions.
package mcp

import "errors"

// ErrMissingMatchingService is returned when the matching service is not provided.
var ErrMissingMatchingService = errors.New("mcp: matching service is required")
