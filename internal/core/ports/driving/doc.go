// Package driving defines the operations the CLI, HTTP API, MCP server and
// terminal browser call into. The implementations live in
// internal/core/services.
package driving
