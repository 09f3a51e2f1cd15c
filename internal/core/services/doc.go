// Package services holds the matching, suggestion and settings logic.
// Services depend only on domain types and driven ports; storage, vector
// and embedding adapters are injected by internal/app.
package services
