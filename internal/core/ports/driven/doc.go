// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - CatalogStore: Relational item/offer lookups (sqlite, postgres)
//   - RequestStore: Relational partner request lookups
//   - CatalogIndex: Vector storage and top-K search over item titles
//   - EmbeddingService: Turns titles into vectors (Ollama, OpenAI)
//   - ConfigStore: Application configuration
//
// The vector index is a derived projection of the relational store and may
// lag deletes; services filter hits against CatalogStore before returning.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
