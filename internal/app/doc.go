// Package app is the composition root. It reads settings, opens the
// relational store and the vector collection, builds the embedding client
// and assembles the matching and suggestion services.
//
// Construction fails fast: settings that cannot start the engine surface
// as domain.ErrConfiguration before any request is served.
package app
