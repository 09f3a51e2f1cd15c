// Package httpapi exposes the matching and suggestion engines over a JSON
// HTTP API built on gofiber/fiber.
//
// Routes:
//
//	POST   /api/items                    add or overwrite index entries
//	PATCH  /api/items                    patch existing entries
//	DELETE /api/items                    remove by ids and/or group
//	GET    /api/search                   top-K catalog search
//	GET    /api/offers/:id/suggestions   suggestions for a donor offer
//	POST   /api/suggestions              suggestions for an offer or item list
//	GET    /healthz                      liveness
//
// Domain errors map to status codes: invalid input 400, not found 404,
// upstream unavailable 503. Anything else is a 500 with a generic message.
package httpapi
