// Package server exposes recipes over HTTP.
//
// The server is a Gin engine behind an h2c handler, so it speaks HTTP/1.1
// and cleartext HTTP/2 on one port. Routes:
//
//	GET  /health                       service health
//	GET  /version                      build information
//	GET  /v1/recipes                   registered recipes
//	POST /v1/recipes/:name/transform   CSV in, CSV out
//
// The transform route reads the request body as CSV, applies the named
// recipe and answers with text/csv. Query parameters header_line,
// header_match, comma and encoding override the recipe's input settings.
// Failures are rendered as the JSON error envelope of the errors package.
package server
