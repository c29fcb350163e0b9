//go:build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` or run through `go run`
// and are not tracked in go.mod since they are not runtime dependencies.
package tools

// Development tools:
//
// Air - Live reload for the portal; pair with DEV=true so templates are read from disk.
//   Install: go install github.com/air-verse/air@v1.63.0
//   Docs: https://github.com/air-verse/air
//
// mockgen - Regenerates internal/mocks from the ports package.
//   Run: go generate ./internal/mocks
