//go:build e2e

// Package e2e runs the browser shim and the leak-check server against a real
// Chrome.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present)
// and are intended for CI pipelines or explicit local testing.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// E2E tests use:
//   - Rod for browser automation (Chrome DevTools Protocol)
//   - the leakcheck server for signaling and audits
//   - BrowserClient from pkg/guard/testutil, which injects the shim
//
// Each test starts its own server on a random port and launches
// its own browser instance.
package e2e
