//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// These imports are not used at runtime. They keep mockgen, invoked via
// `go generate ./contract`, tracked in go.mod so that a fresh checkout
// regenerates the mocks with the pinned version.
package duochat

import (
	_ "go.uber.org/mock/mockgen"
)
