//go:build tools
// +build tools

// Pins code generators invoked through go generate.
package main

import (
	_ "go.uber.org/mock/mockgen"
)
