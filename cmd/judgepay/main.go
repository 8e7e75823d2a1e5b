// Package main is the single-binary entrypoint for JudgePay: the escrow
// server and its CLI in one binary.
package main

import "github.com/judgepay-labs/judgepay/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
