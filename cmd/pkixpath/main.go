// Command pkixpath validates and builds X.509 certification paths.
//
// Usage:
//
//	pkixpath <command> [flags] <args>
//
// Commands:
//
//	validate  Validate an explicit certification path
//	build     Build and validate a path for a target certificate
//	serve     Serve validation and path building over HTTP
//	version   Show version information
//
// Examples:
//
//	# Validate a path, target first
//	pkixpath validate --anchor root.pem leaf.pem ca.pem
//
//	# Build a path with JSON output
//	pkixpath build --json --anchor root.pem --cert ca.pem --crl ca.crl leaf.pem
package main

import (
	formatter "github.com/bluexlab/logrus-formatter"

	"github.com/georgepadayatti/pkixpath/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/pkixpath
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	formatter.InitLogger()

	cli.Version = version
	cli.BuildTime = buildTime

	cli.Execute()
}
