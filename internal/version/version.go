// Package version holds the hub release version reported by the CLI and the API.
package version

// Version can be overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.4.1"

// ProductName is the human readable product name shown in banners and help output.
const ProductName = "Go Spawn Hub"
