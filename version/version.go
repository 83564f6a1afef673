package version

// Version is overridden at build time with
// -ldflags "-X github.com/Daskott/relief/version.Version=<version>"
var Version = "0.1.0"
