package version

// Version is overridden at release build time via -ldflags.
var Version = "0.3.0-dev"
