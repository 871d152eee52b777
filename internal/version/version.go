package version

// Version is overridden at build time with -ldflags "-X speaksmart/internal/version.Version=...".
var Version = "dev"
