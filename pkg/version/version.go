package version

// Version is the docflow version. Overridden at build time via
// -ldflags "-X github.com/docflowhq/docflow/pkg/version.Version=...".
var Version = "dev"
