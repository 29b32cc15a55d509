package version

// Values are overridden at build time via -ldflags.
var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns a single-line description suitable for logs and the status API.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
