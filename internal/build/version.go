package build

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// FullVersion returns the version string with commit hash appended.
// Format: "Version+Commit" (e.g., "1.0.0+abc123")
func FullVersion() string {
	return Version + "+" + Commit
}

// UserAgent is the default User-Agent header sent with every fetch.
func UserAgent() string {
	return "page-tracker/" + Version
}

// Info is the multi-line summary printed by the version command.
func Info() string {
	return "page-tracker " + FullVersion() + "\nbuilt " + BuildTime
}
