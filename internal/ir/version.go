package ir

// Version constants reported by the CLI and the HTTP transport.
const (
	// IRVersion is the query IR schema version.
	IRVersion = "1"

	// Version is the nestq release version.
	Version = "0.1.0"
)
