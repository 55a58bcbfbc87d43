package ir

// Version constants recorded in the store metadata.
const (
	// LayoutVersion is the persisted account layout version.
	LayoutVersion = "1"

	// EngineVersion is the domainreg release.
	EngineVersion = "0.1.0"
)
