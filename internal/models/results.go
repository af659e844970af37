package models

// UnknownVersion is reported when no version could be determined
const UnknownVersion = "unknown"

// Finding is one detection of a plugin on the scanned page
type Finding struct {
	// Plugin name as written in the ruleset
	Plugin string `json:"plugin"`
	// Section the plugin was declared under
	Section string `json:"section,omitempty"`
	// SignalType that produced the hit (e.g., "Comment", "MetaTag")
	SignalType string `json:"signal"`
	// Version is empty when it could not be determined
	Version string `json:"version,omitempty"`
}

// VersionOrUnknown returns the version, or "unknown" when it is empty
func (f Finding) VersionOrUnknown() string {
	if f.Version == "" {
		return UnknownVersion
	}
	return f.Version
}
