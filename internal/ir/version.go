package ir

// Version constants for the printed IR and the tool.
const (
	// IRVersion is the textual IR format version.
	IRVersion = "1"

	// ToolVersion is the cpurt version.
	ToolVersion = "0.1.0"
)
