package version

// Project constants
const (
	// ProgramName is the name of the binary
	ProgramName = "jmxbridge"

	// Version is the current version of the tool
	Version = "0.1.0"
)
