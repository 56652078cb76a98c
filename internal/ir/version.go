package ir

// Version constants recorded with every stored compilation.
const (
	// ModelVersion is the visualization/request model version.
	ModelVersion = "1"

	// CompilerVersion is the metricc compiler version.
	CompilerVersion = "0.1.0"
)
