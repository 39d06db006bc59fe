package ir

// Version constants for the rule format and engine.
const (
	// RuleFormatVersion is the newest rule document version this build understands.
	RuleFormatVersion = 1

	// EngineVersion is the ingestlab engine version.
	EngineVersion = "0.1.0"
)
