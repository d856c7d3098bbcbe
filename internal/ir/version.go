package ir

// Version constants for the ledger layout and engine.
const (
	// LedgerVersion is the arc/hook ledger row layout version.
	LedgerVersion = "1"

	// EngineVersion is the citycycle engine version.
	EngineVersion = "0.1.0"
)
