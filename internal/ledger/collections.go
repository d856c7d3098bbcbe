package ledger

import (
	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/table"
)

// Default collection names.
const (
	ArcLedgerCollection   = "Arc_Ledger"
	HooksCollection       = "Story_Hooks"
	HookArchiveCollection = "Story_Hooks_Archive"
	CooldownsCollection   = "Domain_Cooldowns"
	CycleLogCollection    = "Cycle_Log"
)

// Arc ledger columns.
const (
	ColArcID            = "ArcId"
	ColType             = "Type"
	ColPhase            = "Phase"
	ColTension          = "Tension"
	ColNeighborhood     = "Neighborhood"
	ColDomainTag        = "DomainTag"
	ColSummary          = "Summary"
	ColInvolvedEntities = "InvolvedEntities"
	ColCycleCreated     = "CycleCreated"
	ColCycleResolved    = "CycleResolved"
	ColCalendarTrigger  = "CalendarTrigger"
	ColCycle            = "Cycle"
	ColSeq              = "Seq"
)

// Hook columns.
const (
	ColHookID        = "HookId"
	ColPriority      = "Priority"
	ColSeverity      = "Severity"
	ColCreatedCycle  = "CreatedCycle"
	ColAge           = "Age"
	ColExpiresAfter  = "ExpiresAfter"
	ColIsExpired     = "IsExpired"
	ColPickupCycle   = "PickupCycle"
	ColArchived      = "Archived"
	ColArchivedCycle = "ArchivedCycle"
)

// Cooldown columns.
const (
	ColDomain          = "Domain"
	ColCyclesRemaining = "CyclesRemaining"
	ColUpdatedCycle    = "UpdatedCycle"
)

// Cycle log columns.
const (
	ColRunID         = "RunId"
	ColMode          = "Mode"
	ColIntents       = "Intents"
	ColLiveArcs      = "LiveArcs"
	ColActiveHooks   = "ActiveHooks"
	ColEngineVersion = "EngineVersion"
)

// ArcLedger is the append-only arc history.
var ArcLedger = Schema{
	Columns: []string{
		ColArcID, ColType, ColPhase, ColTension, ColNeighborhood, ColDomainTag,
		ColSummary, ColInvolvedEntities, ColCycleCreated, ColCycleResolved,
		ColCalendarTrigger, ColCycle, ColSeq,
	},
	Required: []string{ColArcID, ColPhase, ColTension, ColCycleCreated, ColCycleResolved},
}

// Hooks is the live story-hook table, updated in place.
var Hooks = Schema{
	Columns: []string{
		ColHookID, ColType, ColSummary, ColPriority, ColSeverity, ColCreatedCycle,
		ColAge, ColExpiresAfter, ColIsExpired, ColPickupCycle, ColArchived,
	},
	Required: []string{ColHookID, ColCreatedCycle},
}

// HookArchive receives one row per archived hook.
var HookArchive = Schema{
	Columns: []string{
		ColHookID, ColType, ColSummary, ColPriority, ColSeverity, ColCreatedCycle,
		ColAge, ColExpiresAfter, ColPickupCycle, ColArchivedCycle,
	},
	Required: []string{ColHookID},
}

// Cooldowns is the per-domain suppression table, replaced every cycle.
var Cooldowns = Schema{
	Columns:  []string{ColDomain, ColCyclesRemaining, ColUpdatedCycle},
	Required: []string{ColDomain, ColCyclesRemaining},
}

// CycleLog receives one log row per cycle.
var CycleLog = Schema{
	Columns: []string{
		ColCycle, ColRunID, ColMode, ColIntents, ColLiveArcs, ColActiveHooks, ColEngineVersion,
	},
	Required: []string{ColCycle},
}

// EnsureHeader returns the index writers should use for sheet, queueing
// whatever header writes are needed to make the store match it.
//
// A missing or header-less collection gets the schema header appended. An
// existing header missing some schema columns is extended to the right;
// columns already present keep their positions.
func EnsureHeader(ec *intent.ExecutionContext, sheet table.Sheet, schema Schema, domain string) (Index, error) {
	if !sheet.Exists || len(sheet.Header) == 0 {
		if _, err := ec.QueueAppend(sheet.Collection, schema.HeaderRow(), "create header", domain); err != nil {
			return Index{}, err
		}
		return NewIndex(schema.Columns), nil
	}

	idx := IndexFor(sheet)
	var missing ir.Row
	header := append([]string(nil), sheet.Header...)
	for _, name := range schema.Columns {
		if _, ok := idx.Col(name); !ok {
			missing = append(missing, ir.Text(name))
			header = append(header, name)
		}
	}
	if len(missing) == 0 {
		return idx, nil
	}

	if _, err := ec.QueueRange(sheet.Collection, table.HeaderRow, idx.Width()+1, []ir.Row{missing}, "extend header", domain); err != nil {
		return Index{}, err
	}
	return NewIndex(header), nil
}
