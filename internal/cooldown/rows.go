package cooldown

import (
	"fmt"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
)

// Rows renders the persisted cooldown table, header first, domains sorted.
// Domains at zero are kept so the table lists every domain seen.
func Rows(l Ledger, cycle int) []ir.Row {
	rows := []ir.Row{ledger.Cooldowns.HeaderRow()}
	for _, d := range l.Domains() {
		rows = append(rows, ir.Row{ir.Text(d), ir.Int(l[d]), ir.Int(cycle)})
	}
	return rows
}

// FromRecords reads a cooldown table. Rows without a domain are skipped;
// negative or unreadable counters load as zero.
func FromRecords(recs []ledger.Record) (Ledger, []error) {
	l := make(Ledger, len(recs))
	var skipped []error
	for _, rec := range recs {
		domain := rec.Text(ledger.ColDomain)
		if domain == "" {
			skipped = append(skipped, fmt.Errorf("row %d: no %s", rec.Row, ledger.ColDomain))
			continue
		}
		l[domain] = max(rec.IntOr(ledger.ColCyclesRemaining, 0), 0)
	}
	return l, skipped
}
