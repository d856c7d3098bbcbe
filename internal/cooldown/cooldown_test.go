package cooldown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
)

func TestDecay(t *testing.T) {
	l := Ledger{"civic": 3, "sports": 3, "media": 0, "crime": 1}

	got := Decay(l, []string{"sports", "crime"})

	assert.Equal(t, Ledger{"civic": 2, "sports": 1, "media": 0, "crime": 0}, got)
	assert.Equal(t, 3, l["civic"], "input is not modified")
}

func TestDecay_NeverNegative(t *testing.T) {
	l := Ledger{"a": 0, "b": 1, "c": 2, "d": 7, "e": -3}
	boosted := [][]string{nil, {"a", "b"}, {"c", "d", "e"}}

	for i := 0; i < 20; i++ {
		l = Decay(l, boosted[i%len(boosted)])
		for d, n := range l {
			assert.GreaterOrEqual(t, n, 0, "domain %s after %d decays", d, i+1)
		}
	}
	for _, n := range l {
		assert.Equal(t, 0, n)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want int
	}{
		{"base", Params{Severity: SeverityMedium}, 2},
		{"high", Params{Severity: SeverityHigh}, 3},
		{"critical", Params{Severity: SeverityCritical}, 3},
		{"low", Params{Severity: SeverityLow}, 1},
		{"priority", Params{Severity: SeverityMedium, Priority: true}, 1},
		{"long", Params{Severity: SeverityMedium, LongCooldown: true}, 3},
		{"long but boosted", Params{Severity: SeverityMedium, LongCooldown: true, Boosted: true}, 1},
		{"boosted", Params{Severity: SeverityMedium, Boosted: true}, 1},
		{"suppressed", Params{Severity: SeverityMedium, Suppressed: true}, 3},
		{"floor", Params{Severity: SeverityLow, Priority: true, Boosted: true}, 0},
		{"everything", Params{Severity: SeverityHigh, Priority: true, LongCooldown: true, Suppressed: true}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Duration(tt.p))
		})
	}
}

func TestApply_OnlyExtends(t *testing.T) {
	l := Ledger{"civic": 4}

	d := Apply(l, "civic", Params{Severity: SeverityLow})
	assert.Equal(t, 1, d)
	assert.Equal(t, 4, l["civic"], "shorter duration does not shorten")

	d = Apply(l, "media", Params{Severity: SeverityHigh})
	assert.Equal(t, 3, d)
	assert.Equal(t, 3, l["media"])

	Apply(l, "civic", Params{Severity: SeverityCritical, LongCooldown: true, Suppressed: true})
	assert.Equal(t, 5, l["civic"])
}

func TestIsSuppressed(t *testing.T) {
	l := Ledger{"civic": 1, "media": 0}
	assert.True(t, IsSuppressed(l, "civic"))
	assert.False(t, IsSuppressed(l, "media"))
	assert.False(t, IsSuppressed(l, "unknown"))
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, ParseSeverity(" HIGH "))
	assert.Equal(t, SeverityLow, ParseSeverity("low"))
	assert.Equal(t, SeverityMedium, ParseSeverity("whatever"))
}

func TestModifiers(t *testing.T) {
	rules := []Rule{
		{Holiday: "Harvest Festival", Boost: []string{"culture", "food"}, Suppress: []string{"crime"}},
		{FirstFriday: true, Boost: []string{"arts"}},
		{SportsSeason: "playoffs", Boost: []string{"sports"}, Suppress: []string{"food"}},
		{Season: "winter", CreationDay: true, Boost: []string{"civic"}},
		{Boost: []string{"never"}},
	}

	boosted, suppressed := Modifiers(Calendar{
		Holiday:       "harvest festival",
		IsFirstFriday: true,
		SportsSeason:  "playoffs",
		Season:        "winter",
	}, rules)

	assert.Equal(t, []string{"arts", "culture", "sports"}, boosted)
	assert.Equal(t, []string{"crime", "food"}, suppressed)
}

func TestModifiers_NoRules(t *testing.T) {
	boosted, suppressed := Modifiers(Calendar{Holiday: "x"}, nil)
	assert.Empty(t, boosted)
	assert.Empty(t, suppressed)
}

func TestRowsRoundTrip(t *testing.T) {
	l := Ledger{"media": 0, "civic": 2}

	rows := Rows(l, 17)
	require.Len(t, rows, 3)
	assert.Equal(t, ledger.Cooldowns.HeaderRow(), rows[0])
	assert.Equal(t, ir.RowOf("civic", 2, 17), rows[1])
	assert.Equal(t, ir.RowOf("media", 0, 17), rows[2])

	idx := ledger.NewIndex(ledger.Cooldowns.Columns)
	recs := ledger.Records(idx, append(rows[1:], ir.RowOf("", 3, 17), ir.RowOf("sports", -2, 17)), func(i int) int { return i + 2 })

	got, skipped := FromRecords(recs)
	assert.Len(t, skipped, 1)
	assert.Equal(t, Ledger{"civic": 2, "media": 0, "sports": 0}, got)
}
