package cooldown

import (
	"sort"
	"strings"
)

// Calendar is the per-cycle context supplied by the calendar layer.
type Calendar struct {
	Holiday         string `yaml:"holiday" json:"holiday"`
	HolidayPriority string `yaml:"holiday_priority" json:"holiday_priority"`
	IsFirstFriday   bool   `yaml:"first_friday" json:"first_friday"`
	IsCreationDay   bool   `yaml:"creation_day" json:"creation_day"`
	SportsSeason    string `yaml:"sports_season" json:"sports_season"`
	Season          string `yaml:"season" json:"season"`
}

// Rule maps one calendar condition to boosted and suppressed domains.
//
// A rule matches when every condition it sets holds. A rule with no
// conditions never matches.
type Rule struct {
	Holiday         string `yaml:"holiday,omitempty" json:"holiday,omitempty"`
	HolidayPriority string `yaml:"holiday_priority,omitempty" json:"holiday_priority,omitempty"`
	FirstFriday     bool   `yaml:"first_friday,omitempty" json:"first_friday,omitempty"`
	CreationDay     bool   `yaml:"creation_day,omitempty" json:"creation_day,omitempty"`
	SportsSeason    string `yaml:"sports_season,omitempty" json:"sports_season,omitempty"`
	Season          string `yaml:"season,omitempty" json:"season,omitempty"`

	Boost    []string `yaml:"boost,omitempty" json:"boost,omitempty"`
	Suppress []string `yaml:"suppress,omitempty" json:"suppress,omitempty"`
}

// Matches reports whether the rule applies to the calendar.
func (r Rule) Matches(c Calendar) bool {
	conditions := 0
	check := func(want, got string) bool {
		if want == "" {
			return true
		}
		conditions++
		return strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(got))
	}

	ok := check(r.Holiday, c.Holiday) &&
		check(r.HolidayPriority, c.HolidayPriority) &&
		check(r.SportsSeason, c.SportsSeason) &&
		check(r.Season, c.Season)
	if r.FirstFriday {
		conditions++
		ok = ok && c.IsFirstFriday
	}
	if r.CreationDay {
		conditions++
		ok = ok && c.IsCreationDay
	}
	return ok && conditions > 0
}

// Modifiers derives this cycle's boosted and suppressed domains from the
// calendar. A domain both boosted and suppressed by matching rules is
// reported as suppressed only. Both lists are sorted.
func Modifiers(c Calendar, rules []Rule) (boosted, suppressed []string) {
	boost := make(map[string]bool)
	quiet := make(map[string]bool)
	for _, r := range rules {
		if !r.Matches(c) {
			continue
		}
		for _, d := range r.Boost {
			boost[d] = true
		}
		for _, d := range r.Suppress {
			quiet[d] = true
		}
	}
	for d := range boost {
		if !quiet[d] {
			boosted = append(boosted, d)
		}
	}
	for d := range quiet {
		suppressed = append(suppressed, d)
	}
	sort.Strings(boosted)
	sort.Strings(suppressed)
	return boosted, suppressed
}

// Contains reports whether domains includes d.
func Contains(domains []string, d string) bool {
	for _, x := range domains {
		if x == d {
			return true
		}
	}
	return false
}
