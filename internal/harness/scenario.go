package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/citycycle/internal/config"
	"github.com/roach88/citycycle/internal/cooldown"
	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ir"
)

// Scenario is a scripted multi-cycle run.
// Scenarios drive the real engine with scripted generators against a fresh
// memory store and assert on the stored ledgers after each cycle.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is the fixed run ID stamped on every cycle.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Settings configures the engine.
	Settings Settings `yaml:"settings,omitempty"`

	// Seed holds the initial grid of each collection, header row first.
	Seed map[string][][]any `yaml:"seed,omitempty"`

	// Cycles run in order.
	Cycles []CycleScript `yaml:"cycles"`
}

// Settings is the engine configuration for a scenario.
type Settings struct {
	Thresholds   config.ThresholdOverride            `yaml:"thresholds,omitempty"`
	ByType       map[string]config.ThresholdOverride `yaml:"by_type,omitempty"`
	ExpiresAfter int                                 `yaml:"expires_after,omitempty"`

	// NoArchive disables the hook archive collection.
	NoArchive bool `yaml:"no_archive,omitempty"`

	PriorityDomains []string        `yaml:"priority_domains,omitempty"`
	LongDomains     []string        `yaml:"long_domains,omitempty"`
	Rules           []cooldown.Rule `yaml:"rules,omitempty"`

	Strict     bool `yaml:"strict,omitempty"`
	MaxIntents int  `yaml:"max_intents,omitempty"`
}

// CycleScript is one cycle of a scenario.
type CycleScript struct {
	Cycle int `yaml:"cycle"`

	// Mode is "live" (default), "dry-run" or "replay", optionally "+strict".
	Mode string `yaml:"mode,omitempty"`

	Calendar cooldown.Calendar `yaml:"calendar,omitempty"`

	// Steps run in order inside a single scripted generator.
	Steps []Step `yaml:"steps,omitempty"`

	// ExpectError, when set, is a substring of the error RunCycle must
	// return. The store is left untouched by a failed cycle.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Expect is evaluated against the store after the cycle.
	Expect []Assertion `yaml:"expect,omitempty"`
}

// Step is one scripted generator action. Exactly one operation is set.
type Step struct {
	CreateArc  *CreateArcStep  `yaml:"create_arc,omitempty"`
	AdvanceArc *AdvanceArcStep `yaml:"advance_arc,omitempty"`
	ResolveArc *RefStep        `yaml:"resolve_arc,omitempty"`
	CreateHook *CreateHookStep `yaml:"create_hook,omitempty"`
	PickupHook *RefStep        `yaml:"pickup_hook,omitempty"`
	Cooldown   *CooldownStep   `yaml:"cooldown,omitempty"`

	// ExpectError, when set, is a substring of the error the step must
	// fail with. The failure is then swallowed and the script continues.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// CreateArcStep starts an arc. An empty ID is minted from Type.
type CreateArcStep struct {
	ID              string   `yaml:"id,omitempty"`
	Type            string   `yaml:"type"`
	Neighborhood    string   `yaml:"neighborhood,omitempty"`
	Domain          string   `yaml:"domain,omitempty"`
	Summary         string   `yaml:"summary,omitempty"`
	Entities        []string `yaml:"entities,omitempty"`
	Tension         float64  `yaml:"tension,omitempty"`
	CalendarTrigger string   `yaml:"calendar_trigger,omitempty"`
}

// AdvanceArcStep applies event pressure to a live arc.
type AdvanceArcStep struct {
	ID       string  `yaml:"id"`
	Pressure float64 `yaml:"pressure"`
}

// RefStep names an arc or hook.
type RefStep struct {
	ID string `yaml:"id"`
}

// CreateHookStep creates a story hook. An empty ID is minted.
type CreateHookStep struct {
	ID           string `yaml:"id,omitempty"`
	Type         string `yaml:"type,omitempty"`
	Summary      string `yaml:"summary,omitempty"`
	Priority     int    `yaml:"priority,omitempty"`
	Severity     int    `yaml:"severity,omitempty"`
	ExpiresAfter int    `yaml:"expires_after,omitempty"`
}

// CooldownStep starts or extends a domain cooldown.
type CooldownStep struct {
	Domain   string `yaml:"domain"`
	Severity string `yaml:"severity,omitempty"`
}

// Op names the step's operation.
func (s Step) Op() string {
	switch {
	case s.CreateArc != nil:
		return OpCreateArc
	case s.AdvanceArc != nil:
		return OpAdvanceArc
	case s.ResolveArc != nil:
		return OpResolveArc
	case s.CreateHook != nil:
		return OpCreateHook
	case s.PickupHook != nil:
		return OpPickupHook
	case s.Cooldown != nil:
		return OpCooldown
	default:
		return ""
	}
}

func (s Step) arcStep() bool {
	return s.CreateArc != nil || s.AdvanceArc != nil || s.ResolveArc != nil
}

func (s Step) opCount() int {
	n := 0
	for _, set := range []bool{
		s.CreateArc != nil, s.AdvanceArc != nil, s.ResolveArc != nil,
		s.CreateHook != nil, s.PickupHook != nil, s.Cooldown != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Step operation names.
const (
	OpCreateArc  = "create_arc"
	OpAdvanceArc = "advance_arc"
	OpResolveArc = "resolve_arc"
	OpCreateHook = "create_hook"
	OpPickupHook = "pickup_hook"
	OpCooldown   = "cooldown"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "step:" vs "steps:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// SeedRows converts the seed grids to rows, collections sorted by name.
func (s *Scenario) SeedRows() (map[string][]ir.Row, []string, error) {
	names := make([]string, 0, len(s.Seed))
	for name := range s.Seed {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string][]ir.Row, len(s.Seed))
	for _, name := range names {
		grid := s.Seed[name]
		rows := make([]ir.Row, len(grid))
		for i, cells := range grid {
			row := make(ir.Row, len(cells))
			for j, cell := range cells {
				v, err := ir.FromAny(cell)
				if err != nil {
					return nil, nil, fmt.Errorf("seed %s[%d][%d]: %w", name, i, j, err)
				}
				row[j] = v
			}
			rows[i] = row
		}
		out[name] = rows
	}
	return out, names, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Cycles) == 0 {
		return fmt.Errorf("cycles list is required and must be non-empty")
	}
	if s.Settings.ExpiresAfter < 0 {
		return fmt.Errorf("settings.expires_after must be non-negative")
	}
	if s.Settings.MaxIntents < 0 {
		return fmt.Errorf("settings.max_intents must be non-negative")
	}
	if _, _, err := s.SeedRows(); err != nil {
		return err
	}

	seen := make(map[int]bool, len(s.Cycles))
	for i, c := range s.Cycles {
		if c.Cycle < 1 && c.ExpectError == "" {
			return fmt.Errorf("cycles[%d]: cycle must be at least 1", i)
		}
		if seen[c.Cycle] {
			return fmt.Errorf("cycles[%d]: duplicate cycle %d", i, c.Cycle)
		}
		seen[c.Cycle] = true

		if _, err := intent.ParseMode(c.Mode); err != nil {
			return fmt.Errorf("cycles[%d]: %w", i, err)
		}
		for j, step := range c.Steps {
			if err := validateStep(step); err != nil {
				return fmt.Errorf("cycles[%d].steps[%d]: %w", i, j, err)
			}
		}
		for j := range c.Expect {
			if err := validateAssertion(&c.Expect[j]); err != nil {
				return fmt.Errorf("cycles[%d].expect[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

func validateStep(s Step) error {
	switch s.opCount() {
	case 0:
		return fmt.Errorf("no operation set")
	case 1:
	default:
		return fmt.Errorf("more than one operation set")
	}

	switch {
	case s.CreateArc != nil:
		if s.CreateArc.Type == "" && s.CreateArc.ID == "" {
			return fmt.Errorf("%s: type or id is required", OpCreateArc)
		}
	case s.AdvanceArc != nil:
		if s.AdvanceArc.ID == "" {
			return fmt.Errorf("%s: id is required", OpAdvanceArc)
		}
	case s.ResolveArc != nil:
		if s.ResolveArc.ID == "" {
			return fmt.Errorf("%s: id is required", OpResolveArc)
		}
	case s.PickupHook != nil:
		if s.PickupHook.ID == "" {
			return fmt.Errorf("%s: id is required", OpPickupHook)
		}
	case s.Cooldown != nil:
		if s.Cooldown.Domain == "" {
			return fmt.Errorf("%s: domain is required", OpCooldown)
		}
	}
	return nil
}
