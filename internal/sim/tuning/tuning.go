package tuning

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Trade     Trade          `yaml:"trade"`
	Inventory Inventory      `yaml:"inventory"`
	Agents    []StarterAgent `yaml:"agents"`
}

type Trade struct {
	MarginPercentage     float64 `yaml:"margin_percentage"`
	AcceptProbabilityPct int     `yaml:"accept_probability_pct"`
}

type Inventory struct {
	Slots    int `yaml:"slots"`
	MaxStack int `yaml:"max_stack"`
}

// StarterAgent seeds one agent's inventory on a fresh world.
type StarterAgent struct {
	ID    string         `yaml:"id"`
	Name  string         `yaml:"name"`
	Items map[string]int `yaml:"items"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Trade: Trade{
			MarginPercentage:     20,
			AcceptProbabilityPct: 50,
		},
		Inventory: Inventory{
			Slots:    40,
			MaxStack: 99,
		},
	}
}

// Load overlays the file on Defaults(); keys absent from the file keep their
// default, explicit zeros are kept as written.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Trade.MarginPercentage < 0 {
		return fmt.Errorf("trade.margin_percentage must be >= 0")
	}
	if t.Trade.AcceptProbabilityPct < 0 || t.Trade.AcceptProbabilityPct > 100 {
		return fmt.Errorf("trade.accept_probability_pct must be in [0,100]")
	}
	if t.Inventory.Slots <= 0 {
		return fmt.Errorf("inventory.slots must be > 0")
	}
	if t.Inventory.MaxStack <= 0 {
		return fmt.Errorf("inventory.max_stack must be > 0")
	}
	seen := map[string]bool{}
	for _, a := range t.Agents {
		if a.ID == "" {
			return fmt.Errorf("agents: empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("agents: duplicate id %s", a.ID)
		}
		seen[a.ID] = true
		for item, n := range a.Items {
			if item == "" || n <= 0 {
				return fmt.Errorf("agents: %s: bad item entry %q=%d", a.ID, item, n)
			}
		}
	}
	return nil
}

// SortedItems returns the starter items of a in a stable order.
func (a StarterAgent) SortedItems() []string {
	keys := make([]string, 0, len(a.Items))
	for k := range a.Items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
