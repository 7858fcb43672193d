package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed conditions.yaml
var defaultFS embed.FS

const defaultFile = "conditions.yaml"

// ConfigError reports a catalog that cannot be loaded. It is fatal at startup.
type ConfigError struct {
	Source      string
	ConditionID int // zero when the problem is not tied to one entry
	Err         error
}

func (e *ConfigError) Error() string {
	if e.ConditionID != 0 {
		return fmt.Sprintf("catalog: %s: condition %d: %v", e.Source, e.ConditionID, e.Err)
	}
	return fmt.Sprintf("catalog: %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrDuplicateID is wrapped by ConfigError when two entries share an id.
var ErrDuplicateID = errors.New("duplicate condition id")

// LoadDefault parses the catalog compiled into the binary.
func LoadDefault() (*Catalog, error) {
	data, err := defaultFS.ReadFile(defaultFile)
	if err != nil {
		return nil, &ConfigError{Source: "embedded:" + defaultFile, Err: err}
	}
	return Load(bytes.NewReader(data), "embedded:"+defaultFile)
}

// LoadFile parses the catalog at path. An empty path loads the embedded default.
func LoadFile(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefault()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	defer f.Close()
	return Load(f, path)
}

// Load parses a YAML catalog document read from r.
func Load(r io.Reader, source string) (*Catalog, error) {
	var doc catalogDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty document")
		}
		return nil, &ConfigError{Source: source, Err: err}
	}
	if len(doc.Conditions) == 0 {
		return nil, &ConfigError{Source: source, Err: errors.New("no conditions defined")}
	}

	cat := &Catalog{
		source:     source,
		conditions: make(map[int]Condition, len(doc.Conditions)),
		order:      make([]int, 0, len(doc.Conditions)),
		staff:      make(map[string]string, len(doc.Staff)),
	}

	for i, raw := range doc.Conditions {
		cond, err := raw.toCondition()
		if err != nil {
			id := 0
			if raw.ID != nil {
				id = *raw.ID
			}
			if id == 0 {
				err = fmt.Errorf("entry %d: %w", i+1, err)
			}
			return nil, &ConfigError{Source: source, ConditionID: id, Err: err}
		}
		if _, dup := cat.conditions[cond.ID]; dup {
			return nil, &ConfigError{Source: source, ConditionID: cond.ID, Err: ErrDuplicateID}
		}
		cat.conditions[cond.ID] = cond
		cat.order = append(cat.order, cond.ID)
	}

	for _, g := range doc.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return nil, &ConfigError{Source: source, Err: errors.New("routing group without a name")}
		}
		for _, opt := range g.Options {
			if _, ok := cat.conditions[opt.ConditionID]; !ok {
				return nil, &ConfigError{
					Source:      source,
					ConditionID: opt.ConditionID,
					Err:         fmt.Errorf("routing group %q references unknown condition", g.Name),
				}
			}
		}
		cat.groups = append(cat.groups, g)
	}

	for _, s := range doc.Staff {
		code := strings.TrimSpace(s.Code)
		if code == "" {
			return nil, &ConfigError{Source: source, Err: errors.New("staff entry without a code")}
		}
		cat.staff[code] = strings.TrimSpace(s.Name)
	}

	return cat, nil
}

type catalogDoc struct {
	Conditions []conditionDoc `yaml:"conditions"`
	Groups     []RoutingGroup `yaml:"condition_groups"`
	Staff      []staffDoc     `yaml:"staff"`
}

type staffDoc struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type conditionDoc struct {
	ID                   *int       `yaml:"id"`
	Name                 string     `yaml:"name"`
	Description          string     `yaml:"description"`
	Category             string     `yaml:"category"`
	Doctor               string     `yaml:"doctor"`
	Duration             int        `yaml:"duration"`
	PriorityWindow       string     `yaml:"priority_window"`
	RoutingQuestion      string     `yaml:"routing_question"`
	CycleDays            *CycleRule `yaml:"cycle_days"`
	Lab                  *labDoc    `yaml:"lab"`
	Questionnaires       []string   `yaml:"questionnaires"`
	PartnerQuestionnaire string     `yaml:"partner_questionnaire"`
	GuidanceDocument     string     `yaml:"guidance_document"`
	SelfPayPrice         *float64   `yaml:"self_pay_price"`
}

type labDoc struct {
	Condition   string     `yaml:"condition"`
	Test        stringList `yaml:"test"`
	Tests       stringList `yaml:"tests"`
	Description string     `yaml:"description"`
}

func (d conditionDoc) toCondition() (Condition, error) {
	if d.ID == nil {
		return Condition{}, errors.New("missing id")
	}
	if *d.ID <= 0 {
		return Condition{}, fmt.Errorf("id must be positive, got %d", *d.ID)
	}
	if strings.TrimSpace(d.Name) == "" {
		return Condition{}, errors.New("missing name")
	}
	category := Category(strings.ToUpper(strings.TrimSpace(d.Category)))
	if !category.Valid() {
		return Condition{}, fmt.Errorf("invalid category %q", d.Category)
	}
	if d.Duration < 0 {
		return Condition{}, fmt.Errorf("negative duration %d", d.Duration)
	}
	if d.SelfPayPrice != nil && *d.SelfPayPrice < 0 {
		return Condition{}, fmt.Errorf("negative self_pay_price %v", *d.SelfPayPrice)
	}

	cond := Condition{
		ID:                   *d.ID,
		Name:                 strings.TrimSpace(d.Name),
		Description:          strings.TrimSpace(d.Description),
		Category:             category,
		Doctor:               strings.TrimSpace(d.Doctor),
		Duration:             d.Duration,
		PriorityWindow:       strings.TrimSpace(d.PriorityWindow),
		RoutingQuestion:      strings.TrimSpace(d.RoutingQuestion),
		Questionnaires:       compact(d.Questionnaires),
		PartnerQuestionnaire: strings.TrimSpace(d.PartnerQuestionnaire),
		GuidanceDocument:     strings.TrimSpace(d.GuidanceDocument),
		SelfPayPrice:         d.SelfPayPrice,
	}

	if d.CycleDays != nil {
		rule := *d.CycleDays
		if !rule.BeforeNextPeriod && (rule.StartDay < 1 || rule.EndDay < rule.StartDay) {
			return Condition{}, fmt.Errorf("invalid cycle_days [%d, %d]", rule.StartDay, rule.EndDay)
		}
		cond.Cycle = &rule
	}

	if d.Lab != nil {
		kind := LabCondition(strings.TrimSpace(d.Lab.Condition))
		if kind == "" {
			kind = LabAlways
		}
		if !kind.Valid() {
			return Condition{}, fmt.Errorf("invalid lab condition %q", d.Lab.Condition)
		}
		tests := compact(append(append([]string{}, d.Lab.Test...), d.Lab.Tests...))
		cond.Lab = &LabRule{
			Condition:   kind,
			Tests:       tests,
			Description: strings.TrimSpace(d.Lab.Description),
		}
	}

	return cond, nil
}

// UnmarshalYAML accepts either a [start, end] pair or the next-period marker.
func (r *CycleRule) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if strings.TrimSpace(node.Value) != MarkerBeforeNextPeriod {
			return fmt.Errorf("line %d: unknown cycle_days marker %q", node.Line, node.Value)
		}
		*r = CycleRule{BeforeNextPeriod: true}
		return nil
	case yaml.SequenceNode:
		var pair []int
		if err := node.Decode(&pair); err != nil {
			return fmt.Errorf("line %d: cycle_days: %w", node.Line, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: cycle_days needs exactly two days, got %d", node.Line, len(pair))
		}
		*r = CycleRule{StartDay: pair[0], EndDay: pair[1]}
		return nil
	default:
		return fmt.Errorf("line %d: cycle_days must be a pair or %q", node.Line, MarkerBeforeNextPeriod)
	}
}

// MarshalJSON mirrors the catalog notation: a day pair or the marker string.
func (r CycleRule) MarshalJSON() ([]byte, error) {
	if r.BeforeNextPeriod {
		return json.Marshal(MarkerBeforeNextPeriod)
	}
	return json.Marshal([2]int{r.StartDay, r.EndDay})
}

// stringList decodes a YAML scalar or sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or list of strings", node.Line)
	}
}

func compact(items []string) []string {
	var out []string
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
