// Package catalog holds the clinic's condition reference table: every
// reason-for-visit the intake agent can resolve to, with the routing metadata
// (staff, duration, category) and the booking rules (cycle timing, labs,
// questionnaires, self-pay price) the triage engine derives packets from.
//
// A Catalog is loaded once at process start and is read-only afterwards, so a
// single *Catalog is shared by every conversation without locking.
package catalog

import (
	"fmt"
	"strings"
)

// Category is the urgency tier of a condition.
type Category string

const (
	CategoryUrgent     Category = "A"
	CategorySemiUrgent Category = "B"
	CategoryStandard   Category = "C"
)

// Valid reports whether c is one of the known tiers.
func (c Category) Valid() bool {
	switch c {
	case CategoryUrgent, CategorySemiUrgent, CategoryStandard:
		return true
	}
	return false
}

// MarkerBeforeNextPeriod is the cycle_days literal for procedures scheduled
// just before the patient's next expected period.
const MarkerBeforeNextPeriod = "just_before_next_period"

// CycleRule describes when in the menstrual cycle a procedure can be booked.
// Either BeforeNextPeriod is set, or StartDay/EndDay hold 1-indexed cycle days.
type CycleRule struct {
	StartDay         int
	EndDay           int
	BeforeNextPeriod bool
}

func (r CycleRule) String() string {
	if r.BeforeNextPeriod {
		return MarkerBeforeNextPeriod
	}
	return fmt.Sprintf("cycle days %d-%d", r.StartDay, r.EndDay)
}

// LabCondition selects when a lab test is required.
type LabCondition string

const (
	LabAlways     LabCondition = "always"
	LabAgeUnder30 LabCondition = "age_under_30"
	LabAgeUnder45 LabCondition = "age_under_45"
)

// Valid reports whether c is a known lab rule kind.
func (c LabCondition) Valid() bool {
	switch c {
	case LabAlways, LabAgeUnder30, LabAgeUnder45:
		return true
	}
	return false
}

// LabRule is a condition's lab requirement.
type LabRule struct {
	Condition   LabCondition `json:"condition"`
	Tests       []string     `json:"tests,omitempty"`
	Description string       `json:"description,omitempty"`
}

// Condition is one immutable catalog entry.
type Condition struct {
	ID                   int        `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description,omitempty"`
	Category             Category   `json:"category"`
	Doctor               string     `json:"doctor,omitempty"`
	Duration             int        `json:"duration,omitempty"`
	PriorityWindow       string     `json:"priority_window,omitempty"`
	RoutingQuestion      string     `json:"routing_question,omitempty"`
	Cycle                *CycleRule `json:"cycle_days,omitempty"`
	Lab                  *LabRule   `json:"lab,omitempty"`
	Questionnaires       []string   `json:"questionnaires,omitempty"`
	PartnerQuestionnaire string     `json:"partner_questionnaire,omitempty"`
	GuidanceDocument     string     `json:"guidance_document,omitempty"`
	SelfPayPrice         *float64   `json:"self_pay_price,omitempty"`
}

// HasSelfPayPrice reports whether the catalog defines a usable price.
func (c Condition) HasSelfPayPrice() bool {
	return c.SelfPayPrice != nil && *c.SelfPayPrice > 0
}

// RoutingOption maps a clarifying answer to a condition.
type RoutingOption struct {
	Label       string `json:"label" yaml:"label"`
	ConditionID int    `json:"condition_id" yaml:"condition_id"`
}

// RoutingGroup is a set of look-alike conditions the agent disambiguates with
// one clarifying question before it commits to a condition id.
type RoutingGroup struct {
	Name               string          `json:"group" yaml:"group"`
	Description        string          `json:"description,omitempty" yaml:"description"`
	ClarifyingQuestion string          `json:"clarifying_question" yaml:"clarifying_question"`
	Options            []RoutingOption `json:"options" yaml:"options"`
}

// Catalog is the loaded, indexed condition table.
type Catalog struct {
	source     string
	conditions map[int]Condition
	order      []int
	groups     []RoutingGroup
	staff      map[string]string
}

// Source names where the catalog was loaded from.
func (c *Catalog) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

// Lookup returns the condition with the given id. The returned value shares
// slices with the catalog and must be treated as read-only.
func (c *Catalog) Lookup(id int) (Condition, bool) {
	if c == nil {
		return Condition{}, false
	}
	cond, ok := c.conditions[id]
	return cond, ok
}

// Len returns the number of conditions.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Conditions returns every condition in file order.
func (c *Catalog) Conditions() []Condition {
	if c == nil {
		return nil
	}
	out := make([]Condition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.conditions[id])
	}
	return out
}

// Groups returns the routing groups in file order.
func (c *Catalog) Groups() []RoutingGroup {
	if c == nil {
		return nil
	}
	out := make([]RoutingGroup, len(c.groups))
	copy(out, c.groups)
	return out
}

// StaffName resolves a staff code to its display name, or returns the code.
func (c *Catalog) StaffName(code string) string {
	code = strings.TrimSpace(code)
	if c == nil || code == "" {
		return code
	}
	if name, ok := c.staff[code]; ok && name != "" {
		return name
	}
	return code
}
