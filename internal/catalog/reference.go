package catalog

import (
	"fmt"
	"strings"
)

var categoryHeadings = []struct {
	category Category
	heading  string
}{
	{CategoryUrgent, "CATEGORY A (urgent, escalate to staff)"},
	{CategorySemiUrgent, "CATEGORY B (semi-urgent, book within 1-2 weeks)"},
	{CategoryStandard, "CATEGORY C (standard)"},
}

// Reference renders the compact condition table the intake agent reasons
// over: every condition grouped by category, then the routing groups with
// the question to ask before committing to an id.
func (c *Catalog) Reference() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== CONDITION REFERENCE ===\n")

	for _, h := range categoryHeadings {
		fmt.Fprintf(&b, "\n--- %s ---\n", h.heading)
		for _, id := range c.order {
			cond := c.conditions[id]
			if cond.Category != h.category {
				continue
			}
			desc := cond.Description
			if desc == "" {
				desc = cond.Name
			}
			fmt.Fprintf(&b, "  [%d] %s: %s\n", cond.ID, cond.Name, desc)
		}
	}

	if len(c.groups) > 0 {
		b.WriteString("\n=== CONDITION GROUPS (ask the clarifying question before assigning) ===\n")
		for _, g := range c.groups {
			if g.Description != "" {
				fmt.Fprintf(&b, "\n  GROUP: %s (%s)\n", g.Name, g.Description)
			} else {
				fmt.Fprintf(&b, "\n  GROUP: %s\n", g.Name)
			}
			fmt.Fprintf(&b, "  Ask: %q\n", g.ClarifyingQuestion)
			for _, opt := range g.Options {
				fmt.Fprintf(&b, "    - %s -> condition [%d]\n", opt.Label, opt.ConditionID)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
