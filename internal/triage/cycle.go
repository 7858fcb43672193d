package triage

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/wolfman30/gyn-triage/internal/catalog"
)

const (
	noCycleConstraintMessage = "No cycle constraint for this procedure."
	inductionMessage         = "Patient has no regular cycle. The doctor may prescribe a 10 day hormone course to induce a period. " +
		"The booking window can be calculated 2-4 days after completing the course."
)

// CycleRange is an irregular cycle given as shortest and longest length in days.
type CycleRange struct {
	Min int
	Max int
}

// CycleOptions tunes a single window computation.
type CycleOptions struct {
	// CycleLength defaults to 28 when zero or negative.
	CycleLength int
	// Range, when both ends are positive, replaces CycleLength for rolling a
	// passed window forward and marks the result approximate.
	Range   *CycleRange
	NoCycle bool
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// CycleResult is the outcome of a window computation.
type CycleResult struct {
	CycleDependent     bool       `json:"cycle_dependent"`
	NoCycle            bool       `json:"no_cycle,omitempty"`
	RecommendInduction bool       `json:"recommend_induction,omitempty"`
	WindowPassed       bool       `json:"window_passed,omitempty"`
	Approximate        bool       `json:"approximate,omitempty"`
	Window             *DateRange `json:"window,omitempty"`
	Message            string     `json:"message"`
}

// CycleCalculator computes booking windows relative to a patient's last
// period. The zero value uses the wall clock in UTC.
type CycleCalculator struct {
	Now      func() time.Time
	Location *time.Location
}

// Today returns the current calendar date in the calculator's location.
func (c CycleCalculator) Today() civil.Date {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(now().In(loc))
}

// Compute returns the window in which cond can be booked for a patient whose
// last period started on lastPeriod.
func (c CycleCalculator) Compute(lastPeriod civil.Date, cond catalog.Condition, opts CycleOptions) CycleResult {
	if cond.Cycle == nil {
		return CycleResult{Message: noCycleConstraintMessage}
	}
	if opts.NoCycle {
		return CycleResult{
			CycleDependent:     true,
			NoCycle:            true,
			RecommendInduction: true,
			Message:            inductionMessage,
		}
	}

	length := opts.CycleLength
	if length <= 0 {
		length = DefaultCycleLength
	}
	rule := *cond.Cycle

	if rule.BeforeNextPeriod {
		next := lastPeriod.AddDays(length)
		window := DateRange{Start: next.AddDays(-3), End: next.AddDays(-1)}
		return CycleResult{
			CycleDependent: true,
			Window:         &window,
			Message:        "Best scheduled just before next period: " + formatRange(window),
		}
	}

	window := DateRange{
		Start: lastPeriod.AddDays(rule.StartDay - 1),
		End:   lastPeriod.AddDays(rule.EndDay - 1),
	}
	today := c.Today()
	if !window.End.Before(today) {
		return CycleResult{
			CycleDependent: true,
			Window:         &window,
			Message: fmt.Sprintf("Valid booking window: %s (cycle days %d-%d)",
				formatRange(window), rule.StartDay, rule.EndDay),
		}
	}

	// The window has passed; project it onto the next cycle. An irregular
	// range widens it from the shortest to the longest cycle.
	shortest, longest, approximate := length, length, false
	if r := opts.Range; r != nil && r.Min > 0 && r.Max > 0 {
		shortest, longest, approximate = r.Min, r.Max, true
		if longest < shortest {
			shortest, longest = longest, shortest
		}
	}
	next := DateRange{
		Start: lastPeriod.AddDays(shortest + rule.StartDay - 1),
		End:   lastPeriod.AddDays(longest + rule.EndDay - 1),
	}

	msg := "This cycle's window has passed. Next window: " + formatRange(next)
	if approximate {
		msg = "This cycle's window has passed. Next window (approximate due to irregular cycle): " + formatRange(next)
	}
	return CycleResult{
		CycleDependent: true,
		WindowPassed:   true,
		Approximate:    approximate,
		Window:         &next,
		Message:        msg,
	}
}

// formatRange renders month/day granularity, e.g. "Mar 05 - Mar 10".
func formatRange(r DateRange) string {
	return formatDay(r.Start) + " - " + formatDay(r.End)
}

func formatDay(d civil.Date) string {
	return fmt.Sprintf("%s %02d", d.Month.String()[:3], d.Day)
}
