package triage

import (
	"strings"

	"github.com/wolfman30/gyn-triage/internal/catalog"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

const inductionNote = "Patient has no regular cycle. The doctor may prescribe a hormone course to induce a period before booking."

// DataQualityObserver is notified when a submission references a condition
// the catalog does not know.
type DataQualityObserver interface {
	ObserveUnknownCondition(conditionID int)
}

// Enricher turns an accepted intake record into a booking packet.
type Enricher struct {
	catalog  *catalog.Catalog
	cycles   CycleCalculator
	logger   *logging.Logger
	observer DataQualityObserver
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithDataQualityObserver reports unknown condition ids to o.
func WithDataQualityObserver(o DataQualityObserver) EnricherOption {
	return func(e *Enricher) {
		e.observer = o
	}
}

// NewEnricher wires an enricher to the catalog and cycle calculator.
func NewEnricher(cat *catalog.Catalog, cycles CycleCalculator, logger *logging.Logger, opts ...EnricherOption) *Enricher {
	if cat == nil {
		panic("triage: catalog cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Enricher{catalog: cat, cycles: cycles, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich derives the booking requirements for rec. A missing or unknown
// condition yields a packet with nothing but the intake; that is a data
// quality problem, not an error, because escalation is decided earlier.
func (e *Enricher) Enrich(rec IntakeRecord) BookingPacket {
	packet := BookingPacket{Triage: rec}
	if rec.ConditionID == nil {
		return packet
	}
	cond, ok := e.catalog.Lookup(*rec.ConditionID)
	if !ok {
		e.logger.Warn("intake references unknown condition", "condition_id", *rec.ConditionID, "catalog", e.catalog.Source())
		if e.observer != nil {
			e.observer.ObserveUnknownCondition(*rec.ConditionID)
		}
		return packet
	}

	if cond.Cycle != nil {
		packet.CycleDependent = true
		switch {
		case rec.NoPeriods:
			packet.RecommendInduction = true
			packet.Notes = stringPtr(inductionNote)
		case rec.LastPeriodDate != nil:
			res := e.cycles.Compute(*rec.LastPeriodDate, cond, CycleOptions{CycleLength: rec.CycleLengthOrDefault()})
			packet.ValidBookingWindow = stringPtr(res.Message)
			packet.RecommendInduction = res.RecommendInduction
		}
	}

	if LabRequired(cond.Lab, rec.PatientAge) {
		packet.LabRequired = true
		packet.LabDetails = stringPtr(labDetails(cond.Lab))
	}

	if len(cond.Questionnaires) > 0 {
		packet.Questionnaire = stringPtr(strings.Join(cond.Questionnaires, ", "))
	}
	if cond.PartnerQuestionnaire != "" {
		packet.PartnerQuestionnaire = stringPtr(cond.PartnerQuestionnaire)
	}
	if cond.GuidanceDocument != "" {
		packet.GuidanceDocument = stringPtr(cond.GuidanceDocument)
	}

	if rec.HasReferral != nil && !*rec.HasReferral {
		packet.SelfPay = true
		if cond.HasSelfPayPrice() {
			price := *cond.SelfPayPrice
			packet.SelfPayPrice = &price
		}
	}

	return packet
}

// LabRequired applies a lab rule to the patient's age. An unknown age gets
// the lab.
func LabRequired(rule *catalog.LabRule, age *int) bool {
	if rule == nil {
		return false
	}
	switch rule.Condition {
	case catalog.LabAgeUnder30:
		return age == nil || *age < 30
	case catalog.LabAgeUnder45:
		return age == nil || *age < 45
	default:
		return true
	}
}

func labDetails(rule *catalog.LabRule) string {
	tests := strings.Join(rule.Tests, ", ")
	switch {
	case tests == "":
		return rule.Description
	case rule.Description == "":
		return tests
	default:
		return tests + ". " + rule.Description
	}
}

func stringPtr(s string) *string {
	return &s
}
