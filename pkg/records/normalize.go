package records

import (
	"math"
	"strconv"
	"strings"
)

// NormalizePrescription turns a decoded model object into a fully populated
// prescription. Missing or wrong-typed fields get their defaults; it never
// fails. today is used when the prescription carries no date.
func NormalizePrescription(raw map[string]any, today string) ExtractedPrescriptionData {
	out := ExtractedPrescriptionData{
		DoctorName: stringValue(raw["doctorName"]),
		Date:       stringValue(raw["date"]),
		Notes:      stringValue(raw["notes"]),
		Medicines:  []ExtractedMedicine{},
	}
	if out.Date == "" {
		out.Date = today
	}

	items, _ := raw["medicines"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.Medicines = append(out.Medicines, normalizeMedicine(m))
	}
	return out
}

func normalizeMedicine(m map[string]any) ExtractedMedicine {
	med := ExtractedMedicine{
		MedicationName: stringValue(m["medicationName"]),
		Instructions:   stringValue(m["instructions"]),
		Frequency:      stringValue(m["frequency"]),
		Duration:       stringValue(m["duration"]),
	}
	if med.MedicationName == "" {
		med.MedicationName = UnknownMedicine
	}
	if med.Instructions == "" {
		med.Instructions = DefaultInstructions
	}
	if d, ok := m["dosage"].(map[string]any); ok {
		med.Dosage = Dosage{
			Morning:   numberValue(d["morning"]),
			Noon:      numberValue(d["noon"]),
			Afternoon: numberValue(d["afternoon"]),
			Night:     numberValue(d["night"]),
		}
	}
	return med
}

// NormalizeSymptomAnalysis fills every field of a symptom analysis, clamping
// severity and likelihood to their known values.
func NormalizeSymptomAnalysis(raw map[string]any) SymptomAnalysis {
	out := SymptomAnalysis{
		Summary:            stringValue(raw["summary"]),
		Severity:           oneOf(stringValue(raw["severity"]), SeverityModerate, SeverityMild, SeverityModerate, SeveritySevere, SeverityEmergency),
		Recommendations:    stringList(raw["recommendations"]),
		SelfCare:           stringList(raw["selfCare"]),
		WhenToSeeDoctor:    stringValue(raw["whenToSeeDoctor"]),
		Disclaimer:         stringValue(raw["disclaimer"]),
		PossibleConditions: []PossibleCondition{},
	}
	if out.Summary == "" {
		out.Summary = DefaultSymptomSummary
	}
	if out.Disclaimer == "" {
		out.Disclaimer = MedicalDisclaimer
	}

	items, _ := raw["possibleConditions"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := stringValue(m["name"])
		if name == "" {
			continue
		}
		out.PossibleConditions = append(out.PossibleConditions, PossibleCondition{
			Name:        name,
			Likelihood:  oneOf(stringValue(m["likelihood"]), LikelihoodMedium, LikelihoodLow, LikelihoodMedium, LikelihoodHigh),
			Description: stringValue(m["description"]),
		})
	}
	return out
}

// stringValue returns v as a trimmed string. Numbers are formatted; every
// other type yields "".
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// numberValue accepts JSON numbers and numeric strings; anything else is 0.
// ParseFloat also accepts "NaN" and "Inf", which JSON cannot carry, so
// non-finite results are 0 too.
func numberValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func stringList(v any) []string {
	out := []string{}
	items, _ := v.([]any)
	for _, item := range items {
		if s := stringValue(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// oneOf matches s case-insensitively against allowed and returns the
// canonical spelling, or fallback when nothing matches.
func oneOf(s, fallback string, allowed ...string) string {
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return a
		}
	}
	return fallback
}
