package records

import (
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return m
}

func TestNormalizePrescription_Defaults(t *testing.T) {
	raw := decode(t, `{"medicines":[{"medicationName":"Paracetamol 500mg","dosage":{"morning":1,"night":1},"instructions":"After food"}]}`)

	got := NormalizePrescription(raw, "2024-05-01")

	if got.DoctorName != "" || got.Notes != "" {
		t.Errorf("expected empty doctorName and notes, got %q %q", got.DoctorName, got.Notes)
	}
	if got.Date != "2024-05-01" {
		t.Errorf("expected today's date, got %q", got.Date)
	}
	if len(got.Medicines) != 1 {
		t.Fatalf("expected 1 medicine, got %d", len(got.Medicines))
	}
	med := got.Medicines[0]
	want := Dosage{Morning: 1, Noon: 0, Afternoon: 0, Night: 1}
	if med.Dosage != want {
		t.Errorf("dosage = %+v, want %+v", med.Dosage, want)
	}
	if med.Frequency != "" || med.Duration != "" {
		t.Errorf("expected frequency and duration absent, got %q %q", med.Frequency, med.Duration)
	}

	b, _ := json.Marshal(med)
	var out map[string]any
	json.Unmarshal(b, &out)
	if _, ok := out["frequency"]; ok {
		t.Error("frequency should be omitted from JSON")
	}
	if _, ok := out["duration"]; ok {
		t.Error("duration should be omitted from JSON")
	}
}

func TestNormalizePrescription_MedicinesNotArray(t *testing.T) {
	got := NormalizePrescription(decode(t, `{"doctorName":"Dr. Rao","medicines":"none"}`), "2024-05-01")
	if got.Medicines == nil || len(got.Medicines) != 0 {
		t.Fatalf("expected empty non-nil medicines, got %#v", got.Medicines)
	}
	if got.DoctorName != "Dr. Rao" {
		t.Errorf("unexpected doctorName %q", got.DoctorName)
	}

	b, _ := json.Marshal(got)
	if !strings.Contains(string(b), `"medicines":[]`) {
		t.Errorf("expected medicines to marshal as [], got %s", b)
	}
}

func TestNormalizePrescription_SkipsNonObjectEntries(t *testing.T) {
	raw := decode(t, `{"medicines":["aspirin",{"dosage":{"noon":"2","night":"x"}},null]}`)
	got := NormalizePrescription(raw, "2024-05-01")
	if len(got.Medicines) != 1 {
		t.Fatalf("expected 1 medicine, got %d", len(got.Medicines))
	}
	med := got.Medicines[0]
	if med.MedicationName != UnknownMedicine {
		t.Errorf("expected placeholder name, got %q", med.MedicationName)
	}
	if med.Instructions != DefaultInstructions {
		t.Errorf("expected default instructions, got %q", med.Instructions)
	}
	if med.Dosage.Noon != 2 {
		t.Errorf("expected numeric string to parse, got %v", med.Dosage.Noon)
	}
	if med.Dosage.Night != 0 {
		t.Errorf("expected unparsable dosage to be 0, got %v", med.Dosage.Night)
	}
}

func TestNormalizePrescription_NonFiniteDosage(t *testing.T) {
	raw := decode(t, `{"medicines":[{"medicationName":"Metformin","dosage":{"morning":"NaN","noon":"Inf","afternoon":"-infinity","night":" 1 "}}]}`)
	got := NormalizePrescription(raw, "2024-05-01")

	want := Dosage{Night: 1}
	if got.Medicines[0].Dosage != want {
		t.Errorf("dosage = %+v, want %+v", got.Medicines[0].Dosage, want)
	}
	if _, err := json.Marshal(got); err != nil {
		t.Fatalf("normalized prescription must encode: %v", err)
	}
}

func TestNormalizePrescription_KeepsProvidedFields(t *testing.T) {
	raw := decode(t, `{"doctorName":" Dr. A ","date":"2023-12-31","notes":"review in 2 weeks","medicines":[
		{"medicationName":"Amoxicillin","dosage":{"morning":1,"noon":1,"afternoon":0.5,"night":1},"instructions":"With water","frequency":"TID","duration":"5 days"}]}`)
	got := NormalizePrescription(raw, "2024-05-01")

	if got.DoctorName != "Dr. A" {
		t.Errorf("expected trimmed doctorName, got %q", got.DoctorName)
	}
	if got.Date != "2023-12-31" {
		t.Errorf("expected provided date, got %q", got.Date)
	}
	med := got.Medicines[0]
	if med.Frequency != "TID" || med.Duration != "5 days" {
		t.Errorf("unexpected frequency/duration %q %q", med.Frequency, med.Duration)
	}
	if med.Dosage.Afternoon != 0.5 {
		t.Errorf("expected fractional dosage, got %v", med.Dosage.Afternoon)
	}
}

func TestNormalizeSymptomAnalysis(t *testing.T) {
	raw := decode(t, `{"severity":"severe","possibleConditions":[
		{"name":"Migraine","likelihood":"high","description":"throbbing"},
		{"name":"Tension headache","likelihood":"sometimes"},
		{"likelihood":"Low"},
		"flu"],
		"recommendations":["rest","",3],"selfCare":"water"}`)

	got := NormalizeSymptomAnalysis(raw)

	if got.Severity != SeveritySevere {
		t.Errorf("severity = %q", got.Severity)
	}
	if got.Summary != DefaultSymptomSummary {
		t.Errorf("summary = %q", got.Summary)
	}
	if got.Disclaimer != MedicalDisclaimer {
		t.Errorf("disclaimer = %q", got.Disclaimer)
	}
	if len(got.PossibleConditions) != 2 {
		t.Fatalf("expected 2 conditions, got %+v", got.PossibleConditions)
	}
	if got.PossibleConditions[0].Likelihood != LikelihoodHigh {
		t.Errorf("likelihood = %q", got.PossibleConditions[0].Likelihood)
	}
	if got.PossibleConditions[1].Likelihood != LikelihoodMedium {
		t.Errorf("expected unknown likelihood to default to Medium, got %q", got.PossibleConditions[1].Likelihood)
	}
	if len(got.Recommendations) != 2 || got.Recommendations[0] != "rest" || got.Recommendations[1] != "3" {
		t.Errorf("recommendations = %v", got.Recommendations)
	}
	if got.SelfCare == nil || len(got.SelfCare) != 0 {
		t.Errorf("expected empty selfCare, got %#v", got.SelfCare)
	}
}

func TestNormalizeSymptomAnalysis_UnknownSeverity(t *testing.T) {
	got := NormalizeSymptomAnalysis(decode(t, `{"severity":"catastrophic","summary":"Likely a cold"}`))
	if got.Severity != SeverityModerate {
		t.Errorf("expected Moderate, got %q", got.Severity)
	}
	if got.Summary != "Likely a cold" {
		t.Errorf("summary = %q", got.Summary)
	}
}
