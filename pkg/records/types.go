// Package records holds the structured health records produced by the
// extraction functions and the defaults applied to them. It is shared by the
// server and the Go client so both sides normalize identically.
package records

// Placeholder values substituted for missing free-text fields.
const (
	UnknownMedicine       = "Unknown Medicine"
	DefaultInstructions   = "Take as prescribed"
	DefaultReportType     = "General Medical Report"
	DefaultSymptomSummary = "Unable to analyze symptoms"
	MedicalDisclaimer     = "This analysis is informational only and is not a medical diagnosis. Consult a qualified healthcare professional."
)

// DateLayout is the layout of every date field in a record.
const DateLayout = "2006-01-02"

// LabResultItem status values.
const (
	LabStatusNormal   = "Normal"
	LabStatusHigh     = "High"
	LabStatusLow      = "Low"
	LabStatusCritical = "Critical"
)

// ClinicalFinding severity values.
const (
	SeverityMild     = "Mild"
	SeverityModerate = "Moderate"
	SeveritySevere   = "Severe"
)

// SymptomAnalysis severity adds an emergency level on top of the finding scale.
const SeverityEmergency = "Emergency"

// PossibleCondition likelihood values.
const (
	LikelihoodLow    = "Low"
	LikelihoodMedium = "Medium"
	LikelihoodHigh   = "High"
)

// Dosage is the number of units taken at each time of day.
type Dosage struct {
	Morning   float64 `json:"morning"`
	Noon      float64 `json:"noon"`
	Afternoon float64 `json:"afternoon"`
	Night     float64 `json:"night"`
}

type ExtractedMedicine struct {
	MedicationName string `json:"medicationName"`
	Dosage         Dosage `json:"dosage"`
	Instructions   string `json:"instructions"`
	Frequency      string `json:"frequency,omitempty"`
	Duration       string `json:"duration,omitempty"`
}

// ExtractedPrescriptionData is the normalized result of reading a prescription.
// Medicines is never nil once normalized.
type ExtractedPrescriptionData struct {
	DoctorName string              `json:"doctorName"`
	Date       string              `json:"date"`
	Medicines  []ExtractedMedicine `json:"medicines"`
	Notes      string              `json:"notes"`
}

type VitalSigns struct {
	BloodPressure    string `json:"bloodPressure,omitempty"`
	HeartRate        string `json:"heartRate,omitempty"`
	Temperature      string `json:"temperature,omitempty"`
	Weight           string `json:"weight,omitempty"`
	Height           string `json:"height,omitempty"`
	RespiratoryRate  string `json:"respiratoryRate,omitempty"`
	OxygenSaturation string `json:"oxygenSaturation,omitempty"`
}

type LabResultItem struct {
	TestName       string `json:"testName"`
	Value          string `json:"value"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"referenceRange,omitempty"`
	Status         string `json:"status,omitempty"`
}

type ClinicalFinding struct {
	Category string `json:"category"`
	Finding  string `json:"finding,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// UniversalMedicalReport covers lab reports, discharge summaries, imaging
// reports and similar documents.
type UniversalMedicalReport struct {
	ReportType      string            `json:"reportType"`
	PatientName     string            `json:"patientName,omitempty"`
	DoctorName      string            `json:"doctorName,omitempty"`
	HospitalName    string            `json:"hospitalName,omitempty"`
	Date            string            `json:"date,omitempty"`
	VitalSigns      *VitalSigns       `json:"vitalSigns,omitempty"`
	LabResults      []LabResultItem   `json:"labResults,omitempty"`
	Findings        []ClinicalFinding `json:"findings,omitempty"`
	Diagnosis       []string          `json:"diagnosis,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	NextAppointment string            `json:"nextAppointment,omitempty"`
}

type PossibleCondition struct {
	Name        string `json:"name"`
	Likelihood  string `json:"likelihood"`
	Description string `json:"description"`
}

// SymptomAnalysis is the normalized answer to a free-text symptom description.
type SymptomAnalysis struct {
	Summary            string              `json:"summary"`
	PossibleConditions []PossibleCondition `json:"possibleConditions"`
	Severity           string              `json:"severity"`
	Recommendations    []string            `json:"recommendations"`
	SelfCare           []string            `json:"selfCare"`
	WhenToSeeDoctor    string              `json:"whenToSeeDoctor"`
	Disclaimer         string              `json:"disclaimer"`
}
