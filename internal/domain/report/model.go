package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/medvault/pkg/records"
)

// ReportTypePrescription is the report_type of rows holding a prescription.
const ReportTypePrescription = "prescription"

// MedicalReport maps to the medical_reports table. ExtractedData holds the
// full record as stored; the other columns are copied out of it for listing.
type MedicalReport struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	FamilyMemberID *uuid.UUID      `db:"family_member_id" json:"family_member_id,omitempty"`
	ImageURL       *string         `db:"image_url" json:"image_url,omitempty"`
	ReportType     string          `db:"report_type" json:"report_type"`
	PatientName    *string         `db:"patient_name" json:"patient_name,omitempty"`
	DoctorName     *string         `db:"doctor_name" json:"doctor_name,omitempty"`
	HospitalName   *string         `db:"hospital_name" json:"hospital_name,omitempty"`
	ReportDate     *string         `db:"report_date" json:"report_date,omitempty"`
	ExtractedData  json.RawMessage `db:"extracted_data" json:"extracted_data"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// SaveInput is the body of a save request. Exactly one of Prescription and
// Report must be set.
type SaveInput struct {
	FamilyMemberID *uuid.UUID                         `json:"familyMemberId,omitempty"`
	ImageURL       string                             `json:"imageUrl,omitempty"`
	ReportType     string                             `json:"reportType,omitempty"`
	Prescription   *records.ExtractedPrescriptionData `json:"prescription,omitempty"`
	Report         *records.UniversalMedicalReport    `json:"report,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
