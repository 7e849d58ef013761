package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/apierr"
	"github.com/medvault/medvault/pkg/records"
)

const opSave = "save-medical-report"

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "report").Logger()}
}

// Save packs the record and its foreign keys into one row and inserts it.
// A store failure is returned as a persistence error; nothing is retried.
func (s *Service) Save(ctx context.Context, userID uuid.UUID, in SaveInput) (*MedicalReport, error) {
	if userID == uuid.Nil {
		return nil, apierr.Input(opSave, "user_id is required")
	}
	if (in.Prescription == nil) == (in.Report == nil) {
		return nil, apierr.Input(opSave, "Provide either prescription or report")
	}

	m := &MedicalReport{
		UserID:         userID,
		FamilyMemberID: in.FamilyMemberID,
		ImageURL:       optional(in.ImageURL),
	}

	var record any
	if p := in.Prescription; p != nil {
		if p.Medicines == nil {
			p.Medicines = []records.ExtractedMedicine{}
		}
		m.ReportType = ReportTypePrescription
		m.DoctorName = optional(p.DoctorName)
		m.ReportDate = optional(p.Date)
		record = p
	} else {
		r := in.Report
		if r.ReportType == "" {
			r.ReportType = records.DefaultReportType
		}
		m.ReportType = r.ReportType
		m.PatientName = optional(r.PatientName)
		m.DoctorName = optional(r.DoctorName)
		m.HospitalName = optional(r.HospitalName)
		m.ReportDate = optional(r.Date)
		record = r
	}
	if in.ReportType != "" {
		m.ReportType = in.ReportType
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, &apierr.Error{Kind: apierr.KindInput, Op: opSave, Err: fmt.Errorf("encode record: %w", err)}
	}
	m.ExtractedData = data

	if err := s.repo.Create(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("insert medical report failed")
		return nil, &apierr.Error{Kind: apierr.KindPersistence, Op: opSave, Err: err}
	}
	s.logger.Info().Str("id", m.ID.String()).Str("report_type", m.ReportType).Msg("medical report saved")
	return m, nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*MedicalReport, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, familyMemberID *uuid.UUID, limit, offset int) ([]*MedicalReport, int, error) {
	return s.repo.List(ctx, userID, familyMemberID, limit, offset)
}
