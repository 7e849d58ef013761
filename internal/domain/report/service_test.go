package report

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/apierr"
	"github.com/medvault/medvault/pkg/records"
)

// memRepo is an in-memory Repository.
type memRepo struct {
	mu      sync.Mutex
	rows    []*MedicalReport
	failErr error
}

func (r *memRepo) Create(_ context.Context, m *MedicalReport) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now().Add(time.Duration(len(r.rows)) * time.Second)
	cp := *m
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*MedicalReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID == id && m.UserID == userID {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) List(_ context.Context, userID uuid.UUID, familyMemberID *uuid.UUID, limit, offset int) ([]*MedicalReport, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*MedicalReport
	for _, m := range r.rows {
		if m.UserID != userID {
			continue
		}
		if familyMemberID != nil && (m.FamilyMemberID == nil || *m.FamilyMemberID != *familyMemberID) {
			continue
		}
		matched = append(matched, m)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func samplePrescription() *records.ExtractedPrescriptionData {
	return &records.ExtractedPrescriptionData{
		DoctorName: "Dr. Rao",
		Date:       "2024-05-01",
		Medicines: []records.ExtractedMedicine{{
			MedicationName: "Paracetamol 500mg",
			Dosage:         records.Dosage{Morning: 1, Night: 1},
			Instructions:   "After food",
		}},
	}
}

func TestService_SavePrescription(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, zerolog.Nop())
	userID := uuid.New()

	m, err := svc.Save(context.Background(), userID, SaveInput{ImageURL: "blob://rx.jpg", Prescription: samplePrescription()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected an id")
	}
	if m.ReportType != ReportTypePrescription {
		t.Errorf("unexpected report type %q", m.ReportType)
	}
	if m.DoctorName == nil || *m.DoctorName != "Dr. Rao" {
		t.Errorf("unexpected doctor %v", m.DoctorName)
	}
	if m.PatientName != nil || m.HospitalName != nil {
		t.Error("prescriptions carry no patient or hospital")
	}
	if m.ImageURL == nil || *m.ImageURL != "blob://rx.jpg" {
		t.Errorf("unexpected image url %v", m.ImageURL)
	}

	var stored records.ExtractedPrescriptionData
	if err := json.Unmarshal(m.ExtractedData, &stored); err != nil {
		t.Fatalf("decode extracted data: %v", err)
	}
	if len(stored.Medicines) != 1 || stored.Medicines[0].MedicationName != "Paracetamol 500mg" {
		t.Errorf("unexpected stored record %+v", stored)
	}
}

func TestService_SaveReport(t *testing.T) {
	svc := NewService(&memRepo{}, zerolog.Nop())
	member := uuid.New()

	m, err := svc.Save(context.Background(), uuid.New(), SaveInput{
		FamilyMemberID: &member,
		Report: &records.UniversalMedicalReport{
			PatientName:  "Asha",
			HospitalName: "City Hospital",
			Date:         "2024-04-02",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ReportType != records.DefaultReportType {
		t.Errorf("expected default report type, got %q", m.ReportType)
	}
	if m.FamilyMemberID == nil || *m.FamilyMemberID != member {
		t.Error("family member not kept")
	}
	if m.PatientName == nil || *m.PatientName != "Asha" {
		t.Errorf("unexpected patient %v", m.PatientName)
	}
	if m.DoctorName != nil {
		t.Error("empty doctor should be NULL")
	}
	if m.ReportDate == nil || *m.ReportDate != "2024-04-02" {
		t.Errorf("unexpected date %v", m.ReportDate)
	}
}

func TestService_SaveReportTypeOverride(t *testing.T) {
	svc := NewService(&memRepo{}, zerolog.Nop())
	m, err := svc.Save(context.Background(), uuid.New(), SaveInput{
		ReportType:   "handwritten-prescription",
		Prescription: samplePrescription(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ReportType != "handwritten-prescription" {
		t.Errorf("unexpected report type %q", m.ReportType)
	}
}

func TestService_SaveInvalidInput(t *testing.T) {
	svc := NewService(&memRepo{}, zerolog.Nop())

	tests := []struct {
		name   string
		userID uuid.UUID
		in     SaveInput
	}{
		{"no user", uuid.Nil, SaveInput{Prescription: samplePrescription()}},
		{"neither record", uuid.New(), SaveInput{}},
		{"both records", uuid.New(), SaveInput{Prescription: samplePrescription(), Report: &records.UniversalMedicalReport{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), tt.userID, tt.in)
			if apierr.KindOf(err) != apierr.KindInput {
				t.Errorf("expected input error, got %v", err)
			}
		})
	}
}

func TestService_SavePersistenceError(t *testing.T) {
	dbErr := errors.New("connection refused")
	svc := NewService(&memRepo{failErr: dbErr}, zerolog.Nop())

	_, err := svc.Save(context.Background(), uuid.New(), SaveInput{Prescription: samplePrescription()})
	if apierr.KindOf(err) != apierr.KindPersistence {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if !errors.Is(err, dbErr) {
		t.Error("expected the store error to be wrapped")
	}
}

func TestService_GetAndListScopedToUser(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, zerolog.Nop())
	owner, other := uuid.New(), uuid.New()
	ctx := context.Background()

	m, err := svc.Save(ctx, owner, SaveInput{Prescription: samplePrescription()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.Save(ctx, other, SaveInput{Prescription: samplePrescription()}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := svc.Get(ctx, other, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got %v", err)
	}
	got, err := svc.Get(ctx, owner, m.ID)
	if err != nil || got.ID != m.ID {
		t.Fatalf("expected own report, got %v %v", got, err)
	}

	items, total, err := svc.List(ctx, owner, nil, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("expected 1 report, got total=%d len=%d", total, len(items))
	}
}
