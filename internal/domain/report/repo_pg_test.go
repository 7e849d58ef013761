package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

var errPermission = errors.New("permission denied for table medical_reports")

var reportColumns = []string{"id", "user_id", "family_member_id", "image_url", "report_type",
	"patient_name", "doctor_name", "hospital_name", "report_date", "extracted_data", "created_at"}

func strPtr(s string) *string { return &s }

func TestRepoPG_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m := &MedicalReport{
		UserID:        uuid.New(),
		ReportType:    ReportTypePrescription,
		DoctorName:    strPtr("Dr. Rao"),
		ExtractedData: json.RawMessage(`{"medicines":[]}`),
	}
	mock.ExpectQuery("INSERT INTO medical_reports").
		WithArgs(pgxmock.AnyArg(), m.UserID, m.FamilyMemberID, m.ImageURL, m.ReportType,
			m.PatientName, m.DoctorName, m.HospitalName, m.ReportDate, m.ExtractedData).
		WillReturnRows(mock.NewRows([]string{"created_at"}).AddRow(created))

	if err := NewRepoPG(mock).Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected an id")
	}
	if !m.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, m.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoPG_CreateError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO medical_reports").WillReturnError(errPermission)

	err = NewRepoPG(mock).Create(context.Background(), &MedicalReport{UserID: uuid.New()})
	if !errors.Is(err, errPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestRepoPG_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	id, userID := uuid.New(), uuid.New()
	created := time.Now().UTC()
	mock.ExpectQuery("FROM medical_reports WHERE id = ").
		WithArgs(id, userID).
		WillReturnRows(mock.NewRows(reportColumns).AddRow(
			id, userID, nil, strPtr("blob://r.pdf"), "Blood Test",
			strPtr("Asha"), nil, strPtr("City Hospital"), strPtr("2024-04-02"),
			json.RawMessage(`{"reportType":"Blood Test"}`), created))

	m, err := NewRepoPG(mock).GetByID(context.Background(), userID, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID != id || m.ReportType != "Blood Test" {
		t.Errorf("unexpected report %+v", m)
	}
	if m.PatientName == nil || *m.PatientName != "Asha" {
		t.Errorf("unexpected patient %v", m.PatientName)
	}
	if m.DoctorName != nil || m.FamilyMemberID != nil {
		t.Error("NULL columns should stay nil")
	}
	if string(m.ExtractedData) != `{"reportType":"Blood Test"}` {
		t.Errorf("unexpected extracted data %s", m.ExtractedData)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoPG_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("FROM medical_reports WHERE id = ").WillReturnError(pgx.ErrNoRows)

	if _, err := NewRepoPG(mock).GetByID(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepoPG_ListWithFamilyMember(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	userID, member := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(userID, member).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT").
		WithArgs(userID, member, 2, 0).
		WillReturnRows(mock.NewRows(reportColumns).
			AddRow(uuid.New(), userID, &member, nil, ReportTypePrescription,
				nil, strPtr("Dr. Rao"), nil, strPtr("2024-05-01"), json.RawMessage(`{}`), time.Now()).
			AddRow(uuid.New(), userID, &member, nil, "Blood Test",
				nil, nil, nil, nil, json.RawMessage(`{}`), time.Now().Add(-time.Hour)))

	items, total, err := NewRepoPG(mock).List(context.Background(), userID, &member, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Errorf("expected total 3 with 2 items, got %d/%d", total, len(items))
	}
	if items[0].FamilyMemberID == nil || *items[0].FamilyMemberID != member {
		t.Error("family member not scanned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoPG_ListEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	userID := uuid.New()
	mock.ExpectQuery("SELECT COUNT").WithArgs(userID).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT").WithArgs(userID, 20, 0).
		WillReturnRows(mock.NewRows(reportColumns))

	items, total, err := NewRepoPG(mock).List(context.Background(), userID, nil, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v (total %d)", items, total)
	}
}
