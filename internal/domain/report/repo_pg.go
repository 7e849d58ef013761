package report

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type reportRepoPG struct{ db Querier }

func NewRepoPG(db Querier) Repository {
	return &reportRepoPG{db: db}
}

const reportCols = `id, user_id, family_member_id, image_url, report_type, patient_name,
	doctor_name, hospital_name, report_date, extracted_data, created_at`

func scanReport(row pgx.Row) (*MedicalReport, error) {
	var r MedicalReport
	err := row.Scan(&r.ID, &r.UserID, &r.FamilyMemberID, &r.ImageURL, &r.ReportType,
		&r.PatientName, &r.DoctorName, &r.HospitalName, &r.ReportDate,
		&r.ExtractedData, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *reportRepoPG) Create(ctx context.Context, m *MedicalReport) error {
	m.ID = uuid.New()
	return r.db.QueryRow(ctx, `
		INSERT INTO medical_reports (id, user_id, family_member_id, image_url, report_type,
			patient_name, doctor_name, hospital_name, report_date, extracted_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		m.ID, m.UserID, m.FamilyMemberID, m.ImageURL, m.ReportType,
		m.PatientName, m.DoctorName, m.HospitalName, m.ReportDate, m.ExtractedData,
	).Scan(&m.CreatedAt)
}

func (r *reportRepoPG) GetByID(ctx context.Context, userID, id uuid.UUID) (*MedicalReport, error) {
	m, err := scanReport(r.db.QueryRow(ctx,
		`SELECT `+reportCols+` FROM medical_reports WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *reportRepoPG) List(ctx context.Context, userID uuid.UUID, familyMemberID *uuid.UUID, limit, offset int) ([]*MedicalReport, int, error) {
	where := ` WHERE user_id = $1`
	args := []interface{}{userID}
	if familyMemberID != nil {
		where += ` AND family_member_id = $2`
		args = append(args, *familyMemberID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM medical_reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + reportCols + ` FROM medical_reports` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*MedicalReport{}
	for rows.Next() {
		m, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
