package report

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("medical report not found")

// Repository stores medical reports. Reads are always scoped to the owning
// user. There is no update or delete.
type Repository interface {
	Create(ctx context.Context, r *MedicalReport) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*MedicalReport, error)
	List(ctx context.Context, userID uuid.UUID, familyMemberID *uuid.UUID, limit, offset int) ([]*MedicalReport, int, error)
}
