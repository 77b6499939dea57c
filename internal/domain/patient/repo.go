package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/his/patientrecords/pkg/pagination"
)

// PatientRepository reads return the patient with its health record
// attached. Missing rows surface as ErrNotFound.
type PatientRepository interface {
	FindByJmbg(ctx context.Context, jmbg string, deleted bool) (*Patient, error)
	FindByLbp(ctx context.Context, lbp uuid.UUID, deleted bool) (*Patient, error)
	FindByJmbgAnyState(ctx context.Context, jmbg string) (*Patient, error)
	// Save inserts p when p.ID is uuid.Nil and otherwise updates the live row
	// with that id. It never changes the deleted flag; updating a deleted
	// patient returns ErrNotFound.
	Save(ctx context.Context, p *Patient) error
	// MarkDeleted flags the live patient as deleted and sets p.Deleted.
	MarkDeleted(ctx context.Context, p *Patient) error
	FindAll(ctx context.Context, f PatientFilter, page pagination.Params) ([]*Patient, int, error)
}

type HealthRecordRepository interface {
	Save(ctx context.Context, hr *HealthRecord) error
	FindByPatient(ctx context.Context, patientID uuid.UUID) (*HealthRecord, error)
}

// DependentRepository covers one table of health record entries.
type DependentRepository interface {
	Table() string
	SoftDeleteByHealthRecord(ctx context.Context, healthRecordID uuid.UUID) (int64, error)
	CountActiveByHealthRecord(ctx context.Context, healthRecordID uuid.UUID) (int, error)
}

// Transactor runs fn atomically; repositories called with the ctx passed to
// fn take part in the same transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
