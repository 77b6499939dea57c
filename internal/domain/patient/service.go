package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/his/patientrecords/pkg/pagination"
)

const (
	opCreate       = "create"
	opUpdateByJmbg = "update_by_jmbg"
	opUpdateByLbp  = "update_by_lbp"
	opDelete       = "delete"
)

type Service struct {
	patients   PatientRepository
	records    HealthRecordRepository
	dependents []DependentRepository
	tx         Transactor
	logger     zerolog.Logger
	metrics    *Metrics
	now        func() time.Time
}

type Option func(*Service)

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for date validation and
// registration dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	patients PatientRepository,
	records HealthRecordRepository,
	dependents []DependentRepository,
	tx Transactor,
	logger zerolog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		patients:   patients,
		records:    records,
		dependents: dependents,
		tx:         tx,
		logger:     logger.With().Str("component", "patient").Logger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) FindPatientByJmbg(ctx context.Context, jmbg string) (*Patient, error) {
	return s.patients.FindByJmbg(ctx, jmbg, false)
}

func (s *Service) FindPatientByLbp(ctx context.Context, lbp uuid.UUID) (*Patient, error) {
	return s.patients.FindByLbp(ctx, lbp, false)
}

// CreatePatient registers a new patient together with an empty health record.
func (s *Service) CreatePatient(ctx context.Context, req *PatientRequest) (_ *PatientView, err error) {
	defer func() { s.metrics.observe(opCreate, err) }()

	switch _, err := s.patients.FindByJmbgAnyState(ctx, req.Jmbg); {
	case err == nil:
		return nil, ErrConflict
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	if err := validateJmbg(req.Jmbg); err != nil {
		return nil, err
	}
	now := s.now()
	if err := validateRequest(req, now); err != nil {
		return nil, err
	}

	p := newPatient(req, uuid.New())
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Save(ctx, p); err != nil {
			return err
		}
		hr := &HealthRecord{PatientID: p.ID, RegistrationDate: now}
		if err := s.records.Save(ctx, hr); err != nil {
			return err
		}
		p.HealthRecord = hr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("lbp", p.Lbp.String()).Msg("patient created")
	v := toView(p)
	return &v, nil
}

// UpdatePatientByJmbg replaces the mutable fields of the live patient whose
// jmbg matches req.Jmbg.
func (s *Service) UpdatePatientByJmbg(ctx context.Context, req *PatientRequest) (_ *PatientView, err error) {
	defer func() { s.metrics.observe(opUpdateByJmbg, err) }()

	p, err := s.patients.FindByJmbg(ctx, req.Jmbg, false)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, p, req)
}

// UpdatePatientByLbp replaces the mutable fields of the live patient with the
// given lbp. A jmbg in req does not change the stored one.
func (s *Service) UpdatePatientByLbp(ctx context.Context, req *PatientRequest, lbp uuid.UUID) (_ *PatientView, err error) {
	defer func() { s.metrics.observe(opUpdateByLbp, err) }()

	p, err := s.patients.FindByLbp(ctx, lbp, false)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, p, req)
}

func (s *Service) update(ctx context.Context, p *Patient, req *PatientRequest) (*PatientView, error) {
	if err := validateRequest(req, s.now()); err != nil {
		return nil, err
	}

	applyRequest(p, req)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.patients.Save(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("lbp", p.Lbp.String()).Msg("patient updated")
	v := toView(p)
	return &v, nil
}

// DeletePatient soft-deletes the patient and every entry of its health
// record in one transaction. The returned view reflects the deleted state.
func (s *Service) DeletePatient(ctx context.Context, lbp uuid.UUID) (_ *PatientView, err error) {
	defer func() { s.metrics.observe(opDelete, err) }()

	p, err := s.patients.FindByLbp(ctx, lbp, false)
	if err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		// Flagging first takes the row lock; concurrent writers of this
		// patient then find no live row.
		if err := s.patients.MarkDeleted(ctx, p); err != nil {
			return err
		}

		hr := p.HealthRecord
		if hr == nil {
			found, err := s.records.FindByPatient(ctx, p.ID)
			switch {
			case errors.Is(err, ErrNotFound):
			case err != nil:
				return err
			default:
				hr = found
			}
		}
		if hr == nil {
			return nil
		}
		for _, dep := range s.dependents {
			n, err := dep.SoftDeleteByHealthRecord(ctx, hr.ID)
			if err != nil {
				return err
			}
			s.logger.Debug().Str("lbp", p.Lbp.String()).Str("table", dep.Table()).Int64("rows", n).Msg("cascade soft delete")
		}
		return nil
	})
	if err != nil {
		p.Deleted = false
		return nil, err
	}

	s.logger.Info().Str("lbp", p.Lbp.String()).Msg("patient deleted")
	v := toView(p)
	return &v, nil
}

func (s *Service) GetPatientByLbp(ctx context.Context, lbp uuid.UUID) (*PatientView, error) {
	p, err := s.patients.FindByLbp(ctx, lbp, false)
	if err != nil {
		return nil, err
	}
	v := toView(p)
	return &v, nil
}

func (s *Service) GetPatients(ctx context.Context, f PatientFilter, page pagination.Params) (pagination.Page[PatientView], error) {
	patients, total, err := s.patients.FindAll(ctx, f, page)
	if err != nil {
		return pagination.Page[PatientView]{}, fmt.Errorf("get patients: %w", err)
	}
	return toViewPage(patients, total, page), nil
}
