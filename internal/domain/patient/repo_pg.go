package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/his/patientrecords/internal/platform/db"
	"github.com/his/patientrecords/internal/platform/phi"
	"github.com/his/patientrecords/pkg/pagination"
)

const (
	uniqueViolation     = "23505"
	stringDataTruncated = "22001"
)

// mapWriteError turns a value-too-long rejection into ErrInvalidInput. The
// request validator bounds every column, so this only fires if the schema
// and the limits drift apart.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == stringDataTruncated {
		return fmt.Errorf("%w: %s", ErrInvalidInput, pgErr.Message)
	}
	return err
}

// -- Patient Repository --

type patientRepoPG struct {
	pool      db.Querier
	encryptor phi.FieldEncryptor
}

// NewPatientRepo creates a pgx-backed patient repository. When enc is non-nil
// phone number, email, address and custodian jmbg are encrypted at rest.
func NewPatientRepo(pool *pgxpool.Pool, enc phi.FieldEncryptor) PatientRepository {
	return &patientRepoPG{pool: pool, encryptor: enc}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientFrom = `patient p LEFT JOIN health_record hr ON hr.patient_id = p.id`

const patientCols = `p.id, p.jmbg, p.lbp, p.first_name, p.last_name, p.parent_name,
	p.gender, p.birth_date, p.death_date, p.birthplace,
	p.citizenship_country, p.country_of_living, p.address, p.place_of_living,
	p.phone_number, p.email, p.custodian_jmbg, p.custodian_name,
	p.profession, p.children_num, p.education, p.marital_status, p.family_status,
	p.deleted, p.created_at, p.updated_at,
	hr.id, hr.registration_date, hr.blood_type, hr.rh_factor`

func (r *patientRepoPG) FindByJmbg(ctx context.Context, jmbg string, deleted bool) (*Patient, error) {
	return r.findOne(ctx, "find by jmbg", `p.jmbg = $1 AND p.deleted = $2`, jmbg, deleted)
}

func (r *patientRepoPG) FindByLbp(ctx context.Context, lbp uuid.UUID, deleted bool) (*Patient, error) {
	return r.findOne(ctx, "find by lbp", `p.lbp = $1 AND p.deleted = $2`, lbp, deleted)
}

func (r *patientRepoPG) FindByJmbgAnyState(ctx context.Context, jmbg string) (*Patient, error) {
	return r.findOne(ctx, "find by jmbg", `p.jmbg = $1 ORDER BY p.deleted LIMIT 1`, jmbg)
}

func (r *patientRepoPG) findOne(ctx context.Context, op, where string, args ...interface{}) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM `+patientFrom+` WHERE `+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", op, err)
	}
	if err := r.openPHI(p); err != nil {
		return nil, fmt.Errorf("patient %s: %w", op, err)
	}
	return p, nil
}

func (r *patientRepoPG) Save(ctx context.Context, p *Patient) error {
	stored := *p
	if err := r.sealPHI(&stored); err != nil {
		return fmt.Errorf("patient save: %w", err)
	}

	if p.ID == uuid.Nil {
		return r.insert(ctx, p, &stored)
	}

	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			first_name=$2, last_name=$3, parent_name=$4, gender=$5, birth_date=$6, death_date=$7,
			birthplace=$8, citizenship_country=$9, country_of_living=$10, address=$11,
			place_of_living=$12, phone_number=$13, email=$14, custodian_jmbg=$15, custodian_name=$16,
			profession=$17, children_num=$18, education=$19, marital_status=$20, family_status=$21,
			updated_at=NOW()
		WHERE id = $1 AND deleted = false
		RETURNING updated_at`,
		stored.ID, stored.FirstName, stored.LastName, stored.ParentName, stored.Gender, stored.BirthDate, stored.DeathDate,
		stored.Birthplace, stored.CitizenshipCountry, stored.CountryOfLiving, stored.Address,
		stored.PlaceOfLiving, stored.PhoneNumber, stored.Email, stored.CustodianJmbg, stored.CustodianName,
		stored.Profession, stored.ChildrenNum, stored.Education, stored.MaritalStatus, stored.FamilyStatus,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("patient update: %w", mapWriteError(err))
	}
	return nil
}

func (r *patientRepoPG) MarkDeleted(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET deleted = true, updated_at = NOW()
		WHERE id = $1 AND deleted = false
		RETURNING updated_at`, p.ID,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("patient mark deleted: %w", err)
	}
	p.Deleted = true
	return nil
}

func (r *patientRepoPG) insert(ctx context.Context, p, stored *Patient) error {
	id := uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, jmbg, lbp, first_name, last_name, parent_name, gender, birth_date, death_date,
			birthplace, citizenship_country, country_of_living, address, place_of_living,
			phone_number, email, custodian_jmbg, custodian_name, profession, children_num,
			education, marital_status, family_status, deleted
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,
			$10,$11,$12,$13,$14,
			$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24
		)
		RETURNING created_at, updated_at`,
		id, stored.Jmbg, stored.Lbp, stored.FirstName, stored.LastName, stored.ParentName, stored.Gender, stored.BirthDate, stored.DeathDate,
		stored.Birthplace, stored.CitizenshipCountry, stored.CountryOfLiving, stored.Address, stored.PlaceOfLiving,
		stored.PhoneNumber, stored.Email, stored.CustodianJmbg, stored.CustodianName, stored.Profession, stored.ChildrenNum,
		stored.Education, stored.MaritalStatus, stored.FamilyStatus, stored.Deleted,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("patient insert: %w", mapWriteError(err))
	}
	p.ID = id
	return nil
}

func (r *patientRepoPG) FindAll(ctx context.Context, f PatientFilter, page pagination.Params) ([]*Patient, int, error) {
	qb := buildPatientQuery(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("patient list: %w", err)
		}
		if err := r.openPHI(p); err != nil {
			return nil, 0, fmt.Errorf("patient list: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	return patients, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	var hrID *uuid.UUID
	var hr HealthRecord
	var registered *time.Time
	err := row.Scan(
		&p.ID, &p.Jmbg, &p.Lbp, &p.FirstName, &p.LastName, &p.ParentName,
		&p.Gender, &p.BirthDate, &p.DeathDate, &p.Birthplace,
		&p.CitizenshipCountry, &p.CountryOfLiving, &p.Address, &p.PlaceOfLiving,
		&p.PhoneNumber, &p.Email, &p.CustodianJmbg, &p.CustodianName,
		&p.Profession, &p.ChildrenNum, &p.Education, &p.MaritalStatus, &p.FamilyStatus,
		&p.Deleted, &p.CreatedAt, &p.UpdatedAt,
		&hrID, &registered, &hr.BloodType, &hr.RhFactor,
	)
	if err != nil {
		return nil, err
	}
	if hrID != nil {
		hr.ID = *hrID
		hr.PatientID = p.ID
		if registered != nil {
			hr.RegistrationDate = *registered
		}
		p.HealthRecord = &hr
	}
	return &p, nil
}

func (r *patientRepoPG) sealPHI(p *Patient) error {
	var err error
	if p.PhoneNumber, err = phi.Seal(r.encryptor, p.PhoneNumber); err != nil {
		return fmt.Errorf("encrypt phone_number: %w", err)
	}
	if p.Email, err = phi.Seal(r.encryptor, p.Email); err != nil {
		return fmt.Errorf("encrypt email: %w", err)
	}
	if p.Address, err = phi.Seal(r.encryptor, p.Address); err != nil {
		return fmt.Errorf("encrypt address: %w", err)
	}
	if p.CustodianJmbg != nil {
		v, err := phi.Seal(r.encryptor, *p.CustodianJmbg)
		if err != nil {
			return fmt.Errorf("encrypt custodian_jmbg: %w", err)
		}
		p.CustodianJmbg = &v
	}
	return nil
}

func (r *patientRepoPG) openPHI(p *Patient) error {
	var err error
	if p.PhoneNumber, err = phi.Open(r.encryptor, p.PhoneNumber); err != nil {
		return fmt.Errorf("decrypt phone_number: %w", err)
	}
	if p.Email, err = phi.Open(r.encryptor, p.Email); err != nil {
		return fmt.Errorf("decrypt email: %w", err)
	}
	if p.Address, err = phi.Open(r.encryptor, p.Address); err != nil {
		return fmt.Errorf("decrypt address: %w", err)
	}
	if p.CustodianJmbg != nil {
		v, err := phi.Open(r.encryptor, *p.CustodianJmbg)
		if err != nil {
			return fmt.Errorf("decrypt custodian_jmbg: %w", err)
		}
		p.CustodianJmbg = &v
	}
	return nil
}

// -- Health Record Repository --

type healthRecordRepoPG struct {
	pool db.Querier
}

func NewHealthRecordRepo(pool *pgxpool.Pool) HealthRecordRepository {
	return &healthRecordRepoPG{pool: pool}
}

func (r *healthRecordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *healthRecordRepoPG) Save(ctx context.Context, hr *HealthRecord) error {
	if hr.ID == uuid.Nil {
		id := uuid.New()
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO health_record (id, patient_id, registration_date, blood_type, rh_factor)
			VALUES ($1, $2, $3, $4, $5)`,
			id, hr.PatientID, hr.RegistrationDate, hr.BloodType, hr.RhFactor,
		)
		if err != nil {
			return fmt.Errorf("health record insert: %w", err)
		}
		hr.ID = id
		return nil
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE health_record SET registration_date=$2, blood_type=$3, rh_factor=$4
		WHERE id = $1`,
		hr.ID, hr.RegistrationDate, hr.BloodType, hr.RhFactor,
	)
	if err != nil {
		return fmt.Errorf("health record update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *healthRecordRepoPG) FindByPatient(ctx context.Context, patientID uuid.UUID) (*HealthRecord, error) {
	var hr HealthRecord
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, registration_date, blood_type, rh_factor
		FROM health_record WHERE patient_id = $1`, patientID,
	).Scan(&hr.ID, &hr.PatientID, &hr.RegistrationDate, &hr.BloodType, &hr.RhFactor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("health record find: %w", err)
	}
	return &hr, nil
}

// -- Dependent Repositories --

type dependentRepoPG struct {
	pool  db.Querier
	table string
}

func newDependentRepo(pool *pgxpool.Pool, table string) DependentRepository {
	return &dependentRepoPG{pool: pool, table: table}
}

func NewAllergyRepo(pool *pgxpool.Pool) DependentRepository {
	return newDependentRepo(pool, TableAllergy)
}

func NewOperationRepo(pool *pgxpool.Pool) DependentRepository {
	return newDependentRepo(pool, TableOperation)
}

func NewMedicalHistoryRepo(pool *pgxpool.Pool) DependentRepository {
	return newDependentRepo(pool, TableMedicalHistory)
}

func NewMedicalExaminationRepo(pool *pgxpool.Pool) DependentRepository {
	return newDependentRepo(pool, TableMedicalExamination)
}

func NewVaccinationRepo(pool *pgxpool.Pool) DependentRepository {
	return newDependentRepo(pool, TableVaccination)
}

// NewDependentRepos returns one repository per entry of DependentTables.
func NewDependentRepos(pool *pgxpool.Pool) []DependentRepository {
	return []DependentRepository{
		NewAllergyRepo(pool),
		NewOperationRepo(pool),
		NewMedicalHistoryRepo(pool),
		NewMedicalExaminationRepo(pool),
		NewVaccinationRepo(pool),
	}
}

func (r *dependentRepoPG) Table() string { return r.table }

func (r *dependentRepoPG) SoftDeleteByHealthRecord(ctx context.Context, healthRecordID uuid.UUID) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE `+r.table+` SET deleted = true WHERE health_record_id = $1 AND deleted = false`,
		healthRecordID,
	)
	if err != nil {
		return 0, fmt.Errorf("%s soft delete: %w", r.table, err)
	}
	return tag.RowsAffected(), nil
}

func (r *dependentRepoPG) CountActiveByHealthRecord(ctx context.Context, healthRecordID uuid.UUID) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM `+r.table+` WHERE health_record_id = $1 AND deleted = false`,
		healthRecordID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s count: %w", r.table, err)
	}
	return n, nil
}
