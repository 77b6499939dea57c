// Package patient manages patient demographic records and the health record
// subtree attached to each of them.
package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Jmbg and Lbp are natural keys and never
// change after creation.
type Patient struct {
	ID                 uuid.UUID
	Jmbg               string
	Lbp                uuid.UUID
	FirstName          string
	LastName           string
	ParentName         string
	Gender             string
	BirthDate          time.Time
	DeathDate          *time.Time
	Birthplace         string
	CitizenshipCountry string
	CountryOfLiving    string
	Address            string
	PlaceOfLiving      string
	PhoneNumber        string
	Email              string
	CustodianJmbg      *string
	CustodianName      *string
	Profession         string
	ChildrenNum        int
	Education          string
	MaritalStatus      string
	FamilyStatus       string
	Deleted            bool
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// HealthRecord is populated by repository reads; writes go through
	// HealthRecordRepository.
	HealthRecord *HealthRecord
}

// HealthRecord maps to the health_record table. Each patient owns exactly one.
type HealthRecord struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	RegistrationDate time.Time
	BloodType        *string
	RhFactor         *string
}

// Tables holding the clinical entries of a health record. Each carries a
// health_record_id foreign key and its own deleted flag.
const (
	TableAllergy            = "allergy"
	TableOperation          = "operation"
	TableMedicalHistory     = "medical_history"
	TableMedicalExamination = "medical_examination"
	TableVaccination        = "vaccination"
)

// DependentTables lists every table cascaded by a patient soft delete.
var DependentTables = []string{
	TableAllergy,
	TableOperation,
	TableMedicalHistory,
	TableMedicalExamination,
	TableVaccination,
}
