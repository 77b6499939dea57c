package patient

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PatientRequest is the inbound body for create and update. It deliberately
// has no lbp field: the record number is always assigned by the service.
type PatientRequest struct {
	Jmbg               string     `json:"jmbg"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	ParentName         string     `json:"parent_name"`
	Gender             string     `json:"gender"`
	BirthDate          *time.Time `json:"birth_date"`
	DeathDate          *time.Time `json:"death_date,omitempty"`
	Birthplace         string     `json:"birthplace"`
	CitizenshipCountry string     `json:"citizenship_country"`
	CountryOfLiving    string     `json:"country_of_living"`
	Address            string     `json:"address"`
	PlaceOfLiving      string     `json:"place_of_living"`
	PhoneNumber        string     `json:"phone_number"`
	Email              string     `json:"email"`
	CustodianJmbg      *string    `json:"custodian_jmbg,omitempty"`
	CustodianName      *string    `json:"custodian_name,omitempty"`
	Profession         string     `json:"profession"`
	ChildrenNum        int        `json:"children_num"`
	Education          string     `json:"education"`
	MaritalStatus      string     `json:"marital_status"`
	FamilyStatus       string     `json:"family_status"`
}

// dateLayouts are tried in order for birth_date and death_date.
var dateLayouts = []string{time.DateOnly, time.RFC3339Nano}

// UnmarshalJSON accepts birth_date and death_date either as a calendar date
// ("1976-12-12") or as an RFC 3339 timestamp.
func (r *PatientRequest) UnmarshalJSON(b []byte) error {
	type plain PatientRequest
	aux := struct {
		*plain
		BirthDate *string `json:"birth_date"`
		DeathDate *string `json:"death_date"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	var err error
	if r.BirthDate, err = parseDate("birth_date", aux.BirthDate); err != nil {
		return err
	}
	r.DeathDate, err = parseDate("death_date", aux.DeathDate)
	return err
}

func parseDate(field string, v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *v); err == nil {
			return &t, nil
		}
	}
	return nil, &ValidationError{Field: field, Reason: "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"}
}

// PatientView is the outbound representation of a patient.
type PatientView struct {
	Lbp                uuid.UUID            `json:"lbp"`
	Jmbg               string               `json:"jmbg"`
	FirstName          string               `json:"first_name"`
	LastName           string               `json:"last_name"`
	ParentName         string               `json:"parent_name"`
	Gender             string               `json:"gender"`
	BirthDate          time.Time            `json:"birth_date"`
	DeathDate          *time.Time           `json:"death_date,omitempty"`
	Birthplace         string               `json:"birthplace"`
	CitizenshipCountry string               `json:"citizenship_country"`
	CountryOfLiving    string               `json:"country_of_living"`
	Address            string               `json:"address"`
	PlaceOfLiving      string               `json:"place_of_living"`
	PhoneNumber        string               `json:"phone_number"`
	Email              string               `json:"email"`
	CustodianJmbg      *string              `json:"custodian_jmbg,omitempty"`
	CustodianName      *string              `json:"custodian_name,omitempty"`
	Profession         string               `json:"profession"`
	ChildrenNum        int                  `json:"children_num"`
	Education          string               `json:"education"`
	MaritalStatus      string               `json:"marital_status"`
	FamilyStatus       string               `json:"family_status"`
	Deleted            bool                 `json:"deleted"`
	HealthRecord       *HealthRecordSummary `json:"health_record,omitempty"`
}

type HealthRecordSummary struct {
	ID               uuid.UUID `json:"id"`
	RegistrationDate time.Time `json:"registration_date"`
	BloodType        *string   `json:"blood_type,omitempty"`
	RhFactor         *string   `json:"rh_factor,omitempty"`
}
