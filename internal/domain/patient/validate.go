package patient

import (
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/his/patientrecords/internal/domain/refdata"
)

// categoricalRules run in order after the temporal checks.
var categoricalRules = []struct {
	field string
	enum  refdata.Name
	value func(*PatientRequest) string
}{
	{"gender", refdata.Gender, func(r *PatientRequest) string { return r.Gender }},
	{"marital_status", refdata.MaritalStatus, func(r *PatientRequest) string { return r.MaritalStatus }},
	{"family_status", refdata.FamilyStatus, func(r *PatientRequest) string { return r.FamilyStatus }},
	{"education", refdata.Education, func(r *PatientRequest) string { return r.Education }},
	{"country_of_living", refdata.Country, func(r *PatientRequest) string { return r.CountryOfLiving }},
	{"citizenship_country", refdata.Country, func(r *PatientRequest) string { return r.CitizenshipCountry }},
}

// maxJmbgLen matches patient.jmbg VARCHAR(13).
const maxJmbgLen = 13

// lengthRules mirror the VARCHAR widths in schema/patient.sql and run after
// the categorical checks.
var lengthRules = []struct {
	field string
	max   int
	value func(*PatientRequest) string
}{
	{"first_name", 100, func(r *PatientRequest) string { return r.FirstName }},
	{"last_name", 100, func(r *PatientRequest) string { return r.LastName }},
	{"parent_name", 100, func(r *PatientRequest) string { return r.ParentName }},
	{"birthplace", 100, func(r *PatientRequest) string { return r.Birthplace }},
	{"place_of_living", 100, func(r *PatientRequest) string { return r.PlaceOfLiving }},
	{"profession", 100, func(r *PatientRequest) string { return r.Profession }},
	{"custodian_name", 200, func(r *PatientRequest) string {
		if r.CustodianName == nil {
			return ""
		}
		return *r.CustodianName
	}},
}

// validateJmbg runs on create, right after the uniqueness check.
func validateJmbg(jmbg string) error {
	switch {
	case jmbg == "":
		return &ValidationError{Field: "jmbg", Reason: "is required"}
	case utf8.RuneCountInString(jmbg) > maxJmbgLen:
		return &ValidationError{Field: "jmbg", Reason: "must be at most " + strconv.Itoa(maxJmbgLen) + " characters"}
	}
	return nil
}

// validateRequest checks the temporal, categorical and length limits of req and
// returns the first *ValidationError. Uniqueness of jmbg is checked by the
// service before this runs.
func validateRequest(req *PatientRequest, now time.Time) error {
	if req.BirthDate == nil {
		return &ValidationError{Field: "birth_date", Reason: "is required"}
	}
	if req.BirthDate.After(now) {
		return &ValidationError{Field: "birth_date", Reason: "must not be in the future"}
	}
	if req.DeathDate != nil {
		if req.DeathDate.After(now) {
			return &ValidationError{Field: "death_date", Reason: "must not be in the future"}
		}
		if req.DeathDate.Before(*req.BirthDate) {
			return &ValidationError{Field: "death_date", Reason: "must not precede birth_date"}
		}
	}

	for _, rule := range categoricalRules {
		v := rule.value(req)
		if !refdata.Contains(rule.enum, v) {
			return &ValidationError{Field: rule.field, Reason: "unknown value " + strconv.Quote(v)}
		}
	}

	for _, rule := range lengthRules {
		if utf8.RuneCountInString(rule.value(req)) > rule.max {
			return &ValidationError{Field: rule.field, Reason: "must be at most " + strconv.Itoa(rule.max) + " characters"}
		}
	}
	return nil
}
