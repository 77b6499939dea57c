package patient

import (
	"strings"

	"github.com/google/uuid"

	"github.com/his/patientrecords/internal/platform/query"
)

// PatientFilter narrows GetPatients. Nil criteria are ignored; Deleted is
// always applied.
type PatientFilter struct {
	Lbp       *uuid.UUID
	FirstName *string
	LastName  *string
	Jmbg      *string
	Deleted   bool
}

const patientOrder = "p.last_name, p.first_name, p.lbp"

func buildPatientQuery(f PatientFilter) *query.Builder {
	qb := query.New(patientFrom, patientCols)
	if f.Lbp != nil {
		qb.Equals("p.lbp", *f.Lbp)
	}
	if f.FirstName != nil {
		qb.Contains("p.first_name", *f.FirstName)
	}
	if f.LastName != nil {
		qb.Contains("p.last_name", *f.LastName)
	}
	if f.Jmbg != nil {
		qb.Equals("p.jmbg", *f.Jmbg)
	}
	qb.Equals("p.deleted", f.Deleted)
	qb.OrderBy(patientOrder)
	return qb
}

// Matches applies the filter to a single patient in memory, with the same
// semantics as the SQL built by buildPatientQuery.
func (f PatientFilter) Matches(p *Patient) bool {
	if p.Deleted != f.Deleted {
		return false
	}
	if f.Lbp != nil && p.Lbp != *f.Lbp {
		return false
	}
	if f.FirstName != nil && !containsFold(p.FirstName, *f.FirstName) {
		return false
	}
	if f.LastName != nil && !containsFold(p.LastName, *f.LastName) {
		return false
	}
	if f.Jmbg != nil && p.Jmbg != *f.Jmbg {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
