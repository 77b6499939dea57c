package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/his/patientrecords/pkg/pagination"
)

// newPatient builds an unsaved patient from req with the given record number.
func newPatient(req *PatientRequest, lbp uuid.UUID) *Patient {
	p := &Patient{
		Jmbg: req.Jmbg,
		Lbp:  lbp,
	}
	applyRequest(p, req)
	return p
}

// applyRequest overwrites every mutable field of p with the values in req.
// Jmbg, Lbp, Deleted and the health record are left alone.
func applyRequest(p *Patient, req *PatientRequest) {
	p.FirstName = req.FirstName
	p.LastName = req.LastName
	p.ParentName = req.ParentName
	p.Gender = req.Gender
	if req.BirthDate != nil {
		p.BirthDate = *req.BirthDate
	}
	p.DeathDate = copyTime(req.DeathDate)
	p.Birthplace = req.Birthplace
	p.CitizenshipCountry = req.CitizenshipCountry
	p.CountryOfLiving = req.CountryOfLiving
	p.Address = req.Address
	p.PlaceOfLiving = req.PlaceOfLiving
	p.PhoneNumber = req.PhoneNumber
	p.Email = req.Email
	p.CustodianJmbg = copyString(req.CustodianJmbg)
	p.CustodianName = copyString(req.CustodianName)
	p.Profession = req.Profession
	p.ChildrenNum = req.ChildrenNum
	p.Education = req.Education
	p.MaritalStatus = req.MaritalStatus
	p.FamilyStatus = req.FamilyStatus
}

func toView(p *Patient) PatientView {
	v := PatientView{
		Lbp:                p.Lbp,
		Jmbg:               p.Jmbg,
		FirstName:          p.FirstName,
		LastName:           p.LastName,
		ParentName:         p.ParentName,
		Gender:             p.Gender,
		BirthDate:          p.BirthDate,
		DeathDate:          copyTime(p.DeathDate),
		Birthplace:         p.Birthplace,
		CitizenshipCountry: p.CitizenshipCountry,
		CountryOfLiving:    p.CountryOfLiving,
		Address:            p.Address,
		PlaceOfLiving:      p.PlaceOfLiving,
		PhoneNumber:        p.PhoneNumber,
		Email:              p.Email,
		CustodianJmbg:      copyString(p.CustodianJmbg),
		CustodianName:      copyString(p.CustodianName),
		Profession:         p.Profession,
		ChildrenNum:        p.ChildrenNum,
		Education:          p.Education,
		MaritalStatus:      p.MaritalStatus,
		FamilyStatus:       p.FamilyStatus,
		Deleted:            p.Deleted,
	}
	if hr := p.HealthRecord; hr != nil {
		v.HealthRecord = &HealthRecordSummary{
			ID:               hr.ID,
			RegistrationDate: hr.RegistrationDate,
			BloodType:        copyString(hr.BloodType),
			RhFactor:         copyString(hr.RhFactor),
		}
	}
	return v
}

func toViewPage(patients []*Patient, total int, params pagination.Params) pagination.Page[PatientView] {
	return pagination.Map(pagination.NewPage(patients, total, params), toView)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
