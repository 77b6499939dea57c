//go:build integration

package integration

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/his/patientrecords/internal/domain/patient"
	"github.com/his/patientrecords/internal/platform/phi"
	"github.com/his/patientrecords/pkg/pagination"
)

func ptrStr(s string) *string { return &s }

func newRequest(jmbg, first, last string) *patient.PatientRequest {
	birth := time.Date(1976, 12, 12, 0, 0, 0, 0, time.UTC)
	death := time.Date(2020, 12, 12, 0, 0, 0, 0, time.UTC)
	return &patient.PatientRequest{
		Jmbg:               jmbg,
		FirstName:          first,
		LastName:           last,
		ParentName:         "Roditelj",
		Gender:             "Muški",
		BirthDate:          &birth,
		DeathDate:          &death,
		Birthplace:         "Resnjak",
		CitizenshipCountry: "SRB",
		CountryOfLiving:    "AFG",
		Address:            "Jurija Gagarina 16",
		PlaceOfLiving:      "Novi Beograd",
		PhoneNumber:        "0601234567",
		Email:              "pacijent.pacijentovic@gmail.com",
		CustodianJmbg:      ptrStr("0101987123456"),
		CustodianName:      ptrStr("Staratelj Starateljovic"),
		Profession:         "Programer",
		ChildrenNum:        2,
		Education:          "Osnovno obrazovanje",
		MaritalStatus:      "Razveden",
		FamilyStatus:       "Usvojen",
	}
}

func TestPatientLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ctx, nil)

	var lbp uuid.UUID

	t.Run("Create", func(t *testing.T) {
		v, err := f.svc.CreatePatient(ctx, newRequest("1342002345612", "Pacijent", "Pacijentovic"))
		if err != nil {
			t.Fatalf("CreatePatient: %v", err)
		}
		if v.HealthRecord == nil {
			t.Fatal("expected a health record")
		}
		lbp = v.Lbp
	})

	t.Run("FindByJmbg", func(t *testing.T) {
		p, err := f.svc.FindPatientByJmbg(ctx, "1342002345612")
		if err != nil {
			t.Fatalf("FindPatientByJmbg: %v", err)
		}
		if p.Lbp != lbp {
			t.Errorf("expected lbp %s, got %s", lbp, p.Lbp)
		}
		if p.CustodianName == nil || *p.CustodianName != "Staratelj Starateljovic" {
			t.Errorf("unexpected custodian name %v", p.CustodianName)
		}
		if p.DeathDate == nil || p.DeathDate.Year() != 2020 {
			t.Errorf("unexpected death date %v", p.DeathDate)
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := f.svc.CreatePatient(ctx, newRequest("1342002345612", "Drugi", "Pacijent"))
		if !errors.Is(err, patient.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("UpdateByLbp", func(t *testing.T) {
		req := newRequest("0000000000000", "Pacijent", "Pacijentovic")
		req.PlaceOfLiving = "Zemun"
		req.DeathDate = nil

		v, err := f.svc.UpdatePatientByLbp(ctx, req, lbp)
		if err != nil {
			t.Fatalf("UpdatePatientByLbp: %v", err)
		}
		if v.Jmbg != "1342002345612" {
			t.Errorf("jmbg changed to %s", v.Jmbg)
		}

		p, _ := f.svc.FindPatientByLbp(ctx, lbp)
		if p.PlaceOfLiving != "Zemun" || p.DeathDate != nil {
			t.Errorf("update not persisted: %s %v", p.PlaceOfLiving, p.DeathDate)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		p, err := f.svc.FindPatientByLbp(ctx, lbp)
		if err != nil {
			t.Fatalf("FindPatientByLbp: %v", err)
		}
		f.seedEntries(t, ctx, p.HealthRecord.ID, 2)

		v, err := f.svc.DeletePatient(ctx, lbp)
		if err != nil {
			t.Fatalf("DeletePatient: %v", err)
		}
		if !v.Deleted {
			t.Error("expected deleted view")
		}

		for _, dep := range f.dependents {
			n, err := dep.CountActiveByHealthRecord(ctx, p.HealthRecord.ID)
			if err != nil {
				t.Fatalf("count %s: %v", dep.Table(), err)
			}
			if n != 0 {
				t.Errorf("expected no live %s rows, got %d", dep.Table(), n)
			}
		}

		if _, err := f.svc.GetPatientByLbp(ctx, lbp); !errors.Is(err, patient.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestSave_DoesNotReviveDeletedPatient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ctx, nil)

	v, err := f.svc.CreatePatient(ctx, newRequest("1342002345612", "Pacijent", "Pacijentovic"))
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	stale, err := f.svc.FindPatientByLbp(ctx, v.Lbp)
	if err != nil {
		t.Fatalf("FindPatientByLbp: %v", err)
	}
	f.seedEntries(t, ctx, stale.HealthRecord.ID, 1)

	if _, err := f.svc.DeletePatient(ctx, v.Lbp); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}

	stale.PlaceOfLiving = "Zemun"
	if err := f.patients.Save(ctx, stale); !errors.Is(err, patient.ErrNotFound) {
		t.Fatalf("expected ErrNotFound when saving a deleted patient, got %v", err)
	}
	if err := f.patients.MarkDeleted(ctx, stale); !errors.Is(err, patient.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a second delete, got %v", err)
	}

	var deleted bool
	var place string
	err = f.pool.QueryRow(ctx, `SELECT deleted, place_of_living FROM patient WHERE id = $1`, stale.ID).Scan(&deleted, &place)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !deleted || place != "Novi Beograd" {
		t.Errorf("expected row to stay deleted and unchanged, got deleted=%v place=%s", deleted, place)
	}
}

func TestCreatePatient_ValueTooLong(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ctx, nil)

	p := &patient.Patient{
		Jmbg:               "13420023456120",
		Lbp:                uuid.New(),
		FirstName:          "Pacijent",
		LastName:           "Pacijentovic",
		Gender:             "Muški",
		BirthDate:          time.Date(1976, 12, 12, 0, 0, 0, 0, time.UTC),
		CitizenshipCountry: "SRB",
		CountryOfLiving:    "SRB",
		Education:          "Osnovno obrazovanje",
		MaritalStatus:      "Razveden",
		FamilyStatus:       "Usvojen",
	}
	if err := f.patients.Save(ctx, p); !errors.Is(err, patient.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a 14-char jmbg, got %v", err)
	}
}

func TestDeletePatient_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ctx, nil)

	v, err := f.svc.CreatePatient(ctx, newRequest("1111111111111", "Ana", "Anic"))
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	f.seedEntries(t, ctx, v.HealthRecord.ID, 1)

	// Dropping the flag column makes the fourth cascade step fail after the
	// first three have already run inside the transaction.
	if _, err := f.pool.Exec(ctx, `ALTER TABLE medical_examination DROP COLUMN deleted`); err != nil {
		t.Fatalf("alter: %v", err)
	}

	if _, err := f.svc.DeletePatient(ctx, v.Lbp); err == nil {
		t.Fatal("expected delete to fail")
	}

	if _, err := f.svc.GetPatientByLbp(ctx, v.Lbp); err != nil {
		t.Errorf("expected patient to stay live, got %v", err)
	}
	for _, dep := range f.dependents[:3] {
		n, err := dep.CountActiveByHealthRecord(ctx, v.HealthRecord.ID)
		if err != nil {
			t.Fatalf("count %s: %v", dep.Table(), err)
		}
		if n != 1 {
			t.Errorf("expected %s rows rolled back, got %d live", dep.Table(), n)
		}
	}
}

func TestGetPatients_Filter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ctx, nil)

	for _, p := range []struct{ jmbg, first, last string }{
		{"0000000000001", "Ana", "Anic"},
		{"0000000000002", "Marko", "Markovic"},
		{"0000000000003", "Marija", "Maric"},
		{"0000000000004", "Ana_", "Zoric"},
	} {
		if _, err := f.svc.CreatePatient(ctx, newRequest(p.jmbg, p.first, p.last)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	page, err := f.svc.GetPatients(ctx, patient.PatientFilter{FirstName: ptrStr("MAR")}, pagination.New(10, 0))
	if err != nil {
		t.Fatalf("GetPatients: %v", err)
	}
	if page.Total != 2 || page.Data[0].LastName != "Maric" {
		t.Errorf("unexpected page: total %d", page.Total)
	}

	page, _ = f.svc.GetPatients(ctx, patient.PatientFilter{FirstName: ptrStr("a_")}, pagination.New(10, 0))
	if page.Total != 1 || page.Data[0].LastName != "Zoric" {
		t.Errorf("expected underscore to match literally, got total %d", page.Total)
	}

	page, _ = f.svc.GetPatients(ctx, patient.PatientFilter{}, pagination.New(1, 1))
	if page.Total != 4 || len(page.Data) != 1 || !page.HasMore {
		t.Errorf("unexpected pagination: total %d len %d more %v", page.Total, len(page.Data), page.HasMore)
	}
}

func TestPatientRepo_EncryptsPHI(t *testing.T) {
	ctx := context.Background()
	enc, err := phi.NewAESEncryptor(bytes.Repeat([]byte{42}, 32))
	if err != nil {
		t.Fatalf("encryptor: %v", err)
	}
	f := newFixture(t, ctx, enc)

	v, err := f.svc.CreatePatient(ctx, newRequest("2222222222222", "Petar", "Petrovic"))
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	var rawEmail string
	if err := f.pool.QueryRow(ctx, `SELECT email FROM patient WHERE lbp = $1`, v.Lbp).Scan(&rawEmail); err != nil {
		t.Fatalf("raw select: %v", err)
	}
	if rawEmail == "pacijent.pacijentovic@gmail.com" {
		t.Error("expected email to be encrypted at rest")
	}

	p, err := f.svc.FindPatientByLbp(ctx, v.Lbp)
	if err != nil {
		t.Fatalf("FindPatientByLbp: %v", err)
	}
	if p.Email != "pacijent.pacijentovic@gmail.com" {
		t.Errorf("expected decrypted email, got %s", p.Email)
	}
}
