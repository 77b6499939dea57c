package patient

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/his/patientrecords/pkg/pagination"
)

// memStore backs every mock repository so the fake transactor can roll all
// of them back together.
type memStore struct {
	patients map[uuid.UUID]Patient
	records  map[uuid.UUID]HealthRecord
	// table -> health record id -> deleted flag per row
	entries map[string]map[uuid.UUID][]bool
}

func newMemStore() *memStore {
	s := &memStore{
		patients: make(map[uuid.UUID]Patient),
		records:  make(map[uuid.UUID]HealthRecord),
		entries:  make(map[string]map[uuid.UUID][]bool),
	}
	for _, t := range DependentTables {
		s.entries[t] = make(map[uuid.UUID][]bool)
	}
	return s
}

func (s *memStore) snapshot() *memStore {
	c := newMemStore()
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	for t, byRecord := range s.entries {
		for id, rows := range byRecord {
			c.entries[t][id] = append([]bool(nil), rows...)
		}
	}
	return c
}

func (s *memStore) restore(from *memStore) {
	s.patients = from.patients
	s.records = from.records
	s.entries = from.entries
}

// addEntries seeds n live rows in table for the health record.
func (s *memStore) addEntries(table string, healthRecordID uuid.UUID, n int) {
	for i := 0; i < n; i++ {
		s.entries[table][healthRecordID] = append(s.entries[table][healthRecordID], false)
	}
}

func (s *memStore) withRecord(p Patient) *Patient {
	for _, hr := range s.records {
		if hr.PatientID == p.ID {
			hr := hr
			p.HealthRecord = &hr
			break
		}
	}
	return &p
}

// -- Mock Patient Repository --

type mockPatientRepo struct {
	store   *memStore
	saveErr error
	markErr error
}

func (m *mockPatientRepo) find(match func(Patient) bool) (*Patient, error) {
	for _, p := range m.store.patients {
		if match(p) {
			return m.store.withRecord(p), nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPatientRepo) FindByJmbg(_ context.Context, jmbg string, deleted bool) (*Patient, error) {
	return m.find(func(p Patient) bool { return p.Jmbg == jmbg && p.Deleted == deleted })
}

func (m *mockPatientRepo) FindByLbp(_ context.Context, lbp uuid.UUID, deleted bool) (*Patient, error) {
	return m.find(func(p Patient) bool { return p.Lbp == lbp && p.Deleted == deleted })
}

func (m *mockPatientRepo) FindByJmbgAnyState(_ context.Context, jmbg string) (*Patient, error) {
	return m.find(func(p Patient) bool { return p.Jmbg == jmbg })
}

func (m *mockPatientRepo) Save(_ context.Context, p *Patient) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	now := time.Now()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
		p.CreatedAt = now
	} else {
		current, ok := m.store.patients[p.ID]
		if !ok || current.Deleted {
			return ErrNotFound
		}
		p.Deleted = current.Deleted
	}
	p.UpdatedAt = now
	stored := *p
	stored.HealthRecord = nil
	m.store.patients[p.ID] = stored
	return nil
}

func (m *mockPatientRepo) MarkDeleted(_ context.Context, p *Patient) error {
	if m.markErr != nil {
		return m.markErr
	}
	current, ok := m.store.patients[p.ID]
	if !ok || current.Deleted {
		return ErrNotFound
	}
	current.Deleted = true
	current.UpdatedAt = time.Now()
	m.store.patients[p.ID] = current
	p.Deleted, p.UpdatedAt = true, current.UpdatedAt
	return nil
}

func (m *mockPatientRepo) FindAll(_ context.Context, f PatientFilter, page pagination.Params) ([]*Patient, int, error) {
	var matched []*Patient
	for _, p := range m.store.patients {
		if f.Matches(&p) {
			matched = append(matched, m.store.withRecord(p))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.Lbp.String() < b.Lbp.String()
	})

	total := len(matched)
	start := min(page.Offset, total)
	end := min(start+page.Limit, total)
	return matched[start:end], total, nil
}

// -- Mock Health Record Repository --

type mockHealthRecordRepo struct {
	store *memStore
}

func (m *mockHealthRecordRepo) Save(_ context.Context, hr *HealthRecord) error {
	if hr.ID == uuid.Nil {
		hr.ID = uuid.New()
	}
	m.store.records[hr.ID] = *hr
	return nil
}

func (m *mockHealthRecordRepo) FindByPatient(_ context.Context, patientID uuid.UUID) (*HealthRecord, error) {
	for _, hr := range m.store.records {
		if hr.PatientID == patientID {
			hr := hr
			return &hr, nil
		}
	}
	return nil, ErrNotFound
}

// -- Mock Dependent Repository --

type mockDependentRepo struct {
	store *memStore
	table string
	err   error
}

func (m *mockDependentRepo) Table() string { return m.table }

func (m *mockDependentRepo) SoftDeleteByHealthRecord(_ context.Context, id uuid.UUID) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	rows := m.store.entries[m.table][id]
	var n int64
	for i, deleted := range rows {
		if !deleted {
			rows[i] = true
			n++
		}
	}
	return n, nil
}

func (m *mockDependentRepo) CountActiveByHealthRecord(_ context.Context, id uuid.UUID) (int, error) {
	n := 0
	for _, deleted := range m.store.entries[m.table][id] {
		if !deleted {
			n++
		}
	}
	return n, nil
}

// -- Fake Transactor --

type fakeTransactor struct {
	store *memStore
	calls int
}

func (f *fakeTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	snap := f.store.snapshot()
	if err := fn(ctx); err != nil {
		f.store.restore(snap)
		return err
	}
	return nil
}

type testEnv struct {
	store      *memStore
	patients   *mockPatientRepo
	records    *mockHealthRecordRepo
	dependents []*mockDependentRepo
	tx         *fakeTransactor
}

func newTestEnv() *testEnv {
	store := newMemStore()
	env := &testEnv{
		store:    store,
		patients: &mockPatientRepo{store: store},
		records:  &mockHealthRecordRepo{store: store},
		tx:       &fakeTransactor{store: store},
	}
	for _, t := range DependentTables {
		env.dependents = append(env.dependents, &mockDependentRepo{store: store, table: t})
	}
	return env
}

func (e *testEnv) dependentRepos() []DependentRepository {
	deps := make([]DependentRepository, len(e.dependents))
	for i, d := range e.dependents {
		deps[i] = d
	}
	return deps
}
