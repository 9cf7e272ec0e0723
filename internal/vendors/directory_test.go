package vendors

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
)

// --- Mock store ---

type mockStore struct {
	mu      sync.Mutex
	vendors []rfp.Vendor

	listCalls int
}

func (m *mockStore) CreateVendor(v rfp.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.vendors {
		if e.Email == v.Email {
			return storage.ErrConflict
		}
	}
	m.vendors = append(m.vendors, v)
	return nil
}

func (m *mockStore) UpsertVendor(v rfp.Vendor) (rfp.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.vendors {
		if e.Email == v.Email {
			v.ID = e.ID
			m.vendors[i] = v
			return v, nil
		}
	}
	m.vendors = append(m.vendors, v)
	return v, nil
}

func (m *mockStore) GetVendor(id string) (rfp.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vendors {
		if v.ID == id {
			return v, nil
		}
	}
	return rfp.Vendor{}, storage.ErrNotFound
}

func (m *mockStore) ListVendors() ([]rfp.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return append([]rfp.Vendor(nil), m.vendors...), nil
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDirectory() (*Directory, *mockStore, *mockClock) {
	store := &mockStore{}
	clock := &mockClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewDirectoryWithClock(store, clock, time.Minute), store, clock
}

// --- Tests ---

func TestAdd_AssignsIDAndNormalizesEmail(t *testing.T) {
	d, _, _ := newTestDirectory()
	v, err := d.Add(rfp.Vendor{Name: " Acme ", Email: "Acme Sales <Sales@Acme.TEST>"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if v.ID == "" {
		t.Error("ID not assigned")
	}
	if v.Email != "sales@acme.test" {
		t.Errorf("Email = %q, want sales@acme.test", v.Email)
	}
	if v.Name != "Acme" {
		t.Errorf("Name = %q", v.Name)
	}
}

func TestAdd_Invalid(t *testing.T) {
	d, _, _ := newTestDirectory()
	tests := []rfp.Vendor{
		{Name: "", Email: "a@b.test"},
		{Name: "Acme", Email: "not an email"},
	}
	for _, v := range tests {
		if _, err := d.Add(v); !errors.Is(err, ErrInvalid) {
			t.Errorf("Add(%+v) error = %v, want ErrInvalid", v, err)
		}
	}
}

func TestAdd_DuplicateIsConflict(t *testing.T) {
	d, _, _ := newTestDirectory()
	if _, err := d.Add(rfp.Vendor{Name: "Acme", Email: "sales@acme.test"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := d.Add(rfp.Vendor{Name: "Acme 2", Email: "SALES@acme.test"}); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestList_CachedUntilTTL(t *testing.T) {
	d, store, clock := newTestDirectory()
	d.Add(rfp.Vendor{Name: "Acme", Email: "sales@acme.test"})

	d.List()
	d.List()
	if store.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1 (cache hit)", store.listCalls)
	}

	clock.Advance(2 * time.Minute)
	d.List()
	if store.listCalls != 2 {
		t.Errorf("listCalls = %d, want 2 after TTL", store.listCalls)
	}
}

func TestByEmail_InvalidatedOnWrite(t *testing.T) {
	d, _, _ := newTestDirectory()
	if _, err := d.ByEmail("sales@acme.test"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	d.Add(rfp.Vendor{Name: "Acme", Email: "sales@acme.test"})
	v, err := d.ByEmail("SALES@ACME.TEST")
	if err != nil {
		t.Fatalf("ByEmail after Add: %v", err)
	}
	if v.Name != "Acme" {
		t.Errorf("Name = %q", v.Name)
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	d, _, _ := newTestDirectory()
	d.Add(rfp.Vendor{Name: "Acme", Email: "sales@acme.test"})

	list, _ := d.List()
	list[0].Name = "mutated"

	again, _ := d.List()
	if again[0].Name != "Acme" {
		t.Error("List exposed the cached slice")
	}
}

func TestImport_ListAndKeyForms(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"vendors key", "vendors:\n  - name: Acme\n    email: sales@acme.test\n  - name: Beta\n    email: hello@beta.test\n    contact: Bob\n"},
		{"top-level list", "- name: Acme\n  email: sales@acme.test\n- name: Beta\n  email: hello@beta.test\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newTestDirectory()
			res, err := d.Import(strings.NewReader(tt.yaml))
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if res.Imported != 2 || len(res.Skipped) != 0 {
				t.Errorf("result = %+v, want 2 imported", res)
			}
			list, _ := d.List()
			if len(list) != 2 {
				t.Errorf("got %d vendors, want 2", len(list))
			}
		})
	}
}

func TestImport_SkipsInvalidAndUpserts(t *testing.T) {
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	d := NewDirectory(st)

	d.Add(rfp.Vendor{Name: "Acme", Email: "sales@acme.test"})
	res, err := d.Import(strings.NewReader(`
vendors:
  - name: Acme Corp
    email: SALES@acme.test
  - name: No Email
  - name: Gamma
    email: quotes@gamma.test
`))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 2 || len(res.Skipped) != 1 {
		t.Errorf("result = %+v, want 2 imported and 1 skipped", res)
	}

	v, err := d.ByEmail("sales@acme.test")
	if err != nil {
		t.Fatalf("ByEmail: %v", err)
	}
	if v.Name != "Acme Corp" {
		t.Errorf("Name = %q, want upserted name", v.Name)
	}
}

func TestImport_Malformed(t *testing.T) {
	d, _, _ := newTestDirectory()
	if _, err := d.Import(strings.NewReader("vendors: [unclosed")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := d.Import(strings.NewReader("just a string")); err == nil {
		t.Fatal("expected error for scalar document")
	}
}
