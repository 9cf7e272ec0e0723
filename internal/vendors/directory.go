// Package vendors is the vendor directory: a read-through cache over the
// store plus YAML import.
package vendors

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
)

// VendorStore defines the storage operations the Directory needs.
// Implemented by storage.Store.
type VendorStore interface {
	CreateVendor(v rfp.Vendor) error
	UpsertVendor(v rfp.Vendor) (rfp.Vendor, error)
	GetVendor(id string) (rfp.Vendor, error)
	ListVendors() ([]rfp.Vendor, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ErrInvalid is returned for a vendor without a name or a usable email.
var ErrInvalid = errors.New("invalid vendor")

// Directory provides cached access to the vendors stored in SQLite. The
// whole list is cached; every write drops the cache.
type Directory struct {
	store VendorStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   []rfp.Vendor
	byEmail  map[string]rfp.Vendor
	cachedAt time.Time
}

// NewDirectory creates a Directory with a 60-second cache TTL.
func NewDirectory(store VendorStore) *Directory {
	return NewDirectoryWithClock(store, realClock{}, 60*time.Second)
}

// NewDirectoryWithClock creates a Directory with a custom clock (for testing).
func NewDirectoryWithClock(store VendorStore, clock Clock, ttl time.Duration) *Directory {
	return &Directory{store: store, clock: clock, ttl: ttl}
}

func (d *Directory) fresh() bool {
	return d.cached != nil && d.clock.Now().Before(d.cachedAt.Add(d.ttl))
}

func (d *Directory) load() error {
	if d.fresh() {
		return nil
	}
	list, err := d.store.ListVendors()
	if err != nil {
		return fmt.Errorf("loading vendors: %w", err)
	}
	if list == nil {
		list = []rfp.Vendor{}
	}
	d.cached = list
	d.byEmail = make(map[string]rfp.Vendor, len(list))
	for _, v := range list {
		d.byEmail[normalizeEmail(v.Email)] = v
	}
	d.cachedAt = d.clock.Now()
	return nil
}

// List returns all vendors ordered by name.
func (d *Directory) List() ([]rfp.Vendor, error) {
	d.mu.RLock()
	if d.fresh() {
		out := append([]rfp.Vendor(nil), d.cached...)
		d.mu.RUnlock()
		return out, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.load(); err != nil {
		return nil, err
	}
	return append([]rfp.Vendor(nil), d.cached...), nil
}

// ByEmail finds a vendor by email, case-insensitively. It returns
// storage.ErrNotFound for unknown senders.
func (d *Directory) ByEmail(email string) (rfp.Vendor, error) {
	key := normalizeEmail(email)

	d.mu.RLock()
	if d.fresh() {
		v, ok := d.byEmail[key]
		d.mu.RUnlock()
		if !ok {
			return rfp.Vendor{}, storage.ErrNotFound
		}
		return v, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.load(); err != nil {
		return rfp.Vendor{}, err
	}
	v, ok := d.byEmail[key]
	if !ok {
		return rfp.Vendor{}, storage.ErrNotFound
	}
	return v, nil
}

// Get reads a vendor by id. Lookups by id go to the store.
func (d *Directory) Get(id string) (rfp.Vendor, error) {
	return d.store.GetVendor(id)
}

// Add validates and creates a vendor, assigning its id. A duplicate email is
// storage.ErrConflict.
func (d *Directory) Add(v rfp.Vendor) (rfp.Vendor, error) {
	v, err := prepare(v, d.clock.Now())
	if err != nil {
		return rfp.Vendor{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.CreateVendor(v); err != nil {
		return rfp.Vendor{}, err
	}
	d.cached = nil
	return v, nil
}

// Upsert creates a vendor or updates the one with the same email.
func (d *Directory) Upsert(v rfp.Vendor) (rfp.Vendor, error) {
	v, err := prepare(v, d.clock.Now())
	if err != nil {
		return rfp.Vendor{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	stored, err := d.store.UpsertVendor(v)
	if err != nil {
		return rfp.Vendor{}, err
	}
	d.cached = nil
	return stored, nil
}

func prepare(v rfp.Vendor, now time.Time) (rfp.Vendor, error) {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return rfp.Vendor{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(v.Email))
	if err != nil {
		return rfp.Vendor{}, fmt.Errorf("%w: email %q: %v", ErrInvalid, v.Email, err)
	}
	v.Email = normalizeEmail(addr.Address)
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now.UTC()
	}
	return v, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
