// Package testutil provides test helpers shared across packages: ledgers
// seeded with fixture catalogs and a fixed clock.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/aromance/internal/ledger"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/storage"
	"github.com/Veraticus/aromance/internal/testutil/catalog"
)

// Epoch is the fixed instant test clocks start from.
var Epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source.
type Clock struct {
	now time.Time
	mu  sync.Mutex
}

// NewClock returns a clock set to Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestDB is an in-memory SQLite ledger seeded with a catalog.
type TestDB struct {
	Storage  *storage.SQLiteStorage
	Clock    *Clock
	Products catalog.Products
	t        *testing.T
}

// SetupTestDB creates a migrated in-memory ledger and seeds products.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		catalog.NewBuilder(t).WithBasicCatalog().Build(),
//	)
func SetupTestDB(t *testing.T, products catalog.Products) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	clock := NewClock()
	store.SetClock(clock.Now)

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if err := products.Seed(ctx, store); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage:  store,
		Clock:    clock,
		Products: products,
		t:        t,
	}
}

// MustCreateUser stores a default profile for wallet or fails the test.
func (db *TestDB) MustCreateUser(wallet string) model.UserProfile {
	db.t.Helper()
	p := model.NewUserProfile(wallet, db.Clock.Now())
	if _, err := db.Storage.CreateProfile(context.Background(), p); err != nil {
		db.t.Fatalf("failed to create user %q: %v", wallet, err)
	}
	return p
}

// memorySeeder adapts the in-memory ledger to catalog.Seeder.
type memorySeeder struct {
	mem *ledger.Memory
}

func (m memorySeeder) SaveProduct(_ context.Context, p model.Product) error {
	m.mem.AddProduct(p)
	return nil
}

// NewMemoryLedger returns an in-memory ledger seeded with products and
// driven by the returned clock.
func NewMemoryLedger(t *testing.T, products catalog.Products) (*ledger.Memory, *Clock) {
	t.Helper()
	mem := ledger.NewMemory()
	clock := NewClock()
	mem.SetClock(clock.Now)
	if err := products.Seed(context.Background(), memorySeeder{mem: mem}); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}
	return mem, clock
}
