package db_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/db"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
	"github.com/Colin-nwk/ubuxa-agent-sub000/test/helpers"
)

func TestStore_Initialize_SeedsReferenceData(t *testing.T) {
	store := helpers.SetupTestStore(t)
	ctx := context.Background()
	seed := domain.DefaultSeedData()

	for _, c := range domain.ReferenceCollections() {
		n, err := store.Count(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, len(seed.Records(c)), n, c)
	}

	for _, c := range []domain.Collection{domain.CollectionSales, domain.CollectionSyncQueue} {
		records, err := store.GetAll(ctx, c)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	}

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, db.SchemaVersion, version)
}

func TestStore_Initialize_Idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := helpers.TestStoreConfig(t)

	store := db.NewStore(cfg, helpers.TestLogger())
	require.NoError(t, store.Initialize(ctx))

	first, err := store.GetAll(ctx, domain.CollectionCustomers)
	require.NoError(t, err)

	require.NoError(t, store.Initialize(ctx))

	second, err := store.GetAll(ctx, domain.CollectionCustomers)
	require.NoError(t, err)
	assert.Len(t, second, len(first))
	require.NoError(t, store.Close())

	// Reopening the same file must not reseed or wipe existing rows
	reopened := db.NewStore(cfg, helpers.TestLogger())
	require.NoError(t, reopened.Initialize(ctx))
	defer reopened.Close()

	third, err := reopened.GetAll(ctx, domain.CollectionCustomers)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestStore_Initialize_KeepsDataAcrossRestart(t *testing.T) {
	ctx := context.Background()
	cfg := helpers.TestStoreConfig(t)

	store := db.NewStore(cfg, helpers.TestLogger())
	require.NoError(t, store.Initialize(ctx))
	sale := helpers.CreateTestSale()
	require.NoError(t, store.Add(ctx, domain.CollectionSales, sale))
	require.NoError(t, store.Close())

	reopened := db.NewStore(cfg, helpers.TestLogger())
	require.NoError(t, reopened.Initialize(ctx))
	defer reopened.Close()

	sales, err := reopened.GetAll(ctx, domain.CollectionSales)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, sale, sales[0])
}

func TestStore_Initialize_InterruptedSeedLeavesNoPartialCollection(t *testing.T) {
	ctx := context.Background()
	cfg := helpers.TestStoreConfig(t)

	broken := domain.DefaultSeedData()
	// second row collides with the first, so the customers seed fails midway
	broken.Customers = append(broken.Customers[:1:1], &domain.Customer{ID: broken.Customers[0].ID, Name: "Duplicate"})

	store := db.NewStore(cfg, helpers.TestLogger(), db.WithSeedData(broken))
	err := store.Initialize(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	n, err := store.Count(ctx, domain.CollectionCustomers)
	require.NoError(t, err)
	assert.Zero(t, n, "customers must be all-or-nothing")
	require.NoError(t, store.Close())

	// a later successful initialize seeds the collection in full
	fixed := db.NewStore(cfg, helpers.TestLogger())
	require.NoError(t, fixed.Initialize(ctx))
	defer fixed.Close()

	n, err = fixed.Count(ctx, domain.CollectionCustomers)
	require.NoError(t, err)
	assert.Equal(t, len(domain.DefaultSeedData().Customers), n)
}

func TestStore_Initialize_StorageUnavailable(t *testing.T) {
	ctx := context.Background()

	// a regular file where the store directory should be
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := helpers.TestStoreConfig(t)
	cfg.Path = filepath.Join(blocker, "portal.db")

	store := db.NewStore(cfg, helpers.TestLogger())
	err := store.Initialize(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	_, err = store.GetAll(ctx, domain.CollectionCustomers)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestStore_GetAll_Packages(t *testing.T) {
	store := helpers.SetupTestStore(t)

	records, err := store.GetAll(context.Background(), domain.CollectionPackages)
	require.NoError(t, err)
	require.Len(t, records, 3)

	var starter *domain.Package
	for _, r := range records {
		p := r.(*domain.Package)
		if p.Name == "Starter Home Bundle" {
			starter = p
		}
	}
	require.NotNil(t, starter)
	assert.Equal(t, int64(450000), starter.TotalPrice)
	assert.NotEmpty(t, starter.Components)
}

func TestStore_GetAll_UnknownCollection(t *testing.T) {
	store := helpers.SetupTestStore(t)
	ctx := context.Background()

	_, err := store.GetAll(ctx, domain.Collection("orders"))
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)

	_, err = store.Count(ctx, domain.Collection("orders"))
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)

	err = store.Clear(ctx, domain.Collection("orders"))
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)
}

func TestStore_Add_RoundTrip(t *testing.T) {
	store := helpers.SetupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		collection domain.Collection
		record     domain.Record
		// expected defaults to record
		expected domain.Record
	}{
		{
			name:       "customer",
			collection: domain.CollectionCustomers,
			record:     helpers.CreateTestCustomer(),
		},
		{
			name:       "inventory_item",
			collection: domain.CollectionInventory,
			record:     &domain.InventoryItem{ID: "INV-900", Name: "Surge Protector", UnitPrice: 18000, Stock: 12, IsSerialize: false},
		},
		{
			name:       "package",
			collection: domain.CollectionPackages,
			record:     &domain.Package{ID: "PKG-900", Name: "Clinic Backup Bundle", Components: []string{"Inverter", "Battery"}, TotalPrice: 2100000},
		},
		{
			name:       "device",
			collection: domain.CollectionDevices,
			record:     &domain.Device{SerialNumber: "SN-INV-0900", Model: "Hybrid Inverter 3.5kVA"},
		},
		{
			name:       "sale_with_signature",
			collection: domain.CollectionSales,
			record:     helpers.CreateTestSale(),
		},
		{
			name:       "sale_without_signature_or_devices",
			collection: domain.CollectionSales,
			record: helpers.CreateTestSale(func(s *domain.Sale) {
				s.ID = "SL-2026-5678"
				s.Signature = nil
				s.DeviceSerials = nil
				s.Status = domain.SaleStatusCompleted
			}),
		},
		{
			name:       "sale_in_local_zone_with_empty_serials",
			collection: domain.CollectionSales,
			record: helpers.CreateTestSale(func(s *domain.Sale) {
				s.ID = "SL-2026-6789"
				s.DeviceSerials = []string{}
				s.CreatedAt = time.Date(2026, 10, 14, 10, 0, 0, 0, time.FixedZone("WAT", 3600))
			}),
			expected: helpers.CreateTestSale(func(s *domain.Sale) {
				s.ID = "SL-2026-6789"
				s.DeviceSerials = nil
				s.CreatedAt = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
			}),
		},
		{
			name:       "sale_with_monotonic_timestamp",
			collection: domain.CollectionSales,
			record: helpers.CreateTestSale(func(s *domain.Sale) {
				s.ID = "SL-2026-7890"
				s.CreatedAt = time.Now()
			}),
		},
		{
			name:       "package_with_empty_components",
			collection: domain.CollectionPackages,
			record:     &domain.Package{ID: "PKG-901", Name: "Lantern Kit", Components: []string{}, TotalPrice: 35000},
			expected:   &domain.Package{ID: "PKG-901", Name: "Lantern Kit", TotalPrice: 35000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, store.Add(ctx, tt.collection, tt.record))

			// the written record is normalized in place to what reads return
			expected := tt.expected
			if expected == nil {
				expected = tt.record
			}
			assert.Equal(t, expected, tt.record)

			records, err := store.GetAll(ctx, tt.collection)
			require.NoError(t, err)
			require.NotEmpty(t, records)
			assert.True(t, reflect.DeepEqual(tt.record, records[len(records)-1]),
				"want %#v, got %#v", tt.record, records[len(records)-1])

			got, err := store.Get(ctx, tt.collection, tt.record.Key())
			require.NoError(t, err)
			assert.True(t, reflect.DeepEqual(tt.record, got), "want %#v, got %#v", tt.record, got)
		})
	}
}

func TestStore_Add_DuplicateKey(t *testing.T) {
	store := helpers.SetupTestStore(t)
	ctx := context.Background()

	existing, err := store.GetAll(ctx, domain.CollectionCustomers)
	require.NoError(t, err)
	require.NotEmpty(t, existing)

	err = store.Add(ctx, domain.CollectionCustomers, existing[0])
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	after, err := store.GetAll(ctx, domain.CollectionCustomers)
	require.NoError(t, err)
	assert.Len(t, after, len(existing))
}

func TestStore_Add_ValidatesRecords(t *testing.T) {
	store := helpers.SetupTestStore(t)
	ctx := context.Background()

	err := store.Add(ctx, domain.CollectionCustomers, &domain.Customer{ID: "77"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// a record of the wrong collection is rejected before touching the engine
	err = store.Add(ctx, domain.CollectionCustomers, &domain.Device{SerialNumber: "SN-1", Model: "X"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	n, err := store.Count(ctx, domain.CollectionCustomers)
	require.NoError(t, err)
	assert.Equal(t, len(domain.DefaultSeedData().Customers), n)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := helpers.SetupTestStore(t)

	_, err := store.Get(context.Background(), domain.CollectionCustomers, "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_SyncQueue_AssignsIncreasingIDs(t *testing.T) {
	store := helpers.SetupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	var ids []int64
	for i := 0; i < 3; i++ {
		entry, err := domain.NewSyncQueueEntry(domain.ActionCreateSale, helpers.CreateTestSale(), "corr", now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, store.Add(ctx, domain.CollectionSyncQueue, entry))
		ids = append(ids, entry.ID)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])

	records, err := store.GetAll(ctx, domain.CollectionSyncQueue)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, ids[i], r.(*domain.SyncQueueEntry).ID)
	}

	require.NoError(t, store.Clear(ctx, domain.CollectionSyncQueue))
	n, err := store.Count(ctx, domain.CollectionSyncQueue)
	require.NoError(t, err)
	assert.Zero(t, n)

	// ids keep increasing after a clear
	entry, err := domain.NewSyncQueueEntry(domain.ActionCreateSale, helpers.CreateTestSale(), "corr", now)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, domain.CollectionSyncQueue, entry))
	assert.Greater(t, entry.ID, ids[2])
}

func TestStore_Clear_ReferenceCollectionsAreReadOnly(t *testing.T) {
	store := helpers.SetupTestStore(t)
	ctx := context.Background()

	for _, c := range domain.ReferenceCollections() {
		err := store.Clear(ctx, c)
		assert.ErrorIs(t, err, domain.ErrReadOnlyCollection, c)
	}

	n, err := store.Count(ctx, domain.CollectionPackages)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_Transaction(t *testing.T) {
	store := helpers.SetupTestStore(t)
	ctx := context.Background()

	t.Run("commit_applies_all_writes", func(t *testing.T) {
		sale := helpers.CreateTestSale(func(s *domain.Sale) { s.ID = "SL-2026-0001" })
		err := store.Transaction(ctx, func(tx ports.StoreTx) error {
			if err := tx.Add(ctx, domain.CollectionSales, sale); err != nil {
				return err
			}
			entry, err := domain.NewSyncQueueEntry(domain.ActionCreateSale, sale, "c1", sale.CreatedAt)
			if err != nil {
				return err
			}
			return tx.Add(ctx, domain.CollectionSyncQueue, entry)
		})
		require.NoError(t, err)

		_, err = store.Get(ctx, domain.CollectionSales, sale.ID)
		assert.NoError(t, err)
		n, err := store.Count(ctx, domain.CollectionSyncQueue)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("error_rolls_back_all_writes", func(t *testing.T) {
		before, err := store.Count(ctx, domain.CollectionSyncQueue)
		require.NoError(t, err)

		sale := helpers.CreateTestSale(func(s *domain.Sale) { s.ID = "SL-2026-0002" })
		err = store.Transaction(ctx, func(tx ports.StoreTx) error {
			if err := tx.Add(ctx, domain.CollectionSales, sale); err != nil {
				return err
			}
			// invalid entry fails validation after the sale insert
			return tx.Add(ctx, domain.CollectionSyncQueue, &domain.SyncQueueEntry{Action: domain.ActionCreateSale})
		})
		require.ErrorIs(t, err, domain.ErrValidation)

		_, err = store.Get(ctx, domain.CollectionSales, sale.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		after, err := store.Count(ctx, domain.CollectionSyncQueue)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("panic_rolls_back_and_repanics", func(t *testing.T) {
		sale := helpers.CreateTestSale(func(s *domain.Sale) { s.ID = "SL-2026-0003" })
		assert.Panics(t, func() {
			_ = store.Transaction(ctx, func(tx ports.StoreTx) error {
				if err := tx.Add(ctx, domain.CollectionSales, sale); err != nil {
					return err
				}
				panic("boom")
			})
		})

		_, err := store.Get(ctx, domain.CollectionSales, sale.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStore_Health(t *testing.T) {
	store := helpers.SetupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	health := store.Health(ctx)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["initialized"])

	uninitialized := db.NewStore(helpers.TestStoreConfig(t), helpers.TestLogger())
	assert.Equal(t, "unhealthy", uninitialized.Health(ctx)["status"])
	assert.ErrorIs(t, uninitialized.Ping(ctx), domain.ErrStorageUnavailable)
}
