// internal/core/domain/collection.go
package domain

import "fmt"

// Collection names one of the fixed store partitions
type Collection string

// Collection constants
const (
	CollectionCustomers Collection = "customers"
	CollectionInventory Collection = "inventory"
	CollectionPackages  Collection = "packages"
	CollectionDevices   Collection = "devices"
	CollectionSales     Collection = "sales"
	CollectionSyncQueue Collection = "sync_queue"
)

// Collections returns every collection in schema order
func Collections() []Collection {
	return []Collection{
		CollectionCustomers,
		CollectionInventory,
		CollectionPackages,
		CollectionDevices,
		CollectionSales,
		CollectionSyncQueue,
	}
}

// ReferenceCollections returns the seeded, read-only collections
func ReferenceCollections() []Collection {
	return []Collection{
		CollectionCustomers,
		CollectionInventory,
		CollectionPackages,
		CollectionDevices,
	}
}

// IsReference reports whether c holds seeded reference data
func (c Collection) IsReference() bool {
	switch c {
	case CollectionCustomers, CollectionInventory, CollectionPackages, CollectionDevices:
		return true
	}
	return false
}

// Valid reports whether c is part of the schema
func (c Collection) Valid() bool {
	return c.IsReference() || c == CollectionSales || c == CollectionSyncQueue
}

func (c Collection) String() string {
	return string(c)
}

// ParseCollection converts a name into a Collection
func ParseCollection(name string) (Collection, error) {
	c := Collection(name)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}
