// internal/core/domain/seed.go
package domain

// SeedData holds the built-in reference rows inserted once per collection
type SeedData struct {
	Customers []*Customer      `json:"customers"`
	Inventory []*InventoryItem `json:"inventory"`
	Packages  []*Package       `json:"packages"`
	Devices   []*Device        `json:"devices"`
}

// Records returns the seed rows for c in insertion order
func (s SeedData) Records(c Collection) []Record {
	var out []Record
	switch c {
	case CollectionCustomers:
		for _, r := range s.Customers {
			out = append(out, r)
		}
	case CollectionInventory:
		for _, r := range s.Inventory {
			out = append(out, r)
		}
	case CollectionPackages:
		for _, r := range s.Packages {
			out = append(out, r)
		}
	case CollectionDevices:
		for _, r := range s.Devices {
			out = append(out, r)
		}
	}
	return out
}

// DefaultSeedData returns the reference data shipped with the portal
func DefaultSeedData() SeedData {
	return SeedData{
		Customers: []*Customer{
			{ID: "1", Name: "Adaeze Okafor", Email: "adaeze.okafor@example.com", Phone: "+234 803 555 0101", Address: "14 Admiralty Way, Lekki, Lagos"},
			{ID: "2", Name: "Musa Abdullahi", Email: "musa.abdullahi@example.com", Phone: "+234 805 555 0102", Address: "7 Ahmadu Bello Way, Kaduna"},
			{ID: "3", Name: "Chinwe Eze", Email: "chinwe.eze@example.com", Phone: "+234 807 555 0103", Address: "22 Ogui Road, Enugu"},
			{ID: "4", Name: "Tunde Bakare", Email: "tunde.bakare@example.com", Phone: "+234 809 555 0104", Address: "3 Ring Road, Ibadan"},
		},
		Inventory: []*InventoryItem{
			{ID: "INV-001", Name: "Monocrystalline Panel 450W", UnitPrice: 95000, Stock: 120, IsSerialize: true},
			{ID: "INV-002", Name: "Lithium Battery 5kWh", UnitPrice: 780000, Stock: 35, IsSerialize: true},
			{ID: "INV-003", Name: "Hybrid Inverter 3.5kVA", UnitPrice: 420000, Stock: 40, IsSerialize: true},
			{ID: "INV-004", Name: "MPPT Charge Controller 60A", UnitPrice: 85000, Stock: 60, IsSerialize: true},
			{ID: "INV-005", Name: "DC Cable 6mm (per metre)", UnitPrice: 1500, Stock: 2000, IsSerialize: false},
			{ID: "INV-006", Name: "Panel Mounting Kit", UnitPrice: 25000, Stock: 150, IsSerialize: false},
		},
		Packages: []*Package{
			{
				ID:         "PKG-001",
				Name:       "Starter Home Bundle",
				Components: []string{"2 x 200W Solar Panel", "1 x 1.2kWh Battery", "1 x 1kVA Inverter", "Installation Kit"},
				TotalPrice: 450000,
			},
			{
				ID:         "PKG-002",
				Name:       "Family Comfort Bundle",
				Components: []string{"4 x 450W Solar Panel", "1 x 5kWh Lithium Battery", "1 x 3.5kVA Hybrid Inverter", "Installation Kit"},
				TotalPrice: 1850000,
			},
			{
				ID:         "PKG-003",
				Name:       "Business Power Bundle",
				Components: []string{"10 x 450W Solar Panel", "2 x 5kWh Lithium Battery", "1 x 10kVA Hybrid Inverter", "MPPT Charge Controller 60A", "Installation Kit"},
				TotalPrice: 4750000,
			},
		},
		Devices: []*Device{
			{SerialNumber: "SN-PNL-0001", Model: "Monocrystalline Panel 450W"},
			{SerialNumber: "SN-PNL-0002", Model: "Monocrystalline Panel 450W"},
			{SerialNumber: "SN-BAT-0001", Model: "Lithium Battery 5kWh"},
			{SerialNumber: "SN-INV-0001", Model: "Hybrid Inverter 3.5kVA"},
			{SerialNumber: "SN-MPPT-0001", Model: "MPPT Charge Controller 60A"},
		},
	}
}
