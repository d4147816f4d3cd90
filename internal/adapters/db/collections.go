// internal/adapters/db/collections.go
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// table maps a collection onto its SQL table
type table struct {
	table   string
	key     string
	columns []string
	orderBy string
	// autoKey tables let the engine assign the key when the record has none
	autoKey bool
	// normalize rewrites the record into the form scan returns it in
	normalize func(r domain.Record)
	values    func(r domain.Record) ([]any, error)
	scan      func(s rowScanner) (domain.Record, error)
}

var tables = map[domain.Collection]*table{
	domain.CollectionCustomers: {
		table:   "customers",
		key:     "id",
		columns: []string{"id", "name", "email", "phone", "address"},
		orderBy: "rowid",
		values: func(r domain.Record) ([]any, error) {
			c := r.(*domain.Customer)
			return []any{c.ID, c.Name, c.Email, c.Phone, c.Address}, nil
		},
		scan: func(s rowScanner) (domain.Record, error) {
			var c domain.Customer
			if err := s.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address); err != nil {
				return nil, err
			}
			return &c, nil
		},
	},
	domain.CollectionInventory: {
		table:   "inventory",
		key:     "id",
		columns: []string{"id", "name", "unit_price", "stock", "is_serialize"},
		orderBy: "rowid",
		values: func(r domain.Record) ([]any, error) {
			i := r.(*domain.InventoryItem)
			return []any{i.ID, i.Name, i.UnitPrice, i.Stock, i.IsSerialize}, nil
		},
		scan: func(s rowScanner) (domain.Record, error) {
			var i domain.InventoryItem
			if err := s.Scan(&i.ID, &i.Name, &i.UnitPrice, &i.Stock, &i.IsSerialize); err != nil {
				return nil, err
			}
			return &i, nil
		},
	},
	domain.CollectionPackages: {
		table:   "packages",
		key:     "id",
		columns: []string{"id", "name", "components", "total_price"},
		orderBy: "rowid",
		normalize: func(r domain.Record) {
			p := r.(*domain.Package)
			p.Components = normalizeList(p.Components)
		},
		values: func(r domain.Record) ([]any, error) {
			p := r.(*domain.Package)
			components, err := encodeList(p.Components)
			if err != nil {
				return nil, err
			}
			return []any{p.ID, p.Name, components, p.TotalPrice}, nil
		},
		scan: func(s rowScanner) (domain.Record, error) {
			var (
				p          domain.Package
				components string
			)
			if err := s.Scan(&p.ID, &p.Name, &components, &p.TotalPrice); err != nil {
				return nil, err
			}
			list, err := decodeList(components)
			if err != nil {
				return nil, fmt.Errorf("package %s components: %w", p.ID, err)
			}
			p.Components = list
			return &p, nil
		},
	},
	domain.CollectionDevices: {
		table:   "devices",
		key:     "serial_number",
		columns: []string{"serial_number", "model"},
		orderBy: "rowid",
		values: func(r domain.Record) ([]any, error) {
			d := r.(*domain.Device)
			return []any{d.SerialNumber, d.Model}, nil
		},
		scan: func(s rowScanner) (domain.Record, error) {
			var d domain.Device
			if err := s.Scan(&d.SerialNumber, &d.Model); err != nil {
				return nil, err
			}
			return &d, nil
		},
	},
	domain.CollectionSales: {
		table: "sales",
		key:   "id",
		columns: []string{
			"id", "customer_id", "customer_name", "product", "amount", "status",
			"payment_plan", "device_serials", "install_address", "install_date",
			"signature", "created_at",
		},
		orderBy: "rowid",
		normalize: func(r domain.Record) {
			s := r.(*domain.Sale)
			s.DeviceSerials = normalizeList(s.DeviceSerials)
			s.CreatedAt = normalizeTime(s.CreatedAt)
		},
		values: func(r domain.Record) ([]any, error) {
			s := r.(*domain.Sale)
			serials, err := encodeList(s.DeviceSerials)
			if err != nil {
				return nil, err
			}
			var signature sql.NullString
			if s.Signature != nil {
				signature = sql.NullString{String: *s.Signature, Valid: true}
			}
			return []any{
				s.ID, s.CustomerID, s.CustomerName, s.Product, s.Amount, string(s.Status),
				string(s.PaymentPlan), serials, s.InstallAddress, s.InstallDate,
				signature, encodeTime(s.CreatedAt),
			}, nil
		},
		scan: func(sc rowScanner) (domain.Record, error) {
			var (
				s         domain.Sale
				status    string
				plan      string
				serials   string
				signature sql.NullString
				createdAt string
			)
			if err := sc.Scan(
				&s.ID, &s.CustomerID, &s.CustomerName, &s.Product, &s.Amount, &status,
				&plan, &serials, &s.InstallAddress, &s.InstallDate,
				&signature, &createdAt,
			); err != nil {
				return nil, err
			}
			s.Status = domain.SaleStatus(status)
			s.PaymentPlan = domain.PaymentPlan(plan)
			list, err := decodeList(serials)
			if err != nil {
				return nil, fmt.Errorf("sale %s device serials: %w", s.ID, err)
			}
			s.DeviceSerials = list
			if signature.Valid {
				sig := signature.String
				s.Signature = &sig
			}
			if s.CreatedAt, err = decodeTime(createdAt); err != nil {
				return nil, fmt.Errorf("sale %s created_at: %w", s.ID, err)
			}
			return &s, nil
		},
	},
	domain.CollectionSyncQueue: {
		table:   "sync_queue",
		key:     "id",
		columns: []string{"id", "action", "payload", "correlation_id", "created_at"},
		orderBy: "id",
		autoKey: true,
		normalize: func(r domain.Record) {
			e := r.(*domain.SyncQueueEntry)
			if len(e.Payload) == 0 {
				e.Payload = nil
			}
			e.Timestamp = normalizeTime(e.Timestamp)
		},
		values: func(r domain.Record) ([]any, error) {
			e := r.(*domain.SyncQueueEntry)
			return []any{e.ID, string(e.Action), string(e.Payload), e.CorrelationID, encodeTime(e.Timestamp)}, nil
		},
		scan: func(s rowScanner) (domain.Record, error) {
			var (
				e         domain.SyncQueueEntry
				action    string
				payload   string
				createdAt string
			)
			if err := s.Scan(&e.ID, &action, &payload, &e.CorrelationID, &createdAt); err != nil {
				return nil, err
			}
			e.Action = domain.ActionType(action)
			if payload != "" {
				e.Payload = json.RawMessage(payload)
			}
			var err error
			if e.Timestamp, err = decodeTime(createdAt); err != nil {
				return nil, fmt.Errorf("sync entry %d created_at: %w", e.ID, err)
			}
			return &e, nil
		},
	},
}

func tableFor(c domain.Collection) (*table, error) {
	tbl, ok := tables[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCollection, c)
	}
	return tbl, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func normalizeList(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	return list
}

// decodeList returns nil for an empty list, matching normalizeList
func decodeList(s string) ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}

// normalizeTime drops the monotonic reading and the zone, which the stored
// text form does not keep
func normalizeTime(t time.Time) time.Time {
	return t.Round(0).UTC()
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
