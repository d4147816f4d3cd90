// internal/core/domain/records.go
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Record is a typed row of one of the store collections
type Record interface {
	Collection() Collection
	Key() string
}

// Customer is seeded reference data
type Customer struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address"`
}

func (c *Customer) Collection() Collection { return CollectionCustomers }
func (c *Customer) Key() string            { return c.ID }

// InventoryItem is a stock line. Prices are integer currency units.
type InventoryItem struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"`
	Stock       int    `json:"stock" validate:"gte=0"`
	IsSerialize bool   `json:"is_serialize"`
}

func (i *InventoryItem) Collection() Collection { return CollectionInventory }
func (i *InventoryItem) Key() string            { return i.ID }

// Package is a priced bundle of components
type Package struct {
	ID         string   `json:"id" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Components []string `json:"components" validate:"dive,required"`
	TotalPrice int64    `json:"total_price" validate:"gte=0"`
}

func (p *Package) Collection() Collection { return CollectionPackages }
func (p *Package) Key() string            { return p.ID }

// Device is an individually tracked unit keyed by serial number
type Device struct {
	SerialNumber string `json:"serial_number" validate:"required"`
	Model        string `json:"model" validate:"required"`
}

func (d *Device) Collection() Collection { return CollectionDevices }
func (d *Device) Key() string            { return d.SerialNumber }

// SyncQueueEntry is a mutation recorded while offline
type SyncQueueEntry struct {
	ID            int64           `json:"id"`
	Action        ActionType      `json:"action" validate:"required"`
	Payload       json.RawMessage `json:"payload" validate:"required"`
	CorrelationID string          `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp" validate:"required"`
}

func (e *SyncQueueEntry) Collection() Collection { return CollectionSyncQueue }
func (e *SyncQueueEntry) Key() string {
	if e.ID == 0 {
		return ""
	}
	return strconv.FormatInt(e.ID, 10)
}

// ActionType tags the replayable mutation
type ActionType string

// Action constants
const (
	ActionCreateSale ActionType = "CREATE_SALE"
)

// NewSyncQueueEntry encodes payload into a queue entry
func NewSyncQueueEntry(action ActionType, payload any, correlationID string, now time.Time) (*SyncQueueEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", action, err)
	}
	return &SyncQueueEntry{
		Action:        action,
		Payload:       raw,
		CorrelationID: correlationID,
		Timestamp:     now.UTC(),
	}, nil
}

// DecodeSale returns the sale carried by a CREATE_SALE entry
func (e *SyncQueueEntry) DecodeSale() (*Sale, error) {
	if e.Action != ActionCreateSale {
		return nil, fmt.Errorf("entry %d carries %s, not %s", e.ID, e.Action, ActionCreateSale)
	}
	var sale Sale
	if err := json.Unmarshal(e.Payload, &sale); err != nil {
		return nil, fmt.Errorf("failed to decode sale payload: %w", err)
	}
	return &sale, nil
}

// ValidateRecord checks the struct tags of r
func ValidateRecord(r Record) error {
	if r == nil {
		return fmt.Errorf("%w: nil record", ErrValidation)
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if s, ok := r.(*Sale); ok {
		return s.Validate()
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}
