// internal/core/domain/sale.go
package domain

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// SaleStatus represents the lifecycle state of a sale
type SaleStatus string

// Status constants
const (
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusPending   SaleStatus = "PENDING"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// PaymentPlan represents how the customer pays
type PaymentPlan string

// Payment plan constants
const (
	PaymentPlanOutright PaymentPlan = "OUTRIGHT"
	PaymentPlanFinanced PaymentPlan = "FINANCED"
)

// InstallDateLayout is the calendar date format for installation dates
const InstallDateLayout = "2006-01-02"

var saleIDPattern = regexp.MustCompile(`^SL-\d{4}-\d{4}$`)

// Sale is an append-only record of a finalized sale
type Sale struct {
	ID             string      `json:"id" validate:"required"`
	CustomerID     string      `json:"customer_id" validate:"required"`
	CustomerName   string      `json:"customer_name"`
	Product        string      `json:"product" validate:"required"`
	Amount         int64       `json:"amount" validate:"gte=0"`
	Status         SaleStatus  `json:"status" validate:"required"`
	PaymentPlan    PaymentPlan `json:"payment_plan" validate:"required"`
	DeviceSerials  []string    `json:"device_serials" validate:"dive,required"`
	InstallAddress string      `json:"install_address"`
	InstallDate    string      `json:"install_date" validate:"omitempty,datetime=2006-01-02"`
	Signature      *string     `json:"signature,omitempty"`
	CreatedAt      time.Time   `json:"created_at" validate:"required"`
}

func (s *Sale) Collection() Collection { return CollectionSales }
func (s *Sale) Key() string            { return s.ID }

// Validate checks the invariants the struct tags cannot express
func (s *Sale) Validate() error {
	if !saleIDPattern.MatchString(s.ID) {
		return fmt.Errorf("%w: sale id %q must look like SL-<year>-<4 digits>", ErrValidation, s.ID)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: invalid sale status %q", ErrValidation, s.Status)
	}
	if !s.PaymentPlan.Valid() {
		return fmt.Errorf("%w: invalid payment plan %q", ErrValidation, s.PaymentPlan)
	}
	return nil
}

// Valid reports whether s is a known status
func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusCompleted, SaleStatusPending, SaleStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether p is a known payment plan
func (p PaymentPlan) Valid() bool {
	switch p {
	case PaymentPlanOutright, PaymentPlanFinanced:
		return true
	}
	return false
}

// GenerateSaleID returns SL-<year>-<4 digit suffix>
func GenerateSaleID(now time.Time, rng *rand.Rand) string {
	var n int
	if rng != nil {
		n = rng.IntN(10000)
	} else {
		n = rand.IntN(10000)
	}
	return fmt.Sprintf("SL-%d-%04d", now.Year(), n)
}

// LineItem selects a quantity of an inventory item
type LineItem struct {
	InventoryID string `json:"inventory_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
}

// SaleRequest carries the selections a sales workflow hands to FinalizeSale
type SaleRequest struct {
	CustomerID     string      `json:"customer_id" validate:"required"`
	PackageID      string      `json:"package_id,omitempty"`
	Items          []LineItem  `json:"items,omitempty" validate:"dive"`
	PaymentPlan    PaymentPlan `json:"payment_plan"`
	DeviceSerials  []string    `json:"device_serials,omitempty" validate:"dive,required"`
	InstallAddress string      `json:"install_address"`
	InstallDate    string      `json:"install_date" validate:"omitempty,datetime=2006-01-02"`
	Signature      *string     `json:"signature,omitempty"`
}

// Validate checks request preconditions that do not need the store
func (r *SaleRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if r.PackageID == "" && len(r.Items) == 0 {
		return fmt.Errorf("%w: either a package or at least one item is required", ErrValidation)
	}
	if r.PackageID != "" && len(r.Items) > 0 {
		return fmt.Errorf("%w: a sale is either a package or custom items, not both", ErrValidation)
	}
	if r.PaymentPlan == "" {
		r.PaymentPlan = PaymentPlanOutright
	}
	if !r.PaymentPlan.Valid() {
		return fmt.Errorf("%w: invalid payment plan %q", ErrValidation, r.PaymentPlan)
	}
	r.InstallAddress = strings.TrimSpace(r.InstallAddress)
	return nil
}

// IsPackage reports whether the request sells a package
func (r *SaleRequest) IsPackage() bool {
	return r.PackageID != ""
}
