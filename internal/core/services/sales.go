// internal/core/services/sales.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// DefaultSaleIDMaxAttempts bounds id regeneration after collisions
const DefaultSaleIDMaxAttempts = 5

// SalesOption customizes a SalesService
type SalesOption func(*SalesService)

// WithSaleIDAttempts sets how many ids are tried before giving up
func WithSaleIDAttempts(n int) SalesOption {
	return func(s *SalesService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRand sets the source of sale id suffixes
func WithRand(rng *rand.Rand) SalesOption {
	return func(s *SalesService) { s.rng = rng }
}

// WithReferenceInvalidation refreshes cached reference lists after each sale
func WithReferenceInvalidation(ref ports.ReferenceService) SalesOption {
	return func(s *SalesService) { s.references = ref }
}

// SalesService records finalized sales
type SalesService struct {
	store        ports.Store
	queue        ports.SyncQueue
	connectivity ports.ConnectivityProvider
	references   ports.ReferenceService
	clock        ports.Clock
	maxAttempts  int
	logger       *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ ports.SalesService = (*SalesService)(nil)

// NewSalesService creates a sales service
func NewSalesService(
	store ports.Store,
	queue ports.SyncQueue,
	connectivity ports.ConnectivityProvider,
	clock ports.Clock,
	logger *slog.Logger,
	opts ...SalesOption,
) *SalesService {
	if clock == nil {
		clock = SystemClock{}
	}
	s := &SalesService{
		store:        store,
		queue:        queue,
		connectivity: connectivity,
		clock:        clock,
		maxAttempts:  DefaultSaleIDMaxAttempts,
		logger:       logger.With(slog.String("service", "sales")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FinalizeSale validates the request, prices it and writes the sale.
// Online sales are COMPLETED. Offline sales are PENDING and get a CREATE_SALE
// queue entry in the same transaction.
func (s *SalesService) FinalizeSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	customer, err := s.customer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	product, amount, err := s.price(ctx, &req)
	if err != nil {
		return nil, err
	}

	if err := s.checkDevices(ctx, req.DeviceSerials); err != nil {
		return nil, err
	}

	// classification uses the connectivity snapshot at call time
	online := s.connectivity.IsOnline()
	status := domain.SaleStatusCompleted
	if !online {
		status = domain.SaleStatusPending
	}

	now := s.clock.Now().UTC()
	sale := &domain.Sale{
		CustomerID:     customer.ID,
		CustomerName:   customer.Name,
		Product:        product,
		Amount:         amount,
		Status:         status,
		PaymentPlan:    req.PaymentPlan,
		DeviceSerials:  req.DeviceSerials,
		InstallAddress: req.InstallAddress,
		InstallDate:    req.InstallDate,
		Signature:      req.Signature,
		CreatedAt:      now,
	}
	if sale.InstallAddress == "" {
		sale.InstallAddress = customer.Address
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		sale.ID = s.nextSaleID(now)

		err := s.store.Transaction(ctx, func(tx ports.StoreTx) error {
			if err := tx.Add(ctx, domain.CollectionSales, sale); err != nil {
				return err
			}
			if online {
				return nil
			}
			_, err := s.queue.EnqueueTx(ctx, tx, domain.ActionCreateSale, sale)
			return err
		})
		if err == nil {
			lastErr = nil
			break
		}
		if !errors.Is(err, domain.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to record sale: %w", err)
		}

		lastErr = err
		s.logger.WarnContext(ctx, "sale id collision, regenerating",
			slog.String("sale_id", sale.ID),
			slog.Int("attempt", attempt))
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to allocate a unique sale id after %d attempts: %w", s.maxAttempts, lastErr)
	}

	if s.references != nil {
		if err := s.references.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate reference cache", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "sale finalized",
		slog.String("sale_id", sale.ID),
		slog.String("customer_id", sale.CustomerID),
		slog.String("status", string(sale.Status)),
		slog.String("amount", domain.FormatAmount(sale.Amount)),
		slog.Bool("queued", !online))

	return sale, nil
}

// ListSales returns every recorded sale in insertion order
func (s *SalesService) ListSales(ctx context.Context) ([]*domain.Sale, error) {
	records, err := s.store.GetAll(ctx, domain.CollectionSales)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	sales := make([]*domain.Sale, 0, len(records))
	for _, r := range records {
		sale, ok := r.(*domain.Sale)
		if !ok {
			return nil, fmt.Errorf("unexpected %T in sales", r)
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func (s *SalesService) customer(ctx context.Context, id string) (*domain.Customer, error) {
	r, err := s.store.Get(ctx, domain.CollectionCustomers, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown customer %q: %w", domain.ErrValidation, id, err)
		}
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return r.(*domain.Customer), nil
}

// price returns the product label and total for the request
func (s *SalesService) price(ctx context.Context, req *domain.SaleRequest) (string, int64, error) {
	if req.IsPackage() {
		r, err := s.store.Get(ctx, domain.CollectionPackages, req.PackageID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return "", 0, fmt.Errorf("%w: unknown package %q: %w", domain.ErrValidation, req.PackageID, err)
			}
			return "", 0, fmt.Errorf("failed to load package: %w", err)
		}
		pkg := r.(*domain.Package)
		return pkg.Name, pkg.TotalPrice, nil
	}

	var (
		total  domain.Money
		labels = make([]string, 0, len(req.Items))
	)
	for _, line := range req.Items {
		r, err := s.store.Get(ctx, domain.CollectionInventory, line.InventoryID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return "", 0, fmt.Errorf("%w: unknown inventory item %q: %w", domain.ErrValidation, line.InventoryID, err)
			}
			return "", 0, fmt.Errorf("failed to load inventory item: %w", err)
		}
		item := r.(*domain.InventoryItem)
		total.AddLine(item.UnitPrice, line.Quantity)
		labels = append(labels, fmt.Sprintf("%d x %s", line.Quantity, item.Name))
	}

	amount, err := total.Amount()
	if err != nil {
		return "", 0, err
	}
	return strings.Join(labels, ", "), amount, nil
}

func (s *SalesService) checkDevices(ctx context.Context, serials []string) error {
	seen := make(map[string]struct{}, len(serials))
	for _, serial := range serials {
		if _, dup := seen[serial]; dup {
			return fmt.Errorf("%w: device %q assigned twice", domain.ErrValidation, serial)
		}
		seen[serial] = struct{}{}

		if _, err := s.store.Get(ctx, domain.CollectionDevices, serial); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: unknown device %q: %w", domain.ErrValidation, serial, err)
			}
			return fmt.Errorf("failed to load device: %w", err)
		}
	}
	return nil
}

func (s *SalesService) nextSaleID(now time.Time) string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return domain.GenerateSaleID(now, s.rng)
}
