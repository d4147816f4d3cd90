// internal/core/ports/services.go
package ports

import (
	"context"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
)

// SalesService records finalized sales
type SalesService interface {
	FinalizeSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]*domain.Sale, error)
}

// ReferenceService serves collection reads to the UI
type ReferenceService interface {
	List(ctx context.Context, c domain.Collection) ([]domain.Record, error)
	Count(ctx context.Context, c domain.Collection) (int, error)
	Add(ctx context.Context, c domain.Collection, r domain.Record) error
	Invalidate(ctx context.Context) error
}
