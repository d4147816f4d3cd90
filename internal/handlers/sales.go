// internal/handlers/sales.go
package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// SalesHandler handles sale recording and export
type SalesHandler struct {
	service ports.SalesService
	clock   ports.Clock
	logger  *slog.Logger
}

// NewSalesHandler creates a new sales handler
func NewSalesHandler(service ports.SalesService, clock ports.Clock, logger *slog.Logger) *SalesHandler {
	return &SalesHandler{
		service: service,
		clock:   clock,
		logger:  logger.With(slog.String("handler", "sales")),
	}
}

var exportHeaders = []string{
	"Sale ID", "Customer ID", "Customer", "Product", "Amount (" + domain.CurrencyCode + ")",
	"Status", "Payment Plan", "Devices", "Install Address", "Install Date", "Created At",
}

// Finalize handles POST /api/v1/sales
func (h *SalesHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, bodyErrorStatus(err), err.Error())
		return
	}

	sale, err := h.service.FinalizeSale(ctx, req)
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to record sale")
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, sale)
}

// List handles GET /api/v1/sales
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.ListSales(r.Context())
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to list sales")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, sales)
}

// Export handles GET /api/v1/sales/export
func (h *SalesHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sales, err := h.service.ListSales(ctx)
	if err != nil {
		respondDomainError(w, r, h.logger, err, "Failed to retrieve data")
		return
	}

	data, err := generateSalesWorkbook(sales)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate Excel file", slog.String("error", err.Error()))
		respondError(w, r, h.logger, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("sales_export_%s.xlsx", h.clock.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(ctx, "failed to write Excel response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "sales export completed",
		slog.Int("total_rows", len(sales)),
		slog.String("filename", filename))
}

// generateSalesWorkbook renders sales into an in-memory xlsx file
func generateSalesWorkbook(sales []*domain.Sale) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Sales")
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range exportHeaders {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for _, sale := range sales {
		row := sheet.AddRow()
		for _, value := range saleToRow(sale) {
			row.AddCell().Value = value
		}
	}

	for i := 1; i <= len(exportHeaders); i++ {
		sheet.SetColWidth(i, i, 18)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write Excel file to buffer: %w", err)
	}

	return buffer.Bytes(), nil
}

func saleToRow(s *domain.Sale) []string {
	return []string{
		s.ID,
		s.CustomerID,
		s.CustomerName,
		s.Product,
		domain.FormatAmount(s.Amount),
		string(s.Status),
		string(s.PaymentPlan),
		strings.Join(s.DeviceSerials, ", "),
		s.InstallAddress,
		s.InstallDate,
		s.CreatedAt.UTC().Format(time.DateTime),
	}
}
