// internal/workers/sale_archive_processor.go
package workers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// SaleArchiveProcessor archives replayed sales to object storage
type SaleArchiveProcessor struct {
	storage ports.ObjectStorage
	logger  *slog.Logger
}

// NewSaleArchiveProcessor creates a new sale archive processor
func NewSaleArchiveProcessor(storage ports.ObjectStorage, logger *slog.Logger) *SaleArchiveProcessor {
	return &SaleArchiveProcessor{
		storage: storage,
		logger:  logger.With(slog.String("processor", "sale_archive")),
	}
}

// SaleArchiveKey is the object key of an archived sale document
func SaleArchiveKey(sale *domain.Sale) string {
	return fmt.Sprintf("sales/%d/%s.json", sale.CreatedAt.Year(), sale.ID)
}

// ProcessCreateSale handles sync:create_sale tasks
func (p *SaleArchiveProcessor) ProcessCreateSale(ctx context.Context, t *asynq.Task) error {
	entry, err := decodeEntry(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	sale, err := entry.DecodeSale()
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := domain.ValidateRecord(sale); err != nil {
		return fmt.Errorf("invalid sale in entry %d: %v: %w", entry.ID, err, asynq.SkipRetry)
	}

	log := p.logger.With(
		slog.String("sale_id", sale.ID),
		slog.Int64("entry_id", entry.ID))

	key := SaleArchiveKey(sale)
	exists, err := p.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check archive: %w", err)
	}
	if exists {
		log.InfoContext(ctx, "sale already archived", slog.String("key", key))
		return nil
	}

	// the signature goes in its own object, the document keeps a pointer
	doc := *sale
	if sale.Signature != nil && *sale.Signature != "" {
		sigKey, err := p.archiveSignature(ctx, sale)
		if err != nil {
			return err
		}
		doc.Signature = &sigKey
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sale: %w", err)
	}

	location, err := p.storage.Upload(ctx, key, bytes.NewReader(data), "application/json")
	if err != nil {
		return fmt.Errorf("failed to archive sale: %w", err)
	}

	log.InfoContext(ctx, "sale archived",
		slog.String("key", key),
		slog.String("location", location),
		slog.Int64("amount", sale.Amount))

	return nil
}

func (p *SaleArchiveProcessor) archiveSignature(ctx context.Context, sale *domain.Sale) (string, error) {
	data, contentType, ext := decodeSignature(*sale.Signature)
	key := fmt.Sprintf("sales/%d/%s-signature%s", sale.CreatedAt.Year(), sale.ID, ext)

	if _, err := p.storage.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("failed to archive signature: %w", err)
	}
	return key, nil
}

// signatureExtensions pins the extension for the usual signature pad types;
// mime lists several for some of them in sorted order
var signatureExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/svg+xml": ".svg",
	"image/webp":    ".webp",
}

// decodeSignature unpacks a base64 data URL. Anything else is stored as text.
func decodeSignature(sig string) ([]byte, string, string) {
	const textType = "text/plain"

	rest, ok := strings.CutPrefix(sig, "data:")
	if !ok {
		return []byte(sig), textType, ".txt"
	}

	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return []byte(sig), textType, ".txt"
	}

	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 || contentType == "" {
		return []byte(sig), textType, ".txt"
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return []byte(sig), textType, ".txt"
	}

	if ext, ok := signatureExtensions[contentType]; ok {
		return data, contentType, ext
	}
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return data, contentType, ext
}
