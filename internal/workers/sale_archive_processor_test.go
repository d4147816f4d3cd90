package workers_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/storage"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/workers"
	"github.com/Colin-nwk/ubuxa-agent-sub000/test/helpers"
	"github.com/Colin-nwk/ubuxa-agent-sub000/test/mocks"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func createSaleTask(t *testing.T, sale *domain.Sale) *asynq.Task {
	t.Helper()
	entry, err := domain.NewSyncQueueEntry(domain.ActionCreateSale, sale, sale.ID, sale.CreatedAt)
	require.NoError(t, err)
	entry.ID = 7

	task, err := workers.NewSyncTask(entry)
	require.NoError(t, err)
	return task
}

func TestSaleArchiveProcessor_ProcessCreateSale(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	processor := workers.NewSaleArchiveProcessor(storage.NewLocalStorage(base, helpers.TestLogger()), helpers.TestLogger())

	sale := helpers.CreateTestSale()
	require.NoError(t, processor.ProcessCreateSale(ctx, createSaleTask(t, sale)))

	assert.Equal(t, "sales/2026/SL-2026-1234.json", workers.SaleArchiveKey(sale))

	data, err := os.ReadFile(filepath.Join(base, "sales", "2026", "SL-2026-1234.json"))
	require.NoError(t, err)

	var archived domain.Sale
	require.NoError(t, json.Unmarshal(data, &archived))
	assert.Equal(t, sale.ID, archived.ID)
	assert.Equal(t, sale.Amount, archived.Amount)
	assert.Equal(t, sale.DeviceSerials, archived.DeviceSerials)
	require.NotNil(t, archived.Signature)
	assert.Equal(t, "sales/2026/SL-2026-1234-signature.png", *archived.Signature)

	sig, err := os.ReadFile(filepath.Join(base, "sales", "2026", "SL-2026-1234-signature.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, sig)
}

func TestSaleArchiveProcessor_PlainSignatureAndNoSignature(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	processor := workers.NewSaleArchiveProcessor(storage.NewLocalStorage(base, helpers.TestLogger()), helpers.TestLogger())

	plain := "A. Okafor"
	require.NoError(t, processor.ProcessCreateSale(ctx, createSaleTask(t, helpers.CreateTestSale(func(s *domain.Sale) {
		s.ID = "SL-2026-0001"
		s.Signature = &plain
	}))))
	sig, err := os.ReadFile(filepath.Join(base, "sales", "2026", "SL-2026-0001-signature.txt"))
	require.NoError(t, err)
	assert.Equal(t, plain, string(sig))

	require.NoError(t, processor.ProcessCreateSale(ctx, createSaleTask(t, helpers.CreateTestSale(func(s *domain.Sale) {
		s.ID = "SL-2026-0002"
		s.Signature = nil
	}))))
	entries, err := os.ReadDir(filepath.Join(base, "sales", "2026"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"SL-2026-0001.json", "SL-2026-0001-signature.txt", "SL-2026-0002.json"}, names)
}

func TestSaleArchiveProcessor_SignatureExtensions(t *testing.T) {
	tests := []struct {
		name        string
		signature   string
		expectedKey string
	}{
		{
			name:        "jpeg",
			signature:   "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff, 0xe0}),
			expectedKey: "sales/2026/SL-2026-0301-signature.jpg",
		},
		{
			name:        "svg",
			signature:   "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte("<svg/>")),
			expectedKey: "sales/2026/SL-2026-0301-signature.svg",
		},
		{
			name:        "unknown_type",
			signature:   "data:application/x-ubuxa-ink;base64," + base64.StdEncoding.EncodeToString([]byte("ink")),
			expectedKey: "sales/2026/SL-2026-0301-signature.bin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			processor := workers.NewSaleArchiveProcessor(storage.NewLocalStorage(base, helpers.TestLogger()), helpers.TestLogger())

			sig := tt.signature
			require.NoError(t, processor.ProcessCreateSale(context.Background(), createSaleTask(t, helpers.CreateTestSale(func(s *domain.Sale) {
				s.ID = "SL-2026-0301"
				s.Signature = &sig
			}))))

			_, err := os.Stat(filepath.Join(base, filepath.FromSlash(tt.expectedKey)))
			assert.NoError(t, err)
		})
	}
}

func TestSaleArchiveProcessor_Errors(t *testing.T) {
	tests := []struct {
		name          string
		task          func(t *testing.T) *asynq.Task
		setupMocks    func(*mocks.MockObjectStorage)
		expectedError bool
		skipRetry     bool
	}{
		{
			name: "malformed_payload_is_not_retried",
			task: func(*testing.T) *asynq.Task {
				return asynq.NewTask(workers.TypeCreateSale, []byte("{not json"))
			},
			setupMocks:    func(*mocks.MockObjectStorage) {},
			expectedError: true,
			skipRetry:     true,
		},
		{
			name: "invalid_sale_is_not_retried",
			task: func(t *testing.T) *asynq.Task {
				return createSaleTask(t, helpers.CreateTestSale(func(s *domain.Sale) { s.ID = "bogus" }))
			},
			setupMocks:    func(*mocks.MockObjectStorage) {},
			expectedError: true,
			skipRetry:     true,
		},
		{
			name: "already_archived_is_a_noop",
			task: func(t *testing.T) *asynq.Task { return createSaleTask(t, helpers.CreateTestSale()) },
			setupMocks: func(m *mocks.MockObjectStorage) {
				m.EXPECT().Exists(gomock.Any(), "sales/2026/SL-2026-1234.json").Return(true, nil)
			},
		},
		{
			name: "storage_failure_is_retried",
			task: func(t *testing.T) *asynq.Task { return createSaleTask(t, helpers.CreateTestSale()) },
			setupMocks: func(m *mocks.MockObjectStorage) {
				m.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
				m.EXPECT().
					Upload(gomock.Any(), "sales/2026/SL-2026-1234-signature.png", gomock.Any(), "image/png").
					Return("", errors.New("RequestTimeout"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			objects := mocks.NewMockObjectStorage(ctrl)
			tt.setupMocks(objects)

			processor := workers.NewSaleArchiveProcessor(objects, helpers.TestLogger())
			err := processor.ProcessCreateSale(context.Background(), tt.task(t))

			if !tt.expectedError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.skipRetry {
				assert.ErrorIs(t, err, asynq.SkipRetry)
			} else {
				assert.NotErrorIs(t, err, asynq.SkipRetry)
			}
		})
	}
}
