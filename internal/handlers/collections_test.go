package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/handlers"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/handlers/middleware"
	"github.com/Colin-nwk/ubuxa-agent-sub000/test/helpers"
	"github.com/Colin-nwk/ubuxa-agent-sub000/test/mocks"
)

type testAPI struct {
	refs    *mocks.MockReferenceService
	sales   *mocks.MockSalesService
	monitor *mocks.MockSyncMonitor
	clock   *helpers.FakeClock
	handler http.Handler
}

// newTestAPI mounts every handler on a mux behind the request id middleware
func newTestAPI(t *testing.T, toggle handlers.ConnectivityToggle) *testAPI {
	t.Helper()

	ctrl := gomock.NewController(t)
	api := &testAPI{
		refs:    mocks.NewMockReferenceService(ctrl),
		sales:   mocks.NewMockSalesService(ctrl),
		monitor: mocks.NewMockSyncMonitor(ctrl),
		clock:   helpers.NewFakeClock(testNow),
	}

	logger := helpers.TestLogger()
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, handlers.Routes{
		Collections: handlers.NewCollectionsHandler(api.refs, logger),
		Sales:       handlers.NewSalesHandler(api.sales, api.clock, logger),
		Sync:        handlers.NewSyncHandler(api.monitor, toggle, logger),
	})
	api.handler = middleware.RequestID("X-Request-ID")(mux)

	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	return resp
}

func TestCollectionsHandler_List(t *testing.T) {
	packages := domain.DefaultSeedData().Records(domain.CollectionPackages)

	tests := []struct {
		name           string
		path           string
		setupMocks     func(*mocks.MockReferenceService)
		expectedStatus int
		validateBody   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "lists_packages",
			path: "/api/v1/collections/packages",
			setupMocks: func(m *mocks.MockReferenceService) {
				m.EXPECT().List(gomock.Any(), domain.CollectionPackages).Return(packages, nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp struct {
					Collection string           `json:"collection"`
					Records    []domain.Package `json:"records"`
					Count      int              `json:"count"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "packages", resp.Collection)
				assert.Equal(t, 3, resp.Count)
				assert.Equal(t, "Starter Home Bundle", resp.Records[0].Name)
				assert.Equal(t, int64(450000), resp.Records[0].TotalPrice)
			},
		},
		{
			name:           "unknown_collection",
			path:           "/api/v1/collections/orders",
			setupMocks:     func(*mocks.MockReferenceService) {},
			expectedStatus: http.StatusNotFound,
			validateBody: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Contains(t, decodeError(t, w).Error, "unknown collection")
			},
		},
		{
			name: "storage_unavailable",
			path: "/api/v1/collections/customers",
			setupMocks: func(m *mocks.MockReferenceService) {
				m.EXPECT().List(gomock.Any(), domain.CollectionCustomers).
					Return(nil, fmt.Errorf("%w: disk I/O error", domain.ErrStorageUnavailable))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name: "internal_error_is_not_leaked",
			path: "/api/v1/collections/customers",
			setupMocks: func(m *mocks.MockReferenceService) {
				m.EXPECT().List(gomock.Any(), domain.CollectionCustomers).
					Return(nil, errors.New("sql: scan error on column 2"))
			},
			expectedStatus: http.StatusInternalServerError,
			validateBody: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "Failed to list collection", decodeError(t, w).Error)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, nil)
			tt.setupMocks(api.refs)

			w := api.do(t, http.MethodGet, tt.path, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w)
			}
		})
	}
}

func TestCollectionsHandler_Count(t *testing.T) {
	api := newTestAPI(t, nil)
	api.refs.EXPECT().Count(gomock.Any(), domain.CollectionSyncQueue).Return(2, nil)

	w := api.do(t, http.MethodGet, "/api/v1/collections/sync_queue/count", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.CountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.CollectionSyncQueue, resp.Collection)
	assert.Equal(t, 2, resp.Count)
}

func TestCollectionsHandler_Add(t *testing.T) {
	customer := helpers.CreateTestCustomer()

	tests := []struct {
		name           string
		path           string
		body           interface{}
		setupMocks     func(*mocks.MockReferenceService)
		expectedStatus int
	}{
		{
			name: "adds_customer",
			path: "/api/v1/collections/customers",
			body: customer,
			setupMocks: func(m *mocks.MockReferenceService) {
				m.EXPECT().Add(gomock.Any(), domain.CollectionCustomers, customer).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "duplicate_customer",
			path: "/api/v1/collections/customers",
			body: customer,
			setupMocks: func(m *mocks.MockReferenceService) {
				m.EXPECT().Add(gomock.Any(), domain.CollectionCustomers, gomock.Any()).
					Return(fmt.Errorf("%w: customers %q", domain.ErrDuplicateKey, customer.ID))
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "invalid_record",
			path: "/api/v1/collections/devices",
			body: map[string]string{"serial_number": "SN-NEW-0001"},
			setupMocks: func(m *mocks.MockReferenceService) {
				m.EXPECT().Add(gomock.Any(), domain.CollectionDevices, gomock.Any()).
					Return(fmt.Errorf("%w: Model is required", domain.ErrValidation))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "sales_are_recorded_through_the_sales_endpoint",
			path:           "/api/v1/collections/sales",
			body:           helpers.CreateTestSale(),
			setupMocks:     func(*mocks.MockReferenceService) {},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "malformed_body",
			path:           "/api/v1/collections/customers",
			body:           "{not json",
			setupMocks:     func(*mocks.MockReferenceService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown_fields_rejected",
			path:           "/api/v1/collections/customers",
			body:           map[string]string{"id": "9", "name": "X", "nickname": "y"},
			setupMocks:     func(*mocks.MockReferenceService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, nil)
			tt.setupMocks(api.refs)

			w := api.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}
