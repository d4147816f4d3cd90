package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/db"
	redis_a "github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/redis_adapter"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/handlers"
	"github.com/Colin-nwk/ubuxa-agent-sub000/test/helpers"
	"github.com/Colin-nwk/ubuxa-agent-sub000/test/mocks"
)

type fakeInspector struct {
	queues []string
	err    error
}

func (f *fakeInspector) Queues() ([]string, error) {
	return f.queues, f.err
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: queue, Size: 3, Pending: 2, Active: 1}, nil
}

func serveHealth(t *testing.T, h *handlers.HealthHandler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Readiness)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func idleMonitor(t *testing.T) *mocks.MockSyncMonitor {
	monitor := mocks.NewMockSyncMonitor(gomock.NewController(t))
	monitor.EXPECT().Status(gomock.Any()).Return(domain.SyncStatus{
		State:  domain.SyncStateOnlineIdle,
		Online: true,
	}).AnyTimes()
	return monitor
}

func TestHealthHandler_Health(t *testing.T) {
	cfg := helpers.LoadTestConfig()
	logger := helpers.TestLogger()

	t.Run("healthy", func(t *testing.T) {
		store := helpers.SetupTestStore(t)
		tr := helpers.SetupTestRedis(t)
		cache := redis_a.NewCache(tr.Client, time.Minute, logger)
		inspector := &fakeInspector{queues: []string{"sync"}}

		h := handlers.NewHealthHandler(store, cache, inspector, idleMonitor(t), cfg, logger)
		w, body := serveHealth(t, h, "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "test", body["version"])

		services := body["services"].(map[string]interface{})
		assert.Equal(t, "healthy", services["store"].(map[string]interface{})["status"])
		assert.Equal(t, "healthy", services["cache"].(map[string]interface{})["status"])

		queues := services["asynq"].(map[string]interface{})["details"].(map[string]interface{})["queues"].(map[string]interface{})
		assert.Contains(t, queues, "sync")

		assert.Equal(t, string(domain.SyncStateOnlineIdle), body["sync"].(map[string]interface{})["state"])
	})

	t.Run("store_not_initialized", func(t *testing.T) {
		store := db.NewStore(helpers.TestStoreConfig(t), logger)

		h := handlers.NewHealthHandler(store, nil, nil, nil, cfg, logger)
		w, body := serveHealth(t, h, "/health")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "degraded", body["status"])
		assert.NotContains(t, body, "sync")
	})

	t.Run("cache_down_only_degrades", func(t *testing.T) {
		store := helpers.SetupTestStore(t)
		tr := helpers.SetupTestRedis(t)
		cache := redis_a.NewCache(tr.Client, time.Minute, logger)
		tr.Server.Close()

		h := handlers.NewHealthHandler(store, cache, nil, idleMonitor(t), cfg, logger)
		w, body := serveHealth(t, h, "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "degraded", body["status"])
		services := body["services"].(map[string]interface{})
		assert.Equal(t, "unhealthy", services["cache"].(map[string]interface{})["status"])
	})

	t.Run("task_queue_unreachable", func(t *testing.T) {
		store := helpers.SetupTestStore(t)
		inspector := &fakeInspector{err: errors.New("dial tcp: connection refused")}

		h := handlers.NewHealthHandler(store, nil, inspector, nil, cfg, logger)
		w, body := serveHealth(t, h, "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "degraded", body["status"])
	})
}

func TestHealthHandler_Readiness(t *testing.T) {
	cfg := helpers.LoadTestConfig()
	logger := helpers.TestLogger()

	tests := []struct {
		name           string
		store          func(*testing.T) ports.Store
		cachePing      error
		expectedStatus int
		expectedCache  string
	}{
		{
			name:           "ready",
			store:          func(t *testing.T) ports.Store { return helpers.SetupTestStore(t) },
			expectedStatus: http.StatusOK,
			expectedCache:  "ready",
		},
		{
			name:           "cache_not_ready_is_still_ready",
			store:          func(t *testing.T) ports.Store { return helpers.SetupTestStore(t) },
			cachePing:      errors.New("connection refused"),
			expectedStatus: http.StatusOK,
			expectedCache:  "not ready",
		},
		{
			name: "store_not_ready",
			store: func(t *testing.T) ports.Store {
				return db.NewStore(helpers.TestStoreConfig(t), logger)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCache:  "ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := mocks.NewMockCacheRepository(gomock.NewController(t))
			cache.EXPECT().Ping(gomock.Any()).Return(tt.cachePing)

			h := handlers.NewHealthHandler(tt.store(t), cache, nil, nil, cfg, logger)
			w, body := serveHealth(t, h, "/ready")

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedStatus == http.StatusOK, body["ready"])
			details := body["details"].(map[string]interface{})
			assert.Equal(t, tt.expectedCache, details["cache"])
		})
	}
}
