// test/helpers/helpers.go
package helpers

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/db"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/pkg/config"
)

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestStoreConfig returns a store config pointing into a fresh temp dir
func TestStoreConfig(t testing.TB) *db.Config {
	t.Helper()

	return &db.Config{
		Path:               filepath.Join(t.TempDir(), "portal.db"),
		BusyTimeout:        time.Second,
		MaxOpenConns:       1,
		EnableQueryLogging: testing.Verbose(),
		MigrationRetries:   1,
	}
}

// SetupTestStore creates and initializes a file-backed store in a temp dir
func SetupTestStore(t testing.TB, opts ...db.StoreOption) *db.Store {
	t.Helper()

	store := db.NewStore(TestStoreConfig(t), TestLogger(), opts...)
	require.NoError(t, store.Initialize(context.Background()), "Could not initialize store")

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// SetupTestRedis creates a miniredis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// SetupMockDB creates a mock database for unit testing
func SetupMockDB(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock DB")

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return mock, sqlDB
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "agent-portal-test",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
		},
		Store: config.StoreConfig{
			Path:         "portal-test.db",
			BusyTimeout:  time.Second,
			MaxOpenConns: 1,
		},
		Sync: config.SyncConfig{
			TickInterval:      time.Second,
			SimulatedDelay:    10 * time.Millisecond,
			SaleIDMaxAttempts: 5,
		},
		Connectivity: config.ConnectivityConfig{
			Mode:          "manual",
			InitialOnline: true,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			TTL:      time.Minute,
			PoolSize: 10,
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			RequestIDHeader:   "X-Request-ID",
		},
		Server: config.ServerConfig{
			Host:              "localhost",
			Port:              "8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			MaxBodyBytes:      1 << 20,
			EnableHealthCheck: true,
		},
	}
}

// CreateTestCustomer creates a test customer
func CreateTestCustomer(overrides ...func(*domain.Customer)) *domain.Customer {
	c := &domain.Customer{
		ID:      "C-TEST-1",
		Name:    "Ifeoma Nwosu",
		Email:   "ifeoma.nwosu@example.com",
		Phone:   "+234 802 555 0199",
		Address: "5 Broad Street, Lagos Island",
	}
	for _, o := range overrides {
		o(c)
	}
	return c
}

// CreateTestSale creates a valid pending sale
func CreateTestSale(overrides ...func(*domain.Sale)) *domain.Sale {
	sig := "data:image/png;base64,iVBORw0KGgo="
	s := &domain.Sale{
		ID:             "SL-2026-1234",
		CustomerID:     "1",
		CustomerName:   "Adaeze Okafor",
		Product:        "Starter Home Bundle",
		Amount:         450000,
		Status:         domain.SaleStatusPending,
		PaymentPlan:    domain.PaymentPlanOutright,
		DeviceSerials:  []string{"SN-PNL-0001", "SN-BAT-0001"},
		InstallAddress: "14 Admiralty Way, Lekki, Lagos",
		InstallDate:    "2026-10-20",
		Signature:      &sig,
		CreatedAt:      time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC),
	}
	for _, o := range overrides {
		o(s)
	}
	return s
}

// CreateTestSaleRequest creates a package sale request for customer "1"
func CreateTestSaleRequest(overrides ...func(*domain.SaleRequest)) domain.SaleRequest {
	req := domain.SaleRequest{
		CustomerID:     "1",
		PackageID:      "PKG-001",
		PaymentPlan:    domain.PaymentPlanOutright,
		DeviceSerials:  []string{"SN-PNL-0001"},
		InstallAddress: "14 Admiralty Way, Lekki, Lagos",
		InstallDate:    "2026-10-20",
	}
	for _, o := range overrides {
		o(&req)
	}
	return req
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}

// FakeClock is a manually advanced clock
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

// NewFakeClock returns a clock frozen at now
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After fires once the clock is advanced past d
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	at := c.now.Add(d)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, fakeWaiter{at: at, ch: ch})
	return ch
}

// Advance moves the clock forward and fires due waiters
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		remaining = append(remaining, w)
	}
	c.waiters = remaining
}

// Waiters returns the number of pending After calls
func (c *FakeClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
