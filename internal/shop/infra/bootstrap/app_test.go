package bootstrap

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/campify/internal/config"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/infra/fakeapi"
)

type env struct {
	backend *fakeapi.Server
	cfg     config.Config
	logger  *slog.Logger
}

func newEnv(t *testing.T, driver string) *env {
	t.Helper()
	backend := fakeapi.New()
	ts := backend.Start()
	t.Cleanup(ts.Close)

	cfg := config.Defaults("test-gateway", ":0")
	cfg.BackendURL = ts.URL
	cfg.RequestTimeout = 5 * time.Second
	cfg.Storage.Driver = driver
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "storage.db")
	return &env{backend: backend, cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (e *env) open(t *testing.T, admin bool) *App {
	t.Helper()
	app, err := New(context.Background(), e.cfg, Options{Admin: admin, Logger: e.logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func login(t *testing.T, app *App, email, password string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/session/login",
		bytes.NewBufferString(`{"email":"`+email+`","password":"`+password+`"}`))
	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestSessionSurvivesRestartWithSQLite(t *testing.T) {
	e := newEnv(t, config.DriverSQLite)
	user := e.backend.AddAccount("Ada", "ada@campify.io", "secret1", entity.RoleUser)
	lantern := e.backend.AddProduct(entity.Product{Name: "Lantern", Price: 40, Stock: 3})
	e.backend.SetCart(user.ID, map[string]int{lantern.ID: 2})

	first := e.open(t, false)
	require.Equal(t, http.StatusOK, login(t, first, "ada@campify.io", "secret1"))
	require.NoError(t, first.Close())

	second := e.open(t, false)
	cur, ok := second.Services.Session.Current()
	require.True(t, ok)
	assert.Equal(t, user.ID, cur.Identity.ID)
	assert.Equal(t, 2, second.Services.Cart.Count())
}

func TestAdminBuildDiscardsCustomerSession(t *testing.T) {
	e := newEnv(t, config.DriverSQLite)
	e.backend.AddAccount("Ada", "ada@campify.io", "secret1", entity.RoleUser)

	storefront := e.open(t, false)
	require.Equal(t, http.StatusOK, login(t, storefront, "ada@campify.io", "secret1"))
	require.NoError(t, storefront.Close())

	admin := e.open(t, true)
	_, ok := admin.Services.Session.Current()
	assert.False(t, ok)
	assert.NotNil(t, admin.Services.Users)
	assert.NotNil(t, admin.Services.Stats)
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	e := newEnv(t, config.DriverRedis)
	e.cfg.Storage.RedisAddr = mr.Addr()
	e.backend.AddAccount("Ada", "ada@campify.io", "secret1", entity.RoleUser)

	app := e.open(t, false)
	require.Equal(t, http.StatusOK, login(t, app, "ada@campify.io", "secret1"))
	assert.NotEmpty(t, mr.Keys())
}

func TestRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	e := newEnv(t, config.DriverRedis)
	e.cfg.Storage.RedisAddr = addr
	_, err := New(context.Background(), e.cfg, Options{Logger: e.logger})
	assert.Error(t, err)
}

func TestCheckoutLogIsOpened(t *testing.T) {
	e := newEnv(t, config.DriverMemory)
	e.cfg.CheckoutLog = filepath.Join(t.TempDir(), "checkout.db")

	app := e.open(t, false)
	assert.FileExists(t, e.cfg.CheckoutLog)
	require.NoError(t, app.Close())
}

func TestBackendMetricsAreRegistered(t *testing.T) {
	e := newEnv(t, config.DriverMemory)
	e.backend.AddAccount("Ada", "ada@campify.io", "secret1", entity.RoleUser)

	reg := prometheus.NewRegistry()
	app, err := New(context.Background(), e.cfg, Options{Logger: e.logger, Registry: reg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.Equal(t, http.StatusOK, login(t, app, "ada@campify.io", "secret1"))
	count, err := testutil.GatherAndCount(reg, "campify_backend_requests_total")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestAdminLogoutForgetsAdminData(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, config.DriverMemory)
	e.backend.AddAccount("Root", "root@campify.io", "secret1", entity.RoleAdmin)
	e.backend.SetStats(entity.DashboardStats{Orders: 5})

	app := e.open(t, true)
	require.Equal(t, http.StatusOK, login(t, app, "root@campify.io", "secret1"))
	require.NoError(t, app.Services.Users.Fetch(ctx))
	require.NoError(t, app.Services.Stats.Fetch(ctx, false))
	require.NotEmpty(t, app.Services.Users.Users())

	require.NoError(t, app.Services.Session.Logout(ctx))
	assert.Empty(t, app.Services.Users.Users())
	_, ok := app.Services.Stats.Stats()
	assert.False(t, ok)
}
