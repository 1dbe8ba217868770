// Package bootstrap composes the providers of one gateway process.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jcmexdev/campify/internal/config"
	"github.com/jcmexdev/campify/internal/coordinator/checkoutlog/sqlite"
	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/pkg/notify"
	"github.com/jcmexdev/campify/internal/pkg/storage"
	sqlitestore "github.com/jcmexdev/campify/internal/pkg/storage/sqlite"
	"github.com/jcmexdev/campify/internal/pkg/telemetry"
	"github.com/jcmexdev/campify/internal/shop/app/cart"
	"github.com/jcmexdev/campify/internal/shop/app/catalog"
	"github.com/jcmexdev/campify/internal/shop/app/order"
	"github.com/jcmexdev/campify/internal/shop/app/session"
	"github.com/jcmexdev/campify/internal/shop/app/stats"
	"github.com/jcmexdev/campify/internal/shop/app/users"
	"github.com/jcmexdev/campify/internal/shop/infra/adapters/payment"
	"github.com/jcmexdev/campify/internal/shop/infra/httpx"
)

type Options struct {
	// Admin builds the administration gateway.
	Admin    bool
	Logger   *slog.Logger
	Registry *prometheus.Registry
	// HTTPClient replaces the backend client's http.Client.
	HTTPClient *http.Client
}

// App is a composed gateway.
type App struct {
	Services httpx.Services
	Handler  http.Handler

	closers []func() error
}

// New wires every provider for cfg and restores the persisted session.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	loc, err := apiclient.NewLocation(cfg.BackendURL)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	if err := registry.Register(metrics); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	app := &App{}
	store, err := app.openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clientOpts := []apiclient.Option{
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithLogger(logger),
		apiclient.WithObserver(metrics),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(opts.HTTPClient))
	}
	client := apiclient.New(loc, clientOpts...)
	dispatcher := notify.NewDispatcher(notify.WithLogger(logger), notify.WithObserver(metrics))

	sessOpts := []session.Option{session.WithLogger(logger)}
	if opts.Admin {
		sessOpts = append(sessOpts, session.AdminOnly())
	}
	sessions := session.New(client, store, dispatcher, sessOpts...)

	orderOpts := []order.Option{order.WithLogger(logger)}
	if cfg.CheckoutLog != "" {
		repo, err := sqlite.Open(cfg.CheckoutLog)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.closers = append(app.closers, repo.Close)
		orderOpts = append(orderOpts, order.WithCheckoutLog(repo))
	}

	carts := cart.New(client, sessions, store, dispatcher, cart.WithLogger(logger))
	orders := order.New(client, sessions, payment.NewStub(cfg.PaymentLimit, logger), dispatcher, orderOpts...)

	sessions.OnLogin(carts.HandleLogin)
	sessions.OnLogin(orders.HandleLogin)
	sessions.OnLogout(carts.HandleLogout)
	sessions.OnLogout(orders.HandleLogout)

	app.Services = httpx.Services{
		Session:       sessions,
		Catalog:       catalog.New(client, loc, sessions, dispatcher, catalog.WithLogger(logger)),
		Cart:          carts,
		Orders:        orders,
		Notifications: dispatcher,
	}
	if opts.Admin {
		app.Services.Users = users.New(client, sessions, dispatcher, users.WithLogger(logger))
		app.Services.Stats = stats.New(client, sessions, dispatcher, stats.WithLogger(logger))
		sessions.OnLogout(app.Services.Users.HandleLogout)
		sessions.OnLogout(app.Services.Stats.HandleLogout)
	}

	carts.Prime(ctx)
	if err := sessions.Restore(ctx); err != nil {
		logger.WarnContext(ctx, "stored session not restored", "error", err)
	}

	app.Handler = httpx.NewRouter(httpx.NewHandler(app.Services, logger), httpx.RouterOptions{
		Admin:       opts.Admin,
		Gatherer:    registry,
		ServiceName: cfg.ServiceName,
	})
	return app, nil
}

func (a *App) openStorage(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		rdb := storage.NewRedis(cfg.Storage.RedisAddr, cfg.ServiceName)
		if err := rdb.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("storage: redis at %s: %w", cfg.Storage.RedisAddr, err)
		}
		a.closers = append(a.closers, rdb.Close)
		return rdb, nil
	case config.DriverSQLite:
		st, err := sqlitestore.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	default:
		return storage.NewMemory(), nil
	}
}

// Close releases the storage and checkout log handles.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
