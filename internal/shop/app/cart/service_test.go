package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/pkg/notify"
	"github.com/jcmexdev/campify/internal/pkg/storage"
	"github.com/jcmexdev/campify/internal/shop/app/session"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
	"github.com/jcmexdev/campify/internal/shop/core/ports"
	"github.com/jcmexdev/campify/internal/shop/infra/fakeapi"
)

type fixture struct {
	*fakeapi.Harness
	store    *storage.Memory
	sessions *session.Service
	cart     *Service
	user     entity.Identity
	lantern  entity.Product
	mug      entity.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithBackend(t, nil)
}

// newFixtureWithBackend lets a test wrap the backend seen by the cart.
func newFixtureWithBackend(t *testing.T, wrap func(ports.Backend) ports.Backend) *fixture {
	t.Helper()
	h := fakeapi.NewHarness(t)
	store := storage.NewMemory()
	sessions := session.New(h.Client, store, h.Dispatcher, session.WithClock(h.Clock), session.WithLogger(h.Logger))

	var backend ports.Backend = h.Client
	if wrap != nil {
		backend = wrap(backend)
	}
	c := New(backend, sessions, store, h.Dispatcher, WithLogger(h.Logger))
	sessions.OnLogin(c.HandleLogin)
	sessions.OnLogout(c.HandleLogout)

	return &fixture{
		Harness:  h,
		store:    store,
		sessions: sessions,
		cart:     c,
		user:     h.Server.AddAccount("Ada", "ada@campify.io", "secret1", entity.RoleUser),
		lantern:  h.Server.AddProduct(entity.Product{Name: "Lantern", Price: 10, Stock: 5, ImageRef: "lantern.png"}),
		mug:      h.Server.AddProduct(entity.Product{Name: "Mug", Price: 5, Stock: 5}),
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.True(t, f.sessions.Login(context.Background(), "ada@campify.io", "secret1").Success)
}

func (f *fixture) cached(t *testing.T) []entity.CartLine {
	t.Helper()
	raw, err := f.store.Get(context.Background(), storage.KeyCart)
	require.NoError(t, err)
	if raw == "" {
		return nil
	}
	var lines []entity.CartLine
	require.NoError(t, json.Unmarshal([]byte(raw), &lines))
	return lines
}

func TestAddTotalsAndNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t)
	assert.Equal(t, StateLoaded, f.cart.State())

	require.NoError(t, f.cart.Add(ctx, f.lantern.Snapshot()))
	require.NoError(t, f.cart.Add(ctx, f.lantern.Snapshot()))
	require.NoError(t, f.cart.Add(ctx, f.mug.Snapshot()))

	assert.Equal(t, 3, f.cart.Count())
	assert.InDelta(t, 25.0, f.cart.Total(), 1e-9)
	assert.Equal(t, StateLoaded, f.cart.State())
	assert.Equal(t, map[string]int{f.lantern.ID: 2, f.mug.ID: 1}, f.Server.CartQuantities(f.user.ID))

	assert.Contains(t, f.Messages(notify.KindSuccess), "Lantern has been added to your cart")
	assert.Contains(t, f.Messages(notify.KindSuccess), "Increased quantity of Lantern")
	assert.Equal(t, f.cart.Lines(), f.cached(t))
}

func TestAddRequiresSession(t *testing.T) {
	f := newFixture(t)

	err := f.cart.Add(context.Background(), f.lantern.Snapshot())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, []string{MsgLoginRequired}, f.Messages(notify.KindInfo))
	assert.Zero(t, f.Server.CountRequests(http.MethodPost, "/api/users/cart/"+f.user.ID+"/add/"))
	assert.Equal(t, StateEmpty, f.cart.State())
}

func TestLocalDisplayFieldsWin(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	snap := f.lantern.Snapshot()
	snap.Name = "Lantern (sale)"
	snap.Price = 8
	require.NoError(t, f.cart.Add(context.Background(), snap))

	lines := f.cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "Lantern (sale)", lines[0].Name)
	assert.Equal(t, 8.0, lines[0].Price)
	assert.Equal(t, "lantern.png", lines[0].ImageRef)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestIncrementThenDecrementRemovesLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t)

	const n = 3
	for range n {
		require.NoError(t, f.cart.Add(ctx, f.lantern.Snapshot()))
	}
	require.NoError(t, f.cart.Add(ctx, f.mug.Snapshot()))

	for q := n - 1; q >= 0; q-- {
		require.NoError(t, f.cart.UpdateQuantity(ctx, f.lantern.ID, q))
	}
	assert.Equal(t, -1, entity.FindLine(f.cart.Lines(), f.lantern.ID))
	assert.Equal(t, 1, f.cart.Count())
}

func TestUpdateQuantityZeroEqualsRemove(t *testing.T) {
	ctx := context.Background()

	type outcome struct {
		lines   map[string]int
		server  int
		success []string
	}
	run := func(t *testing.T, drop func(f *fixture) error) outcome {
		f := newFixture(t)
		f.login(t)
		require.NoError(t, f.cart.Add(ctx, f.lantern.Snapshot()))
		require.NoError(t, f.cart.Add(ctx, f.lantern.Snapshot()))
		require.NoError(t, f.cart.Add(ctx, f.mug.Snapshot()))
		require.NoError(t, drop(f))

		byName := map[string]int{}
		for _, l := range f.cart.Lines() {
			byName[l.Name] = l.Quantity
		}
		return outcome{lines: byName, server: len(f.Server.CartQuantities(f.user.ID)), success: f.Messages(notify.KindSuccess)}
	}

	viaUpdate := run(t, func(f *fixture) error { return f.cart.UpdateQuantity(ctx, f.lantern.ID, 0) })
	viaRemove := run(t, func(f *fixture) error { return f.cart.Remove(ctx, f.lantern.ID) })

	assert.Equal(t, map[string]int{"Mug": 1}, viaUpdate.lines)
	assert.Equal(t, viaUpdate, viaRemove)
}

func TestFetchOnLogin(t *testing.T) {
	f := newFixture(t)
	f.Server.SetCart(f.user.ID, map[string]int{f.lantern.ID: 2, f.mug.ID: 1})

	f.login(t)
	assert.False(t, f.cart.Loading())
	assert.Equal(t, 3, f.cart.Count())
	assert.InDelta(t, 25.0, f.cart.Total(), 1e-9)
	assert.Equal(t, 1, f.Server.CountRequests(http.MethodGet, "/api/users/cart/"+f.user.ID+"/"))

	// same identity again is not a login transition
	f.login(t)
	assert.Equal(t, 1, f.Server.CountRequests(http.MethodGet, "/api/users/cart/"+f.user.ID+"/"))
}

func TestLogoutEmptiesCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t)
	require.NoError(t, f.cart.Add(ctx, f.lantern.Snapshot()))
	require.NotEmpty(t, f.cached(t))

	require.NoError(t, f.sessions.Logout(ctx))
	assert.Empty(t, f.cart.Lines())
	assert.Equal(t, StateEmpty, f.cart.State())
	assert.Zero(t, f.cart.Count())
	assert.Empty(t, f.cached(t))
}

func TestMutationFailureKeepsLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t)
	require.NoError(t, f.cart.Add(ctx, f.lantern.Snapshot()))
	before := f.cart.Lines()

	f.Server.Fail(http.MethodPost, "/api/users/cart/"+f.user.ID+"/add/", http.StatusInternalServerError)
	err := f.cart.Add(ctx, f.mug.Snapshot())
	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, before, f.cart.Lines())
	assert.Equal(t, StateLoaded, f.cart.State())
	assert.Equal(t, []string{MsgUpdateFailed}, f.Messages(notify.KindError))
}

func TestClearResetsEvenOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t)
	require.NoError(t, f.cart.Add(ctx, f.lantern.Snapshot()))

	f.Server.Fail(http.MethodDelete, "/api/users/cart/"+f.user.ID+"/clear/", http.StatusBadGateway)
	require.Error(t, f.cart.Clear(ctx))
	assert.Empty(t, f.cart.Lines())
	assert.Empty(t, f.cached(t))

	f.Server.Recover(http.MethodDelete, "/api/users/cart/"+f.user.ID+"/clear/")
	require.NoError(t, f.cart.Add(ctx, f.mug.Snapshot()))
	require.NoError(t, f.cart.Clear(ctx))
	assert.Empty(t, f.Server.CartQuantities(f.user.ID))
	assert.Contains(t, f.Messages(notify.KindSuccess), MsgCleared)
}

func TestPrime(t *testing.T) {
	ctx := context.Background()

	t.Run("cached lines are shown", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Set(ctx, storage.KeyCart, `[{"product_id":"A","name":"Lantern","price":10,"quantity":2},{"product_id":"B","quantity":0}]`))
		f.cart.Prime(ctx)
		assert.Equal(t, StateLoaded, f.cart.State())
		assert.Equal(t, 2, f.cart.Count())
	})

	t.Run("unreadable cache is ignored", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Set(ctx, storage.KeyCart, `{not json`))
		f.cart.Prime(ctx)
		assert.Equal(t, StateEmpty, f.cart.State())
		assert.Empty(t, f.cart.Lines())
	})

	t.Run("server replaces the cache", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Set(ctx, storage.KeyCart, `[{"product_id":"stale","name":"Old","price":1,"quantity":9}]`))
		f.cart.Prime(ctx)
		f.Server.SetCart(f.user.ID, map[string]int{f.mug.ID: 1})
		f.login(t)
		require.Len(t, f.cart.Lines(), 1)
		assert.Equal(t, f.mug.ID, f.cart.Lines()[0].ProductID)
	})
}

// gatedBackend holds cart fetches until release is closed.
type gatedBackend struct {
	ports.Backend
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBackend) Do(ctx context.Context, req apiclient.Request, out any) error {
	if req.Method == http.MethodGet && strings.HasPrefix(req.Path, "/api/users/cart/") {
		close(g.entered)
		<-g.release
	}
	return g.Backend.Do(ctx, req, out)
}

func TestLogoutDiscardsInFlightFetch(t *testing.T) {
	ctx := context.Background()
	gate := &gatedBackend{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixtureWithBackend(t, func(b ports.Backend) ports.Backend {
		gate.Backend = b
		return gate
	})
	f.Server.SetCart(f.user.ID, map[string]int{f.lantern.ID: 4})

	loginDone := make(chan session.LoginResult)
	go func() {
		loginDone <- f.sessions.Login(ctx, "ada@campify.io", "secret1")
	}()

	<-gate.entered
	assert.True(t, f.cart.Loading())
	assert.Equal(t, StateLoading, f.cart.State())

	require.NoError(t, f.sessions.Logout(ctx))
	close(gate.release)
	assert.True(t, (<-loginDone).Success)

	assert.Empty(t, f.cart.Lines())
	assert.Equal(t, StateEmpty, f.cart.State())
	assert.False(t, f.cart.Loading())
	assert.Empty(t, f.cached(t))
}

// logoutOnSet runs a logout while the first cart write is in progress.
type logoutOnSet struct {
	storage.Store
	cart       *Service
	once       sync.Once
	logoutDone chan struct{}
}

func (s *logoutOnSet) Set(ctx context.Context, key, value string) error {
	if key == storage.KeyCart {
		s.once.Do(func() {
			go func() {
				s.cart.HandleLogout(ctx)
				close(s.logoutDone)
			}()
			// let the logout end the generation before the write lands
			for {
				s.cart.mu.RLock()
				gen := s.cart.generation
				s.cart.mu.RUnlock()
				if gen > 0 {
					return
				}
				runtime.Gosched()
			}
		})
	}
	return s.Store.Set(ctx, key, value)
}

func TestLogoutDuringCacheWriteLeavesNoCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t)

	store := &logoutOnSet{Store: f.store, logoutDone: make(chan struct{})}
	c := New(f.Client, f.sessions, store, f.Dispatcher, WithLogger(f.Logger))
	store.cart = c

	require.NoError(t, c.Add(ctx, f.lantern.Snapshot()))
	<-store.logoutDone

	assert.Empty(t, c.Lines())
	assert.Empty(t, f.cached(t))
}

func TestStaleGenerationSkipsCacheWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t)
	require.NoError(t, f.cart.Add(ctx, f.lantern.Snapshot()))
	require.NotEmpty(t, f.cached(t))

	f.cart.mu.RLock()
	gen := f.cart.generation
	f.cart.mu.RUnlock()
	f.cart.HandleLogout(ctx)

	f.cart.cache(ctx, gen, []entity.CartLine{{ProductID: "A", Name: "Lantern", Price: 10, Quantity: 1}})
	assert.Empty(t, f.cached(t))
}
