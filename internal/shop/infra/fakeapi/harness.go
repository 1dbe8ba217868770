package fakeapi

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/pkg/notify"
)

// Harness bundles a running fake with a client and a dispatcher whose
// timers never fire unless the test advances the clock.
type Harness struct {
	Server     *Server
	URL        string
	Client     *apiclient.Client
	Dispatcher *notify.Dispatcher
	Clock      *testclock.Clock
	Logger     *slog.Logger
}

// NewHarness starts a fake backend for the duration of tb.
func NewHarness(tb testing.TB) *Harness {
	tb.Helper()
	srv := New()
	ts := srv.Start()
	tb.Cleanup(ts.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := testclock.NewClock(time.Now())
	return &Harness{
		Server:     srv,
		URL:        ts.URL,
		Client:     apiclient.New(apiclient.MustLocation(ts.URL), apiclient.WithLogger(logger)),
		Dispatcher: notify.NewDispatcher(notify.WithClock(clk), notify.WithLogger(logger)),
		Clock:      clk,
		Logger:     logger,
	}
}

// Messages returns the text of every visible notification of kind.
func (h *Harness) Messages(kind notify.Kind) []string {
	var out []string
	for _, it := range h.Dispatcher.Items() {
		if it.Kind == kind {
			out = append(out, it.Message)
		}
	}
	return out
}

// Unreachable returns a client pointed at a closed server.
func Unreachable(tb testing.TB) *apiclient.Client {
	tb.Helper()
	ts := New().Start()
	url := ts.URL
	ts.Close()
	return apiclient.New(apiclient.MustLocation(url), apiclient.WithTimeout(2*time.Second))
}
