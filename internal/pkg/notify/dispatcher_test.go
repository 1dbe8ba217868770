package notify

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu    sync.Mutex
	kinds map[string]int
}

func (o *countingObserver) ObserveNotification(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.kinds == nil {
		o.kinds = map[string]int{}
	}
	o.kinds[kind]++
}

func TestShowQueuesInOrder(t *testing.T) {
	obs := &countingObserver{}
	d := NewDispatcher(WithClock(testclock.NewClock(time.Now())), WithObserver(obs))

	first := d.Success("saved")
	second := d.Error("failed", WithTitle("Oops"))
	third := d.Info("saved")

	items := d.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{first, second, third}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, KindError, items[1].Kind)
	assert.Equal(t, "Oops", items[1].Title)
	assert.Equal(t, DefaultDuration, items[0].Duration)
	assert.Equal(t, int64(3000), items[0].DurationMs())
	assert.True(t, strings.HasPrefix(first, "notification-"))

	// Same message twice is not de-duplicated.
	assert.Equal(t, items[0].Message, items[2].Message)
	assert.NotEqual(t, items[0].ID, items[2].ID)

	assert.Equal(t, 1, obs.kinds["success"])
	assert.Equal(t, 1, obs.kinds["error"])
	assert.Equal(t, 1, obs.kinds["info"])
}

func TestItemsExpire(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	d := NewDispatcher(WithClock(clk))

	d.Success("short", WithDuration(time.Second))
	d.Info("default")
	require.Equal(t, 2, d.Len())

	require.NoError(t, clk.WaitAdvance(time.Second, time.Second, 2))
	require.Eventually(t, func() bool { return d.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "default", d.Items()[0].Message)

	require.NoError(t, clk.WaitAdvance(2*time.Second, time.Second, 1))
	require.Eventually(t, func() bool { return d.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestDismiss(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	d := NewDispatcher(WithClock(clk))

	id := d.Error("boom")
	assert.True(t, d.Dismiss(id))
	assert.False(t, d.Dismiss(id))
	assert.Zero(t, d.Len())

	// The stopped timer firing later must not disturb newer items.
	d.Info("still here")
	clk.Advance(DefaultDuration - time.Millisecond)
	assert.Equal(t, 1, d.Len())
}

func TestWithDurationIgnoresNonPositive(t *testing.T) {
	d := NewDispatcher(WithClock(testclock.NewClock(time.Now())))
	d.Show(KindInfo, "x", WithDuration(0))
	assert.Equal(t, DefaultDuration, d.Items()[0].Duration)
}
