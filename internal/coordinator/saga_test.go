package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/campify/internal/coordinator/checkoutlog"
	"github.com/jcmexdev/campify/internal/coordinator/checkoutlog/sqlite"
)

type fakeStep struct {
	name    string
	execErr error
	compErr error
	calls   *[]string
}

func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Execute(context.Context) error {
	*s.calls = append(*s.calls, "exec:"+s.name)
	return s.execErr
}

func (s *fakeStep) Compensate(context.Context) error {
	*s.calls = append(*s.calls, "comp:"+s.name)
	return s.compErr
}

type failingRepo struct{}

func (failingRepo) Save(context.Context, *checkoutlog.Entry) error { return errors.New("disk full") }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func openLog(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "checkout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func statuses(entries []checkoutlog.Entry) []checkoutlog.Status {
	out := make([]checkoutlog.Status, len(entries))
	for i, e := range entries {
		out[i] = e.Status
	}
	return out
}

func TestOrchestratorCompletes(t *testing.T) {
	ctx := context.Background()
	repo := openLog(t)
	var calls []string
	steps := []Step{
		&fakeStep{name: "a", calls: &calls},
		&fakeStep{name: "b", calls: &calls},
	}

	err := NewOrchestrator("chk-1", steps, WithLog(repo), WithLogger(quietLogger()), WithPayload(`{"amount":10}`)).Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec:a", "exec:b"}, calls)

	history, err := repo.History(ctx, "chk-1")
	require.NoError(t, err)
	assert.Equal(t, []checkoutlog.Status{
		checkoutlog.StatusStarted,
		checkoutlog.StatusStepDone,
		checkoutlog.StatusStepDone,
		checkoutlog.StatusCompleted,
	}, statuses(history))
	assert.Equal(t, `{"amount":10}`, history[0].Payload)
	assert.Empty(t, history[1].Payload)
	assert.Equal(t, "b", history[2].CurrentStep)
}

func TestOrchestratorCompensatesInReverse(t *testing.T) {
	ctx := context.Background()
	repo := openLog(t)
	boom := errors.New("boom")
	var calls []string
	steps := []Step{
		&fakeStep{name: "a", calls: &calls},
		&fakeStep{name: "b", calls: &calls, compErr: errors.New("stuck")},
		&fakeStep{name: "c", calls: &calls, execErr: boom},
		&fakeStep{name: "d", calls: &calls},
	}

	err := NewOrchestrator("chk-2", steps, WithLog(repo), WithLogger(quietLogger())).Start(ctx)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "c:")
	assert.Equal(t, []string{"exec:a", "exec:b", "exec:c", "comp:b", "comp:a"}, calls)

	latest, err := repo.Latest(ctx, "chk-2")
	require.NoError(t, err)
	assert.Equal(t, checkoutlog.StatusFailed, latest.Status)
	assert.Equal(t, "c", latest.CurrentStep)
	assert.Contains(t, latest.ErrorMessages, "step c failed: boom")
	assert.Contains(t, latest.ErrorMessages, "compensation of b failed: stuck")
}

func TestOrchestratorWithoutLog(t *testing.T) {
	var calls []string
	err := NewOrchestrator("chk-3", []Step{&fakeStep{name: "a", calls: &calls}}, WithLogger(quietLogger())).Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"exec:a"}, calls)
}

func TestOrchestratorIgnoresLogFailures(t *testing.T) {
	var calls []string
	err := NewOrchestrator("chk-4", []Step{&fakeStep{name: "a", calls: &calls}},
		WithLog(failingRepo{}), WithLogger(quietLogger())).Start(context.Background())
	require.NoError(t, err)
}
