package bot_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Yunkai-Xiao/MisakiCat/internal/bot"
	"github.com/Yunkai-Xiao/MisakiCat/internal/bot/tasks"
	"github.com/Yunkai-Xiao/MisakiCat/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type blockingRunner struct {
	started atomic.Bool
	err     error
}

func (r *blockingRunner) Run(ctx context.Context) error {
	r.started.Store(true)
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	return nil
}

func TestNewBot_RequiresFrontEnd(t *testing.T) {
	_, err := bot.NewBot(discardLogger(), nil, nil, nil)
	require.Error(t, err)
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	runner := &blockingRunner{}
	sched, err := bot.NewScheduler(discardLogger(), &config.SchedulerConfig{}, nil)
	require.NoError(t, err)

	b, err := bot.NewBot(discardLogger(), runner, nil, sched)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, runner.started.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBot_RunReturnsComponentError(t *testing.T) {
	runner := &blockingRunner{err: errors.New("gateway refused")}
	sched, err := bot.NewScheduler(discardLogger(), nil, nil)
	require.NoError(t, err)

	b, err := bot.NewBot(discardLogger(), runner, nil, sched)
	require.NoError(t, err)

	err = b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway refused")
}

func TestScheduler_StartSchedulesEnabledTasks(t *testing.T) {
	noop := func(context.Context) error { return nil }
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"context_prune":  {Enabled: true, Schedule: "0 */10 * * * *"},
		"backend_health": {Enabled: false, Schedule: "0 */5 * * * *"},
		"unknown":        {Enabled: true, Schedule: "* * * * * *"},
		"bad_schedule":   {Enabled: true, Schedule: "not a cron"},
	}}
	registry := map[string]tasks.ScheduledTaskFunc{
		"context_prune":  noop,
		"backend_health": noop,
		"bad_schedule":   noop,
	}

	s, err := bot.NewScheduler(discardLogger(), cfg, registry)
	require.NoError(t, err)

	n, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Start(context.Background())
	assert.Error(t, err, "second start is rejected")

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "stop is idempotent")
}

func TestScheduler_RunsTaskWithContext(t *testing.T) {
	var runs atomic.Int32
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"tick": {Enabled: true, Schedule: "* * * * * *"},
	}}
	registry := map[string]tasks.ScheduledTaskFunc{
		"tick": func(ctx context.Context) error {
			runs.Add(1)
			return ctx.Err()
		},
	}

	s, err := bot.NewScheduler(discardLogger(), cfg, registry)
	require.NoError(t, err)

	_, err = s.Start(context.Background())
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Stop()) }()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s, err := bot.NewScheduler(discardLogger(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	_, err = s.Start(context.Background())
	assert.Error(t, err, "a stopped scheduler cannot be restarted")
}
