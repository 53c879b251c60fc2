package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// Mock worker for testing
type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled, logger.NewNop()),
		runFunc:    func(ctx context.Context) error { return nil },
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) GetRunCount() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(logger.NewNop())

	worker1 := newMockWorker("test-worker-1", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker1)

	err := scheduler.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, scheduler.IsRunning())

	time.Sleep(250 * time.Millisecond)

	err = scheduler.Stop()
	require.NoError(t, err)
	assert.False(t, scheduler.IsRunning())

	// immediate run plus at least one tick
	assert.GreaterOrEqual(t, worker1.GetRunCount(), 2)
}

func TestScheduler_ContextCancellation(t *testing.T) {
	scheduler := NewScheduler(logger.NewNop())
	scheduler.RegisterWorker(newMockWorker("test-worker", 100*time.Millisecond, true))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))

	cancel()
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
}

func TestScheduler_DisabledWorker(t *testing.T) {
	scheduler := NewScheduler(logger.NewNop())

	enabledWorker := newMockWorker("enabled-worker", 100*time.Millisecond, true)
	disabledWorker := newMockWorker("disabled-worker", 100*time.Millisecond, false)
	scheduler.RegisterWorker(enabledWorker)
	scheduler.RegisterWorker(disabledWorker)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, enabledWorker.GetRunCount(), 0)
	assert.Equal(t, 0, disabledWorker.GetRunCount())
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	scheduler := NewScheduler(logger.NewNop())
	scheduler.RegisterWorker(newMockWorker("test-worker", 100*time.Millisecond, true))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))

	require.NoError(t, scheduler.Stop())
	assert.Error(t, scheduler.Stop())
}

func TestScheduler_RecordsHealth(t *testing.T) {
	scheduler := NewScheduler(logger.NewNop())

	ok := newMockWorker("ok", time.Hour, true)
	failing := newMockWorker("failing", time.Hour, true)
	failing.runFunc = func(ctx context.Context) error { return errors.New("boom") }
	panicking := newMockWorker("panicking", time.Hour, true)
	panicking.runFunc = func(ctx context.Context) error { panic("bad state") }

	scheduler.RegisterWorker(ok)
	scheduler.RegisterWorker(failing)
	scheduler.RegisterWorker(panicking)

	require.NoError(t, scheduler.Start(context.Background()))
	require.Eventually(t, func() bool {
		return ok.Health().RunCount == 1 && failing.Health().RunCount == 1 && panicking.Health().RunCount == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	health := scheduler.Health()
	require.Len(t, health, 3)

	assert.Equal(t, "ok", health[0].Name)
	assert.Zero(t, health[0].ErrorCount)
	assert.Empty(t, health[0].LastError)

	assert.Equal(t, int64(1), health[1].ErrorCount)
	assert.Contains(t, health[1].LastError, "boom")

	assert.Equal(t, int64(1), health[2].ErrorCount)
	assert.Contains(t, health[2].LastError, "bad state")
}

func TestScheduler_RegisterAfterStartIgnored(t *testing.T) {
	scheduler := NewScheduler(logger.NewNop())
	require.NoError(t, scheduler.Start(context.Background()))

	scheduler.RegisterWorker(newMockWorker("late", time.Hour, true))
	assert.Empty(t, scheduler.Health())

	require.NoError(t, scheduler.Stop())
}

func TestBaseWorker_SetEnabled(t *testing.T) {
	w := NewBaseWorker("toggle", time.Minute, true, nil)
	assert.True(t, w.Enabled())

	w.SetEnabled(false)
	assert.False(t, w.Enabled())
	assert.False(t, w.Health().Enabled)
	assert.Equal(t, time.Minute, w.Health().Interval)
}
