package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/nft-agents-console/internal/audit"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Log(e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

func submission(input string) domain.Submission {
	return domain.Submission{
		Agent:      &domain.Agent{ID: "a1"},
		Target:     &domain.Target{ID: "t1"},
		Capability: &domain.Capability{ID: "web_analysis"},
		Input:      input,
	}
}

func newTracker(opts ...TrackerOption) (*Tracker, *recorder) {
	rec := &recorder{}
	return NewTracker(nil, rec, nil, zap.NewNop(), opts...), rec
}

// Инвариант: EndTime != nil <=> терминальный статус
func assertEndTimeInvariant(t *testing.T, run domain.Run) {
	t.Helper()
	assert.Equal(t, run.Status.IsTerminal(), run.EndTime != nil, "status=%s", run.Status)
	if run.Status != domain.RunCompleted {
		assert.Nil(t, run.Output)
	}
	if run.Status != domain.RunFailed && run.Status != domain.RunCancelled {
		assert.Empty(t, run.Error)
	}
}

func TestStart_Validation(t *testing.T) {
	tr, _ := newTracker()

	cases := map[string]domain.Submission{
		"no agent":      {Target: &domain.Target{ID: "t"}, Capability: &domain.Capability{ID: "c"}, Input: "x"},
		"no target":     {Agent: &domain.Agent{ID: "a"}, Capability: &domain.Capability{ID: "c"}, Input: "x"},
		"no capability": {Agent: &domain.Agent{ID: "a"}, Target: &domain.Target{ID: "t"}, Input: "x"},
		"empty input":   submission(""),
		"blank input":   submission("  \t\n"),
	}
	for name, sub := range cases {
		_, err := tr.Start(sub)
		assert.True(t, domain.IsValidation(err), name)
	}
	assert.Equal(t, 0, tr.Count())
}

func TestStart_CreatesRunning(t *testing.T) {
	tr, rec := newTracker()
	id, err := tr.Start(submission("scan"))
	require.NoError(t, err)

	run, err := tr.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, run.Status)
	assert.False(t, run.StartTime.IsZero())
	assertEndTimeInvariant(t, run)
	assert.Equal(t, "In progress", FormatDuration(run))
	assert.Equal(t, []string{"run.started"}, rec.actions())
}

func TestComplete_Twice_IsNoop(t *testing.T) {
	tr, _ := newTracker()
	id, _ := tr.Start(submission("scan"))

	require.NoError(t, tr.Complete(id, map[string]any{"result": "ok"}))
	first, _ := tr.Get(id)

	require.NoError(t, tr.Complete(id, map[string]any{"result": "other"}))
	require.NoError(t, tr.Fail(id, "late failure"))
	second, _ := tr.Get(id)

	assert.Equal(t, first, second)
	assert.Equal(t, domain.RunCompleted, second.Status)
	assert.Equal(t, "ok", second.Output["result"])
	assertEndTimeInvariant(t, second)
}

func TestFail_Twice_IsNoop(t *testing.T) {
	tr, _ := newTracker()
	id, _ := tr.Start(submission("scan"))

	require.NoError(t, tr.Fail(id, "boom"))
	require.NoError(t, tr.Fail(id, "again"))

	run, _ := tr.Get(id)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Equal(t, "boom", run.Error)
	assertEndTimeInvariant(t, run)
}

func TestCancelBeforeComplete(t *testing.T) {
	tr, rec := newTracker()
	id, _ := tr.Start(submission("scan"))

	require.NoError(t, tr.Cancel(id))
	require.NoError(t, tr.Complete(id, map[string]any{"x": 1}))
	require.NoError(t, tr.Cancel(id))

	run, _ := tr.Get(id)
	assert.Equal(t, domain.RunCancelled, run.Status)
	assert.Equal(t, domain.CancelledByUser, run.Error)
	assert.NotNil(t, run.EndTime)
	assert.Nil(t, run.Output)
	assertEndTimeInvariant(t, run)
	assert.Equal(t, []string{"run.started", "run.cancelled"}, rec.actions())
}

func TestUnknownRun(t *testing.T) {
	tr, _ := newTracker()
	assert.True(t, errors.Is(tr.Complete("nope", nil), domain.ErrNotFound))
	assert.True(t, errors.Is(tr.Cancel("nope"), domain.ErrNotFound))
	_, err := tr.Get("nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConcurrentRunsPerAgentAllowedByDefault(t *testing.T) {
	tr, _ := newTracker()
	_, err := tr.Start(submission("one"))
	require.NoError(t, err)
	_, err = tr.Start(submission("two"))
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Count())
}

func TestExclusiveAgents(t *testing.T) {
	tr, _ := newTracker(WithExclusiveAgents(true))
	id, err := tr.Start(submission("one"))
	require.NoError(t, err)

	_, err = tr.Start(submission("two"))
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, 1, tr.Count())

	require.NoError(t, tr.Complete(id, nil))
	_, err = tr.Start(submission("three"))
	assert.NoError(t, err)
}

func TestProgressOnlyWhileRunning(t *testing.T) {
	tr, _ := newTracker()
	id, _ := tr.Start(submission("scan"))

	require.NoError(t, tr.Progress(id, 150, "analysing"))
	run, _ := tr.Get(id)
	assert.Equal(t, 100, run.Progress)
	assert.Equal(t, "analysing", run.Message)

	require.NoError(t, tr.Fail(id, "boom"))
	require.NoError(t, tr.Progress(id, 10, "late"))
	run, _ = tr.Get(id)
	assert.Equal(t, "analysing", run.Message)
}

func TestListOrderAndStats(t *testing.T) {
	tr, _ := newTracker()
	a, _ := tr.Start(submission("a"))
	b, _ := tr.Start(submission("b"))
	require.NoError(t, tr.Complete(a, nil))

	list := tr.List()
	require.Len(t, list, 2)
	assert.Equal(t, a, list[0].ID)
	assert.Equal(t, b, list[1].ID)

	stats := tr.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.RunCompleted])
	assert.Equal(t, 1, stats.ByStatus[domain.RunRunning])
}

func TestFormatDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(d time.Duration) domain.Run {
		end := start.Add(d)
		return domain.Run{StartTime: start, EndTime: &end}
	}
	assert.Equal(t, "0ms", FormatDuration(at(0)))
	assert.Equal(t, "450ms", FormatDuration(at(450*time.Millisecond)))
	assert.Equal(t, "2s", FormatDuration(at(1500*time.Millisecond)))
	assert.Equal(t, "42s", FormatDuration(at(42*time.Second)))
	assert.Equal(t, "1m 0s", FormatDuration(at(time.Minute)))
	assert.Equal(t, "2m 5s", FormatDuration(at(2*time.Minute+5*time.Second)))
}

func TestDurationUsesClock(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	tr, _ := newTracker(WithClock(clock))
	id, _ := tr.Start(submission("scan"))

	mu.Lock()
	now = now.Add(3 * time.Second)
	mu.Unlock()
	require.NoError(t, tr.Complete(id, nil))

	run, _ := tr.Get(id)
	assert.Equal(t, "3s", FormatDuration(run))
}

func TestLaunch_CompletesWithExecutorOutput(t *testing.T) {
	exec := ExecutionFunc(func(ctx context.Context, req domain.ExecutionRequest, progress domain.ProgressFunc) (map[string]any, error) {
		progress(50, "half way")
		return map[string]any{"input": req.Input}, nil
	})
	tr := NewTracker(exec, nil, nil, zap.NewNop())

	id, err := tr.Launch(submission("scan"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		run, _ := tr.Get(id)
		return run.Status == domain.RunCompleted
	}, time.Second, 5*time.Millisecond)

	run, _ := tr.Get(id)
	assert.Equal(t, "scan", run.Output["input"])
	assert.Equal(t, 100, run.Progress)
}

func TestLaunch_FailsWithExecutorError(t *testing.T) {
	exec := ExecutionFunc(func(ctx context.Context, req domain.ExecutionRequest, _ domain.ProgressFunc) (map[string]any, error) {
		return nil, errors.New("target unreachable")
	})
	tr := NewTracker(exec, nil, nil, zap.NewNop())

	id, err := tr.Launch(submission("scan"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		run, _ := tr.Get(id)
		return run.Status == domain.RunFailed
	}, time.Second, 5*time.Millisecond)
	run, _ := tr.Get(id)
	assert.Equal(t, "target unreachable", run.Error)
}

func TestLaunch_CancelStopsExecutor(t *testing.T) {
	stopped := make(chan struct{})
	exec := ExecutionFunc(func(ctx context.Context, req domain.ExecutionRequest, _ domain.ProgressFunc) (map[string]any, error) {
		<-ctx.Done()
		close(stopped)
		return nil, ctx.Err()
	})
	tr := NewTracker(exec, nil, nil, zap.NewNop())

	id, err := tr.Launch(submission("scan"))
	require.NoError(t, err)
	require.NoError(t, tr.Cancel(id))

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("executor was not cancelled")
	}

	run, _ := tr.Get(id)
	assert.Equal(t, domain.RunCancelled, run.Status)
	assert.Equal(t, domain.CancelledByUser, run.Error)
}

func TestShutdown_CancelsRunning(t *testing.T) {
	exec := ExecutionFunc(func(ctx context.Context, req domain.ExecutionRequest, _ domain.ProgressFunc) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	tr := NewTracker(exec, nil, nil, zap.NewNop())
	id, err := tr.Launch(submission("scan"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Shutdown(ctx))

	run, _ := tr.Get(id)
	assert.Equal(t, domain.RunCancelled, run.Status)
	assertEndTimeInvariant(t, run)

	_, err = tr.Start(submission("late"))
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestLaunch_RequiresExecutor(t *testing.T) {
	tr, _ := newTracker()
	_, err := tr.Launch(submission("scan"))
	assert.Error(t, err)
	assert.Equal(t, 0, tr.Count())
}
