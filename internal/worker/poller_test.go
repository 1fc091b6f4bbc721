package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/simulator"
)

const testInterval = 10 * time.Millisecond

func newTestPoller(t *testing.T) *Poller {
	t.Helper()
	p := NewPoller(PollerConfig{
		Interval: testInterval,
		Rand:     simulator.NewRand(7),
		Logger:   logging.Discard(),
	})
	t.Cleanup(p.Stop)
	return p
}

func receive(t *testing.T, ch <-chan *model.Snapshot) *model.Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestPoller_StartPublishesInitialSnapshot(t *testing.T) {
	p := newTestPoller(t)
	assert.False(t, p.Connected())

	ch := make(chan *model.Snapshot, 16)
	require.NoError(t, p.Subscribe("test", ch))

	p.Start(context.Background())

	snap := receive(t, ch)
	assert.True(t, snap.Connected)
	assert.Equal(t, uint64(0), snap.Tick)
	assert.GreaterOrEqual(t, len(snap.Projects), 2)
	assert.LessOrEqual(t, len(snap.Projects), 4)
	assert.Equal(t, simulator.ComputeStats(snap.Projects), snap.Stats)
	assert.True(t, p.Connected())
}

func TestPoller_StartIsIdempotent(t *testing.T) {
	p := NewPoller(PollerConfig{Interval: time.Hour, Logger: logging.Discard()})
	t.Cleanup(p.Stop)
	ch := make(chan *model.Snapshot, 4)
	require.NoError(t, p.Subscribe("test", ch))

	p.Start(context.Background())
	first := p.Snapshot()
	p.Start(context.Background())

	assert.Same(t, first, p.Snapshot())
	assert.Len(t, ch, 1)
}

func TestPoller_TicksAdvanceTree(t *testing.T) {
	p := newTestPoller(t)
	ch := make(chan *model.Snapshot, 64)
	require.NoError(t, p.Subscribe("test", ch))

	p.Start(context.Background())
	prev := receive(t, ch)

	for i := 0; i < 5; i++ {
		next := receive(t, ch)
		assert.Equal(t, prev.Tick+1, next.Tick)
		assert.Equal(t, simulator.ComputeStats(next.Projects), next.Stats)
		assert.GreaterOrEqual(t, next.Stats.CompletedFrames, prev.Stats.CompletedFrames)
		assert.Equal(t, prev.Stats.TotalFrames, next.Stats.TotalFrames)
		assert.True(t, next.Connected)
		prev = next
	}

	assert.GreaterOrEqual(t, p.Stats().Ticks, uint64(5))
}

func TestPoller_StopHaltsPublishing(t *testing.T) {
	p := newTestPoller(t)
	ch := make(chan *model.Snapshot, 256)
	require.NoError(t, p.Subscribe("test", ch))

	p.Start(context.Background())
	receive(t, ch)
	receive(t, ch)

	p.Stop()
	for len(ch) > 0 {
		<-ch
	}

	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot after Stop: tick %d", snap.Tick)
	case <-time.After(10 * testInterval):
	}

	assert.False(t, p.Connected())
	assert.False(t, p.Snapshot().Connected)

	// second Stop is a no-op
	p.Stop()
}

func TestPoller_RestartRegenerates(t *testing.T) {
	p := newTestPoller(t)

	p.Start(context.Background())
	p.Stop()
	require.False(t, p.Connected())

	p.Start(context.Background())
	snap := p.Snapshot()
	assert.True(t, snap.Connected)
}

func TestPoller_ParentContextCancel(t *testing.T) {
	p := newTestPoller(t)
	ctx, cancel := context.WithCancel(context.Background())

	p.Start(ctx)
	require.True(t, p.Connected())
	cancel()

	require.Eventually(t, func() bool { return !p.Connected() }, time.Second, testInterval)

	// Start works again after the loop ended on its own
	p.Start(context.Background())
	assert.True(t, p.Connected())
}

func TestPoller_SlowSubscriberDropsSnapshots(t *testing.T) {
	p := newTestPoller(t)
	slow := make(chan *model.Snapshot, 1)
	require.NoError(t, p.Subscribe("slow", slow))

	p.Start(context.Background())

	require.Eventually(t, func() bool { return p.Stats().Dropped > 0 }, 2*time.Second, testInterval)
	assert.Len(t, slow, 1)
}

func TestPoller_SubscribeErrors(t *testing.T) {
	p := newTestPoller(t)
	ch := make(chan *model.Snapshot, 1)

	require.NoError(t, p.Subscribe("a", ch))
	assert.ErrorIs(t, p.Subscribe("a", ch), ErrSubscriberExists)
	assert.Error(t, p.Subscribe("b", nil))

	require.NoError(t, p.Unsubscribe("a"))
	assert.ErrorIs(t, p.Unsubscribe("a"), ErrSubscriberNotFound)
	assert.Equal(t, 0, p.Stats().Subscribers)
}

func TestPoller_ApplyEditReachesNextSnapshot(t *testing.T) {
	p := newTestPoller(t)
	ch := make(chan *model.Snapshot, 256)
	require.NoError(t, p.Subscribe("test", ch))
	p.Start(context.Background())
	first := receive(t, ch)
	projectID := first.Projects[0].ID

	var added model.Camera
	err := p.Apply(context.Background(), func(projects []model.Project, now time.Time) ([]model.Project, error) {
		next, cam, _, err := simulator.AddCamera(projects, projectID, model.CameraSpec{
			Name:       "Hallway",
			CategoryID: "interior",
			FrameStart: 1001,
			FrameEnd:   1100,
		}, now)
		added = cam
		return next, err
	})
	require.NoError(t, err)

	snap := p.Snapshot()
	project, ok := snap.FindProject(projectID)
	require.True(t, ok)
	cat, ok := project.FindCategory("cat_interior")
	require.True(t, ok)
	cam, ok := cat.FindCamera(added.ID)
	require.True(t, ok)
	assert.Equal(t, "Hallway", cam.Name)
	assert.Equal(t, first.Stats.TotalFrames+100, snap.Stats.TotalFrames)
	assert.Equal(t, uint64(1), p.Stats().Edits)
}

func TestPoller_ApplyEditError(t *testing.T) {
	p := newTestPoller(t)
	p.Start(context.Background())
	before := p.Snapshot().Stats.TotalFrames

	boom := errors.New("boom")
	err := p.Apply(context.Background(), func([]model.Project, time.Time) ([]model.Project, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, p.Snapshot().Stats.TotalFrames)
	assert.Equal(t, uint64(0), p.Stats().Edits)
}

func TestPoller_ApplyEditsInOrder(t *testing.T) {
	p := NewPoller(PollerConfig{Interval: 50 * time.Millisecond, Rand: simulator.NewRand(3), Logger: logging.Discard()})
	t.Cleanup(p.Stop)
	p.Start(context.Background())
	projectID := p.Snapshot().Projects[0].ID

	errs := make(chan error, 2)
	for _, name := range []string{"First", "Second"} {
		go func() {
			errs <- p.Apply(context.Background(), func(projects []model.Project, now time.Time) ([]model.Project, error) {
				next, _, _, err := simulator.AddCamera(projects, projectID, model.CameraSpec{
					Name: name, CategoryID: "interior", FrameStart: 1, FrameEnd: 10,
				}, now)
				return next, err
			})
		}()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	project, _ := p.Snapshot().FindProject(projectID)
	cat, _ := project.FindCategory("cat_interior")
	names := make(map[string]bool)
	for _, cam := range cat.Cameras {
		names[cam.Name] = true
	}
	assert.True(t, names["First"])
	assert.True(t, names["Second"])
}

func TestPoller_ApplyWhenStopped(t *testing.T) {
	p := newTestPoller(t)
	called := false
	edit := func(projects []model.Project, _ time.Time) ([]model.Project, error) {
		called = true
		return projects, nil
	}

	assert.ErrorIs(t, p.Apply(context.Background(), edit), ErrNotRunning)

	p.Start(context.Background())
	p.Stop()
	assert.ErrorIs(t, p.Apply(context.Background(), edit), ErrNotRunning)
	assert.False(t, called)
}

func TestPoller_ApplyContextCanceled(t *testing.T) {
	p := NewPoller(PollerConfig{Interval: time.Hour, Logger: logging.Discard()})
	t.Cleanup(p.Stop)
	p.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Apply(ctx, func(projects []model.Project, _ time.Time) ([]model.Project, error) {
		return projects, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
