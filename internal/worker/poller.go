package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/simulator"
)

// DefaultInterval is the tick period of the progress simulation.
const DefaultInterval = 2 * time.Second

var (
	// ErrSubscriberExists is returned when Subscribe is called with a duplicate id.
	ErrSubscriberExists = errors.New("subscriber id already exists")

	// ErrSubscriberNotFound is returned when Unsubscribe is called with unknown id.
	ErrSubscriberNotFound = errors.New("subscriber id not found")

	// ErrNotRunning is returned by Apply when the simulation is stopped.
	ErrNotRunning = errors.New("simulation is not running")
)

// pendingEdits bounds the number of edits waiting for the next tick.
const pendingEdits = 64

// Edit changes the project tree. It must return a new tree and leave projects as is.
// A returned error discards the edit.
type Edit func(projects []model.Project, now time.Time) ([]model.Project, error)

type command struct {
	edit   Edit
	result chan error
}

// PollerConfig configures a Poller. Zero fields fall back to defaults.
type PollerConfig struct {
	Interval time.Duration
	Params   simulator.GeneratorParams
	Rand     simulator.Rand
	Now      func() time.Time
	Logger   *slog.Logger
}

// PollerStats holds publish counters
type PollerStats struct {
	Ticks       uint64 `json:"ticks"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Edits       uint64 `json:"edits"`
	Subscribers int    `json:"subscribers"`
}

// Poller owns the project tree and advances it on a fixed interval.
//
// It is the only writer of the tree. Every tick produces a new *model.Snapshot which
// replaces the previous one and is fanned out to subscribers without blocking: a
// subscriber whose channel is full misses that snapshot. Edits submitted through
// Apply are queued and folded into the tree at the start of the next tick.
type Poller struct {
	cfg    PollerConfig
	logger *slog.Logger

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}

	mu          sync.RWMutex
	current     *model.Snapshot
	subscribers map[string]chan<- *model.Snapshot

	commands chan command

	ticks     atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
	edits     atomic.Uint64
}

// NewPoller creates a stopped Poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Params == (simulator.GeneratorParams{}) {
		cfg.Params = simulator.DefaultGeneratorParams()
	}
	if cfg.Rand == nil {
		cfg.Rand = simulator.NewRand(0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Poller{
		cfg:         cfg,
		logger:      logging.WithComponent(cfg.Logger, "poller"),
		current:     &model.Snapshot{Projects: []model.Project{}},
		subscribers: make(map[string]chan<- *model.Snapshot),
		commands:    make(chan command, pendingEdits),
	}
}

// Start generates a fresh project tree, publishes it and begins ticking.
// Calling Start on a running Poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.running {
		select {
		case <-p.done:
			// parent context ended the loop without Stop
			p.running = false
		default:
			return
		}
	}

	now := p.cfg.Now()
	projects := simulator.GenerateProjects(p.cfg.Rand, p.cfg.Params, now)
	snap := &model.Snapshot{
		Projects:    projects,
		Stats:       simulator.ComputeStats(projects),
		Connected:   true,
		GeneratedAt: now,
	}

	p.store(snap)
	p.publish(snap)

	// edits left over from a previous run were already answered
	p.rejectPending()

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.loop(loopCtx, p.done)

	p.logger.Info("simulation started",
		"projects", len(projects),
		"total_frames", snap.Stats.TotalFrames,
		"interval", p.cfg.Interval.String(),
	)
}

// Stop cancels the ticker and marks the Poller disconnected.
// No snapshot is published after Stop returns. Calling Stop twice is safe.
func (p *Poller) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	<-p.done
	p.running = false

	p.logger.Info("simulation stopped", "ticks", p.ticks.Load())
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.rejectPending()
	defer p.disconnect()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	prev := p.Snapshot()
	now := p.cfg.Now()

	base, results := p.applyPending(prev.Projects, now)
	projects := simulator.Tick(p.cfg.Rand, base, now)
	snap := &model.Snapshot{
		Projects:    projects,
		Stats:       simulator.ComputeStats(projects),
		Connected:   true,
		Tick:        prev.Tick + 1,
		GeneratedAt: now,
		Events:      simulator.Diff(prev.Projects, projects, now),
	}

	if ctx.Err() != nil {
		for _, r := range results {
			r.cmd.result <- ErrNotRunning
		}
		return
	}

	p.store(snap)
	p.ticks.Add(1)
	p.publish(snap)

	for _, r := range results {
		r.cmd.result <- r.err
	}

	p.logger.Debug("tick",
		"tick", snap.Tick,
		"completed_frames", snap.Stats.CompletedFrames,
		"error_frames", snap.Stats.ErrorFrames,
		"events", len(snap.Events),
		"edits", len(results),
	)
	for _, ev := range snap.Events {
		p.logger.Info("status change", "type", ev.Type, "project_id", ev.ProjectID, "camera_id", ev.CameraID)
	}
}

type applied struct {
	cmd command
	err error
}

// applyPending runs queued edits in submission order. A failed edit leaves the tree
// as the previous edit left it.
func (p *Poller) applyPending(projects []model.Project, now time.Time) ([]model.Project, []applied) {
	var results []applied
	for len(results) < pendingEdits {
		select {
		case cmd := <-p.commands:
			next, err := cmd.edit(projects, now)
			if err == nil {
				projects = next
				p.edits.Add(1)
			}
			results = append(results, applied{cmd: cmd, err: err})
		default:
			return projects, results
		}
	}
	return projects, results
}

func (p *Poller) rejectPending() {
	for {
		select {
		case cmd := <-p.commands:
			cmd.result <- ErrNotRunning
		default:
			return
		}
	}
}

// Apply queues edit for the next tick and waits until that tick is published.
// The edit's error is returned as is. If ctx ends first the edit may still be applied.
func (p *Poller) Apply(ctx context.Context, edit Edit) error {
	p.lifecycle.Lock()
	running, done := p.running, p.done
	p.lifecycle.Unlock()

	if !running {
		return ErrNotRunning
	}

	cmd := command{edit: edit, result: make(chan error, 1)}
	select {
	case p.commands <- cmd:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		return err
	case <-done:
		select {
		case err := <-cmd.result:
			return err
		default:
			return ErrNotRunning
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := *p.current
	snap.Connected = false
	snap.Events = nil
	p.current = &snap
}

func (p *Poller) store(snap *model.Snapshot) {
	p.mu.Lock()
	p.current = snap
	p.mu.Unlock()
}

// publish sends snap to every subscriber without blocking.
func (p *Poller) publish(snap *model.Snapshot) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for id, ch := range p.subscribers {
		select {
		case ch <- snap:
			p.published.Add(1)
		default:
			p.dropped.Add(1)
			p.logger.Debug("subscriber lagging, snapshot dropped", "subscriber", id, "tick", snap.Tick)
		}
	}
}

// Subscribe registers ch to receive every published snapshot.
func (p *Poller) Subscribe(id string, ch chan<- *model.Snapshot) error {
	if ch == nil {
		return errors.New("subscriber channel cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	p.subscribers[id] = ch
	return nil
}

// Unsubscribe removes a subscriber. The channel is not closed.
func (p *Poller) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(p.subscribers, id)
	return nil
}

// Snapshot returns the latest snapshot. Callers must not modify it.
func (p *Poller) Snapshot() *model.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Connected reports the connection label of the latest snapshot.
func (p *Poller) Connected() bool {
	return p.Snapshot().Connected
}

// Stats returns publish counters.
func (p *Poller) Stats() PollerStats {
	p.mu.RLock()
	subs := len(p.subscribers)
	p.mu.RUnlock()

	return PollerStats{
		Ticks:       p.ticks.Load(),
		Published:   p.published.Load(),
		Dropped:     p.dropped.Load(),
		Edits:       p.edits.Load(),
		Subscribers: subs,
	}
}
