// Package evaluator is a thin, cron-driven poller around the research
// loop's session store. The decision logic it delegates to — whether a
// particular running session warrants intervention — is out of scope for
// this module (spec.md Non-goals); this package only owns the tick.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Shahroz/reels-ai-sub002/internal/session"
)

// cronParser mirrors the teacher's scheduler parser options so a plain
// "@every Ns" descriptor resolves to a cron.Schedule whose Next can be
// chased in a loop instead of a fixed time.Ticker.
var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Handler inspects one running session and decides whether to act on it
// (nudge, interrupt, escalate). Implementations live outside this module.
type Handler interface {
	Evaluate(ctx context.Context, data *session.Data) error
}

// Config configures the poller.
type Config struct {
	// SleepSeconds is the interval between poll ticks. Defaults to 30.
	SleepSeconds int
	Logger       *slog.Logger
}

// Poller periodically scans every running session in the store and hands
// each to Handler, grounded on the teacher's task scheduler poll loop.
type Poller struct {
	store   *session.Store
	handler Handler
	config  Config
	logger  *slog.Logger
	sched   cron.Schedule

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// New builds a poller over store, invoking handler on every running
// session at each tick. The poll cadence is expressed as a cron
// "@every" descriptor so the loop can chase sched.Next the way the
// teacher's scheduler chases a task's cron schedule, rather than relying
// on a fixed time.Ticker.
func New(store *session.Store, handler Handler, cfg Config) *Poller {
	if cfg.SleepSeconds <= 0 {
		cfg.SleepSeconds = 30
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "evaluator")
	}
	sched, err := cronParser.Parse(fmt.Sprintf("@every %ds", cfg.SleepSeconds))
	if err != nil {
		// cfg.SleepSeconds is always a positive integer by this point, so
		// this descriptor is always well-formed; panic surfaces a bug
		// immediately rather than silently never ticking.
		panic(fmt.Sprintf("evaluator: build cron schedule: %v", err))
	}
	return &Poller{store: store, handler: handler, config: cfg, logger: logger, sched: sched}
}

// Start begins the poll loop in the background. Calling Start twice
// without an intervening Stop is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop cancels the poll loop and waits for the in-flight tick to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	now := time.Now()
	timer := time.NewTimer(time.Until(p.sched.Next(now)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fired := <-timer.C:
			p.tick(ctx)
			timer.Reset(time.Until(p.sched.Next(fired)))
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	for _, id := range p.store.RunningSessionIDs() {
		data := p.store.GetSession(id)
		if data == nil {
			continue
		}
		if err := p.handler.Evaluate(ctx, data); err != nil {
			p.logger.Warn("evaluator: handler returned an error", "session_id", id, "error", err)
		}
	}
}
