// Package scheduler implements the background compression worker: a
// cooperative ticker+mailbox loop that drains compression queues across
// sessions in round robin, summarizes and embeds each batch, and ingests
// the result into its target layer, all without blocking the foreground
// message path.
package scheduler

import (
	"context"
	"sync"
	"time"

	hiermem "github.com/Hirogarden/AuraNexus"
	"github.com/Hirogarden/AuraNexus/llmapi"
	"github.com/Hirogarden/AuraNexus/log"
	"github.com/Hirogarden/AuraNexus/retry"
)

// SessionSource supplies the set of live sessions to drain each tick. A
// *hiermem.Manager satisfies this directly.
type SessionSource interface {
	Sessions() []*hiermem.Session
}

// Config tunes the scheduler's timing and batch behavior. Zero-value
// fields fall back to the documented defaults.
type Config struct {
	TickInterval      time.Duration // how often the worker wakes to look for work
	IdleThreshold     time.Duration // default 3s: short_term -> medium_term eligibility
	LongIdleThreshold time.Duration // default 10s: medium/long -> next-layer eligibility
	MaxRetries        int           // per-batch summarize/embed retry count before requeue
	RetryBaseWait     time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 500 * time.Millisecond
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = 3 * time.Second
	}
	if c.LongIdleThreshold <= 0 {
		c.LongIdleThreshold = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseWait <= 0 {
		c.RetryBaseWait = 500 * time.Millisecond
	}
	return c
}

// Scheduler is the compression background worker, grounded on the
// ticker+mailbox goroutine pattern: a single background worker wakes on a
// ticker, and Stop delivers a shutdown request through a mailbox channel
// rather than an ad-hoc flag check.
type Scheduler struct {
	source     SessionSource
	summarizer llmapi.Summarizer
	embedder   llmapi.Embedder
	cfg        Config

	mu      sync.Mutex
	running bool
	ticker  *time.Ticker
	mailbox chan struct{}
	done    chan struct{}

	rrIndex int
}

// New constructs a Scheduler that pulls sessions from source and uses
// summarizer/embedder as the compression collaborators.
func New(source SessionSource, summarizer llmapi.Summarizer, embedder llmapi.Embedder, cfg Config) *Scheduler {
	return &Scheduler{
		source:     source,
		summarizer: summarizer,
		embedder:   embedder,
		cfg:        cfg.withDefaults(),
		mailbox:    make(chan struct{}, 1),
	}
}

// Start launches the background worker. Calling Start twice without an
// intervening Stop is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.cfg.TickInterval)
	s.done = make(chan struct{})

	go s.run(ctx)
}

// Stop signals the worker to exit and waits for it to do so.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.done
	s.ticker.Stop()
	s.mu.Unlock()

	select {
	case s.mailbox <- struct{}{}:
	default:
	}
	<-done
}

func (s *Scheduler) run(ctx context.Context) {
	logger := log.Ctx(ctx)
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.mailbox:
			return
		case <-s.ticker.C:
			s.tick(ctx, logger)
		}
	}
}

// tick enumerates sessions with non-empty compression queues and, in
// round-robin order, drains one eligible batch per session.
func (s *Scheduler) tick(ctx context.Context, logger log.Logger) {
	sessions := s.source.Sessions()
	if len(sessions) == 0 {
		return
	}
	start := s.rrIndex % len(sessions)
	for i := 0; i < len(sessions); i++ {
		session := sessions[(start+i)%len(sessions)]
		s.processOneBatch(ctx, session, logger)
	}
	s.rrIndex++
}

// processOneBatch drains at most one batch from session, if eligible under
// the idle gates. Cancellation: it checks Destroyed() both before and
// after the summarize/embed round trip, so a completion racing a delete
// never writes to dead storage.
func (s *Scheduler) processOneBatch(ctx context.Context, session *hiermem.Session, logger log.Logger) {
	if session.Destroyed() {
		return
	}
	peek, ok := session.PeekBatch()
	if !ok {
		return
	}

	idle := time.Since(session.LastActivity())
	gate := s.cfg.IdleThreshold
	if peek.FromLayer != hiermem.LayerShortTerm {
		gate = s.cfg.LongIdleThreshold
	}
	if idle < gate {
		return
	}

	batch, ok := session.DequeueBatch()
	if !ok {
		return
	}

	level := levelForTargetLayer(batch.ToLayer)

	var result llmapi.SummaryResult
	err := retry.Do(ctx, func() error {
		var summarizeErr error
		result, summarizeErr = s.summarizer.Summarize(ctx, batch.Items, level)
		if summarizeErr != nil {
			return retry.NewRecoverableError(summarizeErr)
		}
		return nil
	}, retry.WithMaxRetries(s.cfg.MaxRetries), retry.WithBaseWait(s.cfg.RetryBaseWait))
	if err != nil {
		logger.Warn("summarization failed, requeueing batch", "session", session.ID(), "error", err)
		session.RequeueBatch(batch, err)
		return
	}
	if len(result.References) == 0 {
		result.References = batch.SourceIDs
	}
	session.AddUsage(result.Usage)

	var embedding []float32
	err = retry.Do(ctx, func() error {
		var embedErr error
		embedding, embedErr = s.embedder.Embed(ctx, result.Content)
		if embedErr != nil {
			return retry.NewRecoverableError(embedErr)
		}
		return nil
	}, retry.WithMaxRetries(s.cfg.MaxRetries), retry.WithBaseWait(s.cfg.RetryBaseWait))
	if err != nil {
		logger.Warn("embedding failed, requeueing batch", "session", session.ID(), "error", err)
		session.RequeueBatch(batch, err)
		return
	}

	if session.Destroyed() {
		return
	}
	if _, err := session.IngestSummary(batch.ToLayer, result, embedding, level, batch.OldestAge, batch.Items); err != nil {
		logger.Warn("ingest failed, requeueing batch", "session", session.ID(), "error", err)
		session.RequeueBatch(batch, err)
	}
}

// levelForTargetLayer maps a destination layer to the summarization level
// requested from the collaborator: detail decreases as records move
// deeper into the hierarchy.
func levelForTargetLayer(layer hiermem.Layer) llmapi.Level {
	switch layer {
	case hiermem.LayerMediumTerm:
		return llmapi.LevelDetailed
	case hiermem.LayerLongTerm:
		return llmapi.LevelMedium
	default:
		return llmapi.LevelBrief
	}
}
