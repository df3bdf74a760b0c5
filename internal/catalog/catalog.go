// Package catalog resolves the list of voices a host engine offers.
//
// A load either resolves at once (the engine already has voices) or waits
// for the engine's one-time readiness signal. Query failures go to the
// diagnostic log only; the catalog then stays empty and callers fall back
// to the engine's default voice.
package catalog

import (
	"context"
	"sync"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/logger"
)

// Catalog holds the most recently loaded voices. Safe for concurrent use.
type Catalog struct {
	engine domain.SpeechEngine
	log    *logger.Logger

	mu      sync.Mutex
	voices  []domain.Voice
	loads   int
	pending *load // latest load, resolved or not
}

// load is a single-resolution result.
type load struct {
	id     int
	out    chan []domain.Voice
	once   sync.Once
	done   bool   // guarded by Catalog.mu
	cancel func() // readiness unsubscribe, guarded by Catalog.mu
}

func (l *load) resolve(voices []domain.Voice, ok bool) {
	l.once.Do(func() {
		if ok {
			l.out <- voices
		}
		close(l.out)
	})
}

// New creates an empty catalog for engine.
func New(engine domain.SpeechEngine, log *logger.Logger) *Catalog {
	return &Catalog{engine: engine, log: log}
}

// Voices returns a copy of the current catalog, in host order.
func (c *Catalog) Voices() []domain.Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Voice, len(c.voices))
	copy(out, c.voices)
	return out
}

// Load queries the engine and returns a channel that receives the voice
// list exactly once and is then closed. When the engine reports no voices
// yet, the channel resolves on the engine's next readiness signal, which
// may never come. On a query error the channel is closed without a value.
//
// Calling Load again drops the readiness subscription of any earlier load
// that is still waiting; that earlier channel is then never resolved.
func (c *Catalog) Load() <-chan []domain.Voice {
	c.mu.Lock()
	c.loads++
	l := &load{id: c.loads, out: make(chan []domain.Voice, 1)}
	prev := c.pending
	c.pending = l
	c.mu.Unlock()

	if prev != nil {
		c.dropSubscription(prev)
	}

	voices, err := c.engine.Voices()
	if err != nil {
		c.fail(l, err)
		return l.out
	}
	if len(voices) > 0 {
		c.store(l, voices)
		return l.out
	}

	c.log.Debug("no voices yet, waiting for engine readiness (load %d)", l.id)
	cancel := c.engine.OnVoicesChanged(func() { c.onReady(l) })

	c.mu.Lock()
	if c.pending == l && !l.done {
		l.cancel = cancel
		c.mu.Unlock()
		return l.out
	}
	c.mu.Unlock()
	// Superseded, or the engine signalled readiness while we subscribed.
	cancel()
	return l.out
}

// Wait blocks until the latest load resolves or ctx is done.
func (c *Catalog) Wait(ctx context.Context) ([]domain.Voice, error) {
	c.mu.Lock()
	l := c.pending
	c.mu.Unlock()
	if l == nil {
		return nil, nil
	}

	select {
	case voices, ok := <-l.out:
		if !ok {
			return c.Voices(), nil
		}
		return voices, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drops any readiness subscription still waiting.
func (c *Catalog) Close() {
	c.mu.Lock()
	l := c.pending
	c.mu.Unlock()
	if l != nil {
		c.dropSubscription(l)
	}
}

// onReady runs on the engine's readiness signal. The first signal wins;
// the subscription is removed before re-querying.
func (c *Catalog) onReady(l *load) {
	c.mu.Lock()
	if c.pending != l || l.done {
		c.mu.Unlock()
		return
	}
	// Mark done first so a second signal or Load's own bookkeeping never
	// keeps the subscription alive.
	l.done = true
	cancel := l.cancel
	l.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	voices, err := c.engine.Voices()
	if err != nil {
		c.fail(l, err)
		return
	}
	c.store(l, voices)
}

func (c *Catalog) store(l *load, voices []domain.Voice) {
	c.mu.Lock()
	l.done = true
	if c.pending == l {
		c.voices = voices
	}
	c.mu.Unlock()

	c.log.Info("loaded %d voices (load %d)", len(voices), l.id)
	l.resolve(voices, true)
}

func (c *Catalog) fail(l *load, err error) {
	c.mu.Lock()
	l.done = true
	c.mu.Unlock()
	c.log.Error("voice catalog load failed: %v", err)
	l.resolve(nil, false)
}

func (c *Catalog) dropSubscription(l *load) {
	c.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		c.log.Debug("dropped readiness subscription of load %d", l.id)
	}
}
