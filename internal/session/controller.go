// Package session implements the speech-session controller: it stages an
// utterance from the current parameters, hands it to the host engine, and
// owns the single idle/speaking flag the presentation layer renders.
//
// Start never interrupts what the engine is already playing; the engine's
// own queueing applies. The controller counts the utterances it has handed
// off since the last Stop and returns to idle when the last of them
// completes. Stop cancels everything and flips to idle at once; completion
// callbacks that arrive afterwards are ignored.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/logger"
	"github.com/hammamikhairi/readaloud/internal/params"
)

// VoiceSource provides the current voice catalog.
type VoiceSource interface {
	Voices() []domain.Voice
}

// ParamSource provides a snapshot of the utterance parameters.
type ParamSource interface {
	Snapshot() domain.Params
}

// Option configures the Controller.
type Option func(*Controller)

// WithClock overrides time.Now for state change timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides the utterance ID source.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

// Controller drives a host engine. Safe for concurrent use; engine
// callbacks may arrive on any goroutine.
type Controller struct {
	engine   domain.SpeechEngine
	voices   VoiceSource
	params   ParamSource
	notifier domain.Notifier
	log      *logger.Logger
	now      func() time.Time
	newID    func() string

	mu        sync.Mutex
	state     domain.State
	epoch     uint64 // bumped by Stop; stale completions carry an older epoch
	inFlight  int    // handed off in the current epoch and not yet ended
	current   domain.Utterance
	listeners map[int]func(domain.StateChange)
	nextLisID int
}

// New creates an idle controller.
func New(engine domain.SpeechEngine, voices VoiceSource, p ParamSource, notifier domain.Notifier, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		engine:    engine,
		voices:    voices,
		params:    p,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
		state:     domain.StateIdle,
		listeners: make(map[int]func(domain.StateChange)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveVoice picks the voice named name, else the first voice in the
// catalog, else nil (engine default).
func ResolveVoice(voices []domain.Voice, name string) *domain.Voice {
	if len(voices) == 0 {
		return nil
	}
	if name != "" {
		for i := range voices {
			if voices[i].Name == name {
				v := voices[i]
				return &v
			}
		}
	}
	v := voices[0]
	return &v
}

// Start validates the current parameters and hands a new utterance to
// the engine. Blank text is rejected with a *domain.ValidationError
// wrapping domain.ErrBlankText; the user is notified and state is left
// alone. On successful handoff the controller is Speaking before Start
// returns.
func (c *Controller) Start(ctx context.Context) error {
	p := c.params.Snapshot()

	if params.IsBlank(p.Text) {
		err := &domain.ValidationError{Field: "text", Err: domain.ErrBlankText}
		c.log.Debug("start rejected: blank text")
		if c.notifier != nil {
			if nerr := c.notifier.NotifyUrgent(ctx, "Please enter text to speak"); nerr != nil {
				c.log.Warn("validation notice not delivered: %v", nerr)
			}
		}
		return err
	}

	catalog := c.voices.Voices()
	voice := ResolveVoice(catalog, p.VoiceName)
	switch {
	case voice == nil:
		c.log.Debug("no voices in catalog, using engine default")
	case p.VoiceName != "" && voice.Name != p.VoiceName:
		c.log.Debug("voice %q not in catalog, falling back to %q", p.VoiceName, voice.Name)
	}

	u := domain.Utterance{
		ID:     c.newID(),
		Text:   p.Text,
		Rate:   p.Rate,
		Pitch:  p.Pitch,
		Volume: p.Volume,
		Voice:  voice,
	}

	c.log.Debug("text %q", truncate(p.Text, 60))
	c.log.Debug("rate %.1f voice %q pitch %.1f volume %.1f", u.Rate, p.VoiceName, u.Pitch, u.Volume)

	// The engine may call onEnd before Speak returns, so the in-flight
	// count is raised first and rolled back on a rejected handoff.
	c.mu.Lock()
	epoch := c.epoch
	c.inFlight++
	c.mu.Unlock()

	if err := c.engine.Speak(u, c.completion(u.ID, epoch)); err != nil {
		c.mu.Lock()
		if c.epoch == epoch && c.inFlight > 0 {
			c.inFlight--
		}
		c.mu.Unlock()
		c.log.Error("engine rejected %s: %v", u, err)
		return fmt.Errorf("speaking: %w", err)
	}

	c.log.Info("speaking %s", u)

	c.mu.Lock()
	c.current = u
	var change *domain.StateChange
	// A synchronous engine may already have ended it; only flip when the
	// utterance is still outstanding.
	if c.epoch == epoch && c.inFlight > 0 {
		change = c.setStateLocked(domain.StateSpeaking, "start")
	}
	c.mu.Unlock()

	c.emit(change)
	return nil
}

// Stop cancels all engine playback and returns to Idle immediately,
// without waiting for the engine to confirm. Legal in any state.
func (c *Controller) Stop() {
	c.engine.CancelAll()

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.inFlight = 0
	change := c.setStateLocked(domain.StateIdle, "stop")
	c.mu.Unlock()

	c.log.Debug("stopped (epoch %d)", epoch)
	c.emit(change)
}

// completion builds the engine callback for one utterance. It only
// counts for the epoch it was issued in, and only once.
func (c *Controller) completion(id string, epoch uint64) func(domain.EndReason) {
	var once sync.Once
	return func(reason domain.EndReason) {
		fired := false
		once.Do(func() { fired = true })
		if !fired {
			c.log.Debug("duplicate completion for %s ignored", id)
			return
		}

		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			c.log.Debug("completion for %s after stop ignored (%s)", id, reason)
			return
		}
		if c.inFlight > 0 {
			c.inFlight--
		}
		var change *domain.StateChange
		if c.inFlight == 0 {
			change = c.setStateLocked(domain.StateIdle, "utterance "+reason.String())
		}
		c.mu.Unlock()

		if reason == domain.EndFailed {
			c.log.Warn("utterance %s failed in engine", id)
		} else {
			c.log.Debug("utterance %s %s", id, reason)
		}
		c.emit(change)
	}
}

// IsSpeaking reports whether an utterance is in flight.
func (c *Controller) IsSpeaking() bool {
	return c.State() == domain.StateSpeaking
}

// State returns the current session state.
func (c *Controller) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the most recently staged utterance while speaking.
func (c *Controller) Current() (domain.Utterance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateSpeaking {
		return domain.Utterance{}, false
	}
	return c.current, true
}

// OnStateChange registers fn to observe every transition. fn runs
// outside the controller's lock on the goroutine that caused the
// transition. The returned func unregisters it.
func (c *Controller) OnStateChange(fn func(domain.StateChange)) func() {
	c.mu.Lock()
	id := c.nextLisID
	c.nextLisID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// setStateLocked records a transition and returns it, or nil when the
// state did not change. Must be called with c.mu held.
func (c *Controller) setStateLocked(to domain.State, reason string) *domain.StateChange {
	if c.state == to {
		return nil
	}
	change := &domain.StateChange{From: c.state, To: to, At: c.now(), Reason: reason}
	c.state = to
	return change
}

func (c *Controller) emit(change *domain.StateChange) {
	if change == nil {
		return
	}
	c.log.Debug("%s -> %s (%s)", change.From, change.To, change.Reason)

	c.mu.Lock()
	fns := make([]func(domain.StateChange), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(*change)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
