// Package speechtest provides a deterministic in-memory host engine for
// tests. Nothing is synthesized; completions fire only when the test asks.
package speechtest

import (
	"errors"
	"sync"

	"github.com/hammamikhairi/readaloud/internal/domain"
)

var _ domain.SpeechEngine = (*Engine)(nil)

// Spoken records one accepted Speak call.
type Spoken struct {
	Utterance domain.Utterance
	onEnd     func(domain.EndReason)
}

// Engine is a fake domain.SpeechEngine. Voices, errors and completion
// timing are all controlled by the test.
type Engine struct {
	mu          sync.Mutex
	voices      []domain.Voice
	voicesErr   error
	speakErr    error
	listeners   map[int]func()
	nextID      int
	spoken      []*Spoken
	pending     []*Spoken
	cancelCalls int
	// CompleteOnCancel makes CancelAll report EndCancelled for every
	// pending utterance synchronously, as the Azure and Piper engines do.
	CompleteOnCancel bool
}

// New creates a fake engine that starts with the given voices.
func New(voices ...domain.Voice) *Engine {
	return &Engine{
		voices:    voices,
		listeners: make(map[int]func()),
	}
}

// Voices returns the configured voices or error.
func (e *Engine) Voices() ([]domain.Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.voicesErr != nil {
		return nil, e.voicesErr
	}
	out := make([]domain.Voice, len(e.voices))
	copy(out, e.voices)
	return out, nil
}

// OnVoicesChanged registers a readiness listener.
func (e *Engine) OnVoicesChanged(fn func()) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Speak records u. It never completes on its own.
func (e *Engine) Speak(u domain.Utterance, onEnd func(domain.EndReason)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.speakErr != nil {
		return e.speakErr
	}
	s := &Spoken{Utterance: u, onEnd: onEnd}
	e.spoken = append(e.spoken, s)
	e.pending = append(e.pending, s)
	return nil
}

// CancelAll counts the call and, with CompleteOnCancel, ends every pending
// utterance as cancelled.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	e.cancelCalls++
	var drained []*Spoken
	if e.CompleteOnCancel {
		drained = e.pending
		e.pending = nil
	}
	e.mu.Unlock()

	for _, s := range drained {
		s.onEnd(domain.EndCancelled)
	}
}

// SetVoices replaces the voice list without notifying listeners.
func (e *Engine) SetVoices(voices ...domain.Voice) {
	e.mu.Lock()
	e.voices = voices
	e.mu.Unlock()
}

// SetVoicesError makes Voices fail.
func (e *Engine) SetVoicesError(err error) {
	e.mu.Lock()
	e.voicesErr = err
	e.mu.Unlock()
}

// SetSpeakError makes Speak reject every utterance.
func (e *Engine) SetSpeakError(err error) {
	e.mu.Lock()
	e.speakErr = err
	e.mu.Unlock()
}

// AnnounceVoices replaces the voice list and fires every listener, the
// way a host signals its catalog became ready.
func (e *Engine) AnnounceVoices(voices ...domain.Voice) {
	e.mu.Lock()
	e.voices = voices
	fns := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// ListenerCount returns the number of live readiness registrations.
func (e *Engine) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Spoken returns every utterance accepted so far, oldest first.
func (e *Engine) Spoken() []domain.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Utterance, len(e.spoken))
	for i, s := range e.spoken {
		out[i] = s.Utterance
	}
	return out
}

// CancelCalls returns how many times CancelAll ran.
func (e *Engine) CancelCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelCalls
}

// Pending returns the number of utterances that have not completed.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// ErrNothingPending is returned by Finish when no utterance is in flight.
var ErrNothingPending = errors.New("speechtest: nothing pending")

// Finish completes the oldest pending utterance with reason.
func (e *Engine) Finish(reason domain.EndReason) error {
	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return ErrNothingPending
	}
	s := e.pending[0]
	e.pending = e.pending[1:]
	e.mu.Unlock()

	s.onEnd(reason)
	return nil
}

// Replay fires the completion callback of the i-th spoken utterance
// again, regardless of whether it already completed. It simulates a late
// or duplicated host notification.
func (e *Engine) Replay(i int, reason domain.EndReason) {
	e.mu.Lock()
	s := e.spoken[i]
	e.mu.Unlock()
	s.onEnd(reason)
}
