package speech

import (
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/logger"
)

// Compile-time interface check.
var _ domain.SpeechEngine = (*NoOp)(nil)

// wordsPerSecond at rate 1.0, used to fake playback length.
const wordsPerSecond = 2.5

// NoOp is a speech engine that only logs. It has no voices and never
// signals readiness, so callers run on the engine default. Each utterance
// "plays" for roughly as long as reading it aloud would take; utterances
// queue behind one another like a real engine.
type NoOp struct {
	log *logger.Logger

	mu      sync.Mutex
	busyTil time.Time
	timers  map[*time.Timer]func(domain.EndReason)
}

// NewNoOp creates a log-only engine.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log, timers: make(map[*time.Timer]func(domain.EndReason))}
}

// Voices always returns an empty list.
func (n *NoOp) Voices() ([]domain.Voice, error) { return nil, nil }

// OnVoicesChanged never fires.
func (n *NoOp) OnVoicesChanged(func()) func() { return func() {} }

// Speak logs the utterance and completes it after its estimated duration.
func (n *NoOp) Speak(u domain.Utterance, onEnd func(domain.EndReason)) error {
	n.log.Debug("speech no-op: would say %q (%s)", truncate(u.Text, 60), u)

	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	start := n.busyTil
	if start.Before(now) {
		start = now
	}
	n.busyTil = start.Add(EstimateDuration(u.Text, u.Rate))

	var t *time.Timer
	t = time.AfterFunc(n.busyTil.Sub(now), func() {
		n.mu.Lock()
		_, live := n.timers[t]
		delete(n.timers, t)
		n.mu.Unlock()
		if live {
			onEnd(domain.EndFinished)
		}
	})
	n.timers[t] = onEnd
	return nil
}

// CancelAll stops every pending timer and reports each as cancelled.
func (n *NoOp) CancelAll() {
	n.mu.Lock()
	pending := n.timers
	n.timers = make(map[*time.Timer]func(domain.EndReason))
	n.busyTil = time.Time{}
	n.mu.Unlock()

	for t, onEnd := range pending {
		t.Stop()
		onEnd(domain.EndCancelled)
	}
}

// EstimateDuration returns how long reading text aloud takes at rate.
func EstimateDuration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = domain.DefaultRate
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	secs := float64(words) / (wordsPerSecond * rate)
	return time.Duration(secs * float64(time.Second))
}
