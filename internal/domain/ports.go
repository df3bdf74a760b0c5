package domain

import "context"

// SpeechEngine is the host text-to-speech capability the session
// controller drives. Implementations may invoke callbacks from their own
// goroutines.
type SpeechEngine interface {
	// Voices returns the voices available right now. An empty list with a
	// nil error means the engine is not ready yet.
	Voices() ([]Voice, error)

	// OnVoicesChanged registers fn to run whenever the voice list changes.
	// The returned func removes the registration and is safe to call twice.
	OnVoicesChanged(fn func()) (cancel func())

	// Speak hands u to the engine for playback and returns once the engine
	// has accepted it. onEnd is called exactly once when the utterance
	// finishes, is cancelled, or fails.
	Speak(u Utterance, onEnd func(EndReason)) error

	// CancelAll drops pending utterances and interrupts the active one.
	CancelAll()
}

// Notifier delivers user-visible messages. The session controller uses
// NotifyUrgent for validation failures; the app uses Notify for status.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}
