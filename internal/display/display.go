// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] type renders the text card (text area with Read and Stop) and
// the settings card (voice picker, volume, pitch and rate sliders). State
// owned elsewhere reaches the running program as messages: controller
// state changes through [UI.StateChanged], a late voice catalog through
// [UI.VoicesLoaded] and notices through [UI.Toast]. All three are safe
// to call from any goroutine.
package display

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/notify"
)

// Session is the speech session the Read and Stop buttons drive.
type Session interface {
	Start(ctx context.Context) error
	Stop()
	IsSpeaking() bool
}

// VoiceList provides the current voice catalog.
type VoiceList interface {
	Voices() []domain.Voice
}

// ParamStore holds what the form edits.
type ParamStore interface {
	Snapshot() domain.Params
	SetText(text string) string
	SetVoiceName(name string) string
	AdjustRate(delta float64) float64
	AdjustPitch(delta float64) float64
	AdjustVolume(delta float64) float64
}

// Dictator records speech and returns it as text.
type Dictator interface {
	Record(ctx context.Context, d time.Duration) (string, error)
}

// Option configures the UI.
type Option func(*UI)

// WithDictation enables ctrl+d voice input recording clips of length d.
func WithDictation(dict Dictator, d time.Duration) Option {
	return func(u *UI) {
		u.dictation = dict
		u.recordFor = d
	}
}

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking). Messages sent before the event
// loop is up are dropped; the model re-reads the catalog and session
// state once it starts.
type UI struct {
	session   Session
	voices    VoiceList
	params    ParamStore
	dictation Dictator
	recordFor time.Duration

	program *tea.Program
	ready   atomic.Bool
	done    atomic.Bool
}

// NewUI creates the display. Call Run to start.
func NewUI(session Session, voices VoiceList, p ParamStore, opts ...Option) *UI {
	u := &UI{
		session:   session,
		voices:    voices,
		params:    p,
		recordFor: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Run starts the Bubble Tea event loop. Blocks until quit or ctx ends.
func (u *UI) Run(ctx context.Context) error {
	m := newModel(ctx, u.session, u.params, u.dictation, u.recordFor)
	m.onReady = u.markReady

	u.program = tea.NewProgram(m, tea.WithContext(ctx))

	_, err := u.program.Run()
	u.done.Store(true)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	return err
}

// markReady runs on a command goroutine once the loop is up. It returns
// the state that may have changed while messages were being dropped.
func (u *UI) markReady() refreshMsg {
	u.ready.Store(true)
	return refreshMsg{voices: u.voices.Voices(), speaking: u.session.IsSpeaking()}
}

func (u *UI) send(msg tea.Msg) bool {
	if !u.ready.Load() || u.done.Load() {
		return false
	}
	u.program.Send(msg)
	return true
}

// Toast shows a transient notice under the form. It matches
// notify.ToastFunc. Before the program runs, notices go to stdout.
func (u *UI) Toast(kind notify.Kind, message string) {
	if !u.send(toastMsg{kind: kind, text: message}) {
		fmt.Println(message)
	}
}

// StateChanged forwards a controller state change to the form.
func (u *UI) StateChanged(change domain.StateChange) {
	u.send(stateMsg(change))
}

// VoicesLoaded forwards a resolved voice catalog to the picker.
func (u *UI) VoicesLoaded(voices []domain.Voice) {
	u.send(voicesMsg(voices))
}
