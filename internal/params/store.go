// Package params holds the utterance parameters the user edits: text,
// voice name, rate, pitch and volume. It has no I/O and knows nothing
// about engines or catalogs.
//
// Numeric setters clamp out-of-range values to the nearest bound and
// reject NaN (the field is left unchanged). Every setter returns the value
// actually stored so the caller can re-render it.
package params

import (
	"math"
	"strings"
	"sync"

	"github.com/hammamikhairi/readaloud/internal/domain"
)

// Step is the increment used by the presentation sliders.
const Step = 0.1

// Store is the single owner of the current Params. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	p  domain.Params
}

// NewStore returns a store holding the default parameters.
func NewStore() *Store {
	return &Store{p: domain.Params{
		Rate:   domain.DefaultRate,
		Pitch:  domain.DefaultPitch,
		Volume: domain.DefaultVolume,
	}}
}

// IsBlank reports whether text is empty or whitespace only.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// Snapshot returns a copy of the current parameters.
func (s *Store) Snapshot() domain.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

// SetText replaces the text. Blank text is accepted here; it is only
// rejected when speaking starts.
func (s *Store) SetText(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Text = text
	return text
}

// SetVoiceName records the preferred voice. The name is not checked
// against any catalog.
func (s *Store) SetVoiceName(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.VoiceName = name
	return name
}

// SetRate stores rate clamped to [MinRate, MaxRate].
func (s *Store) SetRate(v float64) float64 {
	return s.set(&s.p.Rate, v, domain.MinRate, domain.MaxRate)
}

// SetPitch stores pitch clamped to [MinPitch, MaxPitch].
func (s *Store) SetPitch(v float64) float64 {
	return s.set(&s.p.Pitch, v, domain.MinPitch, domain.MaxPitch)
}

// SetVolume stores volume clamped to [MinVolume, MaxVolume].
func (s *Store) SetVolume(v float64) float64 {
	return s.set(&s.p.Volume, v, domain.MinVolume, domain.MaxVolume)
}

// AdjustRate moves rate by delta, clamped.
func (s *Store) AdjustRate(delta float64) float64 {
	return s.adjust(&s.p.Rate, delta, domain.MinRate, domain.MaxRate)
}

// AdjustPitch moves pitch by delta, clamped.
func (s *Store) AdjustPitch(delta float64) float64 {
	return s.adjust(&s.p.Pitch, delta, domain.MinPitch, domain.MaxPitch)
}

// AdjustVolume moves volume by delta, clamped.
func (s *Store) AdjustVolume(delta float64) float64 {
	return s.adjust(&s.p.Volume, delta, domain.MinVolume, domain.MaxVolume)
}

func (s *Store) set(field *float64, v, lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(v) {
		return *field
	}
	*field = Clamp(v, lo, hi)
	return *field
}

func (s *Store) adjust(field *float64, delta, lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(delta) {
		return *field
	}
	// Round to the slider step so repeated nudges don't drift (0.1+0.2).
	*field = Clamp(math.Round((*field+delta)*100)/100, lo, hi)
	return *field
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
