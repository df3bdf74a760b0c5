package domain

import "fmt"

// Parameter bounds. Rate and pitch are multipliers of the engine's
// normal speed and pitch; volume is linear gain.
const (
	MinRate   = 0.1
	MaxRate   = 3.0
	MinPitch  = 0.1
	MaxPitch  = 2.0
	MinVolume = 0.0
	MaxVolume = 1.0

	DefaultRate   = 1.0
	DefaultPitch  = 1.0
	DefaultVolume = 0.5
)

// Params is the user-editable utterance configuration. An empty
// VoiceName means "no preference".
type Params struct {
	Text      string
	VoiceName string
	Rate      float64
	Pitch     float64
	Volume    float64
}

// Utterance is one request handed to a host engine. It is a snapshot:
// edits to the parameter store after staging never reach it. A nil Voice
// lets the engine use its own default.
type Utterance struct {
	ID     string
	Text   string
	Rate   float64
	Pitch  float64
	Volume float64
	Voice  *Voice
}

// VoiceName returns the resolved voice name or "default".
func (u Utterance) VoiceName() string {
	if u.Voice == nil {
		return "default"
	}
	return u.Voice.Name
}

func (u Utterance) String() string {
	return fmt.Sprintf("utterance %s (voice=%s rate=%.1f pitch=%.1f volume=%.1f, %d chars)",
		u.ID, u.VoiceName(), u.Rate, u.Pitch, u.Volume, len(u.Text))
}

// EndReason tells a completion callback why an utterance stopped.
type EndReason int

const (
	// EndFinished means playback ran to the end.
	EndFinished EndReason = iota
	// EndCancelled means CancelAll removed or interrupted the utterance.
	EndCancelled
	// EndFailed means synthesis or playback failed.
	EndFailed
)

func (r EndReason) String() string {
	switch r {
	case EndFinished:
		return "finished"
	case EndCancelled:
		return "cancelled"
	case EndFailed:
		return "failed"
	}
	return fmt.Sprintf("EndReason(%d)", int(r))
}
