package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/readaloud/internal/logger"
)

// Compile-time interface check.
var _ AudioSink = (*Player)(nil)

// playback is one started stream. *oto.Player satisfies it.
type playback interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// Player handles audio playback of 16-bit PCM WAV data via oto. The oto
// context is process-wide, so the device format is fixed at construction;
// WAVs at other rates or channel counts are converted before playing.
type Player struct {
	open       func(io.Reader) playback
	log        *logger.Logger
	sampleRate int
	channels   int
	mu         sync.Mutex
	active     playback // currently playing, nil when idle
}

// NewPlayer creates an audio player. Initializes the system audio context.
// Returns an error if the audio device is unavailable.
func NewPlayer(sampleRate, channels int, log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", sampleRate, channels)
	open := func(r io.Reader) playback { return ctx.NewPlayer(r) }
	return &Player{open: open, log: log, sampleRate: sampleRate, channels: channels}, nil
}

// Play plays WAV audio data synchronously. Blocks until playback finishes,
// Stop is called or ctx ends. A ctx already cancelled plays nothing.
func (p *Player) Play(ctx context.Context, wavData []byte) error {
	w, err := parseWAV(wavData)
	if err != nil {
		return err
	}
	pcm, err := convertPCM(w, p.sampleRate, p.channels)
	if err != nil {
		return err
	}
	if w.SampleRate != p.sampleRate || w.Channels != p.channels {
		p.log.Debug("audio player: converted %dHz/%dch to %dHz/%dch",
			w.SampleRate, w.Channels, p.sampleRate, p.channels)
	}

	player := p.open(bytes.NewReader(pcm))

	// Stop takes p.mu too: a cancel that lands before this point is seen
	// here, one that lands after finds the player active.
	p.mu.Lock()
	if ctx.Err() != nil {
		p.mu.Unlock()
		p.log.Debug("audio player: cancelled before playback")
		return player.Close()
	}
	p.active = player
	player.Play()
	p.mu.Unlock()

	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	// Wait for playback to complete or be interrupted.
	for player.IsPlaying() {
		if ctx.Err() != nil {
			player.Pause()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()

	return player.Close()
}

// Stop interrupts the currently playing audio, if any. Safe to call
// concurrently and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil {
		p.active.Pause()
		p.log.Debug("audio player: interrupted")
	}
}

// convertPCM reshapes 16-bit PCM to the given rate and channel count.
// Channels are mixed down to mono and fanned back out when the counts
// differ; rates are converted by linear interpolation.
func convertPCM(w wavInfo, rate, channels int) ([]byte, error) {
	if w.BitsPerSample != BitDepth {
		return nil, fmt.Errorf("unsupported %d-bit wav, want %d-bit", w.BitsPerSample, BitDepth)
	}
	if w.Channels < 1 || w.SampleRate < 1 {
		return nil, fmt.Errorf("invalid wav format %dHz/%dch", w.SampleRate, w.Channels)
	}
	if w.SampleRate == rate && w.Channels == channels {
		return w.PCM, nil
	}

	inFrames := len(w.PCM) / (2 * w.Channels)
	sample := func(frame, ch int) float64 {
		off := (frame*w.Channels + ch) * 2
		return float64(int16(binary.LittleEndian.Uint16(w.PCM[off:])))
	}
	// frameAt returns output channel ch of input frame i.
	frameAt := func(i, ch int) float64 {
		if w.Channels == channels {
			return sample(i, ch)
		}
		var sum float64
		for c := 0; c < w.Channels; c++ {
			sum += sample(i, c)
		}
		return sum / float64(w.Channels)
	}

	outFrames := int(int64(inFrames) * int64(rate) / int64(w.SampleRate))
	out := make([]byte, outFrames*channels*2)
	step := float64(w.SampleRate) / float64(rate)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		i1 := min(i0+1, inFrames-1)
		frac := pos - float64(i0)
		for ch := 0; ch < channels; ch++ {
			v := frameAt(i0, ch)*(1-frac) + frameAt(i1, ch)*frac
			v = math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v)))
			binary.LittleEndian.PutUint16(out[(i*channels+ch)*2:], uint16(int16(v)))
		}
	}
	return out, nil
}

// wavInfo is the decoded header and PCM payload of a RIFF/WAVE file.
type wavInfo struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	PCM           []byte
}

// parseWAV walks the RIFF chunks and returns the fmt fields and the data
// payload.
func parseWAV(wav []byte) (wavInfo, error) {
	var info wavInfo
	if len(wav) < 44 {
		return info, errors.New("wav data too short")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return info, errors.New("not a valid WAV file")
	}

	haveFmt := false
	pos := 12
	for pos+8 <= len(wav) {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8

		switch chunkID {
		case "fmt ":
			if start+16 > len(wav) {
				return info, errors.New("truncated fmt chunk")
			}
			info.Channels = int(binary.LittleEndian.Uint16(wav[start+2 : start+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(wav[start+4 : start+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(wav[start+14 : start+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return info, errors.New("data chunk before fmt chunk")
			}
			end := start + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			info.PCM = wav[start:end]
			return info, nil
		}

		pos = start + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return info, errors.New("data chunk not found in WAV")
}

// pcmToWAV wraps raw little-endian PCM in a 44-byte WAV header.
func pcmToWAV(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	buf := &bytes.Buffer{}
	buf.Grow(44 + len(pcm))

	byteRate := sampleRate * channels * bytesPerSample
	blockAlign := channels * bytesPerSample

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample*8))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
