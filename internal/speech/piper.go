package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"strings"
	"time"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/logger"
)

// Compile-time interface check.
var _ Synthesizer = (*PiperClient)(nil)

// PiperClient talks to a Piper server over the Wyoming protocol.
//
// Each Wyoming event is a JSON header line, optionally followed by
// data_length bytes of extra JSON data and payload_length bytes of binary
// payload:
//
//	{"type":"audio-chunk","data_length":54,"payload_length":2048}\n
//	{"rate":22050,"width":2,"channels":1}
//	<2048 bytes PCM>
//
// Piper has no prosody controls on this protocol, so rate and pitch are
// ignored; volume is applied as PCM gain.
type PiperClient struct {
	endpoint     string
	defaultVoice string
	dialTimeout  time.Duration
	log          *logger.Logger
}

// NewPiperClient creates a client for the Wyoming server at endpoint
// (host:port). defaultVoice is used when an utterance carries no voice.
func NewPiperClient(endpoint, defaultVoice string, log *logger.Logger) *PiperClient {
	endpoint = strings.TrimPrefix(endpoint, "tcp://")
	return &PiperClient{
		endpoint:     endpoint,
		defaultVoice: defaultVoice,
		dialTimeout:  10 * time.Second,
		log:          log,
	}
}

// Name identifies the backend in cache keys and logs.
func (c *PiperClient) Name() string { return "piper" }

type wyomingEvent struct {
	Type string
	Data map[string]any
}

type wyomingHeader struct {
	Type          string         `json:"type"`
	Data          map[string]any `json:"data,omitempty"`
	DataLength    int            `json:"data_length,omitempty"`
	PayloadLength int            `json:"payload_length,omitempty"`
}

// piperInfo is the subset of the Wyoming "info" event we read.
type piperInfo struct {
	TTS []struct {
		Name   string `json:"name"`
		Voices []struct {
			Name      string   `json:"name"`
			Languages []string `json:"languages"`
			Installed bool     `json:"installed"`
		} `json:"voices"`
	} `json:"tts"`
}

// ListVoices sends "describe" and returns the installed voices from the
// server's "info" reply, in server order.
func (c *PiperClient) ListVoices(ctx context.Context) ([]domain.Voice, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := writeEvent(conn, wyomingEvent{Type: "describe"}, nil); err != nil {
		return nil, fmt.Errorf("sending describe event: %w", err)
	}

	r := bufio.NewReader(conn)
	for {
		evt, _, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}
		if evt.Type != "info" {
			c.log.Debug("piper: skipping %s while waiting for info", evt.Type)
			continue
		}

		raw, err := json.Marshal(evt.Data)
		if err != nil {
			return nil, fmt.Errorf("re-encoding info: %w", err)
		}
		var info piperInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("decoding info: %w", err)
		}

		var voices []domain.Voice
		for _, prog := range info.TTS {
			for _, v := range prog.Voices {
				if !v.Installed {
					continue
				}
				locale := ""
				if len(v.Languages) > 0 {
					locale = strings.ReplaceAll(v.Languages[0], "_", "-")
				}
				voices = append(voices, domain.Voice{Name: v.Name, Locale: locale, Handle: v.Name})
			}
		}
		c.log.Debug("piper: %d voices listed", len(voices))
		return voices, nil
	}
}

// Synthesize sends text to the Piper server and returns WAV audio.
func (c *PiperClient) Synthesize(ctx context.Context, u domain.Utterance) ([]byte, error) {
	if u.Text == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	voice := c.defaultVoice
	if u.Voice != nil && u.Voice.Handle != "" {
		voice = u.Voice.Handle
	}

	c.log.Debug("piper: synthesizing %d chars with voice %s", len(u.Text), voice)

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	data := map[string]any{"text": u.Text}
	if voice != "" {
		data["voice"] = map[string]any{"name": voice}
	}
	if err := writeEvent(conn, wyomingEvent{Type: "synthesize", Data: data}, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	var (
		pcmBuf     bytes.Buffer
		sampleRate = PiperSampleRate
		channels   = 1
		width      = 2
	)

	r := bufio.NewReader(conn)
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			if rate, ok := evt.Data["rate"].(float64); ok {
				sampleRate = int(rate)
			}
			if ch, ok := evt.Data["channels"].(float64); ok {
				channels = int(ch)
			}
			if w, ok := evt.Data["width"].(float64); ok {
				width = int(w)
			}
		case "audio-chunk":
			pcmBuf.Write(payload)
		case "audio-stop":
			pcm := pcmBuf.Bytes()
			if width == 2 {
				applyGain(pcm, u.Volume)
			}
			c.log.Debug("piper: got %d bytes of PCM at %dHz", len(pcm), sampleRate)
			return pcmToWAV(pcm, sampleRate, channels, width), nil
		case "error":
			msg := "unknown error"
			if text, ok := evt.Data["text"].(string); ok {
				msg = text
			}
			return nil, fmt.Errorf("piper error: %s", msg)
		default:
			c.log.Debug("piper: unknown event %s", evt.Type)
		}
	}
}

func (c *PiperClient) dial(ctx context.Context) (net.Conn, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("no piper endpoint configured")
	}
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}
	// Unblock reads when the caller cancels.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	return &ctxConn{Conn: conn, stop: stop}, nil
}

// ctxConn releases the cancellation hook on Close.
type ctxConn struct {
	net.Conn
	stop func() bool
}

func (c *ctxConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

// applyGain scales signed 16-bit little-endian samples in place.
func applyGain(pcm []byte, gain float64) {
	if gain >= 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		v := math.Round(float64(s) * gain)
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(v)))
	}
}

// ── Wyoming framing ──────────────────────────────────────────────

// writeEvent sends one event. Data travels in the header line.
func writeEvent(w io.Writer, evt wyomingEvent, payload []byte) error {
	hdr := wyomingHeader{Type: evt.Type, Data: evt.Data, PayloadLength: len(payload)}
	line, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.Write(line); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// readEvent reads one event, merging any separate data segment into Data.
func readEvent(r *bufio.Reader) (wyomingEvent, []byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return wyomingEvent{}, nil, fmt.Errorf("reading header: %w", err)
	}

	var hdr wyomingHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return wyomingEvent{}, nil, fmt.Errorf("unmarshalling header: %w", err)
	}
	evt := wyomingEvent{Type: hdr.Type, Data: hdr.Data}
	if evt.Data == nil {
		evt.Data = map[string]any{}
	}

	if hdr.DataLength > 0 {
		buf := make([]byte, hdr.DataLength)
		if _, err := io.ReadFull(r, buf); err != nil {
			return wyomingEvent{}, nil, fmt.Errorf("reading data: %w", err)
		}
		extra := map[string]any{}
		if err := json.Unmarshal(buf, &extra); err != nil {
			return wyomingEvent{}, nil, fmt.Errorf("unmarshalling data: %w", err)
		}
		for k, v := range extra {
			evt.Data[k] = v
		}
	}

	var payload []byte
	if hdr.PayloadLength > 0 {
		payload = make([]byte, hdr.PayloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return wyomingEvent{}, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return evt, payload, nil
}
