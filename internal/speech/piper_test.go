package speech

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/hammamikhairi/readaloud/internal/domain"
)

// fakeWyoming serves one scripted reply per connection.
type fakeWyoming struct {
	ln net.Listener

	mu       sync.Mutex
	received []wyomingEvent
}

func newFakeWyoming(t *testing.T, reply func(conn net.Conn, req wyomingEvent)) *fakeWyoming {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeWyoming{ln: ln}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				req, _, err := readEvent(bufio.NewReader(conn))
				if err != nil {
					return
				}
				f.mu.Lock()
				f.received = append(f.received, req)
				f.mu.Unlock()
				reply(conn, req)
			}()
		}
	}()
	return f
}

func (f *fakeWyoming) addr() string { return f.ln.Addr().String() }

func (f *fakeWyoming) last() wyomingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received[len(f.received)-1]
}

// writeSplitEvent sends data as a separate data_length segment, the way
// real Wyoming servers frame audio events.
func writeSplitEvent(conn net.Conn, typ string, data map[string]any, payload []byte) {
	raw, _ := json.Marshal(data)
	hdr, _ := json.Marshal(wyomingHeader{Type: typ, DataLength: len(raw), PayloadLength: len(payload)})
	conn.Write(append(hdr, '\n'))
	conn.Write(raw)
	conn.Write(payload)
}

func pcm16(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestPiperListVoices(t *testing.T) {
	srv := newFakeWyoming(t, func(conn net.Conn, req wyomingEvent) {
		info := map[string]any{
			"tts": []any{map[string]any{
				"name": "piper",
				"voices": []any{
					map[string]any{"name": "en_US-lessac-medium", "languages": []any{"en_US"}, "installed": true},
					map[string]any{"name": "de_DE-thorsten-low", "languages": []any{"de_DE"}, "installed": false},
					map[string]any{"name": "fr_FR-siwis-medium", "languages": []any{"fr_FR"}, "installed": true},
				},
			}},
		}
		_ = writeEvent(conn, wyomingEvent{Type: "info", Data: info}, nil)
	})

	c := NewPiperClient("tcp://"+srv.addr(), "", quietLog())
	voices, err := c.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if srv.last().Type != "describe" {
		t.Fatalf("sent %q, want describe", srv.last().Type)
	}
	if len(voices) != 2 {
		t.Fatalf("got %v, want the two installed voices", voices)
	}
	if voices[0].Name != "en_US-lessac-medium" || voices[0].Locale != "en-US" {
		t.Fatalf("first voice = %+v", voices[0])
	}
	if voices[1].Handle != "fr_FR-siwis-medium" || voices[1].Locale != "fr-FR" {
		t.Fatalf("second voice = %+v", voices[1])
	}
}

func TestPiperSynthesize(t *testing.T) {
	srv := newFakeWyoming(t, func(conn net.Conn, req wyomingEvent) {
		writeSplitEvent(conn, "audio-start", map[string]any{"rate": 16000, "width": 2, "channels": 1}, nil)
		writeSplitEvent(conn, "audio-chunk", map[string]any{"rate": 16000, "width": 2, "channels": 1}, pcm16(1000, -1000))
		writeSplitEvent(conn, "audio-chunk", map[string]any{"rate": 16000, "width": 2, "channels": 1}, pcm16(300))
		_ = writeEvent(conn, wyomingEvent{Type: "audio-stop"}, nil)
	})

	c := NewPiperClient(srv.addr(), "en_US-lessac-medium", quietLog())
	voice := domain.Voice{Name: "siwis", Handle: "fr_FR-siwis-medium"}
	wav, err := c.Synthesize(context.Background(), domain.Utterance{Text: "Bonjour", Volume: 0.5, Voice: &voice})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	req := srv.last()
	if req.Type != "synthesize" || req.Data["text"] != "Bonjour" {
		t.Fatalf("request = %+v", req)
	}
	if name := req.Data["voice"].(map[string]any)["name"]; name != "fr_FR-siwis-medium" {
		t.Fatalf("voice = %v", name)
	}

	info, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Fatalf("format = %+v", info)
	}
	want := pcm16(500, -500, 150)
	if string(info.PCM) != string(want) {
		t.Fatalf("pcm = %v, want %v (gain 0.5)", info.PCM, want)
	}
}

func TestPiperSynthesizeDefaultVoice(t *testing.T) {
	srv := newFakeWyoming(t, func(conn net.Conn, req wyomingEvent) {
		_ = writeEvent(conn, wyomingEvent{Type: "audio-stop"}, nil)
	})

	c := NewPiperClient(srv.addr(), "en_US-lessac-medium", quietLog())
	if _, err := c.Synthesize(context.Background(), domain.Utterance{Text: "hi", Volume: 1}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if name := srv.last().Data["voice"].(map[string]any)["name"]; name != "en_US-lessac-medium" {
		t.Fatalf("voice = %v, want the configured default", name)
	}
}

func TestPiperSynthesizeError(t *testing.T) {
	srv := newFakeWyoming(t, func(conn net.Conn, req wyomingEvent) {
		_ = writeEvent(conn, wyomingEvent{Type: "error", Data: map[string]any{"text": "voice not found"}}, nil)
	})

	c := NewPiperClient(srv.addr(), "", quietLog())
	_, err := c.Synthesize(context.Background(), domain.Utterance{Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "voice not found") {
		t.Fatalf("got %v, want the server error", err)
	}
}

func TestPiperCancelledContext(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	srv := newFakeWyoming(t, func(conn net.Conn, req wyomingEvent) { <-block })

	c := NewPiperClient(srv.addr(), "", quietLog())
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := c.Synthesize(ctx, domain.Utterance{Text: "hi"})
		errc <- err
	}()
	cancel()

	if err := <-errc; err == nil {
		t.Fatal("expected an error after cancellation")
	}
}

func TestPiperNoEndpoint(t *testing.T) {
	c := NewPiperClient("", "", quietLog())
	if _, err := c.ListVoices(context.Background()); err == nil {
		t.Fatal("expected an error without an endpoint")
	}
}

func TestApplyGain(t *testing.T) {
	tests := []struct {
		name string
		gain float64
		in   []int16
		want []int16
	}{
		{"unity", 1, []int16{100, -100}, []int16{100, -100}},
		{"half", 0.5, []int16{100, -100, 32767}, []int16{50, -50, 16384}},
		{"mute", 0, []int16{1234, -1234}, []int16{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := pcm16(tt.in...)
			applyGain(buf, tt.gain)
			if string(buf) != string(pcm16(tt.want...)) {
				t.Fatalf("got %v, want %v", buf, pcm16(tt.want...))
			}
		})
	}
}
