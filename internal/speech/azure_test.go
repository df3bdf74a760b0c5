package speech

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hammamikhairi/readaloud/internal/domain"
)

const voicesJSON = `[
  {"Name":"Microsoft Server Speech (en-US, AvaNeural)","ShortName":"en-US-AvaNeural","Gender":"Female","Locale":"en-US","Status":"GA"},
  {"Name":"old","ShortName":"en-US-OldNeural","Gender":"Male","Locale":"en-US","Status":"Deprecated"},
  {"Name":"Microsoft Server Speech (fr-FR, HenriNeural)","ShortName":"fr-FR-HenriNeural","Gender":"Male","Locale":"fr-FR","Status":"GA"}
]`

func TestAzureListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cognitiveservices/voices/list" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, voicesJSON)
	}))
	defer srv.Close()

	c := NewAzureClient("secret", "westeurope", quietLog(), WithEndpoint(srv.URL))
	voices, err := c.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}

	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2 (deprecated skipped): %v", len(voices), voices)
	}
	if voices[0].Name != "en-US-AvaNeural" || voices[1].Name != "fr-FR-HenriNeural" {
		t.Fatalf("unexpected order: %v", voices)
	}
	if voices[1].Locale != "fr-FR" || voices[1].Gender != "Male" || voices[1].Handle != "fr-FR-HenriNeural" {
		t.Fatalf("fields not mapped: %+v", voices[1])
	}
}

func TestAzureListVoicesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewAzureClient("bad", "westeurope", quietLog(), WithEndpoint(srv.URL))
	if _, err := c.ListVoices(context.Background()); err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("got %v, want a 403 error", err)
	}
}

func TestAzureSynthesize(t *testing.T) {
	var gotBody, gotFormat, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cognitiveservices/v1" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotFormat = r.Header.Get("X-Microsoft-OutputFormat")
		gotType = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, "RIFF....WAVE")
	}))
	defer srv.Close()

	c := NewAzureClient("secret", "westeurope", quietLog(), WithEndpoint(srv.URL))
	voice := domain.Voice{Name: "Henri", Locale: "fr-FR", Handle: "fr-FR-HenriNeural"}
	u := domain.Utterance{Text: "Tom & <Jerry>", Rate: 1.5, Pitch: 1.2, Volume: 0.5, Voice: &voice}

	audio, err := c.Synthesize(context.Background(), u)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "RIFF....WAVE" {
		t.Fatalf("audio = %q", audio)
	}
	if gotFormat != DefaultAudioFormat || gotType != "application/ssml+xml" {
		t.Fatalf("headers: format=%q type=%q", gotFormat, gotType)
	}

	for _, want := range []string{
		"xml:lang='fr-FR'",
		"<voice name='fr-FR-HenriNeural'>",
		"<prosody rate='1.50' pitch='+20%' volume='50'>",
		"Tom &amp; &lt;Jerry&gt;",
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("SSML missing %q:\n%s", want, gotBody)
		}
	}
}

func TestBuildSSMLDefaultVoice(t *testing.T) {
	ssml := buildSSML(domain.Utterance{Text: "hi", Rate: 1, Pitch: 1, Volume: 1})
	if !strings.Contains(ssml, "<voice name='"+DefaultVoice+"'>") {
		t.Fatalf("default voice not used: %s", ssml)
	}
	if !strings.Contains(ssml, "xml:lang='"+DefaultLocale+"'") {
		t.Fatalf("default locale not used: %s", ssml)
	}
}

func TestBuildSSMLEscapesAttributes(t *testing.T) {
	v := &domain.Voice{Name: "odd", Locale: "en-US'>", Handle: "x' onload='y"}
	ssml := buildSSML(domain.Utterance{Text: "hi", Voice: v, Rate: 1, Pitch: 1, Volume: 1})

	if strings.Contains(ssml, "x' onload") || strings.Contains(ssml, "en-US'>") {
		t.Fatalf("attribute not escaped: %s", ssml)
	}
	if !strings.Contains(ssml, "<voice name='x&#39; onload=&#39;y'>") {
		t.Fatalf("escaped handle missing: %s", ssml)
	}
	if err := xml.Unmarshal([]byte(ssml), new(struct{})); err != nil {
		t.Fatalf("SSML is not well-formed: %v\n%s", err, ssml)
	}
}

func TestSSMLProsody(t *testing.T) {
	tests := []struct {
		pitch, volume float64
		wantP, wantV  string
	}{
		{1, 1, "+0%", "100"},
		{0.5, 0, "-50%", "0"},
		{2, 0.25, "+100%", "25"},
		{0.1, 0.5, "-90%", "50"},
	}
	for _, tt := range tests {
		if got := ssmlPitch(tt.pitch); got != tt.wantP {
			t.Errorf("ssmlPitch(%v) = %q, want %q", tt.pitch, got, tt.wantP)
		}
		if got := ssmlVolume(tt.volume); got != tt.wantV {
			t.Errorf("ssmlVolume(%v) = %q, want %q", tt.volume, got, tt.wantV)
		}
	}
}
