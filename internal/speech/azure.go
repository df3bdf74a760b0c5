package speech

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/logger"
)

// Compile-time interface check.
var _ Synthesizer = (*AzureClient)(nil)

// AzureOption configures the Azure TTS client.
type AzureOption func(*AzureClient)

// WithAudioFormat sets the audio output format.
func WithAudioFormat(format string) AzureOption {
	return func(c *AzureClient) {
		c.format = format
	}
}

// WithHTTPTimeout sets the HTTP client timeout for TTS requests.
func WithHTTPTimeout(d time.Duration) AzureOption {
	return func(c *AzureClient) {
		c.httpClient.Timeout = d
	}
}

// WithEndpoint overrides the regional base URL
// (https://{region}.tts.speech.microsoft.com). Used by tests.
func WithEndpoint(baseURL string) AzureOption {
	return func(c *AzureClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// AzureClient synthesizes speech and lists voices via Azure Cognitive
// Services Speech.
type AzureClient struct {
	subscriptionKey string
	baseURL         string
	format          string
	httpClient      *http.Client
	log             *logger.Logger
}

// NewAzureClient creates an Azure TTS client with the given credentials.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		subscriptionKey: key,
		baseURL:         fmt.Sprintf("https://%s.tts.speech.microsoft.com", region),
		format:          DefaultAudioFormat,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the backend in cache keys and logs.
func (c *AzureClient) Name() string { return "azure" }

// azureVoice is one entry of the voices/list response.
type azureVoice struct {
	Name        string `json:"Name"`
	DisplayName string `json:"DisplayName"`
	ShortName   string `json:"ShortName"`
	Gender      string `json:"Gender"`
	Locale      string `json:"Locale"`
	Status      string `json:"Status"`
}

// ListVoices fetches the regional voice list. Voices keep the order Azure
// returns them in.
func (c *AzureClient) ListVoices(ctx context.Context) ([]domain.Voice, error) {
	url := c.baseURL + "/cognitiveservices/voices/list"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("User-Agent", "Readaloud/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voices request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("azure voices error %d: %s", resp.StatusCode, string(body))
	}

	var raw []azureVoice
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding voices: %w", err)
	}

	voices := make([]domain.Voice, 0, len(raw))
	for _, v := range raw {
		if v.ShortName == "" || strings.EqualFold(v.Status, "Deprecated") {
			continue
		}
		voices = append(voices, domain.Voice{
			Name:   v.ShortName,
			Locale: v.Locale,
			Gender: v.Gender,
			Handle: v.ShortName,
		})
	}
	c.log.Debug("azure tts: %d voices listed", len(voices))
	return voices, nil
}

// Synthesize converts an utterance to WAV audio.
func (c *AzureClient) Synthesize(ctx context.Context, u domain.Utterance) ([]byte, error) {
	url := c.baseURL + "/cognitiveservices/v1"

	ssml := buildSSML(u)
	c.log.Debug("azure tts: synthesizing %d chars with voice %s", len(u.Text), voiceHandle(u))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.format)
	req.Header.Set("User-Agent", "Readaloud/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("azure tts error %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio data: %w", err)
	}

	c.log.Debug("azure tts: got %d bytes of audio", len(audioData))
	return audioData, nil
}

func voiceHandle(u domain.Utterance) string {
	if u.Voice == nil || u.Voice.Handle == "" {
		return DefaultVoice
	}
	return u.Voice.Handle
}

func voiceLocale(u domain.Utterance) string {
	if u.Voice == nil || u.Voice.Locale == "" {
		return DefaultLocale
	}
	return u.Voice.Locale
}

// buildSSML creates SSML markup for the synthesis request. Rate is a
// multiplier, pitch a relative percentage, volume an absolute 0-100.
func buildSSML(u domain.Utterance) string {
	return fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'>`+
			`<voice name='%s'><prosody rate='%s' pitch='%s' volume='%s'>%s</prosody></voice></speak>`,
		escapeXML(voiceLocale(u)), escapeXML(voiceHandle(u)),
		ssmlRate(u.Rate), ssmlPitch(u.Pitch), ssmlVolume(u.Volume),
		escapeXML(u.Text),
	)
}

// escapeXML escapes s for element text and for quoted attributes.
func escapeXML(s string) string {
	var b strings.Builder
	// Escaping into a strings.Builder cannot fail.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func ssmlRate(r float64) string {
	return fmt.Sprintf("%.2f", r)
}

func ssmlPitch(p float64) string {
	pct := int(math.Round((p - 1) * 100))
	return fmt.Sprintf("%+d%%", pct)
}

func ssmlVolume(v float64) string {
	return fmt.Sprintf("%d", int(math.Round(v*100)))
}
