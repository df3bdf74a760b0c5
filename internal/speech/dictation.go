package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/readaloud/internal/logger"
)

// ErrDictationBusy is returned when a recording is already running.
var ErrDictationBusy = errors.New("dictation already recording")

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z\s]*[\)\]]`)

// DictationOption configures Dictation.
type DictationOption func(*Dictation)

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) DictationOption {
	return func(d *Dictation) { d.tempDir = dir }
}

// Dictation records one clip from the microphone and transcribes it with
// a local Whisper model. The text ends up in the session's text field.
type Dictation struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger

	mu        sync.Mutex
	recording bool
}

// NewDictation creates a dictation recorder.
//
//   - whisperBin: path to the whisper-cli executable
//   - modelPath:  path to the GGML model file
func NewDictation(whisperBin, modelPath string, log *logger.Logger, opts ...DictationOption) *Dictation {
	d := &Dictation{
		whisperBin: whisperBin,
		modelPath:  modelPath,
		tempDir:    ".readaloud-stt",
		log:        log,
	}
	for _, opt := range opts {
		opt(d)
	}

	if _, err := exec.LookPath(d.whisperBin); err != nil {
		log.Error("dictation: whisper binary %q not found in PATH: %v", d.whisperBin, err)
	}
	return d
}

// Recording reports whether a clip is being captured.
func (d *Dictation) Recording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recording
}

// Record captures audio for duration (or until ctx ends) and returns the
// cleaned transcription. An empty string with a nil error means nothing
// intelligible was heard.
func (d *Dictation) Record(ctx context.Context, duration time.Duration) (string, error) {
	d.mu.Lock()
	if d.recording {
		d.mu.Unlock()
		return "", ErrDictationBusy
	}
	d.recording = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.recording = false
		d.mu.Unlock()
	}()

	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := d.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(
		d.whisperBin,
		d.modelPath,
		d.tempDir,
		"wav",
		callback,
		verbose,
	)
	if err != nil {
		return "", fmt.Errorf("transcriber init: %w", err)
	}

	if err := t.Start(); err != nil {
		return "", fmt.Errorf("recording start: %w", err)
	}
	d.log.Debug("dictation: recording for %s", duration)

	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}

	t.Stop()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := cleanTranscription(result)
	d.log.Debug("dictation: heard %q", text)
	return text, nil
}

// junkPatterns are whisper markers stripped from anywhere in the text.
var junkPatterns = []string{
	"[BLANK_AUDIO]",
	"[BLANK AUDIO]",
	"(silence)",
	"[silence]",
	"(no speech)",
	"[no speech]",
	"[Music]",
	"(music)",
	"(inaudible)",
	"(unintelligible)",
	"(background noise)",
}

// hallucinations are whole transcriptions whisper invents from silence.
var hallucinations = []string{
	"...",
	"you",
	"Thank you.",
	"Thanks for watching!",
	"Thank you for watching.",
	"Bye.",
	"The end.",
}

// cleanTranscription normalizes whitespace and strips whisper artifacts:
// blank-audio markers, environmental annotations, timestamp prefixes and
// known silence hallucinations.
func cleanTranscription(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)

	for _, j := range junkPatterns {
		s = strings.ReplaceAll(s, j, "")
		s = strings.ReplaceAll(s, strings.ToLower(j), "")
		s = strings.ReplaceAll(s, strings.ToUpper(j), "")
	}

	// Timestamp prefix: "[00:00:00.000 --> 00:00:05.000]".
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if idx := strings.Index(s, "]"); idx != -1 && idx < 40 {
			s = s[idx+1:]
		}
	}

	s = envAnnotation.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	for _, h := range hallucinations {
		if strings.EqualFold(h, s) {
			return ""
		}
	}
	return s
}
