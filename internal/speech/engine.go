// Package speech provides the host engines the session controller drives:
// a queued synthesize-then-play engine over Azure or Piper, a log-only
// engine, the oto audio player, an audio cache, and whisper dictation.
package speech

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/logger"
)

// Synthesizer turns an utterance into WAV audio and lists its voices.
type Synthesizer interface {
	Name() string
	ListVoices(ctx context.Context) ([]domain.Voice, error)
	Synthesize(ctx context.Context, u domain.Utterance) ([]byte, error)
}

// AudioSink plays WAV audio. Play blocks until playback ends, Stop is
// called or ctx ends, and plays nothing once ctx is done; Stop is safe
// when nothing plays.
type AudioSink interface {
	Play(ctx context.Context, wav []byte) error
	Stop()
}

// Compile-time interface check.
var _ domain.SpeechEngine = (*Engine)(nil)

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithQueueSize sets the internal notification channel capacity.
func WithQueueSize(n int) EngineOption {
	return func(e *Engine) {
		e.notify = make(chan struct{}, n)
	}
}

// WithChunkSize sets the approximate max character count per synthesis
// request. Longer text is split at sentence boundaries and synthesized
// in parallel so playback doesn't stall between sentences.
func WithChunkSize(n int) EngineOption {
	return func(e *Engine) {
		e.chunkSize = n
	}
}

// WithCache sets the audio cache. Without one every chunk is synthesized.
func WithCache(c *AudioCache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// job is a queued utterance waiting to be spoken.
type job struct {
	u        domain.Utterance
	onEnd    func(domain.EndReason)
	queuedAt time.Time
}

// Engine is a host speech engine built from a Synthesizer and an
// AudioSink. Utterances are queued and spoken one at a time in the order
// they were handed over; a new Speak never interrupts the current one.
// The voice list is fetched in the background after Start and announced
// through OnVoicesChanged.
type Engine struct {
	synth Synthesizer
	sink  AudioSink
	log   *logger.Logger
	cache *AudioCache

	mu          sync.Mutex
	queue       []job
	notify      chan struct{}
	active      *job
	interrupted bool               // set by CancelAll, checked between chunks
	cancelJob   context.CancelFunc // aborts in-flight synthesis of active
	closed      bool
	chunkSize   int // chars per synthesis request, 0 = no chunking

	voices    []domain.Voice
	voicesErr error
	listeners map[int]func()
	nextLisID int
}

// NewEngine creates a queued engine. Call Start before speaking.
func NewEngine(synth Synthesizer, sink AudioSink, log *logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		synth:     synth,
		sink:      sink,
		log:       log,
		notify:    make(chan struct{}, 32),
		chunkSize: 200, // roughly 2 sentences
		listeners: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the playback goroutine and the background voice fetch.
// Non-blocking.
func (e *Engine) Start(ctx context.Context) {
	go e.processLoop(ctx)
	go e.fetchVoices(ctx)
	e.log.Info("engine started (backend=%s)", e.synth.Name())
}

// Close cancels everything and rejects further utterances.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.CancelAll()
}

// ── voices ───────────────────────────────────────────────────────

func (e *Engine) fetchVoices(ctx context.Context) {
	voices, err := e.synth.ListVoices(ctx)

	e.mu.Lock()
	e.voices, e.voicesErr = voices, err
	fns := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	if err != nil {
		e.log.Error("engine: voice list failed: %v", err)
	} else {
		e.log.Debug("engine: %d voices ready", len(voices))
	}
	for _, fn := range fns {
		fn()
	}
}

// Voices returns the voices fetched so far. Empty with a nil error until
// the background fetch completes.
func (e *Engine) Voices() ([]domain.Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.voicesErr != nil {
		return nil, e.voicesErr
	}
	out := make([]domain.Voice, len(e.voices))
	copy(out, e.voices)
	return out, nil
}

// OnVoicesChanged registers fn to run when the voice fetch completes.
func (e *Engine) OnVoicesChanged(fn func()) func() {
	e.mu.Lock()
	id := e.nextLisID
	e.nextLisID++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// ── speaking ─────────────────────────────────────────────────────

// Speak queues u. Non-blocking. onEnd runs exactly once, on the playback
// goroutine or inside CancelAll.
func (e *Engine) Speak(u domain.Utterance, onEnd func(domain.EndReason)) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrEngineClosed
	}
	e.queue = append(e.queue, job{u: u, onEnd: onEnd, queuedAt: time.Now()})
	qLen := len(e.queue)
	e.mu.Unlock()

	e.log.Debug("engine: queued %s (queue_len=%d)", u.ID, qLen)

	// Signal the processing goroutine.
	select {
	case e.notify <- struct{}{}:
	default: // already signaled
	}
	return nil
}

// CancelAll clears the queue and interrupts the active utterance. Queued
// utterances are reported cancelled before CancelAll returns; the active
// one is reported once its playback goroutine unwinds.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	dropped := e.queue
	e.queue = nil
	if e.active != nil {
		e.interrupted = true
	}
	cancel := e.cancelJob
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.sink.Stop()

	for _, j := range dropped {
		j.onEnd(domain.EndCancelled)
	}
	e.log.Debug("engine: cancelled (%d queued dropped)", len(dropped))
}

// QueueLen returns the number of pending utterances.
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// processLoop waits for queued items and processes them one at a time.
func (e *Engine) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.Close()
			e.log.Info("engine stopped")
			return
		case <-e.notify:
			e.drain(ctx)
		}
	}
}

// drain speaks queued utterances in FIFO order until the queue is empty.
func (e *Engine) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		j, jobCtx, ok := e.dequeue(ctx)
		if !ok {
			return
		}

		reason := e.process(jobCtx, j)

		e.mu.Lock()
		if e.interrupted {
			reason = domain.EndCancelled
		}
		e.active = nil
		e.interrupted = false
		cancel := e.cancelJob
		e.cancelJob = nil
		e.mu.Unlock()
		cancel()

		e.log.Debug("engine: %s %s", j.u.ID, reason)
		j.onEnd(reason)
	}
}

// dequeue pops the oldest job and marks it active.
func (e *Engine) dequeue(ctx context.Context) (job, context.Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return job{}, nil, false
	}
	j := e.queue[0]
	e.queue = e.queue[1:]

	jobCtx, cancel := context.WithCancel(ctx)
	e.active = &j
	e.interrupted = false
	e.cancelJob = cancel
	return j, jobCtx, true
}

func (e *Engine) isInterrupted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interrupted
}

// process synthesizes and plays one utterance, using chunked parallel
// synthesis for long text.
func (e *Engine) process(ctx context.Context, j job) domain.EndReason {
	waitTime := time.Since(j.queuedAt).Round(time.Millisecond)
	e.log.Debug("engine: speaking %s (waited=%s): %s", j.u.ID, waitTime, truncate(j.u.Text, 60))

	chunks := e.splitChunks(j.u.Text)

	type result struct {
		idx   int
		audio []byte
		err   error
	}
	results := make(chan result, len(chunks))

	for i, chunk := range chunks {
		go func(idx int, text string) {
			part := j.u
			part.Text = text
			audio, err := e.synthesizeWithCache(ctx, part)
			results <- result{idx: idx, audio: audio, err: err}
		}(i, chunk)
	}

	// Collect results into ordered slots.
	audioSlots := make([][]byte, len(chunks))
	failed := 0
	for range chunks {
		r := <-results
		if r.err != nil {
			if ctx.Err() == nil {
				e.log.Error("engine: chunk %d synthesis failed: %v", r.idx, r.err)
			}
			failed++
			continue
		}
		audioSlots[r.idx] = r.audio
	}
	if failed == len(chunks) {
		if ctx.Err() != nil || e.isInterrupted() {
			return domain.EndCancelled
		}
		return domain.EndFailed
	}

	// Play in order. By now most/all chunks are ready.
	for i, audio := range audioSlots {
		if audio == nil {
			e.log.Debug("engine: skipping chunk %d (synthesis failed)", i)
			continue
		}
		if ctx.Err() != nil || e.isInterrupted() {
			e.log.Debug("engine: aborting chunk playback (interrupted)")
			return domain.EndCancelled
		}
		if err := e.sink.Play(ctx, audio); err != nil {
			e.log.Error("engine: chunk %d playback failed: %v", i, err)
			return domain.EndFailed
		}
	}
	return domain.EndFinished
}

// synthesizeWithCache checks the cache first, otherwise synthesizes and
// stores the result.
func (e *Engine) synthesizeWithCache(ctx context.Context, u domain.Utterance) ([]byte, error) {
	if e.cache == nil {
		return e.synth.Synthesize(ctx, u)
	}
	key := KeyFor(u)
	if audio, ok := e.cache.Get(key); ok {
		return audio, nil
	}
	audio, err := e.synth.Synthesize(ctx, u)
	if err != nil {
		return nil, err
	}
	e.cache.Put(key, audio)
	return audio, nil
}

// splitChunks breaks text into sentence-boundary chunks of approximately
// e.chunkSize characters. If chunkSize is 0 or the text is short, it
// returns the text as-is in a single slice.
func (e *Engine) splitChunks(text string) []string {
	if e.chunkSize <= 0 || len(text) <= e.chunkSize {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder

	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+len(s) > e.chunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	var out []string
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// splitSentences splits text at sentence boundaries (. ! ?) keeping the
// punctuation attached to the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if isSentenceEnd(runes[i]) {
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
				current.WriteRune(runes[i])
			}
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
