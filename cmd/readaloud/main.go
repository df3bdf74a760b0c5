// Readaloud reads typed text aloud through a pluggable speech engine.
//
// Usage:
//
//	readaloud [-config file] [-engine azure|piper|noop] [-voice name] [-dictate] [-verbose] [-quiet]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/readaloud/internal/catalog"
	"github.com/hammamikhairi/readaloud/internal/config"
	"github.com/hammamikhairi/readaloud/internal/display"
	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/logger"
	"github.com/hammamikhairi/readaloud/internal/notify"
	"github.com/hammamikhairi/readaloud/internal/params"
	"github.com/hammamikhairi/readaloud/internal/session"
	"github.com/hammamikhairi/readaloud/internal/speech"
)

const sttTempDir = ".readaloud-stt"

func main() {
	_ = godotenv.Load()

	configFile := flag.String("config", "", "path to readaloud.yaml (default: search ., ./configs, ~/.config/readaloud)")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", "", "file to write logs to (use \"stderr\" to log to console)")
	engineName := flag.String("engine", "", "speech engine: azure, piper or noop")
	noSpeech := flag.Bool("no-speech", false, "log utterances instead of playing them")
	voice := flag.String("voice", "", "preferred voice name")
	dictate := flag.Bool("dictate", false, "enable ctrl+d voice dictation via local Whisper STT")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *engineName != "" {
		cfg.Engine = *engineName
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if *noSpeech {
		cfg.Engine = config.EngineNoop
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *voice != "" {
		cfg.Defaults.Voice = *voice
	}
	if *dictate {
		cfg.Dictation.Enabled = true
	}

	logLevel, ok := logger.ParseLevel(cfg.Log.Level)
	if !ok {
		fmt.Fprintf(os.Stderr, "warning: unknown log level %q, using normal\n", cfg.Log.Level)
	}
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the UI stays clean.
	var logOut io.Writer = os.Stderr
	if cfg.Log.File != "" && cfg.Log.File != "stderr" {
		if dir := filepath.Dir(cfg.Log.File); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.Log.File, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Third-party libs (the whisper transcriber) log through the standard
	// package; keep them off the terminal too.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)
	if cfg.File != "" {
		log.Info("config loaded from %s", cfg.File)
	} else {
		log.Info("no config file found, using defaults and environment")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Wire dependencies.
	eng, startEngine, closeEngine := buildEngine(cfg, log.With("speech"))
	defer closeEngine()

	store := params.NewStore()
	store.SetRate(cfg.Defaults.Rate)
	store.SetPitch(cfg.Defaults.Pitch)
	store.SetVolume(cfg.Defaults.Volume)
	store.SetVoiceName(cfg.Defaults.Voice)

	voices := catalog.New(eng, log.With("catalog"))
	defer voices.Close()

	var ui *display.UI
	toaster := notify.NewToaster(log.With("notify"), func(kind notify.Kind, msg string) {
		ui.Toast(kind, msg)
	})
	ctl := session.New(eng, voices, store, toaster, log.With("session"))
	defer ctl.Stop()

	var uiOpts []display.Option
	if cfg.Dictation.Enabled {
		dict, err := buildDictation(cfg.Dictation, log.With("dictation"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		uiOpts = append(uiOpts, display.WithDictation(dict, cfg.Dictation.RecordDuration()))
		log.Info("dictation enabled (bin=%s, model=%s, clip=%s)",
			cfg.Dictation.WhisperBin, cfg.Dictation.Model, cfg.Dictation.RecordDuration())
	}

	ui = display.NewUI(ctl, voices, store, uiOpts...)
	ctl.OnStateChange(ui.StateChanged)

	// Subscribe before the engine starts fetching so its readiness signal
	// cannot be missed.
	loaded := voices.Load()
	startEngine(ctx)

	fmt.Println(display.RenderBanner("engine: " + cfg.Engine))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case v, ok := <-loaded:
			if ok {
				ui.VoicesLoaded(v)
			}
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		// Bubble Tea owns the terminal and blocks until quit.
		defer cancel()
		return ui.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		log.Error("display: %v", err)
	}
}

// buildEngine picks the host engine from config. Anything that cannot
// produce audio falls back to the log-only engine.
func buildEngine(cfg *config.Config, log *logger.Logger) (domain.SpeechEngine, func(context.Context), func()) {
	noop := func() (domain.SpeechEngine, func(context.Context), func()) {
		return speech.NewNoOp(log), func(context.Context) {}, func() {}
	}

	var (
		synth      speech.Synthesizer
		sampleRate int
	)
	switch cfg.Engine {
	case config.EngineNoop:
		log.Info("speech disabled, utterances are only logged")
		return noop()
	case config.EngineAzure:
		if !cfg.HasAzureCredentials() {
			log.Info("TTS disabled: set %s and %s env vars to enable", speech.EnvAzureSpeechKey, speech.EnvAzureSpeechRegion)
			return noop()
		}
		rate, err := cfg.Azure.SampleRate()
		if err != nil {
			log.Error("azure: %v, speech disabled", err)
			return noop()
		}
		synth = speech.NewAzureClient(cfg.Azure.Key, cfg.Azure.Region, log,
			speech.WithAudioFormat(cfg.Azure.Format),
			speech.WithHTTPTimeout(cfg.Azure.Timeout),
		)
		sampleRate = rate
		log.Info("TTS enabled (azure, region=%s)", cfg.Azure.Region)
	case config.EnginePiper:
		synth = speech.NewPiperClient(cfg.Piper.Endpoint, cfg.Piper.Voice, log)
		sampleRate = speech.PiperSampleRate
		log.Info("TTS enabled (piper, endpoint=%s)", cfg.Piper.Endpoint)
	}

	player, err := speech.NewPlayer(sampleRate, speech.ChannelCount, log)
	if err != nil {
		log.Error("audio player init failed, speech disabled: %v", err)
		return noop()
	}

	cache := speech.NewAudioCache(synth.Name(), cfg.Cache.Dir, cfg.Cache.DiskWrite, log)
	eng := speech.NewEngine(synth, player, log, speech.WithCache(cache))
	return eng, eng.Start, eng.Close
}

func buildDictation(cfg config.DictationConfig, log *logger.Logger) (*speech.Dictation, error) {
	if _, err := os.Stat(cfg.Model); err != nil {
		return nil, fmt.Errorf("whisper model not found at %s", cfg.Model)
	}
	if err := os.MkdirAll(sttTempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", sttTempDir, err)
	}
	return speech.NewDictation(cfg.WhisperBin, cfg.Model, log, speech.WithTempDir(sttTempDir)), nil
}
