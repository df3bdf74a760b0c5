package speech

// Default Azure voice, used when the utterance carries no voice.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const DefaultVoice = "en-US-AvaNeural"

// DefaultLocale is the SSML xml:lang used when the voice has no locale.
const DefaultLocale = "en-US"

// Audio format requested from Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters matching the default Azure format.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// PiperSampleRate is the output rate of the medium-quality Piper voices.
const PiperSampleRate = 22050

// Env var names for Azure Speech credentials.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
)
