package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Log struct {
		Level  string
		Pretty bool
	}
	Playback struct {
		FlowFile    string
		RateMin     float64
		RateMax     float64
		RateStep    float64
		MinInterval time.Duration
		CueInterval time.Duration
		Autoplay    bool
	}
	Voice struct {
		Provider  string // console | elevenlabs | none
		Name      string
		Rate      float64
		Pitch     float64
		Volume    float64
		PlayerCmd string
	}
	Eleven struct {
		APIKey  string
		VoiceID string
		ModelID string
		BaseURL string
	}
	Deepgram struct {
		APIKey        string
		Model         string
		Language      string
		BaseURL       string
		EndpointingMs int
		UtterEndMs    int
		NoSpeech      time.Duration
		RecorderCmd   string
	}
	LLM struct {
		APIKey          string
		Model           string
		BaseURL         string
		AzureEndpoint   string
		AzureAPIVersion string
		Timeout         time.Duration
	}
	Events struct {
		Path string
	}
	Metrics struct {
		Addr string
	}
}

// Load reads configuration from the environment.
func Load() Config { return LoadFile("") }

// LoadFile layers an optional YAML/TOML/JSON file under the environment.
// A missing or unreadable file is logged and skipped.
func LoadFile(path string) Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("playback.rate_min", 0.5)
	v.SetDefault("playback.rate_max", 2.0)
	v.SetDefault("playback.rate_step", 0.25)
	v.SetDefault("playback.min_interval_ms", 500)
	v.SetDefault("playback.cue_interval_ms", 3500)
	v.SetDefault("playback.autoplay", false)

	v.SetDefault("voice.provider", "console")
	v.SetDefault("voice.rate", 1.0)
	v.SetDefault("voice.pitch", 0.95)
	v.SetDefault("voice.volume", 1.0)
	v.SetDefault("voice.player_cmd", "aplay -q -f S16_LE -c 1 -r {rate}")

	v.SetDefault("elevenlabs.model_id", "eleven_turbo_v2_5")
	v.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")

	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "en-US")
	v.SetDefault("deepgram.endpointing_ms", 1000)
	v.SetDefault("deepgram.utterance_end_ms", 1500)
	v.SetDefault("deepgram.no_speech_ms", 8000)
	v.SetDefault("deepgram.recorder_cmd", "arecord -q -f S16_LE -c 1 -r {rate} -t raw")

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_s", 8)

	// Map envs
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.pretty", "LOG_PRETTY")

	v.BindEnv("playback.flow_file", "FLOW_FILE")
	v.BindEnv("playback.rate_min", "PLAYBACK_RATE_MIN")
	v.BindEnv("playback.rate_max", "PLAYBACK_RATE_MAX")
	v.BindEnv("playback.rate_step", "PLAYBACK_RATE_STEP")
	v.BindEnv("playback.min_interval_ms", "PLAYBACK_MIN_INTERVAL_MS")
	v.BindEnv("playback.cue_interval_ms", "PLAYBACK_CUE_INTERVAL_MS")
	v.BindEnv("playback.autoplay", "PLAYBACK_AUTOPLAY")

	v.BindEnv("voice.provider", "VOICE_PROVIDER")
	v.BindEnv("voice.name", "VOICE_NAME")
	v.BindEnv("voice.rate", "VOICE_RATE")
	v.BindEnv("voice.pitch", "VOICE_PITCH")
	v.BindEnv("voice.volume", "VOICE_VOLUME")
	v.BindEnv("voice.player_cmd", "VOICE_PLAYER_CMD")

	v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	v.BindEnv("elevenlabs.model_id", "ELEVENLABS_MODEL_ID")
	v.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")

	v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	v.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
	v.BindEnv("deepgram.language", "DEEPGRAM_LANGUAGE")
	v.BindEnv("deepgram.base_url", "DEEPGRAM_WS_URL")
	v.BindEnv("deepgram.endpointing_ms", "DEEPGRAM_ENDPOINTING_MS")
	v.BindEnv("deepgram.utterance_end_ms", "DEEPGRAM_UTTERANCE_END_MS")
	v.BindEnv("deepgram.no_speech_ms", "DEEPGRAM_NO_SPEECH_MS")
	v.BindEnv("deepgram.recorder_cmd", "DEEPGRAM_RECORDER_CMD")

	v.BindEnv("llm.api_key", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	v.BindEnv("llm.azure_endpoint", "AZURE_OPENAI_ENDPOINT")
	v.BindEnv("llm.azure_api_version", "AZURE_OPENAI_API_VERSION")
	v.BindEnv("llm.timeout_s", "LLM_TIMEOUT_S")

	v.BindEnv("events.path", "EVENTS_PATH")
	v.BindEnv("metrics.addr", "METRICS_ADDR")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config file not loaded")
		}
	}

	var c Config
	c.Log.Level = v.GetString("log.level")
	c.Log.Pretty = v.GetBool("log.pretty")

	c.Playback.FlowFile = v.GetString("playback.flow_file")
	c.Playback.RateMin = v.GetFloat64("playback.rate_min")
	c.Playback.RateMax = v.GetFloat64("playback.rate_max")
	c.Playback.RateStep = v.GetFloat64("playback.rate_step")
	c.Playback.MinInterval = ms(v.GetInt("playback.min_interval_ms"))
	c.Playback.CueInterval = ms(v.GetInt("playback.cue_interval_ms"))
	c.Playback.Autoplay = v.GetBool("playback.autoplay")

	c.Voice.Provider = strings.ToLower(strings.TrimSpace(v.GetString("voice.provider")))
	c.Voice.Name = v.GetString("voice.name")
	c.Voice.Rate = v.GetFloat64("voice.rate")
	c.Voice.Pitch = v.GetFloat64("voice.pitch")
	c.Voice.Volume = v.GetFloat64("voice.volume")
	c.Voice.PlayerCmd = v.GetString("voice.player_cmd")

	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")
	c.Eleven.ModelID = v.GetString("elevenlabs.model_id")
	c.Eleven.BaseURL = v.GetString("elevenlabs.base_url")

	c.Deepgram.APIKey = v.GetString("deepgram.api_key")
	c.Deepgram.Model = v.GetString("deepgram.model")
	c.Deepgram.Language = v.GetString("deepgram.language")
	c.Deepgram.BaseURL = v.GetString("deepgram.base_url")
	c.Deepgram.EndpointingMs = v.GetInt("deepgram.endpointing_ms")
	c.Deepgram.UtterEndMs = v.GetInt("deepgram.utterance_end_ms")
	c.Deepgram.NoSpeech = ms(v.GetInt("deepgram.no_speech_ms"))
	c.Deepgram.RecorderCmd = v.GetString("deepgram.recorder_cmd")

	c.LLM.APIKey = v.GetString("llm.api_key")
	c.LLM.Model = v.GetString("llm.model")
	c.LLM.BaseURL = v.GetString("llm.base_url")
	c.LLM.AzureEndpoint = v.GetString("llm.azure_endpoint")
	c.LLM.AzureAPIVersion = v.GetString("llm.azure_api_version")
	c.LLM.Timeout = time.Duration(v.GetInt("llm.timeout_s")) * time.Second

	c.Events.Path = v.GetString("events.path")
	c.Metrics.Addr = v.GetString("metrics.addr")

	c.normalize()
	log.Debug().Str("voice", c.Voice.Provider).Float64("rate_min", c.Playback.RateMin).Float64("rate_max", c.Playback.RateMax).Msg("config loaded")
	return c
}

// normalize corrects invalid combinations instead of failing.
func (c *Config) normalize() {
	if c.Playback.RateMin <= 0 {
		c.Playback.RateMin = 0.5
	}
	if c.Playback.RateMax <= 0 {
		c.Playback.RateMax = 2.0
	}
	if c.Playback.RateMin > c.Playback.RateMax {
		c.Playback.RateMin, c.Playback.RateMax = c.Playback.RateMax, c.Playback.RateMin
	}
	if c.Playback.RateStep <= 0 {
		c.Playback.RateStep = 0.25
	}
	if c.Playback.MinInterval <= 0 {
		c.Playback.MinInterval = 500 * time.Millisecond
	}
	if c.Playback.CueInterval <= 0 {
		c.Playback.CueInterval = 3500 * time.Millisecond
	}
	if c.Voice.Volume < 0 || c.Voice.Volume > 1 {
		c.Voice.Volume = 1.0
	}
	switch c.Voice.Provider {
	case "console", "elevenlabs", "none":
	default:
		c.Voice.Provider = "console"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 8 * time.Second
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
