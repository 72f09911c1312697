// Package config loads the YAML configuration of the assistant. Secrets are
// never read from the file, they come from the environment.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/capture"
	"github.com/koscakluka/aida/core/session"
	"github.com/koscakluka/aida/core/speechtotext"
	"gopkg.in/yaml.v3"
)

const (
	TTSProviderDeepgram   = "deepgram"
	TTSProviderElevenLabs = "elevenlabs"

	LLMProviderGroq   = "groq"
	LLMProviderOpenAI = "openai"

	AudioBackendPortAudio = "portaudio"
	AudioBackendMiniaudio = "miniaudio"
)

type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	WakeWord      WakeWordConfig      `yaml:"wakeword"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Session       SessionConfig       `yaml:"session"`
	TTS           TTSConfig           `yaml:"tts"`
	LLM           LLMConfig           `yaml:"llm"`
	Memory        MemoryConfig        `yaml:"memory"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type AudioConfig struct {
	// Backend is the capture device library
	Backend            string `yaml:"backend"`
	SampleRate         int    `yaml:"sample_rate"`
	Channels           int    `yaml:"channels"`
	FrameSize          int    `yaml:"frame_size"`
	PlaybackSampleRate int    `yaml:"playback_sample_rate"`
	SilenceThreshold   int    `yaml:"silence_threshold"`
	SilenceFrames      int    `yaml:"silence_frames"`
}

type WakeWordConfig struct {
	Keyword     string  `yaml:"keyword"`
	Sensitivity float32 `yaml:"sensitivity"`
}

type TranscriptionConfig struct {
	Model                string        `yaml:"model"`
	Language             string        `yaml:"language"`
	KeepAlive            time.Duration `yaml:"keepalive"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	QueueSize            int           `yaml:"queue_size"`
}

type SessionConfig struct {
	Greeting          string        `yaml:"greeting"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
	InactivityWarning time.Duration `yaml:"inactivity_warning"`
	TurnTimeout       time.Duration `yaml:"turn_timeout"`
	PersistTimeout    time.Duration `yaml:"persist_timeout"`
	OpenAttempts      int           `yaml:"open_attempts"`
	Continuous        bool          `yaml:"continuous"`
	UserID            string        `yaml:"user_id"`
}

type TTSConfig struct {
	Provider string `yaml:"provider"`
	Voice    string `yaml:"voice"`
	Model    string `yaml:"model"`
}

type LLMConfig struct {
	// Provider is an OpenAI compatible chat completion service.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type MemoryConfig struct {
	// PostgresDSN selects the Postgres store, memories are kept in process
	// when it is empty.
	PostgresDSN string `yaml:"postgres_dsn"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() Config {
	return Config{
		Audio: AudioConfig{
			Backend:            AudioBackendPortAudio,
			SampleRate:         audio.DefaultSampleRate,
			Channels:           audio.DefaultChannels,
			FrameSize:          audio.DefaultFrameLength,
			PlaybackSampleRate: audio.DefaultSampleRate,
			SilenceThreshold:   capture.DefaultSilenceThreshold,
			SilenceFrames:      capture.DefaultSilenceFrames,
		},
		WakeWord: WakeWordConfig{
			Keyword:     "jarvis",
			Sensitivity: 1.0,
		},
		Transcription: TranscriptionConfig{
			Model:                speechtotext.DefaultModel,
			Language:             speechtotext.DefaultLanguage,
			KeepAlive:            speechtotext.DefaultKeepAliveInterval,
			ReconnectDelay:       speechtotext.DefaultBaseDelay,
			MaxReconnectAttempts: speechtotext.DefaultMaxAttempts,
			QueueSize:            speechtotext.DefaultQueueSize,
		},
		Session: SessionConfig{
			Greeting:          session.DefaultGreeting,
			InactivityTimeout: session.DefaultInactivityTimeout,
			InactivityWarning: session.DefaultInactivityWarning,
			TurnTimeout:       session.DefaultTurnTimeout,
			PersistTimeout:    session.DefaultPersistTimeout,
			OpenAttempts:      session.DefaultOpenAttempts,
			UserID:            "default_user",
		},
		TTS: TTSConfig{
			Provider: TTSProviderDeepgram,
		},
		LLM: LLMConfig{
			Provider: LLMProviderGroq,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the file at path on top of the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.WakeWord.Validate(); err != nil {
		return fmt.Errorf("wakeword config: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := c.TTS.Validate(); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if !slices.Contains([]string{AudioBackendPortAudio, AudioBackendMiniaudio}, a.Backend) {
		return fmt.Errorf("backend must be %q or %q, got %q", AudioBackendPortAudio, AudioBackendMiniaudio, a.Backend)
	}
	if err := a.FrameFormat().Validate(); err != nil {
		return err
	}
	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}
	if a.PlaybackSampleRate <= 0 {
		return fmt.Errorf("playback_sample_rate must be positive, got %d", a.PlaybackSampleRate)
	}
	if a.SilenceThreshold < 0 || a.SilenceThreshold > 32767 {
		return fmt.Errorf("silence_threshold must be between 0 and 32767, got %d", a.SilenceThreshold)
	}
	if a.SilenceFrames < 1 {
		return fmt.Errorf("silence_frames must be at least 1, got %d", a.SilenceFrames)
	}
	return nil
}

func (a *AudioConfig) FrameFormat() audio.FrameFormat {
	return audio.FrameFormat{SampleRate: a.SampleRate, Channels: a.Channels, FrameLength: a.FrameSize}
}

// SilenceDuration is how long the user has to be quiet to end a turn.
func (a *AudioConfig) SilenceDuration() time.Duration {
	return time.Duration(a.SilenceFrames) * a.FrameFormat().FrameDuration()
}

func (w *WakeWordConfig) Validate() error {
	if w.Keyword == "" {
		return fmt.Errorf("keyword cannot be empty")
	}
	if w.Sensitivity < 0 || w.Sensitivity > 1 {
		return fmt.Errorf("sensitivity must be between 0 and 1, got %f", w.Sensitivity)
	}
	return nil
}

func (t *TranscriptionConfig) Validate() error {
	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if t.KeepAlive <= 0 || t.KeepAlive >= 10*time.Second {
		return fmt.Errorf("keepalive must be between 0 and 10s, got %s", t.KeepAlive)
	}
	if t.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive, got %s", t.ReconnectDelay)
	}
	if t.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts cannot be negative, got %d", t.MaxReconnectAttempts)
	}
	if t.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", t.QueueSize)
	}
	return nil
}

func (t *TranscriptionConfig) RetryPolicy() speechtotext.RetryPolicy {
	return speechtotext.RetryPolicy{
		MaxAttempts: t.MaxReconnectAttempts,
		BaseDelay:   t.ReconnectDelay,
		Backoff:     speechtotext.LinearBackoff,
	}
}

func (s *SessionConfig) Validate() error {
	if s.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity_timeout must be positive, got %s", s.InactivityTimeout)
	}
	if s.InactivityWarning < 0 || s.InactivityWarning >= s.InactivityTimeout {
		return fmt.Errorf("inactivity_warning must be shorter than inactivity_timeout, got %s", s.InactivityWarning)
	}
	if s.TurnTimeout <= 0 {
		return fmt.Errorf("turn_timeout must be positive, got %s", s.TurnTimeout)
	}
	if s.PersistTimeout <= 0 {
		return fmt.Errorf("persist_timeout must be positive, got %s", s.PersistTimeout)
	}
	if s.OpenAttempts < 1 {
		return fmt.Errorf("open_attempts must be at least 1, got %d", s.OpenAttempts)
	}
	if s.UserID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	return nil
}

func (t *TTSConfig) Validate() error {
	if !slices.Contains([]string{TTSProviderDeepgram, TTSProviderElevenLabs}, t.Provider) {
		return fmt.Errorf("provider must be %q or %q, got %q", TTSProviderDeepgram, TTSProviderElevenLabs, t.Provider)
	}
	return nil
}

func (l *LLMConfig) Validate() error {
	if !slices.Contains([]string{LLMProviderGroq, LLMProviderOpenAI}, l.Provider) {
		return fmt.Errorf("provider must be %q or %q, got %q", LLMProviderGroq, LLMProviderOpenAI, l.Provider)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, l.Level) {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	return nil
}
