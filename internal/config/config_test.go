package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Fatalf("expected defaults to be valid, got %v", err)
	}
	if config.Audio.SampleRate != 16000 || config.Audio.FrameSize != 1024 {
		t.Fatalf("unexpected audio defaults %+v", config.Audio)
	}
	if config.Session.InactivityTimeout != 300*time.Second || config.Session.TurnTimeout != 60*time.Second {
		t.Fatalf("unexpected session defaults %+v", config.Session)
	}
	if got := config.Audio.SilenceDuration(); got != 6400*time.Millisecond {
		t.Fatalf("expected 100 frames of 64ms silence, got %s", got)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		errorMsg string
	}{
		{
			name:     "stereo capture",
			modify:   func(c *Config) { c.Audio.Channels = 2 },
			errorMsg: "audio config",
		},
		{
			name:     "unknown audio backend",
			modify:   func(c *Config) { c.Audio.Backend = "alsa" },
			errorMsg: "backend",
		},
		{
			name:     "no silence frames",
			modify:   func(c *Config) { c.Audio.SilenceFrames = 0 },
			errorMsg: "silence_frames",
		},
		{
			name:     "sensitivity out of range",
			modify:   func(c *Config) { c.WakeWord.Sensitivity = 1.5 },
			errorMsg: "wakeword config",
		},
		{
			name:     "keepalive too slow",
			modify:   func(c *Config) { c.Transcription.KeepAlive = 12 * time.Second },
			errorMsg: "keepalive",
		},
		{
			name:     "warning after timeout",
			modify:   func(c *Config) { c.Session.InactivityWarning = c.Session.InactivityTimeout },
			errorMsg: "inactivity_warning",
		},
		{
			name:     "no open attempts",
			modify:   func(c *Config) { c.Session.OpenAttempts = 0 },
			errorMsg: "open_attempts",
		},
		{
			name:     "unknown tts provider",
			modify:   func(c *Config) { c.TTS.Provider = "polly" },
			errorMsg: "tts config",
		},
		{
			name:     "unknown llm provider",
			modify:   func(c *Config) { c.LLM.Provider = "anthropic" },
			errorMsg: "llm config",
		},
		{
			name:     "unknown log level",
			modify:   func(c *Config) { c.Logging.Level = "trace" },
			errorMsg: "logging config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(&config)

			err := config.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Fatalf("expected error containing %q, got %v", tt.errorMsg, err)
			}
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aida.yaml")
	data := `
audio:
  silence_frames: 50
transcription:
  model: nova-2
  keepalive: 5s
session:
  inactivity_timeout: 2m
  inactivity_warning: 30s
  continuous: true
tts:
  provider: elevenlabs
metrics:
  listen: ":9090"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Audio.SilenceFrames != 50 || config.Audio.SampleRate != 16000 {
		t.Fatalf("unexpected audio config %+v", config.Audio)
	}
	if config.Transcription.Model != "nova-2" || config.Transcription.KeepAlive != 5*time.Second {
		t.Fatalf("unexpected transcription config %+v", config.Transcription)
	}
	if config.Session.InactivityTimeout != 2*time.Minute || !config.Session.Continuous {
		t.Fatalf("unexpected session config %+v", config.Session)
	}
	if config.TTS.Provider != TTSProviderElevenLabs || config.Metrics.Listen != ":9090" {
		t.Fatalf("unexpected config %+v", config)
	}

	policy := config.Transcription.RetryPolicy()
	if policy.Delay(3) != 3*config.Transcription.ReconnectDelay {
		t.Fatalf("expected linear reconnect backoff")
	}
}

func TestLoadFailures(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file to fail")
	}

	path := filepath.Join(t.TempDir(), "invalid.yaml")
	os.WriteFile(path, []byte("session:\n  open_attempts: 0\n"), 0o600)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "open_attempts") {
		t.Fatalf("expected validation failure, got %v", err)
	}

	if config, err := Load(""); err != nil || config.TTS.Provider != TTSProviderDeepgram {
		t.Fatalf("expected defaults without a file, got %+v (err=%v)", config, err)
	}
}
