package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/koscakluka/aida/core/assistant"
	"github.com/koscakluka/aida/core/audio/miniaudio"
	"github.com/koscakluka/aida/core/audio/portaudio"
	"github.com/koscakluka/aida/core/capture"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/llms/groq"
	"github.com/koscakluka/aida/core/memory"
	"github.com/koscakluka/aida/core/memory/postgres"
	"github.com/koscakluka/aida/core/playback"
	"github.com/koscakluka/aida/core/session"
	"github.com/koscakluka/aida/core/speechtotext"
	"github.com/koscakluka/aida/core/speechtotext/deepgram"
	"github.com/koscakluka/aida/core/texttospeech"
	deepgramtts "github.com/koscakluka/aida/core/texttospeech/deepgram"
	"github.com/koscakluka/aida/core/texttospeech/elevenlabs"
	"github.com/koscakluka/aida/core/wakeword"
	"github.com/koscakluka/aida/core/wakeword/porcupine"
	"github.com/koscakluka/aida/core/websearch"
	"github.com/koscakluka/aida/internal/config"
)

func openMemory(ctx context.Context, cfg config.MemoryConfig) (memory.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		slog.Info("keeping memories in process")
		return memory.NewInMemoryStore(), func() {}, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return store, store.Close, nil
}

const (
	openAIBaseURL = "https://api.openai.com/v1"
	openAIModel   = "gpt-4o-mini"
)

func newLLM(cfg config.LLMConfig) (*groq.Client, error) {
	var opts []groq.ClientOption
	if cfg.Provider == config.LLMProviderOpenAI {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fault.New(fault.KindInitialization, "openai client", errors.New("OPENAI_API_KEY not set"))
		}
		opts = append(opts, groq.WithBaseURL(openAIBaseURL), groq.WithAPIKey(apiKey), groq.WithModel(openAIModel))
	}
	if cfg.Model != "" {
		opts = append(opts, groq.WithModel(cfg.Model))
	}
	return groq.NewClient(opts...)
}

func newAssistant(cfg *config.Config, store memory.Store) (*assistant.Assistant, error) {
	llm, err := newLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}

	opts := []assistant.AssistantOption{
		assistant.WithMemory(store),
		assistant.WithUserID(cfg.Session.UserID),
	}
	if search, err := websearch.NewClient(); err != nil {
		slog.Warn("web search disabled", "error", err)
	} else {
		opts = append(opts, assistant.WithWebSearch(search))
	}
	return assistant.NewAssistant(llm, opts...), nil
}

func newSynthesizer(cfg config.TTSConfig) (texttospeech.Synthesizer, error) {
	var opts []texttospeech.TextToSpeechOption
	if cfg.Voice != "" {
		opts = append(opts, texttospeech.WithVoice(cfg.Voice))
	}
	if cfg.Model != "" {
		opts = append(opts, texttospeech.WithModel(cfg.Model))
	}

	switch cfg.Provider {
	case config.TTSProviderElevenLabs:
		return elevenlabs.NewTextToSpeechClient(opts...)
	default:
		return deepgramtts.NewTextToSpeechClient(opts...)
	}
}

func transcriberFactory(cfg *config.Config) session.TranscriberFactory {
	format := cfg.Audio.FrameFormat()
	return func(ctx context.Context) (speechtotext.Transcriber, error) {
		return deepgram.NewTranscriptionClient(
			speechtotext.WithFrameFormat(format),
			speechtotext.WithModel(cfg.Transcription.Model),
			speechtotext.WithLanguage(cfg.Transcription.Language),
			speechtotext.WithKeepAlive(cfg.Transcription.KeepAlive, true),
			speechtotext.WithQueueSize(cfg.Transcription.QueueSize),
			speechtotext.WithRetryPolicy(cfg.Transcription.RetryPolicy()),
		)
	}
}

type voice struct {
	orchestrator *session.Orchestrator
	closers      []func()
}

func (v *voice) Close() {
	for i := len(v.closers) - 1; i >= 0; i-- {
		v.closers[i]()
	}
}

// newVoice wires the audio devices and speech services around the assistant.
func newVoice(cfg *config.Config, handler *assistant.Assistant, observer func(session.Status)) (*voice, error) {
	v := &voice{}

	output, err := miniaudio.NewClient(miniaudio.WithPlaybackSampleRate(cfg.Audio.PlaybackSampleRate))
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	v.closers = append(v.closers, output.Close)

	var mic capture.Microphone = output
	if cfg.Audio.Backend == config.AudioBackendPortAudio {
		pa, err := portaudio.NewClient()
		if err != nil {
			v.Close()
			return nil, fmt.Errorf("failed to open microphone: %w", err)
		}
		v.closers = append(v.closers, func() {
			if err := pa.Close(); err != nil {
				slog.Warn("failed to terminate portaudio", "error", err)
			}
		})
		mic = pa
	}

	synthesizer, err := newSynthesizer(cfg.TTS)
	if err != nil {
		v.Close()
		return nil, err
	}

	state := playback.NewState()
	coordinator := playback.NewCoordinator(state, output, synthesizer)
	loop := capture.NewLoop(mic, state,
		capture.WithFrameFormat(cfg.Audio.FrameFormat()),
		capture.WithSilenceDetection(cfg.Audio.SilenceThreshold, cfg.Audio.SilenceFrames),
	)
	gate := wakeword.NewGate(porcupine.NewDetector(
		porcupine.WithKeyword(cfg.WakeWord.Keyword),
		porcupine.WithSensitivity(cfg.WakeWord.Sensitivity),
	))

	v.orchestrator = session.NewOrchestrator(
		session.WithWakeWordGate(gate),
		session.WithCaptureLoop(loop),
		session.WithTranscriberFactory(transcriberFactory(cfg)),
		session.WithSpeaker(coordinator),
		session.WithHandler(handler),
		session.WithRecorder(handler),
		session.WithStatusObserver(observer),
		session.WithGreeting(cfg.Session.Greeting),
		session.WithInactivity(cfg.Session.InactivityTimeout, cfg.Session.InactivityWarning),
		session.WithTurnTimeout(cfg.Session.TurnTimeout),
		session.WithPersistTimeout(cfg.Session.PersistTimeout),
		session.WithOpenRetry(cfg.Session.OpenAttempts, session.DefaultOpenDelay),
		session.WithContinuousConversation(cfg.Session.Continuous),
	)
	return v, nil
}
