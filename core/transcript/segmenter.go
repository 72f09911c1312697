package transcript

import (
	"context"
	"strings"
	"sync"

	"github.com/koscakluka/aida/core/speechtotext"
)

type EndReason string

const (
	// EndSilence means the capture loop saw enough consecutive silent frames.
	EndSilence EndReason = "silence"
	// EndRemote means the transcription service signalled the end of the
	// utterance.
	EndRemote EndReason = "remote"
)

// Utterance is the finalized transcript of one turn.
type Utterance struct {
	Text      string
	Reason    EndReason
	Fragments int
}

func (u Utterance) IsEmpty() bool { return strings.TrimSpace(u.Text) == "" }

type SegmenterOptions struct {
	InterimCallback func(transcript string)
	FinalCallback   func(fragment string)
}

type SegmenterOption func(*SegmenterOptions)

// WithInterimCallback receives the current turn transcript, finals joined
// with the latest interim fragment, every time an interim result arrives.
func WithInterimCallback(callback func(transcript string)) SegmenterOption {
	return func(o *SegmenterOptions) {
		o.InterimCallback = callback
	}
}

func WithFinalCallback(callback func(fragment string)) SegmenterOption {
	return func(o *SegmenterOptions) {
		o.FinalCallback = callback
	}
}

// Segmenter accumulates final transcript fragments into one utterance per
// turn. The first End of a turn wins, later ones are ignored until Reset.
type Segmenter struct {
	options SegmenterOptions

	mu        sync.Mutex
	fragments []string
	ended     bool

	utterances chan Utterance
}

func NewSegmenter(opts ...SegmenterOption) *Segmenter {
	options := SegmenterOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &Segmenter{
		options:    options,
		utterances: make(chan Utterance, 1),
	}
}

// Utterances delivers at most one utterance per turn.
func (s *Segmenter) Utterances() <-chan Utterance { return s.utterances }

// Add processes a single result in receipt order.
func (s *Segmenter) Add(result speechtotext.Result) {
	switch result.Kind {
	case speechtotext.ResultUtteranceEnd:
		s.endOnRemoteSignal()
		return
	case speechtotext.ResultTranscript:
	default:
		return
	}

	transcript := strings.TrimSpace(result.Transcript)
	if !result.IsFinal {
		if transcript == "" || s.options.InterimCallback == nil {
			return
		}
		s.mu.Lock()
		if s.ended {
			s.mu.Unlock()
			return
		}
		current := strings.Join(append(s.fragments[:len(s.fragments):len(s.fragments)], transcript), " ")
		s.mu.Unlock()
		s.options.InterimCallback(current)
		return
	}

	if transcript != "" {
		s.mu.Lock()
		if s.ended {
			s.mu.Unlock()
			return
		}
		s.fragments = append(s.fragments, transcript)
		s.mu.Unlock()

		if s.options.FinalCallback != nil {
			s.options.FinalCallback(transcript)
		}
	}

	if result.SpeechFinal {
		s.endOnRemoteSignal()
	}
}

// endOnRemoteSignal ends the turn only once something was said, the service
// also reports utterance ends after pure noise.
func (s *Segmenter) endOnRemoteSignal() {
	s.mu.Lock()
	hasSpeech := len(s.fragments) > 0
	s.mu.Unlock()

	if hasSpeech {
		s.End(EndRemote)
	}
}

// End flushes the buffer as the utterance of the current turn. It reports
// whether this call was the one that ended the turn.
func (s *Segmenter) End(reason EndReason) bool {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return false
	}
	s.ended = true
	utterance := Utterance{
		Text:      strings.Join(s.fragments, " "),
		Reason:    reason,
		Fragments: len(s.fragments),
	}
	s.fragments = nil
	// Never blocks: one utterance per turn and Reset drains the channel.
	s.utterances <- utterance
	s.mu.Unlock()
	return true
}

// Reset starts a new turn. An utterance that was never received is dropped.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fragments = nil
	s.ended = false
	select {
	case <-s.utterances:
	default:
	}
}

// Consume feeds results into the segmenter until the channel is closed or
// ctx is done.
func (s *Segmenter) Consume(ctx context.Context, results <-chan speechtotext.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-results:
			if !ok {
				return
			}
			s.Add(result)
		}
	}
}
