package deepgram

import (
	"encoding/json"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/speechtotext"
)

const (
	typeKeepAlive = "KeepAlive"
	typeError     = "Error"
	typeWarning   = "Warning"
	typeMetadata  = "Metadata"
)

type controlMessage struct {
	Type string `json:"type"`
}

var (
	keepAliveMessage   = controlMessage{Type: typeKeepAlive}
	closeStreamMessage = controlMessage{Type: string(api.TypeCloseStreamResponse)}
)

// serviceNotice covers both Error and Warning messages.
type serviceNotice struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Message     string `json:"message"`
	Variant     string `json:"variant"`
	Code        string `json:"code"`
}

// parseMessage turns an inbound text message into a result. Messages that
// carry nothing for the segmenter report ok=false. A non-nil error is always
// a protocol fault.
func parseMessage(msg []byte) (result speechtotext.Result, ok bool, err error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return result, false, fault.New(fault.KindProtocol, "decode message", err)
	}

	switch api.TypeResponse(envelope.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return result, false, fault.New(fault.KindProtocol, "decode results", err)
		}
		result = speechtotext.Result{
			Kind:        speechtotext.ResultTranscript,
			IsFinal:     msgResp.IsFinal,
			SpeechFinal: msgResp.SpeechFinal,
		}
		if len(msgResp.Channel.Alternatives) > 0 {
			alternative := msgResp.Channel.Alternatives[0]
			result.Transcript = strings.TrimSpace(alternative.Transcript)
			result.Confidence = alternative.Confidence
		}
		return result, true, nil

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return result, false, fault.New(fault.KindProtocol, "decode utterance end", err)
		}
		return speechtotext.Result{Kind: speechtotext.ResultUtteranceEnd}, true, nil

	case api.TypeSpeechStartedResponse:
		var msgResp api.SpeechStartedResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return result, false, fault.New(fault.KindProtocol, "decode speech started", err)
		}
		return speechtotext.Result{Kind: speechtotext.ResultSpeechStarted}, true, nil
	}

	switch envelope.Type {
	case typeError, typeWarning:
		var notice serviceNotice
		if err := json.Unmarshal(msg, &notice); err != nil {
			return result, false, fault.New(fault.KindProtocol, "decode notice", err)
		}
		logNotice(notice)
	case typeMetadata:
		logger.Debug("Transcription session metadata received")
	default:
		logger.Debug("Unhandled transcription message", "type", envelope.Type)
	}
	return result, false, nil
}

func logNotice(notice serviceNotice) {
	attrs := []any{"description", notice.Description}
	if notice.Message != "" {
		attrs = append(attrs, "message", notice.Message)
	}
	if notice.Variant != "" {
		attrs = append(attrs, "variant", notice.Variant)
	}
	if notice.Code != "" {
		attrs = append(attrs, "code", notice.Code)
	}

	if notice.Type == typeError {
		logger.Error("Transcription service reported an error", attrs...)
		return
	}
	logger.Warn("Transcription service reported a warning", attrs...)
}
