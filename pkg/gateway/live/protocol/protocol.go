// Package protocol defines the JSON frames exchanged over the live call
// websocket. Client audio may also arrive as raw binary frames; the only
// binary server frame is synthesized speech.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// Client to server.

type ClientSelectLesson struct {
	Type     string `json:"type"`
	LessonID int    `json:"lessonId"`
}

type ClientAudio struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Bytes decodes the base64 payload.
func (m ClientAudio) Bytes() ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, badRequest("audio.data is not valid base64", "data")
	}
	return out, nil
}

type ClientStop struct {
	Type string `json:"type"`
}

// Server to client.

type ServerStopped struct {
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type ServerTranscription struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ServerText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ServerErr struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ServerEnded struct {
	Type    string `json:"type"`
	Outcome string `json:"outcome"`
}

func NewStopped(ok bool, message string) ServerStopped {
	return ServerStopped{Type: "stopped", OK: ok, Message: message}
}

func NewTranscription(text string) ServerTranscription {
	return ServerTranscription{Type: "transcription", Text: text}
}

func NewText(text string) ServerText {
	return ServerText{Type: "text", Text: text}
}

func NewErr(message string) ServerErr {
	return ServerErr{Type: "err", Message: message}
}

func NewEnded(outcome string) ServerEnded {
	return ServerEnded{Type: "ended", Outcome: outcome}
}

// DecodeClientMessage parses one JSON text frame into a typed message.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "selectLesson":
		var msg ClientSelectLesson
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid selectLesson frame", "")
		}
		if msg.LessonID <= 0 {
			return nil, badRequest("selectLesson.lessonId is required", "lessonId")
		}
		return msg, nil
	case "audio":
		var msg ClientAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio frame", "")
		}
		if strings.TrimSpace(msg.Data) == "" {
			return nil, badRequest("audio.data is required", "data")
		}
		return msg, nil
	case "stop":
		var msg ClientStop
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid stop frame", "")
		}
		return msg, nil
	default:
		return nil, badRequest(fmt.Sprintf("unknown message type %q", typ), "type")
	}
}
