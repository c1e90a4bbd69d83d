package chat

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"mchat/tools/decode"
	"mchat/tools/errs"
)

// Wire format: JSON text frames {"event": "...", "data": {...}}.
// The event set is closed; bodies are validated at the boundary so a
// malformed payload is rejected structurally instead of surfacing as a
// missing-field access somewhere downstream.

// inbound
const (
	EvtJoin        = "conversation:join"
	EvtTypingStart = "typing:start"
	EvtTypingStop  = "typing:stop"
	EvtMessageNew  = "message:new"
	EvtMessageRead = "message:read"
)

// outbound
const (
	EvtOnlineList = "user:online:list"
	EvtPresence   = "user:presence"
	EvtError      = "error"
)

type Frame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.ErrProtocolViolation.WrapMsg("unparsable frame: " + err.Error())
	}
	if f.Event == "" {
		return nil, errs.ErrProtocolViolation.WrapMsg("frame without event")
	}
	return f, nil
}

func EncodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(map[string]any{"event": event, "data": data})
}

// mustFrame is for payloads built from our own types; a marshal failure
// there is a programming error.
func mustFrame(event string, data any) []byte {
	b, err := EncodeFrame(event, data)
	if err != nil {
		panic(err)
	}
	return b
}

// ---- inbound bodies ----

type JoinBody struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type TypingBody struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type MessageNewBody struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Text           string `json:"text" validate:"required"`
}

type MessageReadBody struct {
	ConversationID string `json:"conversationId" validate:"required"`
	MessageID      string `json:"messageId" validate:"required"`
}

var validate = validator.New()

// decodeBody decodes and validates an event body. Any failure maps to
// ErrValidation: the event is dropped, the connection survives.
func decodeBody[T any](data map[string]any) (*T, error) {
	body, err := decode.Map[T](data)
	if err != nil {
		return nil, errs.ErrValidation.WrapMsg(err.Error())
	}
	if err := validate.Struct(body); err != nil {
		return nil, errs.ErrValidation.WrapMsg(err.Error())
	}
	return body, nil
}

// ---- outbound bodies ----

type PresenceEvent struct {
	UserID   string     `json:"userId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen"` // null while online
}

type OnlineListEvent struct {
	Users []string `json:"users"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type ReadEvent struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
}

type ErrorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
}
