package model

import "github.com/halfmoon-lab/chatrelay/pkg/domain/types"

// StreamEvent is one typed event on the outbound response stream
type StreamEvent struct {
	Type    types.EventType
	Payload any
}

// SessionPayload announces the conversation ID for this stream
type SessionPayload struct {
	ConversationID string `json:"conversation_id"`
}

// ModelPayload announces the candidate model currently being tried
type ModelPayload struct {
	Model   string `json:"model"`
	Attempt int    `json:"attempt"`
}

// TokenPayload carries one incremental chunk and the accumulated text
type TokenPayload struct {
	Delta string `json:"delta"`
	Text  string `json:"text"`
}

// ErrorPayload reports a candidate failure (Fatal=false) or exhaustion of
// all candidates (Fatal=true). Message never contains provider error text.
type ErrorPayload struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
	Fatal   bool   `json:"fatal"`
}

// SessionEvent builds a session announcement event
func SessionEvent(convID types.ConversationID) StreamEvent {
	return StreamEvent{Type: types.EventSession, Payload: SessionPayload{ConversationID: convID.String()}}
}

// ModelEvent builds a model-selection announcement event
func ModelEvent(model string, attempt int) StreamEvent {
	return StreamEvent{Type: types.EventModel, Payload: ModelPayload{Model: model, Attempt: attempt}}
}

// TokenEvent builds an incremental token event
func TokenEvent(delta, text string) StreamEvent {
	return StreamEvent{Type: types.EventToken, Payload: TokenPayload{Delta: delta, Text: text}}
}

// ErrorEvent builds an error event
func ErrorEvent(msg, model string, fatal bool) StreamEvent {
	return StreamEvent{Type: types.EventError, Payload: ErrorPayload{Message: msg, Model: model, Fatal: fatal}}
}

// DoneEvent builds the completion sentinel that terminates every stream
func DoneEvent() StreamEvent {
	return StreamEvent{Type: types.EventDone, Payload: types.DoneSentinel}
}
