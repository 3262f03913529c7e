package types

// EventType identifies a typed event on the outbound response stream
type EventType string

const (
	// EventSession announces the conversation ID, so a caller that omitted
	// one learns the generated ID before any token arrives.
	EventSession EventType = "session"

	// EventModel announces the model candidate currently being tried
	EventModel EventType = "model"

	// EventToken carries an incremental text chunk plus the accumulated text
	EventToken EventType = "token"

	// EventError carries a per-candidate failure or a fatal exhaustion error
	EventError EventType = "error"

	// EventDone terminates every stream, regardless of outcome
	EventDone EventType = "done"
)

// DoneSentinel is the fixed wire marker written for EventDone. It is a bare
// data frame, distinct from every typed event.
const DoneSentinel = "[DONE]"
