package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/halfmoon-lab/chatrelay/pkg/service/convstore"
	"github.com/halfmoon-lab/chatrelay/pkg/usecase"
	"github.com/halfmoon-lab/chatrelay/pkg/utils/errutil"
	"github.com/halfmoon-lab/chatrelay/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// userIDHeader carries the caller identity. Authentication itself is
// delegated to the fronting proxy; this service trusts the header.
const (
	userIDHeader = "X-User-ID"
	tierHeader   = "X-User-Tier"
)

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// chatHandler streams one chat turn as server-sent events
func chatHandler(chat *usecase.ChatUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := types.UserID(r.Header.Get(userIDHeader))
		if userID == "" {
			http.Error(w, "user identity required", http.StatusUnauthorized)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to decode chat request"), http.StatusBadRequest)
			return
		}

		input := usecase.SendInput{
			UserID:         userID,
			ConversationID: types.ConversationID(req.ConversationID),
			Message:        req.Message,
			Tier:           types.Tier(r.Header.Get(tierHeader)),
		}
		if err := input.Validate(); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			errutil.HandleHTTP(r.Context(), w, goerr.New("streaming unsupported by response writer"), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		emit := func(ev model.StreamEvent) error {
			if err := writeSSE(w, ev); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}

		if err := chat.Send(r.Context(), input, emit); err != nil {
			// The stream already carried a fatal event; log for the operator
			logging.From(r.Context()).Error("chat turn failed",
				"request_id", middleware.GetReqID(r.Context()), "error", err.Error())
		}
	}
}

// writeSSE frames one event. The completion sentinel is sent as a bare data
// line so clients can terminate on it without parsing JSON.
func writeSSE(w http.ResponseWriter, ev model.StreamEvent) error {
	if ev.Type == types.EventDone {
		_, err := fmt.Fprintf(w, "data: %s\n\n", types.DoneSentinel)
		return err
	}

	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal stream event", goerr.V("type", ev.Type))
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

type conversationSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	UpdatedAt    string `json:"updated_at"`
}

// listConversationsHandler returns the caller's conversations, newest first
func listConversationsHandler(store *convstore.Store) http.HandlerFunc {
	const defaultLimit = 50

	return func(w http.ResponseWriter, r *http.Request) {
		userID := types.UserID(r.Header.Get(userIDHeader))
		if userID == "" {
			http.Error(w, "user identity required", http.StatusUnauthorized)
			return
		}

		conversations, err := store.List(r.Context(), userID, defaultLimit)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		resp := struct {
			Conversations []conversationSummary `json:"conversations"`
		}{
			Conversations: make([]conversationSummary, len(conversations)),
		}
		for i, c := range conversations {
			resp.Conversations[i] = conversationSummary{
				ID:           c.ID.String(),
				Title:        c.Title,
				MessageCount: c.MessageCount,
				UpdatedAt:    c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			errutil.Handle(r.Context(), err, "failed to encode conversation list")
		}
	}
}
