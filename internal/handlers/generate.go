package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"chatrelay-backend/internal/middleware"
	"chatrelay-backend/internal/models"
	"chatrelay-backend/internal/services"
)

const (
	StreamStatusTrailer    = "X-Stream-Status"
	StreamFragmentsTrailer = "X-Stream-Fragments"
	ChatIDHeader           = "X-Chat-Id"

	StreamComplete      = "complete"
	StreamTruncated     = "truncated"
	StreamPersistFailed = "persist_failed"
)

type GenerateHandler struct {
	relay *services.MessageRelay
}

func NewGenerateHandler(relay *services.MessageRelay) *GenerateHandler {
	return &GenerateHandler{relay: relay}
}

// Generate streams the reply as plain text, flushing every fragment. How the
// stream ended is reported in the X-Stream-Status trailer.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	ctx := r.Context()
	sess, err := h.relay.Prepare(ctx, middleware.GetUserID(ctx), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	started := false
	start := func() {
		hdr := w.Header()
		hdr.Set("Content-Type", "text/plain; charset=utf-8")
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("Cache-Control", "no-cache")
		hdr.Set("Trailer", StreamStatusTrailer+", "+StreamFragmentsTrailer)
		if sess.ChatID != "" {
			hdr.Set(ChatIDHeader, sess.ChatID)
		}
		w.WriteHeader(http.StatusOK)
		started = true
	}

	result, err := h.relay.Stream(ctx, sess, func(fragment string) error {
		if !started {
			start()
		}
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			log.Info().Str("user_id", sess.UserID).Int("fragments", result.Fragments).Msg("client went away, stream abandoned")
			return
		}
		if !started {
			handleServiceError(w, r, err)
			return
		}
		log.Warn().Err(err).Str("user_id", sess.UserID).Int("fragments", result.Fragments).Msg("stream truncated")
		setStreamTrailers(w, StreamTruncated, result.Fragments)
		return
	}

	if !started {
		start()
	}

	status := StreamComplete
	if sess.Persist {
		if err := h.relay.Persist(ctx, sess, result); err != nil {
			log.Error().Err(err).Str("user_id", sess.UserID).Str("chat_id", sess.ChatID).Msg("failed to persist streamed chat")
			status = StreamPersistFailed
		}
	}
	setStreamTrailers(w, status, result.Fragments)
}

func setStreamTrailers(w http.ResponseWriter, status string, fragments int) {
	w.Header().Set(StreamStatusTrailer, status)
	w.Header().Set(StreamFragmentsTrailer, strconv.Itoa(fragments))
}
