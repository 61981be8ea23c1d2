package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/harun/iattom/internal/tracing"
	"github.com/harun/iattom/pkg/commandqueue"
	"github.com/harun/iattom/pkg/dispatch"
	"github.com/harun/iattom/pkg/whatsapp"
)

const rootText = "IAttom online ✅"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, rootText)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"lanes":     s.queue.Lanes(),
		"timestamp": time.Now().UnixMilli(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// handleVerify answers the subscription handshake
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, token, challenge := q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge")

	if mode == "subscribe" && s.options.VerifyToken != "" && token == s.options.VerifyToken {
		s.logger.Info().Msg("Webhook verified")
		writeText(w, http.StatusOK, challenge)
		return
	}
	s.logger.Warn().Str("mode", mode).Msg("Webhook verification rejected")
	writeText(w, http.StatusForbidden, "Forbidden")
}

// handleEvents acknowledges a delivery and hands every message to its
// contact's lane. Anything that was read is acknowledged with 200 so the
// platform does not retry payloads that will never parse.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := tracing.LoggerFromContext(r.Context(), s.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn().Int64("limit", tooLarge.Limit).Msg("Webhook payload too large")
			writeText(w, http.StatusRequestEntityTooLarge, "Payload Too Large")
			return
		}
		logger.Warn().Err(err).Msg("Failed to read webhook payload")
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}

	if s.options.AppSecret != "" && !verifySignature(body, r.Header.Get(SignatureHeader), s.options.AppSecret) {
		logger.Warn().Msg("Webhook signature mismatch")
		writeText(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	logger.Debug().RawJSON("payload", jsonOrNull(body)).Msg("Webhook event")

	events, rejected, err := whatsapp.ParseEvents(body)
	if err != nil {
		logger.Warn().Err(err).Msg("Ignoring malformed webhook payload")
		writeText(w, http.StatusOK, "OK")
		return
	}
	for _, rej := range rejected {
		logger.Warn().Str("message_id", rej.MessageID).Str("reason", rej.Reason).Msg("Skipping malformed message")
	}

	for _, in := range events {
		ev := toEvent(in)
		task := func(ctx context.Context) error {
			s.dispatcher.Handle(ctx, ev)
			return nil
		}
		if err := s.queue.Submit(r.Context(), ev.ContactID, task); err != nil {
			if errors.Is(err, commandqueue.ErrClosed) {
				logger.Warn().Str("message_id", ev.MessageID).Msg("Dropping message received during shutdown")
				continue
			}
			logger.Error().Err(err).Str("message_id", ev.MessageID).Msg("Failed to queue message")
		}
	}
	writeText(w, http.StatusOK, "OK")
}

func toEvent(in whatsapp.Inbound) dispatch.Event {
	return dispatch.Event{
		ContactID:   in.ContactID,
		MessageID:   in.MessageID,
		Type:        in.Type,
		Text:        in.Text,
		ProfileName: in.ProfileName,
		Timestamp:   in.Timestamp,
	}
}

func jsonOrNull(body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	return []byte("null")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
