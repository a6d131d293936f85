package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/daviddao/mailassist/internal/assistant"
	"github.com/daviddao/mailassist/internal/gmail"
	"github.com/daviddao/mailassist/internal/types"
	"github.com/rs/zerolog"
)

const (
	defaultMaxResults = 10
	maxBodyBytes      = 1 << 20
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Gmail Assistant API is running."})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	maxResults := int64(defaultMaxResults)
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "max_results must be a positive integer")
			return
		}
		maxResults = n
	}

	client, ok := s.mailbox(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, client.List(r.Context(), maxResults, r.URL.Query()["label"]...))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	client, ok := s.mailbox(w, r)
	if !ok {
		return
	}
	email := client.Get(r.Context(), r.PathValue("id"))
	if email == nil {
		writeError(w, http.StatusNotFound, "Email not found")
		return
	}
	writeJSON(w, http.StatusOK, email)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSendRequest(w, r)
	if !ok {
		return
	}
	client, ok := s.mailbox(w, r)
	if !ok {
		return
	}
	sent, err := client.Send(r.Context(), req)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("send email")
		writeError(w, http.StatusInternalServerError, "Failed to send email")
		return
	}
	writeJSON(w, http.StatusOK, sent)
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSendRequest(w, r)
	if !ok {
		return
	}
	client, ok := s.mailbox(w, r)
	if !ok {
		return
	}
	draft, err := client.CreateDraft(r.Context(), req)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("create draft")
		writeError(w, http.StatusInternalServerError, "Failed to create draft")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleAutoReply(w http.ResponseWriter, r *http.Request) {
	email, req, ok := s.generationInput(w, r)
	if !ok {
		return
	}
	body, _ := gmail.ExtractBody(email.Payload)
	reply, err := s.assistant.AutoReply(r.Context(), req.PromptTemplateID, body, req.AdditionalInstructions)
	if err != nil {
		s.generationFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.AutoReplyResponse{Reply: reply})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	email, req, ok := s.generationInput(w, r)
	if !ok {
		return
	}
	body, _ := gmail.ExtractBody(email.Payload)
	summary, err := s.assistant.Summarize(r.Context(), req.PromptTemplateID, body, req.AdditionalInstructions)
	if err != nil {
		s.generationFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SummaryResponse{EmailID: email.ID, Summary: summary})
}

// generationInput decodes a GenerateRequest and fetches the target message.
// It writes the error response itself and returns ok=false on any failure.
func (s *Server) generationInput(w http.ResponseWriter, r *http.Request) (*types.EmailMessage, types.GenerateRequest, bool) {
	var req types.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, req, false
	}
	client, ok := s.mailbox(w, r)
	if !ok {
		return nil, req, false
	}
	email := client.Get(r.Context(), r.PathValue("id"))
	if email == nil {
		writeError(w, http.StatusNotFound, "Email not found")
		return nil, req, false
	}
	return email, req, true
}

func (s *Server) generationFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, assistant.ErrUnknownTemplate) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("generate text")
	writeError(w, http.StatusInternalServerError, "Failed to generate text")
}

// mailbox opens a Gmail session for the request.
func (s *Server) mailbox(w http.ResponseWriter, r *http.Request) (*gmail.Client, bool) {
	svc, err := s.sessions.Service(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("gmail session")
		writeError(w, http.StatusInternalServerError, "Gmail service unavailable")
		return nil, false
	}
	return gmail.New(svc), true
}

// sendBody distinguishes absent keys from empty strings. Only absent (or
// null) fields are rejected.
type sendBody struct {
	To       *string `json:"to"`
	Subject  *string `json:"subject"`
	Body     *string `json:"body"`
	ThreadID string  `json:"threadId"`
}

func decodeSendRequest(w http.ResponseWriter, r *http.Request) (types.SendRequest, bool) {
	var in sendBody
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return types.SendRequest{}, false
	}
	var missing []string
	if in.To == nil {
		missing = append(missing, "to")
	}
	if in.Subject == nil {
		missing = append(missing, "subject")
	}
	if in.Body == nil {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return types.SendRequest{}, false
	}
	return types.SendRequest{
		To:       *in.To,
		Subject:  *in.Subject,
		Body:     *in.Body,
		ThreadID: in.ThreadID,
	}, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, types.ErrorResponse{Detail: detail})
}
