package http

import (
	"fmt"
	"net/http"
	"strings"

	"spendigo/internal/core"
	"spendigo/internal/log"
	"spendigo/internal/middleware/auth"
	"spendigo/internal/voice"
)

const maxTranscriptRunes = 2000

type voiceResponse struct {
	Extraction voice.Extraction `json:"extraction"`
	// Advice previews the draft amount against its detected source. It is
	// absent when no source was detected.
	Advice *core.Advice `json:"advice,omitempty"`
}

// handleVoiceExtract turns a transcript into a draft without committing
// it. LLM failures are not errors here: the extraction degrades to the
// fallback parser and says so in its notice.
func (s *Server) handleVoiceExtract(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req voiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	text := sanitizeInput(req.Text)
	if text == "" {
		UnprocessableEntityError("transcript is empty").Write(w)
		return
	}
	if len([]rune(text)) > maxTranscriptRunes {
		UnprocessableEntityError(fmt.Sprintf("transcript longer than %d characters", maxTranscriptRunes)).Write(w)
		return
	}
	text = strings.Join(strings.Fields(text), " ")

	ext, err := sess.Extract(r.Context(), text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Voice extraction served",
		log.FieldVoicePath, string(ext.Path))

	resp := voiceResponse{Extraction: ext}
	if draft := ext.Draft(); draft.SourceID != "" {
		if src, err := sess.Ledger().GetSource(r.Context(), sess.UserID, draft.SourceID); err == nil {
			advice := core.CheckSufficiency(src.CurrentBalance, draft.Amount)
			resp.Advice = &advice
		}
	}
	NewJSONResponse().Body(resp).Write(w)
}

// handleCloseSession tears down the caller's session. The LLM quota is
// keyed by user and outlives the session. Closing a session that was never opened is not an error.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	closed := s.sessions.Close(auth.UserFrom(r.Context()))
	NewJSONResponse().Body(map[string]bool{"closed": closed}).Write(w)
}
