package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/host"
	"github.com/raaihank/isolated-regex/internal/rule"
	"github.com/raaihank/isolated-regex/internal/websocket"
)

// activeRef addresses the active character in rule routes
const activeRef = "active"

type ruleResponse struct {
	Avatar       string    `json:"avatar"`
	Name         string    `json:"name"`
	Rule         rule.Rule `json:"rule"`
	PatternError string    `json:"pattern_error,omitempty"`
}

type charactersResponse struct {
	Characters []host.Character `json:"characters"`
	Active     string           `json:"active,omitempty"`
}

type selectRequest struct {
	Ref string `json:"ref"`
}

type textBody struct {
	Text string `json:"text"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":             "isolated-regex",
		"version":          version,
		"uptime":           time.Since(s.started).Round(time.Second).String(),
		"settings_backend": s.config.Settings.Backend,
		"characters":       len(s.session.Characters()),
		"stored_rules":     len(s.store.Rules()),
	}
	if s.wsHub != nil {
		info["websocket"] = s.wsHub.GetStats()
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	resp := charactersResponse{Characters: s.session.Characters()}
	if c, ok := s.session.ActiveCharacter(); ok {
		resp.Active = c.Avatar
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSelectCharacter(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := s.session.Select(req.Ref)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	ref := ruleRef(r)
	c, ok := s.character(ref)
	if !ok {
		s.notFound(w, ref)
		return
	}

	stored, ok := s.store.Snapshot(c.Avatar)
	if !ok {
		s.notFound(w, ref)
		return
	}
	writeJSON(w, http.StatusOK, s.ruleResponse(c, stored))
}

func (s *Server) handlePutRule(w http.ResponseWriter, r *http.Request) {
	ref := ruleRef(r)
	c, ok := s.character(ref)
	if !ok {
		s.notFound(w, ref)
		return
	}

	next := *rule.Default()
	if err := s.decodeBody(w, r, &next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.store.SetRule(c.Avatar, next) {
		s.notFound(w, ref)
		return
	}

	stored, _ := s.store.Snapshot(c.Avatar)
	s.broadcastRule(c, "set", stored)
	writeJSON(w, http.StatusOK, s.ruleResponse(c, stored))
}

func (s *Server) handleImportRule(w http.ResponseWriter, r *http.Request) {
	ref := ruleRef(r)
	c, ok := s.character(ref)
	if !ok {
		s.notFound(w, ref)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "failed to read request body")
		return
	}

	patch, err := rule.Deserialize(data)
	if err == nil {
		err = s.store.ImportRule(c.Avatar, patch)
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	stored, _ := s.store.Snapshot(c.Avatar)
	s.broadcastRule(c, "import", stored)
	writeJSON(w, http.StatusOK, s.ruleResponse(c, stored))
}

func (s *Server) handleExportRule(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.store.ExportFile(ruleRef(r))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	role, err := rule.ParseRole(mux.Vars(r)["role"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body textBody
	if err := s.decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, textBody{Text: s.processor.Process(role, body.Text)})
}

// ruleRef maps the route's ref to a store reference; "active" becomes the
// empty ref the store reads as the active character
func ruleRef(r *http.Request) string {
	ref := mux.Vars(r)["ref"]
	if ref == activeRef {
		return ""
	}
	return ref
}

func (s *Server) character(ref string) (host.Character, bool) {
	if ref == "" {
		return s.session.ActiveCharacter()
	}
	return s.session.Lookup(ref)
}

func (s *Server) ruleResponse(c host.Character, r rule.Rule) ruleResponse {
	resp := ruleResponse{Avatar: c.Avatar, Name: c.Name, Rule: r}
	if s.executor != nil && r.Pattern != "" {
		if err := s.executor.Check(r.Pattern, r.Flags); err != nil {
			resp.PatternError = err.Error()
		}
	}
	return resp
}

func (s *Server) broadcastRule(c host.Character, op string, r rule.Rule) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastEvent(websocket.Event{
		Type: websocket.EventTypeRuleUpdated,
		Data: websocket.RuleUpdatedEvent{Avatar: c.Avatar, Op: op, Rule: r},
	})
}

func (s *Server) notFound(w http.ResponseWriter, ref string) {
	if ref == "" {
		writeError(w, http.StatusNotFound, rule.ErrNoActiveCharacter.Error())
		return
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("unknown character: %s", ref))
}

// writeStoreError maps store errors to status codes
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rule.ErrInvalidImport):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rule.ErrNoActiveCharacter):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Rule store request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
