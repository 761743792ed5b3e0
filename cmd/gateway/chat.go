package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"doc-extractor/internal/app"
	"doc-extractor/internal/chat"
	"doc-extractor/internal/httputil"
)

type chatQueryRequest struct {
	Query     string `json:"query" validate:"required,max=2000"`
	SessionID string `json:"sessionId" validate:"max=200"`
}

func chatQueryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid JSON body", err, http.StatusBadRequest)
			return
		}

		// Validate request
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		res, err := deps.Chat.Query(r.Context(), req.Query, req.SessionID)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to save chat session", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func chatHistoryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionId")
		limit, ok := parseLimit(deps, w, r, chat.DefaultHistoryLimit)
		if !ok {
			return
		}
		msgs, err := deps.Chat.History(r.Context(), sessionID, limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load chat history", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"sessionId": sessionID,
			"messages":  msgs,
		})
	}
}

func clearChatHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionId")
		if err := deps.Chat.Clear(r.Context(), sessionID); err != nil {
			httputil.Fail(deps.Log, w, "failed to clear chat history", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"sessionId": sessionID,
			"cleared":   true,
		})
	}
}
