package main

import (
	"net/http"
	"strconv"

	"doc-extractor/internal/app"
	"doc-extractor/internal/httputil"
	"doc-extractor/internal/index"
)

type keySearchRequest struct {
	Key   string `validate:"required,max=200"`
	Exact bool
	Limit int `validate:"min=0,max=1000"`
}

func searchKeysHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := keySearchRequest{Key: q.Get("key")}
		if raw := q.Get("exact"); raw != "" {
			exact, err := strconv.ParseBool(raw)
			if err != nil {
				httputil.Fail(deps.Log, w, "exact must be true or false", err, http.StatusBadRequest)
				return
			}
			req.Exact = exact
		}
		if raw := q.Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				httputil.Fail(deps.Log, w, "limit must be an integer", err, http.StatusBadRequest)
				return
			}
			req.Limit = limit
		}

		// Validate request
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		if req.Exact {
			res, err := deps.Index.SearchExact(r.Context(), req.Key, req.Limit)
			if err != nil {
				httputil.Fail(deps.Log, w, "key search failed", err, http.StatusInternalServerError)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, res)
			return
		}
		res, err := deps.Index.SearchPartial(r.Context(), req.Key, req.Limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "key search failed", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func keyStatsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(deps, w, r, index.DefaultStatsLimit)
		if !ok {
			return
		}
		stats, err := deps.Index.KeyStatistics(r.Context(), limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to compute key statistics", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"keys":  stats,
			"total": len(stats),
		})
	}
}
