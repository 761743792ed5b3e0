package main

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"doc-extractor/internal/app"
	"doc-extractor/internal/documents"
	"doc-extractor/internal/httputil"
	"doc-extractor/internal/store"
)

// multipart overhead allowed on top of MAX_UPLOAD_SIZE
const formOverhead = 1 << 20

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		// Validate file size before parsing
		if r.ContentLength > maxFileSize+formOverhead {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+formOverhead)

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), err, http.StatusRequestEntityTooLarge)
				return
			}
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusRequestEntityTooLarge)
			return
		}

		res, err := deps.Documents.Process(r.Context(), documents.Upload{
			OriginalFilename: filepath.Base(header.Filename),
			MimeType:         detectMimeType(header.Header.Get("Content-Type"), header.Filename),
			Body:             file,
		})
		if err != nil {
			httputil.FailExtraction(deps.Log, w, err, deps.Config.Production())
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, res)
	}
}

// detectMimeType prefers the part's Content-Type and falls back to the file extension.
func detectMimeType(contentType, filename string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
		return mt
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return contentType
}

func listDocumentsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(deps, w, r, deps.Config.RecentDocumentsLimit)
		if !ok {
			return
		}
		docs, err := deps.Documents.ListRecent(r.Context(), limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list documents", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"documents": docs,
			"total":     len(docs),
		})
	}
}

func searchDocumentsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			httputil.Fail(deps.Log, w, "query parameter q is required", nil, http.StatusBadRequest)
			return
		}
		docs, err := deps.Documents.SearchByFilename(r.Context(), q)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to search documents", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"documents": docs,
			"total":     len(docs),
			"query":     q,
		})
	}
}

func getDocumentHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, ok := parseDocumentID(deps, w, r)
		if !ok {
			return
		}
		doc, err := deps.Documents.Get(r.Context(), docID)
		if errors.Is(err, store.ErrNotFound) {
			httputil.Fail(deps.Log, w, "document not found", err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load document", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, doc)
	}
}

func deleteDocumentHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, ok := parseDocumentID(deps, w, r)
		if !ok {
			return
		}
		removed, err := deps.Documents.Delete(r.Context(), docID)
		if errors.Is(err, store.ErrNotFound) {
			httputil.Fail(deps.Log, w, "document not found", err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log.With("document_id", docID), w, "failed to delete document", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"removedIndexEntries": removed,
		})
	}
}

func parseDocumentID(deps app.Deps, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return docID, true
}

// parseLimit reads ?limit=, returning def when absent.
func parseLimit(deps app.Deps, w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		httputil.Fail(deps.Log, w, "limit must be a positive integer", err, http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}
