package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/smartmarks/internal/auth"
	"github.com/starford/smartmarks/internal/bookmarkservice"
)

const maxListLimit = 1000

// Handler holds API route handlers.
type Handler struct {
	svc  *bookmarkservice.Service
	gate *auth.Gate
}

// NewHandler creates a new Handler.
func NewHandler(svc *bookmarkservice.Service, gate *auth.Gate) *Handler {
	return &Handler{svc: svc, gate: gate}
}

// ListBookmarks handles GET /api/bookmarks.
//
//	@Summary		List the caller's bookmarks, newest first
//	@Tags			bookmarks
//	@Produce		json
//	@Param			q		query		string	false	"Substring of title or URL"
//	@Param			limit	query		int		false	"Maximum number of items"
//	@Success		200		{object}	BookmarkListResponse
//	@Router			/bookmarks [get]
func (h *Handler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit > maxListLimit {
		limit = maxListLimit
	}

	items, total, err := h.svc.List(r.Context(), auth.OwnerFrom(r), strings.TrimSpace(q.Get("q")), limit)
	if err != nil {
		writeServiceError(w, "list bookmarks", err)
		return
	}
	out := make([]BookmarkDTO, len(items))
	for i, b := range items {
		out[i] = toDTO(b)
	}
	writeJSON(w, http.StatusOK, BookmarkListResponse{Bookmarks: out, Total: total})
}

// GetBookmark handles GET /api/bookmarks/{id}.
//
//	@Summary		Get a single bookmark
//	@Tags			bookmarks
//	@Produce		json
//	@Param			id	path		string	true	"Bookmark ID"
//	@Success		200	{object}	BookmarkDTO
//	@Failure		404	{object}	errResponse
//	@Router			/bookmarks/{id} [get]
func (h *Handler) GetBookmark(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Get(r.Context(), auth.OwnerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "get bookmark", err)
		return
	}
	w.Header().Set("ETag", quoteETag(bookmarkservice.ETag(*b)))
	writeJSON(w, http.StatusOK, toDTO(*b))
}

// CreateBookmark handles POST /api/bookmarks.
//
//	@Summary		Create a bookmark
//	@Tags			bookmarks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateBookmarkRequest	true	"Bookmark to create"
//	@Success		201		{object}	BookmarkDTO
//	@Failure		400		{object}	errResponse
//	@Router			/bookmarks [post]
func (h *Handler) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	var req CreateBookmarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.svc.Create(r.Context(), auth.OwnerFrom(r), req.Title, req.URL)
	if err != nil {
		writeServiceError(w, "create bookmark", err)
		return
	}
	w.Header().Set("ETag", quoteETag(bookmarkservice.ETag(*b)))
	writeJSON(w, http.StatusCreated, toDTO(*b))
}

// UpdateBookmark handles PATCH /api/bookmarks/{id}.
//
//	@Summary		Update a bookmark with optimistic concurrency
//	@Tags			bookmarks
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string					true	"Bookmark ID"
//	@Param			If-Match	header		string					false	"ETag from a previous read"
//	@Param			body		body		UpdateBookmarkRequest	true	"Fields to change"
//	@Success		200			{object}	BookmarkDTO
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/bookmarks/{id} [patch]
func (h *Handler) UpdateBookmark(w http.ResponseWriter, r *http.Request) {
	var patch UpdateBookmarkRequest
	if !decodeJSON(w, r, &patch) {
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	b, err := h.svc.Update(r.Context(), auth.OwnerFrom(r), chi.URLParam(r, "id"), patch, ifMatch)
	if err != nil {
		writeServiceError(w, "update bookmark", err)
		return
	}
	w.Header().Set("ETag", quoteETag(bookmarkservice.ETag(*b)))
	writeJSON(w, http.StatusOK, toDTO(*b))
}

// DeleteBookmark handles DELETE /api/bookmarks/{id}.
//
//	@Summary		Delete a bookmark
//	@Tags			bookmarks
//	@Param			id	path	string	true	"Bookmark ID"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Router			/bookmarks/{id} [delete]
func (h *Handler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.OwnerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "delete bookmark", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, MeResponse{Subject: id.Subject, Email: id.Email, Name: id.Name, Mode: string(h.gate.Mode())})
}

// Session handles GET /api/session: a fresh bearer token for the CLI.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sessions := h.gate.Sessions()
	if sessions == nil {
		writeJSON(w, http.StatusOK, SessionResponse{})
		return
	}
	id, _ := auth.FromContext(r.Context())
	tok, exp, err := sessions.Issue(id)
	if err != nil {
		writeServiceError(w, "issue session", err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Token: tok, ExpiresAt: &exp})
}

func quoteETag(tag string) string {
	return `"` + tag + `"`
}
