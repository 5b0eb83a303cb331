package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/gearzhan/shortURL/internal/models"
	"github.com/gearzhan/shortURL/internal/service"
	"github.com/gearzhan/shortURL/pkg/response"
)

// handleHealthz handles health check requests to ensure the server is running.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// createRequest represents the request payload for shortening a URL.
type createRequest struct {
	URL            string `json:"url" validate:"required,url"`
	Description    string `json:"description"`
	ExpirationType string `json:"expirationType" validate:"omitempty,oneof=permanent 30days"`
}

// createResponse represents the response payload for a created short URL.
type createResponse struct {
	ShortURL    string `json:"shortUrl"`
	OriginalURL string `json:"originalUrl"`
	ShortCode   string `json:"shortCode"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"createdAt"`
	ExpiresAt   *int64 `json:"expiresAt"`
}

// statsResponse represents the stats view of a short URL.
type statsResponse struct {
	ShortCode     string `json:"shortCode"`
	OriginalURL   string `json:"originalUrl"`
	RedirectCount int64  `json:"redirectCount"`
	CreatedAt     int64  `json:"createdAt"`
	LastAccessed  *int64 `json:"lastAccessed"`
	ExpiresAt     *int64 `json:"expiresAt"`
	Locked        bool   `json:"locked"`
}

type listResponse struct {
	URLs         []models.URLRecord `json:"urls"`
	Cursor       string             `json:"cursor,omitempty"`
	ListComplete bool               `json:"listComplete"`
}

type searchResponse struct {
	URLs         []models.URLRecord `json:"urls"`
	Query        string             `json:"query"`
	Total        int                `json:"total"`
	ScanLimitHit bool               `json:"scanLimitHit"`
}

type lockRequest struct {
	Code   string `json:"code"`
	Locked *bool  `json:"locked"`
}

type lockResponse struct {
	ShortCode string `json:"shortCode"`
	Locked    bool   `json:"locked"`
}

type bulkDeleteRequest struct {
	Codes         []string `json:"codes"`
	OlderThanDays int      `json:"olderThanDays"`
}

// shortURLBase returns the origin used to build absolute short links:
// the configured base URL when set, otherwise the request's own origin.
func shortURLBase(r *http.Request, baseURL string) string {
	if baseURL != "" {
		return strings.TrimRight(baseURL, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host
}

// handleCreateURL handles POST requests to shorten a URL.
//
// The request must contain an absolute URL; description and expiration
// directive are optional. The handler returns the new record plus the
// derived absolute short URL.
func handleCreateURL(registry URLRegistry, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleCreateURL"

	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.MissingURLResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, validationResponse(err))
			return
		}

		rec, err := registry.Create(r.Context(), service.CreateInput{
			URL:            req.URL,
			Description:    req.Description,
			ExpirationType: req.ExpirationType,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrMissingURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.MissingURLResponse)
			case errors.Is(err, service.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidURLResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, createResponse{
			ShortURL:    shortURLBase(r, baseURL) + "/" + rec.ShortCode,
			OriginalURL: rec.OriginalURL,
			ShortCode:   rec.ShortCode,
			Description: rec.Description,
			CreatedAt:   rec.CreatedAt,
			ExpiresAt:   rec.ExpiresAt,
		})
	}
}

// validationResponse maps validator failures on the create payload to the
// API's fixed error strings.
func validationResponse(err error) response.Error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			if fieldErr.Field() == "url" && fieldErr.Tag() == "required" {
				return response.MissingURLResponse
			}
			if fieldErr.Field() == "url" {
				return response.InvalidURLResponse
			}
		}
	}

	return response.BadRequestResponse
}

// handleListURLs handles GET requests for one page of live short URLs,
// newest first.
func handleListURLs(registry URLRegistry) http.HandlerFunc {
	const op = "api.http.handleListURLs"

	return func(w http.ResponseWriter, r *http.Request) {
		var limit int64
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err == nil {
				limit = parsed
			}
		}

		page, err := registry.List(r.Context(), limit, r.URL.Query().Get("cursor"))
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, listResponse{
			URLs:         page.Records,
			Cursor:       page.Cursor,
			ListComplete: page.Complete,
		})
	}
}

// handleSearchURLs handles GET requests to search descriptions for a
// case-insensitive substring.
func handleSearchURLs(registry URLRegistry) http.HandlerFunc {
	const op = "api.http.handleSearchURLs"

	return func(w http.ResponseWriter, r *http.Request) {
		result, err := registry.Search(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			if errors.Is(err, service.ErrMissingQuery) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.MissingQueryResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		urls := result.Records
		if urls == nil {
			urls = []models.URLRecord{}
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, searchResponse{
			URLs:         urls,
			Query:        result.Query,
			Total:        result.Total,
			ScanLimitHit: result.ScanLimitHit,
		})
	}
}

// handleURLStats handles GET requests for the stats view of a short URL.
func handleURLStats(registry URLRegistry) http.HandlerFunc {
	const op = "api.http.handleURLStats"

	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := registry.Stats(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrMissingCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.MissingCodeResponse)
			case errors.Is(err, service.ErrNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.NotFoundResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, statsResponse{
			ShortCode:     rec.ShortCode,
			OriginalURL:   rec.OriginalURL,
			RedirectCount: rec.RedirectCount,
			CreatedAt:     rec.CreatedAt,
			LastAccessed:  rec.LastAccessed,
			ExpiresAt:     rec.ExpiresAt,
			Locked:        rec.Locked,
		})
	}
}

// handleLockURL handles POST requests to toggle the deletion guard of a
// short URL. Setting the flag to its current state is a no-op.
func handleLockURL(registry URLRegistry) http.HandlerFunc {
	const op = "api.http.handleLockURL"

	return func(w http.ResponseWriter, r *http.Request) {
		var req lockRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if req.Locked == nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.MissingLockFlagResponse)
			return
		}

		rec, err := registry.SetLock(r.Context(), req.Code, *req.Locked)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrMissingCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.MissingCodeResponse)
			case errors.Is(err, service.ErrNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.NotFoundResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, lockResponse{
			ShortCode: rec.ShortCode,
			Locked:    rec.Locked,
		})
	}
}

// handleDeleteURL handles DELETE requests for a single short URL. Locked
// records are refused with 423.
func handleDeleteURL(registry URLRegistry) http.HandlerFunc {
	const op = "api.http.handleDeleteURL"

	return func(w http.ResponseWriter, r *http.Request) {
		err := registry.Delete(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrMissingCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.MissingCodeResponse)
			case errors.Is(err, service.ErrNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.NotFoundResponse)
			case errors.Is(err, service.ErrLocked):
				render.Status(r, http.StatusLocked)
				render.JSON(w, r, response.LockedResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// handleBulkDelete handles POST requests to remove short URLs in bulk,
// either by explicit code list or by age threshold. An empty body runs
// the age sweep with its default threshold.
func handleBulkDelete(registry URLRegistry) http.HandlerFunc {
	const op = "api.http.handleBulkDelete"

	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkDeleteRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		result, err := registry.BulkDelete(r.Context(), req.Codes, req.OlderThanDays)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, result)
	}
}

// handleRedirect handles GET requests on short code paths, answering a
// 302 to the original URL with caching disabled. Expired codes are purged
// and answered with 410.
func handleRedirect(registry URLRegistry) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "shortCode")

		target, err := registry.Redirect(r.Context(), code)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrMissingCode), errors.Is(err, service.ErrNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.NotFoundResponse)
			case errors.Is(err, service.ErrExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.ExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, target, http.StatusFound)
	}
}
