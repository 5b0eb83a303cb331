package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"

	"github.com/gearzhan/shortURL/internal/models"
	"github.com/gearzhan/shortURL/internal/service"
)

// URLRegistry defines the interface for the core shortening business logic.
type URLRegistry interface {
	// Create validates the URL, allocates a short code, and persists the
	// new record.
	Create(ctx context.Context, input service.CreateInput) (*models.URLRecord, error)

	// List returns one page of live records, newest first.
	List(ctx context.Context, limit int64, cursor string) (*service.ListPage, error)

	// Search returns live records whose description contains the query.
	Search(ctx context.Context, query string) (*service.SearchResult, error)

	// Stats returns the record for a short code, or not-found when the
	// code is absent or expired.
	Stats(ctx context.Context, code string) (*models.URLRecord, error)

	// Redirect resolves a short code to its original URL, counting the hit.
	Redirect(ctx context.Context, code string) (string, error)

	// SetLock sets the record's deletion guard to the target state.
	SetLock(ctx context.Context, code string, locked bool) (*models.URLRecord, error)

	// Delete removes the record unless it is locked.
	Delete(ctx context.Context, code string) error

	// BulkDelete removes records by explicit code list or by age threshold.
	BulkDelete(ctx context.Context, codes []string, olderThanDays int) (service.BulkResult, error)
}

// getValidate initializes a validator instance for incoming payloads,
// with tag names taken from JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes the HTTP router with all routes and middleware.
// baseURL, when non-empty, overrides the request origin in generated
// short links.
func NewRouter(logger *httplog.Logger, registry URLRegistry, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		validate := getValidate()

		r.Route("/urls", func(r chi.Router) {
			r.Post("/", handleCreateURL(registry, validate, baseURL))
			r.Get("/", handleListURLs(registry))
			r.Delete("/", handleDeleteURL(registry))
			r.Get("/search", handleSearchURLs(registry))
			r.Get("/stats", handleURLStats(registry))
			r.Post("/lock", handleLockURL(registry))
			r.Post("/bulk-delete", handleBulkDelete(registry))
		})
	})

	r.Get("/{shortCode}", handleRedirect(registry))

	return r
}
