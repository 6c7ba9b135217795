package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kalambet/meapi/internal/profile"
)

const maxRequestBodySize = 1 << 20 // 1MB

const (
	defaultTopSkillsLimit = 10
	maxTopSkillsLimit     = 100
)

type AppDeps struct {
	Profiles *profile.Manager
	Logger   *slog.Logger
}

// NewAppHandler returns the profile REST API.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)
	r.Use(allowAllCORS())
	r.Use(requestLogger(deps.Logger))

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)

	r.Route("/profile", func(r chi.Router) {
		r.Get("/", handleListProfiles(deps))
		r.Post("/", handleCreateProfile(deps))
		r.Get("/search", handleSearchProfiles(deps))
		r.Get("/skills/top", handleTopSkills(deps))
		r.Get("/{id}", handleGetProfile(deps))
		r.Put("/{id}", handleUpdateProfile(deps))
		r.Delete("/{id}", handleDeleteProfile(deps))
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("api request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to Me API Playground",
		"health":  "/health",
		"profile": "/profile",
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListProfiles(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := deps.Profiles.List()
		if err != nil {
			deps.Logger.Error("listing profiles", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to list profiles")
			return
		}
		writeJSON(w, http.StatusOK, profiles)
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseProfileID(w, r)
		if !ok {
			return
		}

		p, err := deps.Profiles.Get(id)
		if errors.Is(err, profile.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Profile not found")
			return
		}
		if err != nil {
			deps.Logger.Error("getting profile", "id", id, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to get profile")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleCreateProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := readBody(w, r)
		if !ok {
			return
		}
		if errs := validateBody(createSchema, data); len(errs) > 0 {
			validationError(w, errs...)
			return
		}

		var req profile.CreateRequest
		if err := json.Unmarshal(data, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		p, err := deps.Profiles.Create(req)
		if errors.Is(err, profile.ErrEmailTaken) {
			httpError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		if err != nil {
			deps.Logger.Error("creating profile", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to create profile")
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleUpdateProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseProfileID(w, r)
		if !ok {
			return
		}
		data, ok := readBody(w, r)
		if !ok {
			return
		}
		if errs := validateBody(updateSchema, data); len(errs) > 0 {
			validationError(w, errs...)
			return
		}

		var req profile.UpdateRequest
		if err := json.Unmarshal(data, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		p, err := deps.Profiles.Update(id, req)
		if errors.Is(err, profile.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Profile not found")
			return
		}
		if err != nil {
			deps.Logger.Error("updating profile", "id", id, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to update profile")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeleteProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseProfileID(w, r)
		if !ok {
			return
		}

		err := deps.Profiles.Delete(id)
		if errors.Is(err, profile.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Profile not found")
			return
		}
		if err != nil {
			deps.Logger.Error("deleting profile", "id", id, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to delete profile")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Profile deleted successfully"})
	}
}

func handleSearchProfiles(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			validationError(w, FieldError{
				Loc:  []string{"query", "q"},
				Msg:  "q must be at least 1 character",
				Type: "string_too_short",
			})
			return
		}

		profiles, err := deps.Profiles.Search(q)
		if err != nil {
			deps.Logger.Error("searching profiles", "q", q, "error", err)
			httpError(w, http.StatusInternalServerError, "failed to search profiles")
			return
		}
		writeJSON(w, http.StatusOK, profiles)
	}
}

func handleTopSkills(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(w, r)
		if !ok {
			return
		}

		skills, err := deps.Profiles.TopSkills(limit)
		if err != nil {
			deps.Logger.Error("computing top skills", "error", err)
			httpError(w, http.StatusInternalServerError, "failed to compute top skills")
			return
		}
		writeJSON(w, http.StatusOK, skills)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return nil, false
	}
	return data, true
}

func parseProfileID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		validationError(w, FieldError{
			Loc:  []string{"path", "profile_id"},
			Msg:  "profile_id must be an integer",
			Type: "int_parsing",
		})
		return 0, false
	}
	return id, true
}

// parseLimit reads ?limit=, defaulting to 10 and rejecting values outside
// 1..100.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultTopSkillsLimit, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > maxTopSkillsLimit {
		validationError(w, FieldError{
			Loc:  []string{"query", "limit"},
			Msg:  "limit must be an integer between 1 and 100",
			Type: "value_error",
		})
		return 0, false
	}
	return v, true
}
