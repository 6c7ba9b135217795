// Package web serves the profile page as server-rendered HTML. Every visitor
// session drives its own ui.Controller.
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/meapi/internal/ui"
)

// Options configures a Server.
type Options struct {
	SessionTTL     time.Duration
	BannerDuration time.Duration
	Logger         *slog.Logger
}

// Server is the web front end.
type Server struct {
	sessions *sessionStore
	logger   *slog.Logger
	bannerMs int64
	router   chi.Router
}

// NewServer creates a web front end backed by api.
func NewServer(api ui.ProfileAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	banner := opts.BannerDuration
	if banner <= 0 {
		banner = ui.DefaultBannerDuration
	}

	s := &Server{
		logger:   logger,
		bannerMs: banner.Milliseconds(),
	}
	s.sessions = newSessionStore(opts.SessionTTL, func() *ui.Controller {
		return ui.NewController(api, ui.WithBannerDuration(banner), ui.WithLogger(logger))
	})
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.handlePage)
	r.Post("/tabs/{tab}", s.handleSwitchTab)
	r.Get("/cards/{id}", s.handleSelectCard)
	r.Get("/profiles/{id}", s.handleOpenProfile)
	r.Post("/profiles", s.handleCreate)
	r.Post("/selected/edit", s.handleEdit)
	r.Post("/selected/update", s.handleUpdate)
	r.Post("/selected/delete", s.handleDelete)
	r.Post("/overlays/close", s.handleCloseOverlays)
	r.Get("/search", s.handleSearch)
	r.Get("/skills", s.handleSkills)

	staticFS, _ := fs.Sub(staticFiles, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	return r
}

// Run serves on addr until ctx is cancelled, sweeping idle sessions in the
// background.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("web front end listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := s.sessions.sweep(); n > 0 {
					s.logger.Debug("expired web sessions", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.sessions.closeAll()
		return err
	})

	return g.Wait()
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)

	if tab := r.URL.Query().Get("tab"); tab != "" {
		if err := ctrl.SwitchTab(tab); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	st := ctrl.Snapshot()
	if st.Tab == ui.TabList && (!st.ProfilesReady || r.URL.Query().Has("refresh")) {
		ctrl.LoadProfiles(r.Context())
	}

	s.render(w, ctrl, renderOpts{confirmDelete: r.URL.Query().Get("confirm") == "delete"})
}

func (s *Server) handleSwitchTab(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	if err := ctrl.SwitchTab(chi.URLParam(r, "tab")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleSelectCard(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := ctrl.SelectProfile(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleOpenProfile(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	// Failures surface through the banner.
	ctrl.OpenProfile(r.Context(), id)
	redirectHome(w, r)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ctrl.CreateProfile(r.Context(), ui.CreateForm{
		Name:   r.PostForm.Get("name"),
		Email:  r.PostForm.Get("email"),
		Phone:  r.PostForm.Get("phone"),
		Bio:    r.PostForm.Get("bio"),
		Skills: r.PostForm.Get("skills"),
	})
	redirectHome(w, r)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	if _, err := ctrl.EditSelected(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(r.PostForm.Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid profile id", http.StatusBadRequest)
		return
	}
	ctrl.UpdateProfile(r.Context(), ui.EditForm{
		ID:     id,
		Name:   r.PostForm.Get("name"),
		Phone:  r.PostForm.Get("phone"),
		Bio:    r.PostForm.Get("bio"),
		Skills: r.PostForm.Get("skills"),
	})
	redirectHome(w, r)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	confirmed := r.PostForm.Get("confirm") == "yes"
	err := ctrl.DeleteSelected(r.Context(), &ui.FixedPrompter{Answer: confirmed})
	if errors.Is(err, ui.ErrNoSelection) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if !confirmed {
		// Ask first; the confirmation form posts back with confirm=yes.
		http.Redirect(w, r, "/?confirm=delete", http.StatusSeeOther)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleCloseOverlays(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	ctrl.CloseDetail()
	ctrl.CloseEdit()
	redirectHome(w, r)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	ctrl.SwitchTab(ui.TabSearch)

	prompter := &ui.FixedPrompter{}
	ctrl.Search(r.Context(), r.URL.Query().Get("q"), prompter)

	s.render(w, ctrl, renderOpts{alerts: prompter.Alerts})
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	ctrl := s.sessions.controller(w, r)
	ctrl.SwitchTab(ui.TabSkills)

	limit := ui.DefaultSkillsLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			ctrl.Banner().Show(ui.BannerError, ui.MsgInvalidSkillsLimit)
			s.render(w, ctrl, renderOpts{})
			return
		}
		limit = n
	}
	ctrl.LoadTopSkills(r.Context(), limit)

	s.render(w, ctrl, renderOpts{})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid profile id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
