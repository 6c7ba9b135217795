package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/kalambet/meapi/internal/profile"
	"github.com/kalambet/meapi/internal/ui"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*.css
var staticFiles embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"badges":   profile.SplitSkills,
	"datetime": formatDateTime,
}).ParseFS(templatesFS, "templates/*.html"))

type renderOpts struct {
	alerts        []string
	confirmDelete bool
}

type tabLink struct {
	Name   string
	Label  string
	Active bool
}

type pageData struct {
	ui.State
	TabLinks      []tabLink
	Alerts        []string
	ConfirmDelete bool
	BannerMillis  int64

	NoProfilesText string
	NoResultsText  string
	NoSkillsText   string
	ConfirmText    string
}

var tabLabels = map[string]string{
	ui.TabList:   "All Profiles",
	ui.TabCreate: "Create Profile",
	ui.TabSearch: "Search",
	ui.TabSkills: "Top Skills",
}

func (s *Server) render(w http.ResponseWriter, ctrl *ui.Controller, opts renderOpts) {
	st := ctrl.Snapshot()

	links := make([]tabLink, 0, len(ui.Tabs))
	for _, t := range ui.Tabs {
		links = append(links, tabLink{Name: t, Label: tabLabels[t], Active: t == st.Tab})
	}

	data := pageData{
		State:          st,
		TabLinks:       links,
		Alerts:         opts.alerts,
		ConfirmDelete:  opts.confirmDelete && st.Selected != nil,
		BannerMillis:   s.bannerMs,
		NoProfilesText: ui.NoProfilesText,
		NoResultsText:  ui.NoResultsText,
		NoSkillsText:   ui.NoSkillsText,
		ConfirmText:    ui.MsgConfirmDelete,
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "page.html", data); err != nil {
		s.logger.Error("rendering page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
