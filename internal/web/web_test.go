package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/kalambet/meapi/internal/client"
	"github.com/kalambet/meapi/internal/profile"
	"github.com/kalambet/meapi/internal/ui"
)

type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	profiles []profile.Profile
	search   []profile.Profile
	skills   []profile.SkillCount
	created  []profile.CreateRequest
}

func (f *fakeAPI) record(c string) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeAPI) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) ListProfiles(ctx context.Context) ([]profile.Profile, error) {
	f.record("GET /profile")
	return f.profiles, nil
}

func (f *fakeAPI) GetProfile(ctx context.Context, id int64) (profile.Profile, error) {
	f.record(fmt.Sprintf("GET /profile/%d", id))
	for _, p := range f.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return profile.Profile{}, &client.APIError{StatusCode: 404, Detail: "Profile not found"}
}

func (f *fakeAPI) CreateProfile(ctx context.Context, req profile.CreateRequest) (profile.Profile, error) {
	f.record("POST /profile")
	for _, p := range f.profiles {
		if p.Email == req.Email {
			return profile.Profile{}, &client.APIError{StatusCode: 400, Detail: "Email already registered"}
		}
	}
	f.created = append(f.created, req)
	p := profile.Profile{ID: int64(len(f.profiles) + 1), Name: req.Name, Email: req.Email, Skills: req.Skills}
	f.profiles = append(f.profiles, p)
	return p, nil
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, id int64, req profile.UpdateRequest) (profile.Profile, error) {
	f.record(fmt.Sprintf("PUT /profile/%d", id))
	for i := range f.profiles {
		p := &f.profiles[i]
		if p.ID != id {
			continue
		}
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Phone != nil {
			p.Phone = *req.Phone
		}
		if req.Bio != nil {
			p.Bio = *req.Bio
		}
		if req.Skills != nil {
			p.Skills = *req.Skills
		}
		return *p, nil
	}
	return profile.Profile{}, &client.APIError{StatusCode: 404, Detail: "Profile not found"}
}

func (f *fakeAPI) DeleteProfile(ctx context.Context, id int64) error {
	f.record(fmt.Sprintf("DELETE /profile/%d", id))
	return nil
}

func (f *fakeAPI) SearchProfiles(ctx context.Context, q string) ([]profile.Profile, error) {
	f.record("GET /profile/search")
	return f.search, nil
}

func (f *fakeAPI) TopSkills(ctx context.Context, limit int) ([]profile.SkillCount, error) {
	f.record(fmt.Sprintf("GET /profile/skills/top?limit=%d", limit))
	return f.skills, nil
}

// browser carries the session cookie between requests.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func newBrowser(t *testing.T, api *fakeAPI) *browser {
	t.Helper()
	srv := NewServer(api, Options{SessionTTL: time.Hour, BannerDuration: time.Hour})
	t.Cleanup(srv.sessions.closeAll)
	return &browser{t: t, handler: srv.Handler()}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			b.cookie = c
		}
	}
	return rec
}

func (b *browser) page(target string) *html.Node {
	b.t.Helper()
	rec := b.do(http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		b.t.Fatalf("GET %s = %d: %s", target, rec.Code, rec.Body.String())
	}
	doc, err := html.Parse(rec.Body)
	if err != nil {
		b.t.Fatalf("parsing HTML: %v", err)
	}
	return doc
}

func (b *browser) post(target string, form url.Values) {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	rec := b.do(http.MethodPost, target, form)
	if rec.Code != http.StatusSeeOther {
		b.t.Fatalf("POST %s = %d, want 303: %s", target, rec.Code, rec.Body.String())
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool { return hasClass(n, class) }
}

func byID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, "id") == id }
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func TestPage_EmptyListPlaceholder(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	doc := b.page("/")

	list := findAll(doc, byID("profilesList"))
	if len(list) != 1 {
		t.Fatalf("profilesList elements = %d", len(list))
	}
	if got := text(list[0]); got != ui.NoProfilesText {
		t.Errorf("list text = %q, want %q", got, ui.NoProfilesText)
	}
	if cards := findAll(doc, byClass("profile-card")); len(cards) != 0 {
		t.Errorf("cards = %d, want 0", len(cards))
	}
}

func TestPage_CardBadges(t *testing.T) {
	api := &fakeAPI{profiles: []profile.Profile{
		{ID: 1, Name: "Ada", Email: "ada@example.com", Phone: "555", Bio: "math", Skills: "Go, Rust"},
	}}
	b := newBrowser(t, api)
	doc := b.page("/")

	cards := findAll(doc, byClass("profile-card"))
	if len(cards) != 1 {
		t.Fatalf("cards = %d, want 1", len(cards))
	}
	badges := findAll(cards[0], byClass("skill-badge"))
	if len(badges) != 2 {
		t.Fatalf("badges = %d, want 2", len(badges))
	}
	if text(badges[0]) != "Go" || text(badges[1]) != "Rust" {
		t.Errorf("badges = %q, %q", text(badges[0]), text(badges[1]))
	}
	card := text(cards[0])
	for _, want := range []string{"Ada", "📧 ada@example.com", "📱 555", "math"} {
		if !strings.Contains(card, want) {
			t.Errorf("card text %q missing %q", card, want)
		}
	}
}

func TestPage_EscapesFields(t *testing.T) {
	api := &fakeAPI{profiles: []profile.Profile{
		{ID: 1, Name: "<script>alert(1)</script>", Email: "x@example.com"},
	}}
	b := newBrowser(t, api)
	rec := b.do(http.MethodGet, "/", nil)

	if strings.Contains(rec.Body.String(), "<script>alert(1)</script>") {
		t.Error("profile name rendered unescaped")
	}
}

func TestPage_SessionCookie(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	b.page("/")
	if b.cookie == nil || b.cookie.Value == "" {
		t.Fatal("no session cookie set")
	}
	first := b.cookie.Value

	b.page("/")
	if b.cookie.Value != first {
		t.Error("session cookie changed between requests")
	}
}

func TestPage_LoadsListOncePerSession(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)

	b.page("/")
	b.page("/")
	if n := api.count("GET /profile"); n != 1 {
		t.Errorf("list requests = %d, want 1", n)
	}

	b.page("/?refresh=1")
	if n := api.count("GET /profile"); n != 2 {
		t.Errorf("list requests after refresh = %d, want 2", n)
	}
}

func TestCreate_PostRedirectGet(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)
	b.page("/?tab=create")

	b.post("/profiles", url.Values{
		"name":   {"Ada"},
		"email":  {"ada@example.com"},
		"skills": {"Go, Rust"},
	})

	if api.count("POST /profile") != 1 {
		t.Errorf("POST count = %d, want 1", api.count("POST /profile"))
	}
	if api.count("GET /profile") != 1 {
		t.Errorf("re-list count = %d, want 1", api.count("GET /profile"))
	}

	doc := b.page("/")
	msg := findAll(doc, byID("message"))
	if len(msg) != 1 || !hasClass(msg[0], "success") || text(msg[0]) != ui.MsgCreated {
		t.Errorf("banner = %q", text(msg[0]))
	}
}

func TestCreate_DuplicateShowsDetail(t *testing.T) {
	api := &fakeAPI{profiles: []profile.Profile{{ID: 1, Name: "Ada", Email: "ada@example.com"}}}
	b := newBrowser(t, api)

	b.post("/profiles", url.Values{"name": {"Ada"}, "email": {"ada@example.com"}})
	doc := b.page("/?tab=create")

	msg := findAll(doc, byID("message"))
	if !hasClass(msg[0], "error") || text(msg[0]) != "Email already registered" {
		t.Errorf("banner = %q", text(msg[0]))
	}
}

func TestDetailEditAndClose(t *testing.T) {
	api := &fakeAPI{profiles: []profile.Profile{{ID: 7, Name: "Ada", Email: "ada@example.com", Skills: "Go"}}}
	b := newBrowser(t, api)
	b.page("/")

	rec := b.do(http.MethodGet, "/cards/7", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("GET /cards/7 = %d", rec.Code)
	}
	doc := b.page("/")
	detail := findAll(doc, byID("detailModal"))
	if len(detail) != 1 || !strings.Contains(text(detail[0]), "ID: 7") {
		t.Fatalf("detail overlay missing or wrong")
	}

	b.post("/selected/edit", nil)
	doc = b.page("/")
	if len(findAll(doc, byID("detailModal"))) != 0 {
		t.Error("detail overlay should close when editing")
	}
	edit := findAll(doc, byID("editModal"))
	if len(edit) != 1 {
		t.Fatal("edit overlay not rendered")
	}
	inputs := findAll(edit[0], func(n *html.Node) bool { return n.Data == "input" })
	var gotID, gotName string
	for _, in := range inputs {
		switch attr(in, "name") {
		case "id":
			gotID = attr(in, "value")
		case "name":
			gotName = attr(in, "value")
		}
	}
	if gotID != "7" || gotName != "Ada" {
		t.Errorf("edit form id=%q name=%q", gotID, gotName)
	}

	b.post("/overlays/close", nil)
	doc = b.page("/")
	if len(findAll(doc, byID("editModal"))) != 0 {
		t.Error("edit overlay still open after close")
	}
}

func TestSelectCard_ListAfterSearchAndUpdate(t *testing.T) {
	api := &fakeAPI{
		profiles: []profile.Profile{{ID: 1, Name: "Ada", Email: "ada@example.com", Skills: "Go"}},
		search:   []profile.Profile{{ID: 1, Name: "Ada", Email: "ada@example.com", Skills: "Go"}},
	}
	b := newBrowser(t, api)

	b.page("/search?q=Ada")
	b.do(http.MethodGet, "/cards/1", nil)
	b.post("/selected/edit", nil)
	b.post("/selected/update", url.Values{
		"id":     {"1"},
		"name":   {"Ada"},
		"phone":  {""},
		"bio":    {""},
		"skills": {"Go, Rust"},
	})

	b.post("/tabs/list", nil)
	b.do(http.MethodGet, "/cards/1", nil)
	doc := b.page("/")

	detail := findAll(doc, byID("detailModal"))
	if len(detail) != 1 {
		t.Fatal("detail overlay not rendered")
	}
	var got []string
	for _, n := range findAll(detail[0], byClass("skill-badge")) {
		got = append(got, text(n))
	}
	if strings.Join(got, ",") != "Go,Rust" {
		t.Errorf("detail badges = %v, want the updated [Go Rust]", got)
	}
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	api := &fakeAPI{profiles: []profile.Profile{{ID: 3, Name: "Ada", Email: "ada@example.com"}}}
	b := newBrowser(t, api)
	b.page("/")
	b.do(http.MethodGet, "/cards/3", nil)

	rec := b.do(http.MethodPost, "/selected/delete", url.Values{})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/?confirm=delete" {
		t.Fatalf("unconfirmed delete = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if api.count("DELETE") != 0 {
		t.Fatal("unconfirmed delete sent a request")
	}

	doc := b.page("/?confirm=delete")
	confirm := findAll(doc, byID("confirmDelete"))
	if len(confirm) != 1 || !strings.Contains(text(confirm[0]), ui.MsgConfirmDelete) {
		t.Fatal("confirmation prompt not rendered")
	}

	b.post("/selected/delete", url.Values{"confirm": {"yes"}})
	if api.count("DELETE /profile/3") != 1 {
		t.Errorf("confirmed delete count = %d", api.count("DELETE /profile/3"))
	}
}

func TestDelete_NoSelection(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	rec := b.do(http.MethodPost, "/selected/delete", url.Values{"confirm": {"yes"}})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestSearch_BlankRendersAlert(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)

	doc := b.page("/search?q=+")
	alerts := findAll(doc, byClass("alert"))
	if len(alerts) != 1 || text(alerts[0]) != ui.MsgEmptySearch {
		t.Errorf("alerts = %d", len(alerts))
	}
	if api.count("GET /profile/search") != 0 {
		t.Error("blank search sent a request")
	}
}

func TestSearch_NoResults(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	doc := b.page("/search?q=nobody")

	results := findAll(doc, byID("searchResults"))
	if len(results) != 1 || text(results[0]) != ui.NoResultsText {
		t.Errorf("search results text = %q", text(results[0]))
	}
}

func TestSkills(t *testing.T) {
	api := &fakeAPI{skills: []profile.SkillCount{{Skill: "Python", Count: 3}, {Skill: "Go", Count: 1}}}
	b := newBrowser(t, api)

	doc := b.page("/skills?limit=2")
	items := findAll(doc, byClass("skill-item"))
	if len(items) != 2 {
		t.Fatalf("skill items = %d, want 2", len(items))
	}
	if !strings.Contains(text(items[0]), "3 profile(s)") {
		t.Errorf("first item = %q", text(items[0]))
	}
	if api.count("GET /profile/skills/top?limit=2") != 1 {
		t.Error("expected one top skills request with limit=2")
	}

}

func TestSkills_NonIntegerLimitShowsBanner(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)

	doc := b.page("/skills?limit=ten")
	msg := findAll(doc, byID("message"))
	if len(msg) != 1 || text(msg[0]) != ui.MsgInvalidSkillsLimit {
		t.Errorf("banner = %v", msg)
	}
	if api.count("GET /profile/skills/top") != 0 {
		t.Error("invalid limit sent a request")
	}
	if len(findAll(doc, byID("skillsList"))) != 1 {
		t.Error("skills tab should still render")
	}
}

func TestSkills_Empty(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	doc := b.page("/skills")

	list := findAll(doc, byID("skillsList"))
	if text(list[0]) != ui.NoSkillsText {
		t.Errorf("skills text = %q", text(list[0]))
	}
}

func TestSwitchTab(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	b.post("/tabs/create", nil)

	doc := b.page("/")
	active := findAll(doc, func(n *html.Node) bool { return hasClass(n, "tab-btn") && hasClass(n, "active") })
	if len(active) != 1 || attr(active[0], "data-tab") != ui.TabCreate {
		t.Errorf("active tabs = %d", len(active))
	}
	if len(findAll(doc, byID("createForm"))) != 1 {
		t.Error("create form not rendered")
	}

	if rec := b.do(http.MethodPost, "/tabs/bogus", url.Values{}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown tab status = %d, want 404", rec.Code)
	}
}

func TestOpenProfile_DeepLink(t *testing.T) {
	api := &fakeAPI{profiles: []profile.Profile{{ID: 5, Name: "Grace", Email: "grace@example.com"}}}
	b := newBrowser(t, api)

	b.do(http.MethodGet, "/profiles/5", nil)
	doc := b.page("/")
	if len(findAll(doc, byID("detailModal"))) != 1 {
		t.Error("deep link should open the detail overlay")
	}
	if api.count("GET /profile/5") != 1 {
		t.Error("deep link should fetch the profile")
	}
}

func TestStaticCSS(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	rec := b.do(http.MethodGet, "/static/style.css", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ".skill-badge") {
		t.Error("stylesheet content missing")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newSessionStore(time.Minute, func() *ui.Controller { return ui.NewController(&fakeAPI{}) })
	store.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	first := store.controller(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if got := store.controller(httptest.NewRecorder(), req); got != first {
		t.Error("same cookie should return the same controller")
	}

	now = now.Add(2 * time.Minute)
	if n := store.sweep(); n != 1 {
		t.Errorf("sweep removed %d, want 1", n)
	}
	if store.len() != 0 {
		t.Errorf("sessions = %d, want 0", store.len())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if got := store.controller(httptest.NewRecorder(), req); got == first {
		t.Error("expired session should get a new controller")
	}
}

func TestSessionStore_RejectsMalformedCookie(t *testing.T) {
	store := newSessionStore(time.Minute, func() *ui.Controller { return ui.NewController(&fakeAPI{}) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not-a-uuid"})
	rec := httptest.NewRecorder()
	store.controller(rec, req)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "not-a-uuid" {
		t.Errorf("expected a fresh session cookie, got %v", cookies)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	srv := NewServer(&fakeAPI{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
