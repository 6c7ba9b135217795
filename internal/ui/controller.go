// Package ui holds the state and behaviour of the profile page, independent of
// how it is drawn. The web front end and the CLI both drive a Controller.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/meapi/internal/client"
	"github.com/kalambet/meapi/internal/profile"
)

// Tab names.
const (
	TabList   = "list"
	TabCreate = "create"
	TabSearch = "search"
	TabSkills = "skills"
)

// Tabs lists the tabs in display order.
var Tabs = []string{TabList, TabCreate, TabSearch, TabSkills}

// DefaultSkillsLimit is the preset of the top skills limit field.
const DefaultSkillsLimit = 10

// Placeholder texts for empty views.
const (
	NoProfilesText = "No profiles found"
	NoResultsText  = "No results found"
	NoSkillsText   = "No skills found"
)

// User-facing messages.
const (
	MsgCreated       = "Profile created successfully!"
	MsgUpdated       = "Profile updated successfully!"
	MsgDeleted       = "Profile deleted successfully!"
	MsgCreateFailed  = "Error creating profile"
	MsgUpdateFailed  = "Error updating profile"
	MsgDeleteFailed  = "Error deleting profile"
	MsgConfirmDelete = "Are you sure you want to delete this profile?"
	MsgEmptySearch   = "Please enter a search term"

	MsgInvalidSkillsLimit = "Error fetching skills: limit must be a whole number"

	fetchProfilesPrefix  = "Error fetching profiles: "
	searchProfilesPrefix = "Error searching profiles: "
	fetchSkillsPrefix    = "Error fetching skills: "
	transportPrefix      = "Error: "
)

// ErrUnknownTab is returned by SwitchTab for names outside Tabs.
var ErrUnknownTab = errors.New("unknown tab")

// ErrNoSelection is returned when an action needs a selected profile.
var ErrNoSelection = errors.New("no profile selected")

// ProfileAPI is the part of the REST client the controller uses.
type ProfileAPI interface {
	ListProfiles(ctx context.Context) ([]profile.Profile, error)
	GetProfile(ctx context.Context, id int64) (profile.Profile, error)
	CreateProfile(ctx context.Context, req profile.CreateRequest) (profile.Profile, error)
	UpdateProfile(ctx context.Context, id int64, req profile.UpdateRequest) (profile.Profile, error)
	DeleteProfile(ctx context.Context, id int64) error
	SearchProfiles(ctx context.Context, query string) ([]profile.Profile, error)
	TopSkills(ctx context.Context, limit int) ([]profile.SkillCount, error)
}

// Prompter answers the blocking confirm and alert dialogs.
type Prompter interface {
	Confirm(msg string) bool
	Alert(msg string)
}

// CreateForm holds the create tab's input fields.
type CreateForm struct {
	Name   string
	Email  string
	Phone  string
	Bio    string
	Skills string
}

// EditForm holds the edit overlay's input fields. Email is not editable.
type EditForm struct {
	ID     int64
	Name   string
	Phone  string
	Bio    string
	Skills string
}

// State is a snapshot of everything a renderer needs.
type State struct {
	Tab string

	Profiles      []profile.Profile
	ProfilesReady bool

	SearchQuery   string
	SearchResults []profile.Profile
	Searched      bool

	SkillsLimit  int
	Skills       []profile.SkillCount
	SkillsLoaded bool

	Selected   *profile.Profile
	DetailOpen bool
	EditOpen   bool
	Edit       EditForm
	Create     CreateForm

	Banner        BannerMessage
	BannerVisible bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithBannerDuration overrides DefaultBannerDuration.
func WithBannerDuration(d time.Duration) Option {
	return func(c *Controller) { c.bannerDuration = d }
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func withAfterFunc(af afterFunc) Option {
	return func(c *Controller) { c.afterFunc = af }
}

// Controller owns the page state. It is safe for concurrent use; API calls
// run without holding the lock, so the last response to arrive wins.
type Controller struct {
	api            ProfileAPI
	logger         *slog.Logger
	bannerDuration time.Duration
	afterFunc      afterFunc
	banner         *Banner

	mu    sync.Mutex
	state State
}

// NewController creates a controller showing the list tab.
func NewController(api ProfileAPI, opts ...Option) *Controller {
	c := &Controller{
		api:    api,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.banner = newBanner(c.bannerDuration, c.afterFunc)
	c.state = State{
		Tab:         TabList,
		SkillsLimit: DefaultSkillsLimit,
	}
	return c
}

// Banner exposes the controller's banner.
func (c *Controller) Banner() *Banner {
	return c.banner
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()

	if s.Selected != nil {
		p := *s.Selected
		s.Selected = &p
	}
	s.Banner, s.BannerVisible = c.banner.Current()
	return s
}

// SwitchTab makes name the only active tab.
func (c *Controller) SwitchTab(name string) error {
	for _, t := range Tabs {
		if t == name {
			c.mu.Lock()
			c.state.Tab = name
			c.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTab, name)
}

// LoadProfiles refreshes the list view.
func (c *Controller) LoadProfiles(ctx context.Context) error {
	profiles, err := c.api.ListProfiles(ctx)
	if err != nil {
		c.banner.Show(BannerError, fetchProfilesPrefix+errMessage(err))
		return err
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}

	c.mu.Lock()
	c.state.Profiles = profiles
	c.state.ProfilesReady = true
	c.mu.Unlock()
	return nil
}

// SelectProfile copies a card already on screen into the selected slot and
// opens the detail overlay. Only the active tab's cards are on screen: the
// search results on the search tab, the list everywhere else.
func (c *Controller) SelectProfile(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cards := c.state.Profiles
	if c.state.Tab == TabSearch {
		cards = c.state.SearchResults
	}
	p, ok := findProfile(cards, id)
	if !ok {
		return fmt.Errorf("profile %d is not displayed: %w", id, profile.ErrNotFound)
	}
	c.state.Selected = &p
	c.state.DetailOpen = true
	c.state.EditOpen = false
	return nil
}

// OpenProfile fetches a profile by id and shows it in the detail overlay.
func (c *Controller) OpenProfile(ctx context.Context, id int64) (profile.Profile, error) {
	p, err := c.api.GetProfile(ctx, id)
	if err != nil {
		c.banner.Show(BannerError, transportPrefix+errMessage(err))
		return profile.Profile{}, err
	}

	c.mu.Lock()
	c.state.Selected = &p
	c.state.DetailOpen = true
	c.state.EditOpen = false
	c.mu.Unlock()
	return p, nil
}

// EditSelected fills the edit form from the selected slot as it was when the
// card was chosen. The server is not consulted again.
func (c *Controller) EditSelected() (EditForm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Selected == nil {
		return EditForm{}, ErrNoSelection
	}
	p := c.state.Selected
	c.state.Edit = EditForm{
		ID:     p.ID,
		Name:   p.Name,
		Phone:  p.Phone,
		Bio:    p.Bio,
		Skills: p.Skills,
	}
	c.state.DetailOpen = false
	c.state.EditOpen = true
	return c.state.Edit, nil
}

// CreateProfile submits the create form.
func (c *Controller) CreateProfile(ctx context.Context, form CreateForm) error {
	c.mu.Lock()
	c.state.Create = form
	c.mu.Unlock()

	_, err := c.api.CreateProfile(ctx, profile.CreateRequest{
		Name:   form.Name,
		Email:  form.Email,
		Phone:  form.Phone,
		Bio:    form.Bio,
		Skills: form.Skills,
	})
	if err != nil {
		c.showFailure(err, MsgCreateFailed)
		return err
	}

	c.banner.Show(BannerSuccess, MsgCreated)
	c.mu.Lock()
	c.state.Create = CreateForm{}
	c.mu.Unlock()
	c.relist(ctx)
	return nil
}

// UpdateProfile submits the edit form.
func (c *Controller) UpdateProfile(ctx context.Context, form EditForm) error {
	c.mu.Lock()
	c.state.Edit = form
	c.mu.Unlock()

	_, err := c.api.UpdateProfile(ctx, form.ID, profile.UpdateRequest{
		Name:   &form.Name,
		Phone:  &form.Phone,
		Bio:    &form.Bio,
		Skills: &form.Skills,
	})
	if err != nil {
		c.showFailure(err, MsgUpdateFailed)
		return err
	}

	c.banner.Show(BannerSuccess, MsgUpdated)
	c.CloseEdit()
	c.relist(ctx)
	return nil
}

// DeleteSelected asks for confirmation and deletes the selected profile.
// A declined prompt sends nothing and returns nil.
func (c *Controller) DeleteSelected(ctx context.Context, prompter Prompter) error {
	c.mu.Lock()
	sel := c.state.Selected
	c.mu.Unlock()
	if sel == nil {
		return ErrNoSelection
	}

	if !prompter.Confirm(MsgConfirmDelete) {
		c.logger.Debug("delete declined", "id", sel.ID)
		return nil
	}

	if err := c.api.DeleteProfile(ctx, sel.ID); err != nil {
		c.showFailure(err, MsgDeleteFailed)
		return err
	}

	c.banner.Show(BannerSuccess, MsgDeleted)
	c.CloseDetail()
	c.relist(ctx)
	return nil
}

// Search runs a query into the search view. Blank queries raise an alert and
// send nothing.
func (c *Controller) Search(ctx context.Context, query string, prompter Prompter) error {
	c.mu.Lock()
	c.state.SearchQuery = query
	c.mu.Unlock()

	if strings.TrimSpace(query) == "" {
		prompter.Alert(MsgEmptySearch)
		return nil
	}

	results, err := c.api.SearchProfiles(ctx, query)
	if err != nil {
		c.banner.Show(BannerError, searchProfilesPrefix+errMessage(err))
		return err
	}
	if results == nil {
		results = []profile.Profile{}
	}

	c.mu.Lock()
	c.state.SearchResults = results
	c.state.Searched = true
	c.mu.Unlock()
	return nil
}

// LoadTopSkills refreshes the skills view.
func (c *Controller) LoadTopSkills(ctx context.Context, limit int) error {
	c.mu.Lock()
	c.state.SkillsLimit = limit
	c.mu.Unlock()

	skills, err := c.api.TopSkills(ctx, limit)
	if err != nil {
		c.banner.Show(BannerError, fetchSkillsPrefix+errMessage(err))
		return err
	}
	if skills == nil {
		skills = []profile.SkillCount{}
	}

	c.mu.Lock()
	c.state.Skills = skills
	c.state.SkillsLoaded = true
	c.mu.Unlock()
	return nil
}

// CloseDetail hides the detail overlay and clears the selection.
func (c *Controller) CloseDetail() {
	c.mu.Lock()
	c.state.DetailOpen = false
	c.state.Selected = nil
	c.mu.Unlock()
}

// CloseEdit hides the edit overlay and clears the selection.
func (c *Controller) CloseEdit() {
	c.mu.Lock()
	c.state.EditOpen = false
	c.state.Selected = nil
	c.mu.Unlock()
}

// Close stops the banner timer.
func (c *Controller) Close() {
	c.banner.Close()
}

func (c *Controller) relist(ctx context.Context) {
	if err := c.LoadProfiles(ctx); err != nil {
		c.logger.Warn("reloading profiles", "error", err)
	}
}

// showFailure puts a mutation failure in the banner: the server detail when
// there is one, fallback for other HTTP failures and "Error: ..." when the
// request never got a response.
func (c *Controller) showFailure(err error, fallback string) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		c.banner.Show(BannerError, apiErr.Message(fallback))
		return
	}
	c.banner.Show(BannerError, transportPrefix+err.Error())
}

func errMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

func findProfile(list []profile.Profile, id int64) (profile.Profile, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return profile.Profile{}, false
}
