package web

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/meapi/internal/ui"
)

// SessionCookie is the name of the cookie carrying the visitor's session ID.
const SessionCookie = "meapi_session"

type session struct {
	ctrl     *ui.Controller
	lastSeen time.Time
}

// sessionStore maps session IDs to page controllers.
type sessionStore struct {
	ttl           time.Duration
	now           func() time.Time
	newController func() *ui.Controller

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore(ttl time.Duration, newController func() *ui.Controller) *sessionStore {
	return &sessionStore{
		ttl:           ttl,
		now:           time.Now,
		newController: newController,
		sessions:      make(map[string]*session),
	}
}

// controller returns the controller for the request's session, creating a
// session and setting its cookie when the request has none (or an expired
// one).
func (s *sessionStore) controller(w http.ResponseWriter, r *http.Request) *ui.Controller {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := readSessionID(r); ok {
		if sess, ok := s.sessions[id]; ok && !s.expired(sess, now) {
			sess.lastSeen = now
			return sess.ctrl
		}
	}

	id := uuid.NewString()
	sess := &session{ctrl: s.newController(), lastSeen: now}
	s.sessions[id] = sess
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess.ctrl
}

func (s *sessionStore) expired(sess *session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}

// sweep drops idle sessions and returns how many were removed.
func (s *sessionStore) sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			sess.ctrl.Close()
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// closeAll stops every controller's timers.
func (s *sessionStore) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.ctrl.Close()
		delete(s.sessions, id)
	}
}

func readSessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if _, err := uuid.Parse(value); err != nil {
		return "", false
	}
	return value, true
}
