package webapi

import (
	"crypto/rand"
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName    = "cipstack_admin"
	sessionAdminKey = "admin"
)

// sessionStore is the admin session cookie, grounded on
// yatesdr-warlogix/www/auth.go's sessionStore: a gorilla/sessions
// CookieStore with a random fallback secret and a 7-day cookie lifetime.
// Unlike the teacher's username/password/bcrypt login, admin access here
// gates on a single shared token (§4.7's mutating endpoints have one
// operator role, not a user directory).
type sessionStore struct {
	store *sessions.CookieStore
	token string
}

func newSessionStore(secret []byte, token string) *sessionStore {
	if len(secret) < 32 {
		secret = make([]byte, 32)
		rand.Read(secret)
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &sessionStore{store: store, token: token}
}

func (s *sessionStore) get(r *http.Request) *sessions.Session {
	session, _ := s.store.Get(r, sessionName)
	return session
}

func (s *sessionStore) isAdmin(r *http.Request) bool {
	session := s.get(r)
	v, ok := session.Values[sessionAdminKey].(bool)
	return ok && v
}

// login checks the supplied token against the configured admin token in
// constant time and, on success, marks the session as admin.
func (s *sessionStore) login(w http.ResponseWriter, r *http.Request, suppliedToken string) bool {
	if subtle.ConstantTimeCompare([]byte(suppliedToken), []byte(s.token)) != 1 || s.token == "" {
		return false
	}
	session := s.get(r)
	session.Values[sessionAdminKey] = true
	session.Save(r, w)
	return true
}

func (s *sessionStore) logout(w http.ResponseWriter, r *http.Request) {
	session := s.get(r)
	delete(session.Values, sessionAdminKey)
	session.Options.MaxAge = -1
	session.Save(r, w)
}
