// Package webapi implements the JSON-over-HTTP introspection surface named
// by §4.7 ("web-API introspection hooks"): a read-only view of server
// snapshot/tag state plus a small admin-gated set of mutating endpoints
// (enable/disable, forced delay, induced error). Grounded on
// yatesdr-warlogix/api's chi router and yatesdr-warlogix/www's
// gorilla/sessions admin cookie, generalized from the teacher's HTTP-less
// plcconnector.
package webapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/server"
)

// Config gathers the settings NewRouter needs beyond the server itself:
// the admin token mutating endpoints require, and the cookie-signing
// secret (base64-free raw bytes; a nil/short secret is replaced with a
// random one at startup, matching sessionStore's own fallback).
type Config struct {
	AdminToken    string
	SessionSecret []byte
}

type handlers struct {
	srv      *server.Server
	sessions *sessionStore
}

// NewRouter builds the introspection router around srv.
func NewRouter(srv *server.Server, cfg Config) chi.Router {
	h := &handlers{srv: srv, sessions: newSessionStore(cfg.SessionSecret, cfg.AdminToken)}

	r := chi.NewRouter()
	r.Get("/snapshot", h.handleSnapshot)
	r.Get("/tags", h.handleListTags)
	r.Get("/tags/{name}", h.handleGetTag)

	r.Post("/admin/login", h.handleLogin)
	r.Post("/admin/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/admin/enabled", h.handleSetEnabled)
		r.Post("/admin/delay", h.handleSetDelay)
		r.Post("/admin/induce", h.handleSetInduced)
	})

	return r
}

func (h *handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *handlers) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// requireAdmin gates the mutating endpoints behind the admin session
// cookie, grounded on yatesdr-warlogix/www/router.go's adminOnlyMiddleware.
func (h *handlers) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.sessions.isAdmin(r) {
			h.writeError(w, http.StatusForbidden, "admin session required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.sessions.login(w, r, req.Token) {
		h.writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}
	h.writeJSON(w, map[string]bool{"ok": true})
}

func (h *handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.logout(w, r)
	h.writeJSON(w, map[string]bool{"ok": true})
}

func (h *handlers) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.srv.Snapshot(time.Now()))
}

func (h *handlers) handleListTags(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.srv.Device.Tags.Names())
}

type tagResponse struct {
	Name  string `json:"name"`
	Value []any  `json:"value"`
	Error string `json:"error,omitempty"`
}

func (h *handlers) handleGetTag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tag, ok := h.srv.Device.Tags.Lookup(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown tag")
		return
	}
	resp := tagResponse{Name: name}
	value, err := tag.Value()
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Value = value
	}
	h.writeJSON(w, resp)
}

func (h *handlers) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.srv.Faults.SetEnabled(req.Enabled)
	h.writeJSON(w, map[string]bool{"enabled": req.Enabled})
}

func (h *handlers) handleSetDelay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Milliseconds int `json:"milliseconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.srv.Faults.SetForcedDelay(time.Duration(req.Milliseconds) * time.Millisecond)
	h.writeJSON(w, map[string]int{"milliseconds": req.Milliseconds})
}

func (h *handlers) handleSetInduced(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status uint8 `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.srv.Faults.SetInducedStatus(cip.Status(req.Status))
	h.writeJSON(w, map[string]uint8{"status": req.Status})
}
