package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-spawn-hub/internal/errors"
	"github.com/jrsteele09/go-spawn-hub/routes"
	"github.com/jrsteele09/go-spawn-hub/spawner"
	"github.com/jrsteele09/go-spawn-hub/users"
	"github.com/rs/zerolog/log"
)

// UserAPIModel is a user together with the state of their server.
type UserAPIModel struct {
	Name         string         `json:"name"`
	Admin        bool           `json:"admin"`
	Blocked      bool           `json:"blocked,omitempty"`
	LastActivity time.Time      `json:"last_activity,omitempty"`
	Server       routes.Backend `json:"server"`
}

func (s *Server) userModel(u *users.User) UserAPIModel {
	return UserAPIModel{
		Name:         u.Name,
		Admin:        u.Admin,
		Blocked:      u.Blocked,
		LastActivity: u.LastActivity,
		Server:       s.table.Get(u.Name),
	}
}

// lookupUser writes the API error for a missing or unreadable user.
func (s *Server) lookupUser(w http.ResponseWriter, name string) (*users.User, bool) {
	user, err := s.repos.Users.Get(name)
	if err == nil {
		return user, true
	}
	if errors.Is(err, errors.ErrUserNotFound) {
		writeJSONError(w, "not_found", "no user named "+name, http.StatusNotFound)
		return nil, false
	}
	log.Err(err).Str("user", name).Msg("user lookup failed")
	writeJSONError(w, "server_error", "user lookup failed", http.StatusInternalServerError)
	return nil, false
}

// ListUsersHandler lists every user (admins only)
func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFromContext(r.Context())
		if !s.auth.IsAdmin(identity) {
			writeJSONError(w, "access_denied", "admin only", http.StatusForbidden)
			return
		}

		list, err := s.repos.Users.List(0, 0)
		if err != nil {
			log.Err(err).Msg("[ListUsersHandler] failed to list users")
			writeJSONError(w, "server_error", "failed to list users", http.StatusInternalServerError)
			return
		}
		out := make([]UserAPIModel, 0, len(list))
		for _, u := range list {
			out = append(out, s.userModel(u))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) GetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.lookupUser(w, r.PathValue("name"))
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.userModel(user))
	}
}

// StartServerHandler spawns a user's server. The optional JSON body carries
// spawn options layered over the configured defaults. A running server keeps
// its options; stop it first to change them.
func (s *Server) StartServerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := s.lookupUser(w, name); !ok {
			return
		}

		var opts spawner.Options
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, "invalid_request", "invalid spawn options: "+err.Error(), http.StatusBadRequest)
			return
		}

		if b := s.table.Get(name); b.State == routes.Running {
			writeJSON(w, http.StatusOK, b)
			return
		}

		if _, err := s.table.EnsureRunning(r.Context(), name, opts.Merge(s.defaults)); err != nil {
			log.Err(err).Str("user", name).Str("by", identityFromContext(r.Context())).Msg("[StartServerHandler] spawn failed")
			writeJSONError(w, "spawn_failed", "the server of "+name+" could not be started", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusCreated, s.table.Get(name))
	}
}

func (s *Server) StopServerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := s.lookupUser(w, name); !ok {
			return
		}
		if err := s.table.Stop(r.Context(), name); err != nil {
			log.Err(err).Str("user", name).Msg("[StopServerHandler] stop failed")
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		log.Info().Str("user", name).Str("by", identityFromContext(r.Context())).Msg("server stop requested")
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListGrantsHandler lists who has been granted scopes on a user's server.
func (s *Server) ListGrantsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := s.lookupUser(w, name); !ok {
			return
		}
		list, err := s.auth.Grants(name)
		if err != nil {
			log.Err(err).Str("user", name).Msg("[ListGrantsHandler] failed to list grants")
			writeJSONError(w, "server_error", "failed to list grants", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// RevokeGrantHandler withdraws a grant; the grantee is asked for consent on
// their next visit.
func (s *Server) RevokeGrantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		grantee := r.PathValue("grantee")
		if _, ok := s.lookupUser(w, name); !ok {
			return
		}
		if err := s.auth.RevokeGrant(name, grantee); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				writeJSONError(w, "not_found", grantee+" holds no grant for "+name, http.StatusNotFound)
				return
			}
			log.Err(err).Str("user", name).Str("grantee", grantee).Msg("[RevokeGrantHandler] revoke failed")
			writeJSONError(w, "server_error", "failed to revoke grant", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
