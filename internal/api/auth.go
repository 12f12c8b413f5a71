package api

import (
	"context"
	"net/http"

	"github.com/npezzotti/go-blogchat/internal/types"
)

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity stored by authMiddleware.
func IdentityFrom(ctx context.Context) (types.Identity, bool) {
	id, ok := ctx.Value(identityKey).(types.Identity)
	if !ok || id.Anonymous() {
		return types.Identity{}, false
	}

	return id, true
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserId        string `json:"user_id,omitempty"`
	Name          string `json:"name,omitempty"`
}

// session reports the caller's identity without requiring one.
func (s *GoChatApp) session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

	id, err := s.auth.FromRequest(r)
	if err != nil {
		s.writeJson(w, http.StatusOK, sessionResponse{Authenticated: false})
		return
	}

	s.writeJson(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		UserId:        id.UserId,
		Name:          id.Name,
	})
}
