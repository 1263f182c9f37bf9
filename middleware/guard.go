package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/gatekeeper"
)

// CredentialFromRequest returns the session token carried by r. The session
// cookie wins over an Authorization bearer header.
func CredentialFromRequest(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// Authenticate validates the request credential and attaches the resulting
// identity to the request context. Requests without a valid session are
// rejected with 401, and a session store outage with 503.
func Authenticate(engine *gatekeeper.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, gatekeeper.ErrEngineNotReady)
				return
			}
			token, _ := CredentialFromRequest(r, engine.CookieName())
			id, err := engine.ValidateSession(r.Context(), token)
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(gatekeeper.WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuthenticate attaches an identity when the request carries a valid
// session and otherwise continues anonymously.
func OptionalAuthenticate(engine *gatekeeper.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := CredentialFromRequest(r, engine.CookieName())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			id, err := engine.ValidateSession(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(gatekeeper.WithIdentity(r.Context(), id)))
		})
	}
}

// RequirePermission admits requests whose identity holds the named
// permission. It must run after Authenticate.
func RequirePermission(engine *gatekeeper.Engine, name string) func(http.Handler) http.Handler {
	return guard(engine, func(r *http.Request, id *gatekeeper.Identity) (bool, error) {
		return engine.HasPermission(r.Context(), id, name)
	})
}

// RequireAnyPermission admits requests whose identity holds at least one of
// names.
func RequireAnyPermission(engine *gatekeeper.Engine, names ...string) func(http.Handler) http.Handler {
	return guard(engine, func(r *http.Request, id *gatekeeper.Identity) (bool, error) {
		return engine.HasAnyPermission(r.Context(), id, names...)
	})
}

func RequireRole(engine *gatekeeper.Engine, name string) func(http.Handler) http.Handler {
	return guard(engine, func(r *http.Request, id *gatekeeper.Identity) (bool, error) {
		return engine.HasRole(r.Context(), id, name)
	})
}

func guard(engine *gatekeeper.Engine, decide func(*http.Request, *gatekeeper.Identity) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, gatekeeper.ErrEngineNotReady)
				return
			}
			id, ok := gatekeeper.IdentityFromContext(r.Context())
			if !ok || !id.Authenticated() {
				writeError(w, gatekeeper.ErrAuthenticationRequired)
				return
			}
			allowed, err := decide(r, id)
			if err != nil {
				writeError(w, err)
				return
			}
			if !allowed {
				writeError(w, gatekeeper.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case gatekeeper.IsAuthenticationError(err):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, gatekeeper.ErrPermissionDenied):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, gatekeeper.ErrCheckFailed),
		errors.Is(err, gatekeeper.ErrEngineNotReady):
		status, msg = http.StatusServiceUnavailable, "unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
