package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"fireflies/backend/internal/auth"
	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/model"
)

// RequireProfile resolves the caller with resolver and stores the profile in
// the request context. Unresolvable callers get 401.
func RequireProfile(resolver auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, err := resolver.Resolve(r.Context(), auth.TokenFromRequest(r))
			if err != nil {
				respondWithError(w, err)
				return
			}
			if profile == nil {
				respondWithError(w, app_errors.ErrAuthRequired)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithProfile(r.Context(), profile)))
		})
	}
}

// profileOrFail returns the caller's profile, writing 401 when there is none.
func profileOrFail(w http.ResponseWriter, r *http.Request) (*model.Profile, bool) {
	profile := auth.ProfileFromContext(r.Context())
	if profile == nil {
		respondWithError(w, app_errors.ErrAuthRequired)
		return nil, false
	}
	return profile, true
}

// RequireProxyToken admits only requests carrying token as a bearer
// credential. The proxy reaches arbitrary pages and inference servers, so it
// is never open to anonymous callers.
func RequireProxyToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				respondWithError(w, app_errors.ErrAuthRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
