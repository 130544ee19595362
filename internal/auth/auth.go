// Package auth resolves the caller of a request to a Profile.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/model"
)

// UserIDHeader carries the user ID when no auth backend is configured.
const UserIDHeader = "X-User-ID"

// Resolver turns a request token into the caller's profile. It returns
// ErrAuthRequired when the token does not identify anyone.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*model.Profile, error)
}

type contextKey struct{}

// WithProfile returns a copy of ctx carrying p.
func WithProfile(ctx context.Context, p *model.Profile) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// ProfileFromContext returns the profile stored by WithProfile, or nil.
func ProfileFromContext(ctx context.Context) *model.Profile {
	p, _ := ctx.Value(contextKey{}).(*model.Profile)
	return p
}

// TokenFromRequest returns the bearer token of r, falling back to the
// X-User-ID header.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

// DevResolver trusts the token as a user ID. Every user is on the free plan.
type DevResolver struct{}

func (DevResolver) Resolve(_ context.Context, token string) (*model.Profile, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: no user id", app_errors.ErrAuthRequired)
	}
	return &model.Profile{
		UserID:             token,
		SubscriptionPlan:   model.PlanFree,
		SubscriptionStatus: StatusActive,
	}, nil
}
