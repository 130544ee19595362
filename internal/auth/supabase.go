package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/model"
)

// StatusActive is the subscription status assumed when none is stored.
const StatusActive = "active"

// SupabaseClient resolves access tokens against a Supabase project: the user
// comes from the auth API, the subscription from the profiles table.
type SupabaseClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewSupabaseClient(baseURL, anonKey string, httpClient *http.Client) *SupabaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SupabaseClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: httpClient,
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type profileRow struct {
	SubscriptionPlan   string `json:"subscription_plan"`
	SubscriptionStatus string `json:"subscription_status"`
}

// Resolve validates token and loads the user's subscription. A missing or
// unreadable profile row falls back to an active free plan.
func (c *SupabaseClient) Resolve(ctx context.Context, token string) (*model.Profile, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing access token", app_errors.ErrAuthRequired)
	}

	var user supabaseUser
	status, err := c.get(ctx, "/auth/v1/user", token, &user)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden || user.ID == "" {
		return nil, fmt.Errorf("%w: token rejected", app_errors.ErrAuthRequired)
	}

	profile := &model.Profile{
		UserID:             user.ID,
		Email:              user.Email,
		SubscriptionPlan:   model.PlanFree,
		SubscriptionStatus: StatusActive,
	}

	query := url.Values{}
	query.Set("user_id", "eq."+user.ID)
	query.Set("select", "subscription_plan,subscription_status")
	var rows []profileRow
	if _, err := c.get(ctx, "/rest/v1/profiles?"+query.Encode(), token, &rows); err != nil {
		slog.Warn("Could not load subscription, assuming free plan", "user_id", user.ID, "error", err)
		return profile, nil
	}
	if len(rows) > 0 {
		if rows[0].SubscriptionPlan != "" {
			profile.SubscriptionPlan = rows[0].SubscriptionPlan
		}
		if rows[0].SubscriptionStatus != "" {
			profile.SubscriptionStatus = rows[0].SubscriptionStatus
		}
	}
	return profile, nil
}

// get decodes a 2xx body into out. Auth rejections are returned as a status
// without error so the caller can map them.
func (c *SupabaseClient) get(ctx context.Context, path, token string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: could not create request: %w", app_errors.ErrTransport, err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", app_errors.ErrTransport, err)
	}
	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			slog.Warn("Failed to close supabase response body", "error", cErr)
		}
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%w: supabase returned status %d: %s", app_errors.ErrTransport, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: could not decode supabase response: %w", app_errors.ErrTransport, err)
	}
	return resp.StatusCode, nil
}
