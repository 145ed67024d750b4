package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tutorly/tutorly-backend/internal/config"
	"github.com/tutorly/tutorly-backend/internal/httpx"
)

// Client talks to the provider's auth REST API. Credential storage, password
// hashing and token issuance all live on the provider side; this client only
// forwards grants and reads/updates account metadata.
type Client struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	httpClient     *http.Client
}

func NewClient(cfg config.SupabaseConfig) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		anonKey:        cfg.AnonKey,
		serviceRoleKey: cfg.ServiceRoleKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type signUpRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Data     UserMetadata `json:"data"`
}

// SignUp registers a new account with the given metadata. The provider sends
// the verification email itself.
func (c *Client) SignUp(ctx context.Context, email, password string, meta UserMetadata) (ProviderUser, error) {
	var user ProviderUser
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", c.anonKey,
		signUpRequest{Email: email, Password: password, Data: meta}, &user)
	return user, err
}

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordGrant exchanges credentials for a token pair.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", c.anonKey,
		passwordGrantRequest{Email: email, Password: password}, &pair)
	if err != nil {
		// Never surface provider details for a failed login.
		return TokenPair{}, httpx.Unauthorized("Authentication failed")
	}
	return pair, nil
}

type refreshGrantRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshGrant rotates a refresh token into a fresh token pair.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", c.anonKey,
		refreshGrantRequest{RefreshToken: refreshToken}, &pair)
	if err != nil {
		return TokenPair{}, httpx.Unauthorized("Token refresh failed")
	}
	return pair, nil
}

type listUsersResponse struct {
	Users []ProviderUser `json:"users"`
}

// ListUsers fetches all provider accounts via the admin API. Requires the
// service role key.
func (c *Client) ListUsers(ctx context.Context) ([]ProviderUser, error) {
	var resp listUsersResponse
	if err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users?per_page=1000", c.serviceRoleKey, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// FindUserByEmail returns the provider account for an email, or nil when no
// account exists. Comparison is case-insensitive; the provider lowercases
// emails on some paths but not all.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*ProviderUser, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, nil
}

type updateUserRequest struct {
	UserMetadata UserMetadata `json:"user_metadata"`
}

// UpdateUserMetadata overwrites an account's metadata via the admin API.
func (c *Client) UpdateUserMetadata(ctx context.Context, userID string, meta UserMetadata) error {
	return c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+userID, c.serviceRoleKey,
		updateUserRequest{UserMetadata: meta}, nil)
}

func (c *Client) do(ctx context.Context, method, path, key string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// ProviderError is a non-2xx response from the identity provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider returned %d: %s", e.StatusCode, e.Body)
}
