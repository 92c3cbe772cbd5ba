package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sable-im/sable/internal/apperr"
	"github.com/sable-im/sable/internal/httpx"
)

// Client talks to the hosted identity provider. All calls go through the
// retrying HTTP client and a circuit breaker so a provider outage fails fast
// instead of tying up request handlers.
type Client struct {
	base    string
	apiKey  string
	http    *httpx.Client
	breaker *gobreaker.CircuitBreaker
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

func NewClient(baseURL, apiKey string) *Client {
	hc := httpx.NewClient(httpx.ClientConfig{
		Timeout:         10 * time.Second,
		RetryMaxElapsed: 20 * time.Second,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	})
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "identity-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	return &Client{base: baseURL, apiKey: apiKey, http: hc, breaker: cb}
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	return c.session(ctx, "/signup", body)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	return c.session(ctx, "/token?grant_type=password", body)
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, "/logout", map[string]string{}, accessToken)
	return err
}

func (c *Client) session(ctx context.Context, path string, body map[string]string) (*Session, error) {
	resp, err := c.do(ctx, path, body, "")
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(resp, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.User.ID == "" {
		return nil, apperr.ErrUnauthorized
	}
	return &s, nil
}

func (c *Client) do(ctx context.Context, path string, body map[string]string, bearer string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.DoWithRetry(ctx, func() (*http.Request, error) {
			req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			if c.apiKey != "" {
				req.Header.Set("apikey", c.apiKey)
			}
			if bearer != "" {
				req.Header.Set("Authorization", "Bearer "+bearer)
			}
			return req, nil
		})
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
				return nil, apperr.ErrUnauthorized
			}
			return nil, fmt.Errorf("identity provider status %d", resp.StatusCode)
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}
