// Package francetravail is the connector of the France Travail job offers API.
package francetravail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"pathfinder/internal/logging"
	"pathfinder/internal/throttle"
	"pathfinder/pkg/utils"
)

// Client calls the offers API with a client-credentials bearer token. A 401
// drops the cached token and retries once; a 429 backs off and retries.
type Client struct {
	apiURL     string
	oauth      clientcredentials.Config
	http       *http.Client
	limiter    *throttle.Limiter
	backoff    time.Duration
	maxRetries int
	logger     logging.Logger

	mu    sync.Mutex
	token oauth2.TokenSource
}

// ClientOptions configures a Client
type ClientOptions struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	Scopes       []string
	Timeout      time.Duration
	Backoff      time.Duration
	MaxRetries   int
}

// NewClient creates an API client
func NewClient(opts ClientOptions, limiter *throttle.Limiter, logger logging.Logger) *Client {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Client{
		apiURL: opts.APIURL,
		oauth: clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			Scopes:       opts.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		http:       &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		backoff:    opts.Backoff,
		maxRetries: opts.MaxRetries,
		logger:     logger,
	}
}

// response is a decoded API answer
type response struct {
	Status int
	Body   []byte
}

// get performs an authenticated GET on path with query
func (c *Client) get(ctx context.Context, path string, query url.Values) (*response, error) {
	endpoint := c.apiURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	host := throttle.HostOf(endpoint)

	refreshed := false
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, host); err != nil {
				return nil, err
			}
		}

		tok, err := c.currentToken(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.do(ctx, endpoint, tok)
		if err != nil {
			c.recordFailure(host, err)
			return nil, err
		}

		switch {
		case resp.Status == http.StatusUnauthorized:
			if refreshed {
				return nil, utils.NewAuthError("token rejected after refresh")
			}
			c.logger.Info("Token expired, refreshing", logging.Fields{"path": path})
			c.resetToken()
			refreshed = true
			continue

		case resp.Status == http.StatusTooManyRequests:
			if attempt+1 >= c.maxRetries {
				return nil, fmt.Errorf("%s: %w", path, utils.ErrRateLimited)
			}
			c.logger.Warn("Rate limited, backing off", logging.Fields{
				"path":    path,
				"backoff": c.backoff.String(),
				"attempt": attempt + 1,
			})
			if err := throttle.Pause(ctx, c.backoff, c.backoff); err != nil {
				return nil, err
			}
			continue

		case resp.Status >= 500:
			c.recordFailure(host, fmt.Errorf("status %d", resp.Status))
		default:
			if c.limiter != nil {
				c.limiter.RecordSuccess(host)
			}
		}
		return resp, nil
	}
}

func (c *Client) do(ctx context.Context, endpoint string, tok *oauth2.Token) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &response{Status: resp.StatusCode, Body: body}, nil
}

func (c *Client) currentToken(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	if c.token == nil {
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
		c.token = c.oauth.TokenSource(tokenCtx)
	}
	ts := c.token
	c.mu.Unlock()

	type result struct {
		tok *oauth2.Token
		err error
	}
	done := make(chan result, 1)
	go func() {
		tok, err := ts.Token()
		done <- result{tok, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			var re *oauth2.RetrieveError
			if errors.As(r.err, &re) && re.Response != nil {
				return nil, utils.NewAuthError(fmt.Sprintf("token exchange returned %d", re.Response.StatusCode))
			}
			return nil, fmt.Errorf("token exchange failed: %w", r.err)
		}
		return r.tok, nil
	}
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *Client) recordFailure(host string, err error) {
	if c.limiter != nil {
		c.limiter.RecordFailure(host, err)
	}
}

func decode(resp *response, v interface{}) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
