// Package github looks up repository metadata through the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	gh "github.com/google/go-github/v56/github"

	"github.com/codeGROOVE-dev/hookcord/pkg/logger"
)

const (
	clientTimeout = 10 * time.Second
	userAgent     = "hookcord/1.0"
)

// StatusError reports a non-200 response from the repository endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GitHub API returned status %d", e.StatusCode)
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	// BaseURL is the API root, e.g. "https://api.github.com/".
	BaseURL string
	// Token is an optional bearer token; anonymous requests are rate limited harder.
	Token string
	// Attempts is the number of tries per lookup. Values below 1 mean 1.
	Attempts uint
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Client provides GitHub API functionality.
type Client struct {
	gh       *gh.Client
	attempts uint
}

// NewClient creates a GitHub API client.
func NewClient(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = clientTimeout
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	c := gh.NewClient(&http.Client{Timeout: timeout})
	if opts.Token != "" {
		c = c.WithAuthToken(opts.Token)
	}
	c.UserAgent = userAgent

	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", opts.BaseURL, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.BaseURL = u
	}

	return &Client{gh: c, attempts: attempts}, nil
}

// RepositoryDescription returns the description of the repository named
// "owner/name". A repository without a description yields "" and a nil error.
func (c *Client) RepositoryDescription(ctx context.Context, fullName string) (string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid repository name %q", fullName)
	}

	var description string
	var lastErr error

	err := retry.Do(
		func() error {
			repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
			if err == nil {
				description = repo.GetDescription()
				return nil
			}

			if resp == nil {
				// Network errors and timeouts.
				lastErr = fmt.Errorf("failed to fetch repository %s: %w", fullName, err)
				return lastErr
			}

			var rateErr *gh.RateLimitError
			var abuseErr *gh.AbuseRateLimitError
			switch {
			case errors.As(err, &rateErr), errors.As(err, &abuseErr):
				logger.Warn(ctx, "GitHub API rate limit hit", logger.Fields{
					"repository": fullName,
					"status":     resp.StatusCode,
				})
				lastErr = &StatusError{StatusCode: resp.StatusCode}
				return lastErr

			case resp.StatusCode == http.StatusInternalServerError,
				resp.StatusCode == http.StatusBadGateway,
				resp.StatusCode == http.StatusServiceUnavailable:
				lastErr = &StatusError{StatusCode: resp.StatusCode}
				return lastErr

			default:
				lastErr = &StatusError{StatusCode: resp.StatusCode}
				return retry.Unrecoverable(lastErr)
			}
		},
		retry.Attempts(c.attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(250*time.Millisecond),
		retry.Context(ctx),
	)
	if err != nil {
		if lastErr != nil {
			return "", lastErr
		}
		return "", err
	}

	return description, nil
}
