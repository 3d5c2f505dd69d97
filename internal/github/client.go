// Package github fetches a user's public repositories from the GitHub REST API.
//
// The client's one job is to turn everything GitHub (or the network) can do
// into one of four outcomes:
//
//	repositories found   → []RawRepo, nil
//	user has no repos    → []RawRepo{} (empty, NOT an error), nil
//	user does not exist  → apperror.ErrNotFound
//	anything else        → apperror.ErrRemoteService (5xx, rate limit, timeout,
//	                       malformed JSON, connection refused, ...)
//
// "No data" is never used to paper over a failure: callers rely on an empty
// slice meaning GitHub positively confirmed zero repositories.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/github-scraper/internal/apperror"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 10 * time.Second

	// We ask for the largest page GitHub allows and stop there; walking the
	// Link header for more pages is out of scope.
	perPage = 100

	// Cap on how much of a response body we are willing to read.
	maxBodyBytes = 8 << 20
	// Cap on how much of an unread body we drain before closing, so the
	// connection can go back to the keep-alive pool.
	maxDrainBytes = 64 << 10
)

// RawRepo is the subset of GitHub's repository object we care about.
//
// WHY POINTERS FOR THE COUNTS?
// A missing "stargazers_count" and an explicit 0 decode differently into *int
// (nil vs 0). The service maps nil to 0, but keeping the distinction here
// means the client reports exactly what GitHub sent.
type RawRepo struct {
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	StargazersCount *int    `json:"stargazers_count"`
	ForksCount      *int    `json:"forks_count"`
}

// Config holds client settings. Zero values fall back to the defaults.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// HTTPClient lets tests inject a transport. Its own Timeout is
	// overridden by Config.Timeout.
	HTTPClient *http.Client
}

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("github: parsing base url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("github: base url %q must be http or https", raw)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		hc = &copied
	}
	hc.Timeout = timeout

	ua := cfg.UserAgent
	if ua == "" {
		// GitHub rejects requests without a User-Agent.
		ua = "github-scraper"
	}

	return &Client{
		baseURL:   base,
		http:      hc,
		timeout:   timeout,
		userAgent: ua,
		logger:    logger,
	}, nil
}

// FetchRepositories calls GET {base}/users/{username}/repos.
//
// RESOURCE DISCIPLINE:
// The response body is drained and closed by a defer registered the moment
// Do() returns a response, so every exit path below releases the connection.
func (c *Client) FetchRepositories(ctx context.Context, username string) ([]RawRepo, error) {
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}

	log := c.logger.With(
		slog.String("fetch_id", xid.New().String()),
		slog.String("username", username),
	)

	// The context deadline bounds the whole exchange, including reading the
	// body; http.Client.Timeout is the backstop if a caller passes a context
	// without one.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// JoinPath does not escape separators inside an element.
	endpoint := c.baseURL.JoinPath("users", url.PathEscape(username), "repos")
	endpoint.RawQuery = url.Values{"per_page": {strconv.Itoa(perPage)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, apperror.RemoteService("building github request", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	log.Info("fetching repositories from github", slog.String("url", endpoint.String()))
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			log.Warn("github request timed out", slog.Duration("timeout", c.timeout))
			return nil, apperror.RemoteService(
				fmt.Sprintf("github did not respond within %s", c.timeout), err)
		}
		log.Error("github request failed", slog.String("error", err.Error()))
		return nil, apperror.RemoteService("calling github", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		resp.Body.Close()
	}()

	log.Debug("github responded",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.String("rate_limit_remaining", resp.Header.Get("X-RateLimit-Remaining")),
	)

	if limited, reset := rateLimited(resp); limited {
		msg := "github rate limit exceeded"
		if !reset.IsZero() {
			msg = fmt.Sprintf("github rate limit exceeded, resets at %s", reset.UTC().Format(time.RFC3339))
		}
		log.Warn(msg, slog.Int("status", resp.StatusCode))
		return nil, apperror.RemoteService(msg, nil)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		log.Info("github user not found")
		return nil, apperror.NotFound("github user", username)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		log.Error("github returned an error status", slog.Int("status", resp.StatusCode))
		return nil, apperror.RemoteService(fmt.Sprintf("github returned %s", resp.Status), nil)
	}

	repos, err := decodeRepos(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("github response body timed out", slog.Duration("timeout", c.timeout))
			return nil, apperror.RemoteService(
				fmt.Sprintf("github did not respond within %s", c.timeout), err)
		}
		log.Error("malformed github response", slog.String("error", err.Error()))
		return nil, apperror.RemoteService("decoding github response", err)
	}
	if repos == nil {
		// A literal `null` body: treat as zero repositories, never as nil.
		repos = []RawRepo{}
	}

	log.Info("fetched repositories from github", slog.Int("count", len(repos)))
	return repos, nil
}

// decodeRepos reads exactly one JSON value from r. Anything after it other
// than whitespace means the payload was truncated or concatenated, and is
// rejected like any other malformed body.
func decodeRepos(r io.Reader) ([]RawRepo, error) {
	dec := json.NewDecoder(r)

	var repos []RawRepo
	if err := dec.Decode(&repos); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after the repository list")
		}
		return nil, err
	}
	return repos, nil
}

// rateLimited mirrors how GitHub signals an exhausted quota: 403 or 429 with
// X-RateLimit-Remaining: 0. The reset time is a Unix timestamp header; it is
// zero when the header is missing or unparsable.
func rateLimited(resp *http.Response) (bool, time.Time) {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return false, time.Time{}
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		// A plain 429 without quota headers is still throttling.
		if resp.StatusCode == http.StatusTooManyRequests {
			return true, retryAfter(resp)
		}
		return false, time.Time{}
	}

	reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return true, time.Time{}
	}
	return true, time.Unix(reset, 0)
}

func retryAfter(resp *http.Response) time.Time {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(secs) * time.Second)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
