// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultOwner   = "gauntlet-run"
	defaultRepo    = "gauntlet"

	// maxJSONResponseBytes caps API response bodies so a misbehaving proxy
	// cannot balloon memory.
	maxJSONResponseBytes = 10 << 20
)

// ErrReleaseNotFound is returned when the requested release tag does not exist.
var ErrReleaseNotFound = errors.New("release not found")

type (
	// Release is the subset of a GitHub release the updater needs.
	Release struct {
		TagName    string  `json:"tag_name"`
		Name       string  `json:"name"`
		Prerelease bool    `json:"prerelease"`
		Draft      bool    `json:"draft"`
		HTMLURL    string  `json:"html_url"`
		Assets     []Asset `json:"assets"`
	}

	// Asset is one downloadable file attached to a release.
	Asset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
		Size               int64  `json:"size"`
	}

	// RateLimitError reports an exhausted GitHub API quota.
	RateLimitError struct {
		Remaining int
		ResetAt   time.Time
	}

	// GitHubClient fetches release metadata and assets from the GitHub API.
	GitHubClient struct {
		httpClient *http.Client
		baseURL    string
		owner      string
		repo       string
		token      string
		userAgent  string
	}

	// ClientOption configures a GitHubClient during construction.
	ClientOption func(*GitHubClient)
)

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GitHubClient) { g.httpClient = c }
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *GitHubClient) { g.baseURL = base }
}

// WithToken authenticates requests; authenticated callers get a far higher
// rate limit (5000/h vs 60/h).
func WithToken(token string) ClientOption {
	return func(g *GitHubClient) { g.token = token }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(g *GitHubClient) { g.userAgent = ua }
}

// NewGitHubClient creates a client for the gauntlet release repository.
func NewGitHubClient(opts ...ClientOption) *GitHubClient {
	g := &GitHubClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		owner:      defaultOwner,
		repo:       defaultRepo,
		userAgent:  "gauntlet",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LatestRelease returns the newest stable release. Drafts and prereleases
// never appear here; the endpoint filters them server-side.
func (g *GitHubClient) LatestRelease(ctx context.Context) (*Release, error) {
	return g.getRelease(ctx, fmt.Sprintf("/repos/%s/%s/releases/latest", g.owner, g.repo))
}

// ReleaseByTag returns the release published under an exact tag like "v1.2.0".
func (g *GitHubClient) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	return g.getRelease(ctx, fmt.Sprintf("/repos/%s/%s/releases/tags/%s", g.owner, g.repo, tag))
}

// DownloadAsset streams an asset into w, bounded by limit bytes.
func (g *GitHubClient) DownloadAsset(ctx context.Context, asset Asset, w io.Writer, limit int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: unexpected status %s", asset.Name, resp.Status)
	}
	n, err := io.Copy(w, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	if n > limit {
		return fmt.Errorf("downloading %s: exceeds %d byte limit", asset.Name, limit)
	}
	return nil
}

func (g *GitHubClient) getRelease(ctx context.Context, path string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building API request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", g.userAgent)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying GitHub API: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return nil, ErrReleaseNotFound
	case http.StatusForbidden, http.StatusTooManyRequests:
		if rle := rateLimitFrom(resp); rle != nil {
			return nil, rle
		}
		return nil, fmt.Errorf("GitHub API request denied: %s", resp.Status)
	default:
		return nil, fmt.Errorf("GitHub API returned %s", resp.Status)
	}

	var release Release
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes))
	if err := dec.Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release metadata: %w", err)
	}
	return &release, nil
}

// rateLimitFrom extracts rate-limit details, or nil when the 403 had another
// cause.
func rateLimitFrom(resp *http.Response) *RateLimitError {
	remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil || remaining > 0 {
		return nil
	}
	reset := time.Time{}
	if secs, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		reset = time.Unix(secs, 0)
	}
	return &RateLimitError{Remaining: remaining, ResetAt: reset}
}
