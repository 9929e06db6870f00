// Package github implements types.DocumentStore on the GitHub repository
// contents API. Revisions are the blob SHAs the API reports.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

const (
	acceptHeader      = "application/vnd.github.v3+json"
	defaultTimeout    = 15 * time.Second
	defaultRPS        = 5
	maxErrorBodyBytes = 64 << 10
)

// Client talks to the contents API of one repository.
type Client struct {
	httpClient *http.Client
	baseURL    string
	owner      string
	repo       string
	token      string
	branch     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at another API root, such as a GitHub
// Enterprise host or a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithBranch reads and writes on branch instead of the default branch.
func WithBranch(branch string) Option {
	return func(c *Client) {
		c.branch = branch
	}
}

// WithRateLimit caps requests per second. Zero or negative disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient returns a client for owner/repo authenticating with token.
func NewClient(owner, repo, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultAPIURL,
		owner:      owner,
		repo:       repo,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(defaultRPS), 1),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// contentResponse is the body of GET /repos/{owner}/{repo}/contents/{path}.
type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

// putRequest is the body of PUT /repos/{owner}/{repo}/contents/{path}.
type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// putResponse is the subset of the PUT response the client reads.
type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// errorResponse is the error body the API returns.
type errorResponse struct {
	Message string `json:"message"`
}

// Get fetches the file at path. A 404 returns types.ErrNotFound.
func (c *Client) Get(ctx context.Context, path string) (types.Document, error) {
	u := c.contentsURL(path)
	if c.branch != "" {
		u += "?ref=" + url.QueryEscape(c.branch)
	}

	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.Document{}, &types.StoreError{Op: "get", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return types.Document{}, types.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return types.Document{}, &types.StoreError{Op: "get", Status: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	var body contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.Document{}, &types.StoreError{Op: "get", Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if body.Type != "" && body.Type != "file" {
		return types.Document{}, &types.StoreError{Op: "get", Status: resp.StatusCode, Message: fmt.Sprintf("%s is a %s, not a file", path, body.Type)}
	}

	content, err := decodeContent(body.Encoding, body.Content)
	if err != nil {
		return types.Document{}, &types.StoreError{Op: "get", Status: resp.StatusCode, Message: "malformed content", Err: err}
	}
	return types.Document{Content: content, Revision: body.SHA}, nil
}

// Put commits content at path with message. A non-empty revision is sent as
// the expected blob SHA. A 409, or a 422 complaining about the SHA, returns a
// *types.ConflictError.
func (c *Client) Put(ctx context.Context, path string, content []byte, revision, message string) (string, error) {
	payload, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     revision,
		Branch:  c.branch,
	})
	if err != nil {
		return "", &types.StoreError{Op: "put", Err: err}
	}

	resp, err := c.do(ctx, http.MethodPut, c.contentsURL(path), payload)
	if err != nil {
		return "", &types.StoreError{Op: "put", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := readMessage(resp.Body)
		if isConflict(resp.StatusCode, msg) {
			return "", &types.ConflictError{Path: path, Revision: revision, Message: msg}
		}
		return "", &types.StoreError{Op: "put", Status: resp.StatusCode, Message: msg}
	}

	var body putResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &types.StoreError{Op: "put", Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if body.Content.SHA == "" {
		return "", &types.StoreError{Op: "put", Status: resp.StatusCode, Message: "response carries no content sha"}
	}
	return body.Content.SHA, nil
}

func (c *Client) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo), strings.Join(segments, "/"))
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("contents request failed", "method", method, "url", u, "error", err)
		return nil, err
	}
	c.logger.Debug("contents request", "method", method, "url", u, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// isConflict reports whether a failed PUT means the expected SHA was stale.
// The API answers 409 for a mismatched sha and 422 when a sha is required
// but missing because the file was created in the meantime.
func isConflict(status int, msg string) bool {
	switch status {
	case http.StatusConflict:
		return true
	case http.StatusUnprocessableEntity:
		return strings.Contains(msg, "sha")
	}
	return false
}

// errNotInlined is returned for files the API reports with encoding "none",
// which it does for files too large to inline. The content field is then
// empty, not the file.
var errNotInlined = errors.New("content not inlined (file too large)")

// decodeContent returns the file bytes. The API wraps base64 content
// with newlines.
func decodeContent(encoding, content string) ([]byte, error) {
	switch encoding {
	case "base64":
		clean := strings.NewReplacer("\n", "", "\r", "").Replace(content)
		return base64.StdEncoding.DecodeString(clean)
	case "none":
		return nil, errNotInlined
	case "", "utf-8":
		return []byte(content), nil
	default:
		return nil, errors.New("unsupported content encoding " + encoding)
	}
}

// readMessage extracts the "message" field of an error body, or the trimmed
// body text when it is not JSON.
func readMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil || len(data) == 0 {
		return ""
	}
	var e errorResponse
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(data))
}
