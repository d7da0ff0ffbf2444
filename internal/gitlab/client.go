// Package gitlab fetches merge-request metadata and diffs from the GitLab
// REST API v4.
package gitlab

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response lands in the error
// message.
const maxErrorBody = 500

var projectPathPattern = regexp.MustCompile(`^https?://[^/]+/(.+)$`)

// APIError is an unexpected response from the GitLab API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab api error %d: %s", e.StatusCode, e.Message)
}

// MRData is everything the review pipeline needs to know about one merge
// request. Diff is a unified diff assembled from the per-file diffs the
// changes endpoint returns.
type MRData struct {
	Title        string
	Description  string
	Author       string
	SourceBranch string
	TargetBranch string
	WebURL       string
	SHA          string
	IID          int
	ProjectPath  string
	ChangedFiles []string
	Diff         string
}

// Client talks to one GitLab instance.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// Option adjusts client construction.
type Option func(*Client)

// WithInsecureTLS disables certificate verification, for self-hosted
// instances with self-signed certificates.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.http.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// NewClient returns a client for the GitLab instance at baseURL,
// authenticating every request with the given personal access token.
func NewClient(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v4",
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProjectPath extracts the "group/repo" path from an HTTPS repository URL,
// dropping any trailing .git.
func ProjectPath(repoURL string) (string, error) {
	u := strings.TrimRight(repoURL, "/")
	u = strings.TrimSuffix(u, ".git")
	m := projectPathPattern.FindStringSubmatch(u)
	if m == nil {
		return "", fmt.Errorf("cannot extract project path from url %q", repoURL)
	}
	return m[1], nil
}

// GetMRData fetches metadata and the changes list for one merge request and
// assembles them into an MRData.
func (c *Client) GetMRData(ctx context.Context, repoURL string, mrIID int) (*MRData, error) {
	projectPath, err := ProjectPath(repoURL)
	if err != nil {
		return nil, err
	}
	encoded := url.QueryEscape(projectPath)

	c.logger.Info("fetching merge request metadata", "project", projectPath, "iid", mrIID)
	var meta mrMeta
	if err := c.get(ctx, fmt.Sprintf("/projects/%s/merge_requests/%d", encoded, mrIID), &meta); err != nil {
		return nil, err
	}

	c.logger.Info("fetching merge request changes", "project", projectPath, "iid", mrIID)
	var changes mrChanges
	if err := c.get(ctx, fmt.Sprintf("/projects/%s/merge_requests/%d/changes", encoded, mrIID), &changes); err != nil {
		return nil, err
	}
	if changes.Overflow {
		c.logger.Warn("changes list overflowed; diff may be incomplete", "iid", mrIID)
	}

	changedFiles := make([]string, 0, len(changes.Changes))
	diffParts := make([]string, 0, len(changes.Changes))
	for _, ch := range changes.Changes {
		changedFiles = append(changedFiles, ch.NewPath)
		oldPath := ch.OldPath
		if oldPath == "" {
			oldPath = ch.NewPath
		}
		diffParts = append(diffParts, fmt.Sprintf("--- a/%s\n+++ b/%s\n%s", oldPath, ch.NewPath, ch.Diff))
	}

	sha := meta.SHA
	if sha == "" {
		sha = meta.DiffRefs.HeadSHA
	}

	author := meta.Author.Username
	if author == "" {
		author = "unknown"
	}

	return &MRData{
		Title:        meta.Title,
		Description:  meta.Description,
		Author:       author,
		SourceBranch: meta.SourceBranch,
		TargetBranch: meta.TargetBranch,
		WebURL:       meta.WebURL,
		SHA:          sha,
		IID:          mrIID,
		ProjectPath:  projectPath,
		ChangedFiles: changedFiles,
		Diff:         strings.Join(diffParts, "\n"),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)

	c.logger.Debug("gitlab request", "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gitlab request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding gitlab response %s: %w", path, err)
	}
	return nil
}

type mrMeta struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	WebURL       string `json:"web_url"`
	SHA          string `json:"sha"`
	State        string `json:"state"`
	Author       struct {
		Username string `json:"username"`
	} `json:"author"`
	DiffRefs struct {
		HeadSHA string `json:"head_sha"`
	} `json:"diff_refs"`
}

type mrChanges struct {
	Overflow bool `json:"overflow"`
	Changes  []struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
		Diff    string `json:"diff"`
	} `json:"changes"`
}
