package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/triagebot/internal/retry"
)

// GitHubClient implements Client against the GitHub REST API using a
// plain HTTP client and a shared rate limiter. Read requests are
// retried on transport failures and 5xx responses.
type GitHubClient struct {
	baseURL string
	owner   string
	repo    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	retry   retry.Config
}

// NewGitHubClient creates a client for the owner/name repository.
func NewGitHubClient(repo, token string) (*GitHubClient, error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repository %q: expected owner/name", repo)
	}
	return &GitHubClient{
		baseURL: "https://api.github.com",
		owner:   parts[0],
		repo:    parts[1],
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(1*time.Second), 5), // 5 requests per second
		retry:   retry.DefaultConfig(),
	}, nil
}

// SetBaseURL points the client at a different API root. Used by tests
// and GitHub Enterprise installs.
func (c *GitHubClient) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

// statusError is an unexpected HTTP status from the API. Carrying the
// code lets the retry policy tell a 502 from a 403.
type statusError struct {
	method string
	path   string
	status string
	code   int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GitHub API %s %s failed: %s", e.method, e.path, e.status)
}

// transient reports whether another attempt could plausibly succeed:
// transport errors and server-side 5xx, never a request the API
// actually rejected.
func transient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func (c *GitHubClient) do(ctx context.Context, method, path string, payload interface{}, out interface{}, wantStatus int) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return err
		}
	}

	attempt := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var body io.Reader
		if data != nil {
			body = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "token "+c.token)
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		req.Header.Set("User-Agent", "triagebot")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != wantStatus {
			return &statusError{method: method, path: path, status: resp.Status, code: resp.StatusCode}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return err
			}
		}
		return nil
	}

	// Only reads are retried. A mutation that failed mid-flight may
	// still have landed (a created comment would be duplicated), and a
	// failed mutation is fatal to the event anyway.
	if method == http.MethodGet {
		return retry.Do(ctx, c.retry, transient, attempt)
	}
	return attempt()
}

type ghUser struct {
	Login string `json:"login"`
}

type ghComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User ghUser `json:"user"`
}

type ghIssue struct {
	Number    int       `json:"number"`
	Body      string    `json:"body"`
	User      ghUser    `json:"user"`
	State     string    `json:"state"`
	ClosedBy  *ghUser   `json:"closed_by"`
	Labels    []ghLabel `json:"labels"`
	Assignees []ghUser  `json:"assignees"`
}

type ghLabel struct {
	Name string `json:"name"`
}

func (i ghIssue) toIssue() Issue {
	issue := Issue{
		Number: i.Number,
		Body:   i.Body,
		Author: i.User.Login,
		Closed: i.State == "closed",
	}
	for _, l := range i.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	if i.ClosedBy != nil {
		issue.Closer = i.ClosedBy.Login
	}
	return issue
}

// ListComments walks every page of the issue's comments and returns
// the newest limit of them, newest first. The per-issue comments
// endpoint has no sort parameters: it always pages oldest first, so the
// newest comments live on the last page and the tail is reversed here.
func (c *GitHubClient) ListComments(ctx context.Context, issue int, limit int) ([]Comment, error) {
	if limit < 1 {
		limit = 30
	}

	var all []ghComment
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=%d&page=%d",
			c.owner, c.repo, issue, limit, page)
		var raw []ghComment
		if err := c.do(ctx, http.MethodGet, path, nil, &raw, http.StatusOK); err != nil {
			return nil, err
		}
		all = append(all, raw...)
		if len(raw) < limit {
			break
		}
		// Only the newest limit comments matter; earlier pages can be
		// forgotten as soon as a full later page supersedes them.
		if len(all) > limit {
			all = all[len(all)-limit:]
		}
	}

	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	comments := make([]Comment, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		gc := all[i]
		comments = append(comments, Comment{ID: gc.ID, Author: gc.User.Login, Body: gc.Body})
	}
	return comments, nil
}

func (c *GitHubClient) CreateComment(ctx context.Context, issue int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", c.owner, c.repo, issue)
	return c.do(ctx, http.MethodPost, path, map[string]string{"body": body}, nil, http.StatusCreated)
}

func (c *GitHubClient) EditComment(ctx context.Context, commentID int64, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", c.owner, c.repo, commentID)
	return c.do(ctx, http.MethodPatch, path, map[string]string{"body": body}, nil, http.StatusOK)
}

func (c *GitHubClient) DeleteComment(ctx context.Context, commentID int64) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", c.owner, c.repo, commentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, http.StatusNoContent)
}

func (c *GitHubClient) AddLabels(ctx context.Context, issue int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", c.owner, c.repo, issue)
	return c.do(ctx, http.MethodPost, path, map[string][]string{"labels": labels}, nil, http.StatusOK)
}

func (c *GitHubClient) Assign(ctx context.Context, issue int, assignees []string) (AssignResult, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/assignees", c.owner, c.repo, issue)
	var updated ghIssue
	err := c.do(ctx, http.MethodPost, path, map[string][]string{"assignees": assignees}, &updated, http.StatusCreated)
	if err != nil {
		return AssignResult{}, err
	}
	var result AssignResult
	for _, u := range updated.Assignees {
		result.Confirmed = append(result.Confirmed, u.Login)
	}
	return result, nil
}

func (c *GitHubClient) Close(ctx context.Context, issue int) error {
	return c.setState(ctx, issue, "closed")
}

func (c *GitHubClient) Reopen(ctx context.Context, issue int) error {
	return c.setState(ctx, issue, "open")
}

func (c *GitHubClient) setState(ctx context.Context, issue int, state string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", c.owner, c.repo, issue)
	return c.do(ctx, http.MethodPatch, path, map[string]string{"state": state}, nil, http.StatusOK)
}

func (c *GitHubClient) Fetch(ctx context.Context, issue int) (Issue, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", c.owner, c.repo, issue)
	var raw ghIssue
	if err := c.do(ctx, http.MethodGet, path, nil, &raw, http.StatusOK); err != nil {
		return Issue{}, err
	}
	return raw.toIssue(), nil
}
