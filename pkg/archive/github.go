package archive

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/sony/gobreaker"
)

// DefaultGitHubAPI is the public GitHub REST endpoint
const DefaultGitHubAPI = "https://api.github.com"

var (
	errCircuitOpen = errors.New("circuit breaker open")
	errTransport   = errors.New("request failed")
)

// GitHubStore keeps archive files in a GitHub repository through the contents
// API. The blob sha is the concurrency token.
type GitHubStore struct {
	baseURL    string
	repo       string
	branch     string
	token      string
	userAgent  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	retryDelay time.Duration
	logger     kitlog.Logger
}

// GitHubOption configures a GitHubStore
type GitHubOption func(*GitHubStore)

// WithBaseURL points the store at another API host, e.g. GitHub Enterprise
func WithBaseURL(baseURL string) GitHubOption {
	return func(s *GitHubStore) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(s *GitHubStore) {
		s.httpClient = c
	}
}

// WithTimeout bounds each HTTP attempt
func WithTimeout(timeout time.Duration) GitHubOption {
	return func(s *GitHubStore) {
		s.httpClient.Timeout = timeout
	}
}

// WithRetryDelay sets the pause before the single retry
func WithRetryDelay(d time.Duration) GitHubOption {
	return func(s *GitHubStore) {
		s.retryDelay = d
	}
}

// NewGitHubStore creates a store for repo ("owner/name") on branch.
func NewGitHubStore(repo, branch, token string, logger kitlog.Logger, opts ...GitHubOption) *GitHubStore {
	s := &GitHubStore{
		baseURL:    DefaultGitHubAPI,
		repo:       repo,
		branch:     branch,
		token:      token,
		userAgent:  "weatherlog-archiver",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retryDelay: time.Second,
		logger:     kitlog.With(logger, "module", "github"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "github-contents",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			level.Warn(s.logger).Log("msg", "circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return s
}

type contentsResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

func (s *GitHubStore) GetContent(ctx context.Context, path string) (Content, error) {
	endpoint := s.contentsURL(path) + "?ref=" + url.QueryEscape(s.branch)

	status, body, err := s.do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return Content{}, err
	}

	switch {
	case status == http.StatusNotFound:
		return Content{}, ErrNotFound
	case status != http.StatusOK:
		return Content{}, &StatusError{Status: status, Body: string(body)}
	}

	var cr contentsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return Content{}, fmt.Errorf("failed to decode contents response: %w", err)
	}

	// files over 1 MB come without inline content; read them as a blob
	if cr.Encoding == "none" {
		blob, err := s.getBlob(ctx, cr.SHA)
		if err != nil {
			return Content{}, fmt.Errorf("failed to read blob of %s: %w", path, err)
		}
		cr.Content, cr.Encoding = blob.Content, blob.Encoding
	}

	data, err := decodeContent(cr)
	if err != nil {
		return Content{}, fmt.Errorf("failed to decode content of %s: %w", path, err)
	}

	return Content{Data: data, Token: cr.SHA}, nil
}

// getBlob fetches a blob by sha through the git data API
func (s *GitHubStore) getBlob(ctx context.Context, sha string) (contentsResponse, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/git/blobs/%s", s.baseURL, s.repo, url.PathEscape(sha))

	status, body, err := s.do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return contentsResponse{}, err
	}
	if status != http.StatusOK {
		return contentsResponse{}, &StatusError{Status: status, Body: string(body)}
	}

	var blob contentsResponse
	if err := json.Unmarshal(body, &blob); err != nil {
		return contentsResponse{}, fmt.Errorf("failed to decode blob response: %w", err)
	}
	return blob, nil
}

func decodeContent(cr contentsResponse) ([]byte, error) {
	if cr.Encoding != "" && cr.Encoding != "base64" {
		return nil, fmt.Errorf("unsupported content encoding %q", cr.Encoding)
	}
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(cr.Content, "\n", ""))
}

func (s *GitHubStore) PutContent(ctx context.Context, path string, data []byte, token, message string) error {
	payload, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  s.branch,
		SHA:     token,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := s.contentsURL(path)
	status, body, err := s.do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodPut, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %w", ErrConflict, &StatusError{Status: status, Body: string(body)})
	default:
		return &StatusError{Status: status, Body: string(body)}
	}
}

func (s *GitHubStore) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/repos/%s/contents/%s", s.baseURL, s.repo, strings.Join(segments, "/"))
}

// do runs the request through the circuit breaker and retries once when the
// failure looks transient. Non-transient statuses are returned to the caller.
func (s *GitHubStore) do(ctx context.Context, build func() (*http.Request, error)) (int, []byte, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return 0, nil, ctx.Err()
			case <-timer.C:
			}
		}

		req, err := build()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req = req.WithContext(ctx)
		s.setHeaders(req)

		result, err := s.breaker.Execute(func() (interface{}, error) {
			return s.roundTrip(req)
		})
		if err == nil {
			res := result.(*response)
			return res.status, res.body, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if !transient(err) || ctx.Err() != nil {
			return 0, nil, err
		}

		lastErr = err
		level.Warn(s.logger).Log("msg", "github request failed", "method", req.Method, "attempt", attempt+1, "err", err)
	}

	return 0, nil, lastErr
}

type response struct {
	status int
	body   []byte
}

func (s *GitHubStore) roundTrip(req *http.Request) (*response, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", errTransport, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return &response{status: resp.StatusCode, body: body}, nil
}

func (s *GitHubStore) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", s.userAgent)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

// transient reports whether a failed call is worth retrying
func transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, errTransport)
}
