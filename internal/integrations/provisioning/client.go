package provisioning

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

	"site-creator/internal/domain"
)

// DefaultTimeout bounds each call when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// ErrMalformedResponse marks a 2xx response whose body could not be used.
var ErrMalformedResponse = errors.New("provisioning: malformed response")

// createRequest is the wire shape of the create call.
type createRequest struct {
	UserSession string `json:"user_session"`
	ProjectName string `json:"project_name"`
	Description string `json:"description"`
}

// createResponse accepts both `id` and the older `project_id` key.
type createResponse struct {
	URL       string `json:"url"`
	ID        *int64 `json:"id,omitempty"`
	ProjectID *int64 `json:"project_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

type listResponse struct {
	Projects *[]wireProject `json:"projects"`
}

type wireProject struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	URL         string  `json:"url"`
	CreatedAt   *string `json:"created_at"`
}

type errorBody struct {
	Error string `json:"error"`
}

// HTTPStatusError captures non-2xx responses. Message holds the service's
// `error` field when the body carried one.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Message    string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provisioning: status %d from %s: %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("provisioning: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a stateless wrapper around the create and list operations.
type Client struct {
	createURL  string
	listURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a Client for the given endpoint URLs.
func NewClient(createURL, listURL string, opts ...Option) (*Client, error) {
	createURL = strings.TrimSpace(createURL)
	listURL = strings.TrimSpace(listURL)
	if err := validateEndpoint("create", createURL); err != nil {
		return nil, err
	}
	if err := validateEndpoint("list", listURL); err != nil {
		return nil, err
	}
	c := &Client{
		createURL:  createURL,
		listURL:    listURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func validateEndpoint(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("provisioning: %s url must not be empty", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("provisioning: parse %s url: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provisioning: %s url must be http or https, got %q", name, u.Scheme)
	}
	return nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// Create sends one create call. There are no retries.
func (c *Client) Create(ctx context.Context, in domain.ProvisioningRequest) (domain.CreateResult, error) {
	body, err := json.Marshal(createRequest{
		UserSession: in.Session,
		ProjectName: in.Name,
		Description: in.Description,
	})
	if err != nil {
		return domain.CreateResult{}, fmt.Errorf("provisioning: marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.createURL, bytes.NewReader(body))
	if err != nil {
		return domain.CreateResult{}, fmt.Errorf("provisioning: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", in.Session)

	raw, err := c.doJSONRequest(req, c.createURL)
	if err != nil {
		return domain.CreateResult{}, fmt.Errorf("provisioning: create failed: %w", err)
	}

	var payload createResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.CreateResult{}, fmt.Errorf("%w: decode create response: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(payload.URL) == "" {
		return domain.CreateResult{}, fmt.Errorf("%w: create response has no url", ErrMalformedResponse)
	}

	out := domain.CreateResult{URL: payload.URL}
	switch {
	case payload.ID != nil:
		out.ID = *payload.ID
	case payload.ProjectID != nil:
		out.ID = *payload.ProjectID
	}
	return out, nil
}

// List returns the projects the service reports for sessionToken, in the
// order it reports them.
func (c *Client) List(ctx context.Context, sessionToken string) ([]domain.Project, error) {
	endpoint, err := listURLFor(c.listURL, sessionToken)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("provisioning: list request: %w", err)
	}
	req.Header.Set("X-Session-Id", sessionToken)

	raw, err := c.doJSONRequest(req, c.listURL)
	if err != nil {
		return nil, fmt.Errorf("provisioning: list failed: %w", err)
	}

	var payload listResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode list response: %v", ErrMalformedResponse, err)
	}
	if payload.Projects == nil {
		return nil, fmt.Errorf("%w: list response has no projects", ErrMalformedResponse)
	}

	projects := make([]domain.Project, 0, len(*payload.Projects))
	for _, p := range *payload.Projects {
		projects = append(projects, domain.Project{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Status:      domain.ParseProjectStatus(p.Status),
			URL:         p.URL,
			CreatedAt:   parseTimestamp(p.CreatedAt),
		})
	}
	return projects, nil
}

func listURLFor(base, sessionToken string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("provisioning: parse list url: %w", err)
	}
	q := u.Query()
	q.Set("user_session", sessionToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts RFC 3339 and the zone-less ISO form the service
// emits. Unparseable values are treated as absent.
func parseTimestamp(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, endpoint string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		statusErr := &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Body:       string(buf),
		}
		var eb errorBody
		if json.Unmarshal(buf, &eb) == nil {
			statusErr.Message = strings.TrimSpace(eb.Error)
		}
		return nil, statusErr
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
