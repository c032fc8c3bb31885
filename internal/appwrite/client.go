// Package appwrite is a thin REST client for the Appwrite-compatible
// backend-as-a-service this system delegates persistence, file storage, and
// authentication to. Only the operations the storefront consumes are
// implemented.
package appwrite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Sentinel errors mapped from upstream HTTP statuses.
var (
	ErrNotFound = errors.New("appwrite: not found")
	ErrConflict = errors.New("appwrite: conflict")
)

// Error is a non-2xx response from the platform. The message is passed
// through but treated as opaque.
type Error struct {
	Status  int
	Type    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("appwrite: %d %s: %s", e.Status, e.Type, e.Message)
}

// Is makes 404/409 responses match the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// Config holds the connection settings for one Appwrite project.
type Config struct {
	// Endpoint is the API base URL, e.g. https://cloud.appwrite.io/v1.
	Endpoint string
	Project  string
	// Key is the server API key sent as X-Appwrite-Key.
	Key string
}

// Client issues authenticated requests against one project.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client. A nil httpClient falls back to a client with a
// 30 second timeout.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{cfg: cfg, http: httpClient}
}

// Endpoint returns the configured API base URL without a trailing slash.
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// Project returns the configured project identifier.
func (c *Client) Project() string { return c.cfg.Project }

// Ping checks upstream availability via the platform health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err
}

// request is a single API call. session, when set, is forwarded as
// X-Appwrite-Session so account operations run in the user's context.
type request struct {
	method      string
	path        string
	query       []string // raw encoded query params, e.g. "queries[]=..."
	contentType string
	body        io.Reader
	session     string
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var r io.Reader
	ct := ""
	if body != nil {
		r = strings.NewReader(string(body))
		ct = "application/json"
	}
	return c.send(ctx, request{method: method, path: path, contentType: ct, body: r})
}

func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	url := c.cfg.Endpoint + r.path
	if len(r.query) > 0 {
		url += "?" + strings.Join(r.query, "&")
	}

	req, err := http.NewRequestWithContext(ctx, r.method, url, r.body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("X-Appwrite-Project", c.cfg.Project)
	if c.cfg.Key != "" {
		req.Header.Set("X-Appwrite-Key", c.cfg.Key)
	}
	if r.session != "" {
		req.Header.Set("X-Appwrite-Session", r.session)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError(resp.StatusCode, data)
	}
	return data, nil
}

// parseError decodes the platform's {message, type} error body. A body that
// is not valid JSON still yields a usable Error.
func parseError(status int, data []byte) error {
	apiErr := &Error{Status: status, Message: http.StatusText(status)}

	d := jx.DecodeBytes(data)
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "message":
			s, err := d.Str()
			if err != nil {
				return err
			}
			apiErr.Message = s
		case "type":
			s, err := d.Str()
			if err != nil {
				return err
			}
			apiErr.Type = s
		default:
			return d.Skip()
		}
		return nil
	})
	return apiErr
}
