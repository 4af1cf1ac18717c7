// Package httpc is the JSON HTTP client used by the command line tools.
// Every request carries a timeout; nothing uses http.DefaultClient.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	dialTimeout    = 5 * time.Second
	maxErrorBody   = 512
)

// Client is shared by GetJSON.
var Client = NewClient(DefaultTimeout)

// NewClient returns an HTTP client whose whole request, including the
// body, must finish within timeout.
func NewClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: dialTimeout}).DialContext
	tr.MaxIdleConnsPerHost = 4
	return &http.Client{Timeout: timeout, Transport: tr}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// API talks JSON to one server.
type API struct {
	Base string // e.g. "http://localhost:8090"
	HTTP *http.Client
}

// NewAPI returns an API rooted at base using the shared client.
func NewAPI(base string) *API {
	return &API{Base: strings.TrimRight(base, "/"), HTTP: Client}
}

// Get decodes the JSON response of GET path into out.
func (a *API) Get(ctx context.Context, path string, out any) error {
	return a.do(ctx, http.MethodGet, a.Base+path, nil, out)
}

// Put sends in as JSON and decodes the response into out (if non-nil).
func (a *API) Put(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return a.do(ctx, http.MethodPut, a.Base+path, body, out)
}

func (a *API) do(ctx context.Context, method, url string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := a.HTTP
	if client == nil {
		client = Client
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetJSON fetches an absolute url with the shared client.
func GetJSON(ctx context.Context, url string, out any) error {
	return (&API{HTTP: Client}).do(ctx, http.MethodGet, url, nil, out)
}
