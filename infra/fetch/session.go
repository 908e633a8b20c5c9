// Package fetch provides the shared upstream clients: an HTTP session with
// cookies, bounded retries and an optional legacy-TLS mode, plus a
// websocket snapshot dialer and CSV decoding helpers.
package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultUserAgent = "gridfeed/1.0"

// Session is a reusable upstream HTTP client. It keeps cookies and reuses
// connections; parsers must not mutate it beyond that. A session serves at
// most one tick at a time.
type Session struct {
	client     *http.Client
	userAgent  string
	maxRetries uint64
}

// Option adjusts session construction.
type Option func(*Session)

// WithTimeout bounds each individual request attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.client.Timeout = d }
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Session) { s.userAgent = ua }
}

// WithMaxRetries bounds the retry count for transient failures.
func WithMaxRetries(n uint64) Option {
	return func(s *Session) { s.maxRetries = n }
}

// WithLegacyTLS accepts TLS 1.0 handshakes. A handful of regulator endpoints
// still terminate on ancient appliances. The default transport is cloned so
// proxy and keep-alive settings survive.
func WithLegacyTLS() Option {
	return func(s *Session) {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS10} //nolint:gosec
		s.client.Transport = tr
	}
}

// NewSession creates a Session with a fresh cookie jar.
func NewSession(opts ...Option) *Session {
	jar, _ := cookiejar.New(nil)
	s := &Session{
		client:     &http.Client{Timeout: 30 * time.Second, Jar: jar},
		userAgent:  defaultUserAgent,
		maxRetries: 3,
	}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.URL, e.Status)
}

// Get fetches the URL body, retrying transport faults and 5xx responses with
// exponential backoff. 4xx responses fail immediately.
func (s *Session) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return s.do(ctx, http.MethodGet, rawURL, "", nil)
}

// GetJSON fetches the URL and decodes the JSON body into v.
func (s *Session) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := s.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// GetCSV fetches the URL and decodes the body as CSV records. Rows with a
// deviating field count are tolerated, as several upstream exports pad
// trailing columns inconsistently.
func (s *Session) GetCSV(ctx context.Context, rawURL string) ([][]string, error) {
	body, err := s.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv %s: %w", rawURL, err)
	}
	return records, nil
}

// PostForm posts URL-encoded form values and returns the body.
func (s *Session) PostForm(ctx context.Context, rawURL string, form map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	return s.do(ctx, http.MethodPost, rawURL, "application/x-www-form-urlencoded", []byte(values.Encode()))
}

func (s *Session) do(ctx context.Context, method, rawURL, contentType string, body []byte) ([]byte, error) {
	var out []byte
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", s.userAgent)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return &StatusError{Status: resp.StatusCode, URL: rawURL}
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(&StatusError{Status: resp.StatusCode, URL: rawURL})
		}
		out, err = io.ReadAll(resp.Body)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), s.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// IsClientFault reports whether err carries a 4xx response status.
func IsClientFault(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 400 && se.Status < 500
}
