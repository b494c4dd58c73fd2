// Package accessserver implements controlplane.Dialer over the access
// server's REST gateway.
package accessserver

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
	"sync"
	"time"

	"github.com/flemzord/idrsched/internal/controlplane"
)

const (
	defaultURLTemplate = "http://{host}:{port}"
	defaultTimeout     = 30 * time.Second
	closeTimeout       = 5 * time.Second
	maxErrorBody       = 4096
)

// Config configures the REST dialer.
type Config struct {
	// URLTemplate builds the gateway base URL. {host} and {port} are
	// replaced with the session parameters. Defaults to "http://{host}:{port}".
	URLTemplate string

	// HTTPClient is used for all requests. Defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout bounds each request when HTTPClient is nil. Defaults to 30s.
	Timeout time.Duration
}

// Dialer opens REST sessions against the access server gateway.
type Dialer struct {
	tmpl string
	http *http.Client
}

// Compile-time interface check.
var _ controlplane.Dialer = (*Dialer)(nil)

// NewDialer creates a Dialer.
func NewDialer(cfg Config) *Dialer {
	tmpl := cfg.URLTemplate
	if tmpl == "" {
		tmpl = defaultURLTemplate
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Dialer{tmpl: tmpl, http: hc}
}

// sessionRequest is the body of POST /api/v1/sessions.
type sessionRequest struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// sessionResponse is the reply to POST /api/v1/sessions.
type sessionResponse struct {
	Token string `json:"token"`
}

// statusResponse is the reply to GET .../status.
type statusResponse struct {
	Status string `json:"status"`
}

// apiError is the error body returned by the gateway.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Dial implements controlplane.Dialer.
func (d *Dialer) Dial(ctx context.Context, p controlplane.Params) (controlplane.Client, error) {
	base := strings.TrimRight(expandTemplate(d.tmpl, p), "/")
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("%w: invalid gateway url %q: %v", controlplane.ErrConnect, base, err)
	}

	body, err := json.Marshal(sessionRequest{
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding session request: %v", controlplane.ErrConnect, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", controlplane.ErrConnect, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s@%s as %s: %v", controlplane.ErrConnect, p.Host, p.Port, p.User, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: %s@%s as %s: %s",
			controlplane.ErrConnect, p.Host, p.Port, p.User, errorMessage(resp))
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decoding session: %v", controlplane.ErrConnect, err)
	}
	if sr.Token == "" {
		return nil, fmt.Errorf("%w: gateway returned an empty session token", controlplane.ErrConnect)
	}

	return &session{base: base, token: sr.Token, http: d.http}, nil
}

// session is one authenticated gateway session.
type session struct {
	base  string
	token string
	http  *http.Client

	closeOnce sync.Once
	closeErr  error
}

// Status implements controlplane.Client.
func (s *session) Status(ctx context.Context, dataStore, subscription string) (controlplane.Status, error) {
	resp, err := s.do(ctx, http.MethodGet, subscriptionPath(dataStore, subscription, "status"), "status of "+subscription)
	if err != nil {
		return controlplane.StatusUnknown, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return controlplane.StatusUnknown, fmt.Errorf("%w: %s on %s", controlplane.ErrSubscriptionNotFound, subscription, dataStore)
	default:
		return controlplane.StatusUnknown, fmt.Errorf("%w: status of %s: %s", controlplane.ErrOperation, subscription, errorMessage(resp))
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return controlplane.StatusUnknown, fmt.Errorf("%w: decoding status: %v", controlplane.ErrOperation, err)
	}
	return controlplane.ParseStatus(sr.Status), nil
}

// Start implements controlplane.Client.
func (s *session) Start(ctx context.Context, dataStore, subscription string) error {
	return s.post(ctx, dataStore, subscription, "start")
}

// Refresh implements controlplane.Client.
func (s *session) Refresh(ctx context.Context, dataStore, subscription string) error {
	return s.post(ctx, dataStore, subscription, "refresh")
}

// Close implements controlplane.Client. The session is deleted on the
// gateway once; later calls return the first result.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		resp, err := s.do(ctx, http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(s.token), "closing session")
		if err != nil {
			s.closeErr = err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
			s.closeErr = fmt.Errorf("%w: closing session: %s", controlplane.ErrOperation, errorMessage(resp))
		}
	})
	return s.closeErr
}

func (s *session) post(ctx context.Context, dataStore, subscription, action string) error {
	resp, err := s.do(ctx, http.MethodPost, subscriptionPath(dataStore, subscription, action), action+" "+subscription)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s on %s", controlplane.ErrSubscriptionNotFound, subscription, dataStore)
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s %s: %s", controlplane.ErrOperation, action, subscription, errorMessage(resp))
	}
	return nil
}

// do sends an authenticated request. Errors name only op: the request URL
// of a session delete carries the token.
func (s *session) do(ctx context.Context, method, path, op string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", controlplane.ErrOperation, op, stripURL(err))
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", controlplane.ErrOperation, op, stripURL(err))
	}
	return resp, nil
}

// stripURL drops the URL that net/http prepends to transport errors.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func subscriptionPath(dataStore, subscription, action string) string {
	return "/api/v1/datastores/" + url.PathEscape(dataStore) +
		"/subscriptions/" + url.PathEscape(subscription) + "/" + action
}

func expandTemplate(tmpl string, p controlplane.Params) string {
	r := strings.NewReplacer("{host}", p.Host, "{port}", p.Port)
	return r.Replace(tmpl)
}

// errorMessage extracts a readable message from an error response.
func errorMessage(resp *http.Response) string {
	var ae apiError
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &ae)
	}
	if ae.Error.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, ae.Error.Message)
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
