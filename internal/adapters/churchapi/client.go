// Package churchapi is the HTTP adapter for the church REST API.
package churchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/ports"
)

const (
	maxBodyBytes         = 8 << 20
	defaultTimeout       = 10 * time.Second
	invalidLoginFallback = "Invalid email or password."
)

// Config holds the API location and the JMESPath expressions used to read replies.
type Config struct {
	BaseURL    string
	LoginPath  string
	MePath     string
	LogoutPath string
	Timeout    time.Duration

	TokenExpr   string
	ProfileExpr string
	RoleExpr    string
	MessageExpr string
}

// Options bundles dependencies for New.
type Options struct {
	Config     Config
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements ports.Backend over HTTP.
type Client struct {
	base    *url.URL
	cfg     Config
	http    *http.Client
	extract extractor
	logger  *slog.Logger
}

var _ ports.Backend = (*Client)(nil)

// New validates the configuration and builds a Client.
func New(opts Options) (*Client, error) {
	cfg := opts.Config
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	ex, err := newExtractor(cfg.TokenExpr, cfg.ProfileExpr, cfg.RoleExpr, cfg.MessageExpr)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		cfg:     cfg,
		http:    httpClient,
		extract: ex,
		logger:  logger.With("component", "churchapi"),
	}, nil
}

// Login posts the credentials and extracts the token and profile from the reply.
func (c *Client) Login(ctx context.Context, email, password string) (ports.LoginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return ports.LoginResult{}, &domainauth.UnavailableError{Op: "login", Cause: err}
	}

	status, raw, err := c.roundTrip(ctx, http.MethodPost, c.cfg.LoginPath, nil, "", body)
	if err != nil {
		return ports.LoginResult{}, &domainauth.UnavailableError{Op: "login", Cause: err}
	}

	switch {
	case isCredentialRejection(status):
		msg := ""
		if doc, decodeErr := decode(raw); decodeErr == nil {
			msg = c.extract.message(doc)
		}
		if msg == "" {
			msg = invalidLoginFallback
		}
		return ports.LoginResult{}, &domainauth.InvalidCredentialsError{Message: msg}
	case status < 200 || status > 299:
		return ports.LoginResult{}, &domainauth.UnavailableError{Op: "login", Cause: fmt.Errorf("status %d", status)}
	}

	doc, err := decode(raw)
	if err != nil {
		return ports.LoginResult{}, &domainauth.UnavailableError{Op: "login", Cause: err}
	}
	token := c.extract.token(doc)
	if token == "" {
		return ports.LoginResult{}, &domainauth.UnavailableError{Op: "login", Cause: fmt.Errorf("%w: no token", errMalformed)}
	}
	profile, err := c.extract.profile(doc)
	if err != nil {
		return ports.LoginResult{}, &domainauth.UnavailableError{Op: "login", Cause: err}
	}

	return ports.LoginResult{Token: token, Profile: profile, ExpiresAt: tokenExpiry(token)}, nil
}

// WhoAmI validates token against the profile endpoint.
func (c *Client) WhoAmI(ctx context.Context, token string) (domainauth.Profile, error) {
	status, raw, err := c.roundTrip(ctx, http.MethodGet, c.cfg.MePath, nil, token, nil)
	if err != nil {
		return domainauth.Profile{}, &domainauth.UnavailableError{Op: "whoami", Cause: err}
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return domainauth.Profile{}, domainauth.ErrSessionExpired
	}
	if status < 200 || status > 299 {
		return domainauth.Profile{}, &domainauth.UnavailableError{Op: "whoami", Cause: fmt.Errorf("status %d", status)}
	}

	doc, err := decode(raw)
	if err != nil {
		return domainauth.Profile{}, &domainauth.UnavailableError{Op: "whoami", Cause: err}
	}
	profile, err := c.extract.profile(doc)
	if err != nil {
		return domainauth.Profile{}, &domainauth.UnavailableError{Op: "whoami", Cause: err}
	}
	return profile, nil
}

// Logout asks the API to revoke token.
func (c *Client) Logout(ctx context.Context, token string) error {
	if c.cfg.LogoutPath == "" {
		return nil
	}
	status, _, err := c.roundTrip(ctx, http.MethodPost, c.cfg.LogoutPath, nil, token, nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	// An already revoked token is as good as a revoked one.
	if status == http.StatusUnauthorized || (status >= 200 && status <= 299) {
		return nil
	}
	return fmt.Errorf("logout: status %d", status)
}

// Do forwards an authenticated request and returns the raw reply.
func (c *Client) Do(ctx context.Context, token string, req ports.BackendRequest) (ports.BackendResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := c.send(ctx, method, req.Path, req.Query, token, req.Body)
	if err != nil {
		return ports.BackendResponse{}, &domainauth.UnavailableError{Op: "forward", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return ports.BackendResponse{}, domainauth.ErrSessionExpired
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ports.BackendResponse{}, &domainauth.UnavailableError{Op: "forward", Cause: err}
	}
	return ports.BackendResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) roundTrip(
	ctx context.Context,
	method, path string,
	query url.Values,
	token string,
	body []byte,
) (int, []byte, error) {
	resp, err := c.send(ctx, method, path, query, token, body)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// send issues the request under the configured timeout. The caller closes the body.
// The timeout context is released when the body is closed.
func (c *Client) send(
	ctx context.Context,
	method, path string,
	query url.Values,
	token string,
	body []byte,
) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client(token).Do(req)
	if err != nil {
		cancel()
		c.logger.DebugContext(ctx, "backend request failed", "method", method, "path", path, "error", err)
		return nil, err
	}
	c.logger.DebugContext(ctx, "backend request",
		"method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// client returns the configured client, wrapped so token rides on every
// request as a bearer credential. The client's own transport stays underneath.
func (c *Client) client(token string) *http.Client {
	if token == "" {
		return c.http
	}
	hc := *c.http
	hc.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
			Expiry:      tokenExpiry(token),
		}),
		Base: c.http.Transport,
	}
	return &hc
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func isCredentialRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

func decode(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", errMalformed)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(errMalformed, err)
	}
	return doc, nil
}
