// Package obeclient is the HTTP client of the OBE REST API. It attaches the session's bearer
// token, refreshes it once on a 401 and turns error responses into core errors.
package obeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/assessment"
	"github.com/trezcool/masomo-obe/core/outcome"
	"github.com/trezcool/masomo-obe/core/session"
)

const (
	tokenPath   = "token/"
	refreshPath = "token/refresh/"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

type Client struct {
	base   *url.URL
	http   *http.Client
	sess   *session.Session
	logger core.Logger

	refreshMu sync.Mutex
}

// New returns a client of the API rooted at baseURL (e.g. "http://localhost:8000/api").
func New(baseURL string, httpClient *http.Client, sess *session.Session, logger core.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing base URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base URL %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient, sess: sess, logger: logger}, nil
}

// NewFromConfig builds a client from the client section of conf.
func NewFromConfig(conf *core.Config, sess *session.Session, logger core.Logger) (*Client, error) {
	return New(conf.Client.BaseURL, &http.Client{Timeout: conf.Client.Timeout}, sess, logger)
}

func (c *Client) Session() *session.Session { return c.sess }

type tokenResponse struct {
	Access    string          `json:"access"`
	Refresh   string          `json:"refresh"`
	ExpiresIn int64           `json:"expires_in"`
	User      session.Profile `json:"user"`
}

func expiry(expiresIn int64) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// Login obtains a token pair and begins the session.
func (c *Client) Login(ctx context.Context, username, password string) (session.Profile, error) {
	var tr tokenResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.send(ctx, http.MethodPost, tokenPath, nil, body, &tr, false); err != nil {
		return session.Profile{}, err
	}
	if tr.Access == "" {
		return session.Profile{}, &core.TransportError{Method: http.MethodPost, Path: tokenPath, StatusCode: http.StatusOK, Err: core.ErrMalformedResponse}
	}
	c.sess.Begin(tr.User, &oauth2.Token{
		AccessToken:  tr.Access,
		RefreshToken: tr.Refresh,
		TokenType:    "Bearer",
		Expiry:       expiry(tr.ExpiresIn),
	})
	return tr.User, nil
}

// Logout ends the session. The tokens simply expire server side.
func (c *Client) Logout() { c.sess.End() }

// refresh exchanges the refresh token for a new access token, unless another request already did.
func (c *Client) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	tok := c.sess.Token()
	if tok == nil {
		return core.ErrSessionExpired
	}
	if tok.AccessToken != stale && tok.Valid() {
		return nil
	}
	if tok.RefreshToken == "" {
		return core.ErrSessionExpired
	}

	var tr tokenResponse
	if err := c.send(ctx, http.MethodPost, refreshPath, nil, map[string]string{"refresh": tok.RefreshToken}, &tr, false); err != nil {
		return err
	}
	if tr.Access == "" || !c.sess.SetAccessToken(tr.Access, expiry(tr.ExpiresIn)) {
		return core.ErrSessionExpired
	}
	return nil
}

// expire ends the session after the token was rejected and could not be refreshed.
func (c *Client) expire(method, path string, cause error) error {
	c.logger.Warn(fmt.Sprintf("%s %s: session expired", method, path), cause)
	c.sess.End()
	return &core.TransportError{Method: method, Path: path, StatusCode: http.StatusUnauthorized, Err: core.ErrSessionExpired}
}

// do sends an authenticated request. The access token is refreshed ahead of time once expired
// and once more when the server rejects it; the session ends if that fails.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	tok := c.sess.Token()
	if tok == nil || tok.AccessToken == "" {
		return &core.TransportError{Method: method, Path: path, StatusCode: http.StatusUnauthorized, Err: core.ErrSessionExpired}
	}
	if !tok.Valid() {
		if err := c.refresh(ctx, tok.AccessToken); err != nil {
			return c.expire(method, path, err)
		}
		if tok = c.sess.Token(); tok == nil {
			return c.expire(method, path, core.ErrSessionExpired)
		}
	}

	err := c.send(ctx, method, path, query, in, out, true)
	var tErr *core.TransportError
	if !errors.As(err, &tErr) || tErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	if rErr := c.refresh(ctx, tok.AccessToken); rErr != nil {
		return c.expire(method, path, rErr)
	}
	err = c.send(ctx, method, path, query, in, out, true)
	if errors.As(err, &tErr) && tErr.StatusCode == http.StatusUnauthorized {
		return c.expire(method, path, err)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, in, out interface{}, auth bool) error {
	u := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if tok := c.sess.Token(); tok != nil {
			tok.SetAuthHeader(req)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Error(fmt.Sprintf("%s %s: request failed", method, u.Path), err)
		return &core.TransportError{Method: method, Path: u.Path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return c.decodeError(req, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.TransportError{Method: method, Path: u.Path, StatusCode: resp.StatusCode, Err: errors.Wrap(core.ErrMalformedResponse, err.Error())}
	}
	return nil
}

// decodeError maps an error response:
// 400 field errors (DRF style strings or lists) to *core.ValidationError, unique pair errors and
// 409 to conflicts, 404 to core.ErrNotFound and anything else to a *core.TransportError.
// A 400 carrying only an "error" or "detail" message is not about a field: it becomes
// assessment.ErrGradingBlocked when grading is blocked, and a field-less validation error otherwise.
func (c *Client) decodeError(req *http.Request, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	tErr := &core.TransportError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if msg, ok := soleMessage(data); ok {
			if strings.HasPrefix(msg, assessment.ErrGradingBlocked.Error()) {
				return &remoteError{msg: msg, kind: assessment.ErrGradingBlocked}
			}
			return core.NewValidationError(errors.New(msg))
		}
		fields, ok := decodeFields(data)
		if !ok {
			tErr.Err = core.ErrMalformedResponse
			return tErr
		}
		if msg, ok := fields["non_field_errors"]; ok && isUniqueMessage(msg) {
			return outcome.ErrMappingExists
		}
		return fieldsError(fields)
	case http.StatusConflict:
		msg := errorMessage(data)
		if msg == "" || msg == outcome.ErrMappingExists.Error() || isUniqueMessage(msg) {
			return outcome.ErrMappingExists
		}
		return core.NewConflictError(msg)
	case http.StatusNotFound:
		return core.NewNotFoundError(req.URL.Path)
	}

	if msg := errorMessage(data); msg != "" {
		tErr.Err = errors.New(msg)
	}
	if resp.StatusCode >= 500 {
		c.logger.Error(fmt.Sprintf("%s %s: server error", req.Method, req.URL.Path), tErr)
	}
	return tErr
}

// remoteError keeps the server's message while matching a local sentinel.
type remoteError struct {
	msg  string
	kind error
}

func (err *remoteError) Error() string { return err.msg }

func (err *remoteError) Unwrap() error { return err.kind }

// soleMessage reads {"error": "msg"} and {"detail": "msg"} bodies.
func soleMessage(data []byte) (string, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) != 1 {
		return "", false
	}
	for _, key := range []string{"error", "detail"} {
		if value, ok := raw[key]; ok {
			var msg string
			if err := json.Unmarshal(value, &msg); err != nil {
				return "", false
			}
			return msg, true
		}
	}
	return "", false
}

func isUniqueMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "unique") || strings.Contains(msg, "already exists")
}

// decodeFields reads {"field": "msg"} and {"field": ["msg", ...]} bodies.
func decodeFields(data []byte) (map[string]string, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false
	}
	fields := make(map[string]string, len(raw))
	for name, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			fields[name] = s
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			fields[name] = strings.Join(list, " ")
			continue
		}
		fields[name] = string(value)
	}
	return fields, true
}

func fieldsError(fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	flds := make([]core.FieldError, 0, len(fields))
	for _, name := range names {
		flds = append(flds, core.FieldError{Field: name, Error: fields[name]})
	}
	return core.NewValidationError(nil, flds...)
}

// errorMessage extracts the message of {"error": ...} or {"detail": ...} bodies.
func errorMessage(data []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Detail
}
