package dss

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// ErrMissingCredentials is returned when the username or password is empty.
	ErrMissingCredentials = errors.New("dss: username and password are required")
	// ErrEmptyToken is returned when a token is empty, either as issued by the
	// server or as handed to ExpandChain.
	ErrEmptyToken = errors.New("dss: empty authentication token")
)

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 64 << 10

// Credentials is a DSS username/password pair.
// The password never appears in its string or log encodings.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) String() string {
	return fmt.Sprintf("{Username:%s Password:[REDACTED]}", c.Username)
}

func (c Credentials) GoString() string {
	return fmt.Sprintf("dss.Credentials{Username:%q, Password:\"[REDACTED]\"}", c.Username)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (c Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("username", c.Username)
	return nil
}

// Token identifies an authenticated DSS session. Its server-side expiry is
// not tracked.
type Token string

// AuthError is returned when the token endpoint answers with a non-200 status.
type AuthError struct {
	StatusCode int
	// Body is the response body, pretty-printed when it is JSON.
	Body string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication error status code: %d message: %s", e.StatusCode, e.Body)
}

type authRequest struct {
	Credentials struct {
		Username string `json:"Username"`
		Password string `json:"Password"`
	} `json:"Credentials"`
}

type authResponse struct {
	Value string `json:"value"`
}

// RequestToken exchanges credentials for a session token.
func (c *Client) RequestToken(ctx context.Context, creds Credentials) (Token, error) {
	if creds.Username == "" || creds.Password == "" {
		return "", ErrMissingCredentials
	}

	var payload authRequest
	payload.Credentials.Username = creds.Username
	payload.Credentials.Password = creds.Password
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.newRequestHeader("respond-async")

	c.logger.Info("sending login request", zap.String("url", c.authURL), zap.Object("credentials", creds))
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return "", &AuthError{StatusCode: res.StatusCode, Body: prettyJSON(b)}
	}

	var out authResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if out.Value == "" {
		return "", ErrEmptyToken
	}

	c.logger.Debug("token issued", zap.Int("token_length", len(out.Value)))
	return Token(out.Value), nil
}

// prettyJSON indents b when it holds JSON and returns it untouched otherwise.
func prettyJSON(b []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(b), "", "    "); err != nil {
		return string(b)
	}
	return buf.String()
}
