package dss_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"chainexpand/internal/dss"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const secret = "s3cr3t-pa55"

func TestRequestToken(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodPost, req.Method)
			require.Equal(t, dss.DefaultAuthURL, req.URL.String())
			require.Equal(t, "respond-async", req.Header.Get("Prefer"))
			require.Equal(t, "application/json; odata.metadata=minimal", req.Header.Get("Content-Type"))

			var body map[string]map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			require.Equal(t, map[string]map[string]string{
				"Credentials": {"Username": "alice", "Password": secret},
			}, body)

			return jsonResponse(t, http.StatusOK, map[string]any{"value": "tok123"}), nil
		}).
		Times(1)

	// Arrange: setup a new DSS client
	client, err := dss.NewClient(dss.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: call RequestToken
	token, err := client.RequestToken(t.Context(), dss.Credentials{Username: "alice", Password: secret})

	// Assert: the token is returned verbatim
	require.NoError(t, err)
	require.Equal(t, dss.Token("tok123"), token)
}

func TestRequestToken_ErrMissingCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		creds dss.Credentials
	}{
		{name: "no username", creds: dss.Credentials{Password: secret}},
		{name: "no password", creds: dss.Credentials{Username: "alice"}},
		{name: "neither", creds: dss.Credentials{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange: a client that must never be called
			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().Do(gomock.Any()).Times(0)

			client, err := dss.NewClient(dss.WithHTTPClient(httpClient))
			require.NoError(t, err)

			// Act: call RequestToken
			token, err := client.RequestToken(t.Context(), tt.creds)

			// Assert: rejected before any request
			require.ErrorIs(t, err, dss.ErrMissingCredentials)
			require.Empty(t, token)
		})
	}
}

func TestRequestToken_AuthError(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client answering 401
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return textResponse(http.StatusUnauthorized, `{"error":{"message":"Invalid username or password"}}`), nil
		}).
		Times(1)

	// Arrange: setup a new DSS client
	client, err := dss.NewClient(dss.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: call RequestToken
	token, err := client.RequestToken(t.Context(), dss.Credentials{Username: "alice", Password: secret})

	// Assert: an AuthError carrying the status and pretty-printed body
	require.Empty(t, token)
	var authErr *dss.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	require.Equal(t, "{\n    \"error\": {\n        \"message\": \"Invalid username or password\"\n    }\n}", authErr.Body)
	require.Contains(t, err.Error(), "401")
	require.NotContains(t, err.Error(), secret)
}

func TestRequestToken_AuthErrorNonJSONBody(t *testing.T) {
	t.Parallel()

	// Arrange: a gateway error page instead of JSON
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(textResponse(http.StatusBadGateway, "<html>bad gateway</html>"), nil).
		Times(1)

	client, err := dss.NewClient(dss.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: call RequestToken
	_, err = client.RequestToken(t.Context(), dss.Credentials{Username: "alice", Password: secret})

	// Assert: the raw body is kept
	var authErr *dss.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusBadGateway, authErr.StatusCode)
	require.Equal(t, "<html>bad gateway</html>", authErr.Body)
}

func TestRequestToken_ErrEmptyToken(t *testing.T) {
	t.Parallel()

	// Arrange: a 200 without a token
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusOK, map[string]any{"value": ""}), nil
		}).
		Times(1)

	client, err := dss.NewClient(dss.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: call RequestToken
	token, err := client.RequestToken(t.Context(), dss.Credentials{Username: "alice", Password: secret})

	// Assert: an empty token is a hard failure
	require.ErrorIs(t, err, dss.ErrEmptyToken)
	require.Empty(t, token)
}

func TestRequestToken_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	// Arrange: a transport failure
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("error")
		}).
		Times(1)

	client, err := dss.NewClient(dss.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: call RequestToken
	token, err := client.RequestToken(t.Context(), dss.Credentials{Username: "alice", Password: secret})

	// Assert: the transport error surfaces and is not an AuthError
	require.Error(t, err)
	require.Empty(t, token)
	var authErr *dss.AuthError
	require.False(t, errors.As(err, &authErr))
}

func TestRequestToken_ErrDecodingResponse(t *testing.T) {
	t.Parallel()

	// Arrange: a malformed 200 body
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(textResponse(http.StatusOK, "{not json"), nil).
		Times(1)

	client, err := dss.NewClient(dss.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: call RequestToken
	token, err := client.RequestToken(t.Context(), dss.Credentials{Username: "alice", Password: secret})

	// Assert
	require.ErrorContains(t, err, "decoding token response")
	require.Empty(t, token)
}

func TestRequestToken_PasswordNeverLogged(t *testing.T) {
	t.Parallel()

	// Arrange: capture every log entry down to debug
	core, logs := observer.New(zapcore.DebugLevel)

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusOK, map[string]any{"value": "tok123"}), nil
		}).
		Times(1)

	client, err := dss.NewClient(dss.WithHTTPClient(httpClient), dss.WithLogger(zap.New(core)))
	require.NoError(t, err)

	// Act: call RequestToken
	_, err = client.RequestToken(t.Context(), dss.Credentials{Username: "alice", Password: secret})
	require.NoError(t, err)

	// Assert: neither the password nor the token appear in any field
	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		require.NotContains(t, entry.Message, secret)
		for key, value := range entry.ContextMap() {
			rendered := fmt.Sprint(value)
			require.NotContainsf(t, rendered, secret, "field %s leaks the password", key)
			require.NotContainsf(t, rendered, "tok123", "field %s leaks the token", key)
		}
	}
}

func TestCredentials_Redacted(t *testing.T) {
	t.Parallel()

	creds := dss.Credentials{Username: "alice", Password: secret}

	require.NotContains(t, fmt.Sprint(creds), secret)
	require.NotContains(t, fmt.Sprintf("%v", creds), secret)
	require.NotContains(t, fmt.Sprintf("%+v", creds), secret)
	require.NotContains(t, fmt.Sprintf("%#v", creds), secret)
	require.Contains(t, fmt.Sprint(creds), "alice")
}
