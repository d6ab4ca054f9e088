package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/mcp"
	"github.com/stretchr/testify/require"
)

type testHandler struct {
	method string
	caller ledger.Identity
	err    error
}

func (h *testHandler) Handle(_ context.Context, caller ledger.Identity, method string, _ json.RawMessage) (any, error) {
	h.method = method
	h.caller = caller
	if h.err != nil {
		return nil, h.err
	}
	return map[string]string{"identity": caller.String()}, nil
}

type staticResolver struct {
	identity ledger.Identity
}

func (r *staticResolver) ResolveIdentity(_ context.Context, token string) (ledger.Identity, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	return r.identity, nil
}

func postRPC(t *testing.T, url, body string) (*http.Response, Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/rpc", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var out Response
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHTTPServer_RPC(t *testing.T) {
	handler := &testHandler{}
	server := httptest.NewServer(NewServer(Options{
		Handler: handler,
		Auth:    AuthMiddleware(&staticResolver{identity: "alice"}),
	}))
	t.Cleanup(server.Close)

	resp, out := postRPC(t, server.URL, `{"jsonrpc":"2.0","method":"total_records","id":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	require.Nil(t, out.Error)
	require.Equal(t, "total_records", handler.method)
	require.Equal(t, ledger.Identity("alice"), handler.caller)
}

func TestHTTPServer_RPCRequiresAuth(t *testing.T) {
	server := httptest.NewServer(NewServer(Options{
		Handler: &testHandler{},
		Auth:    AuthMiddleware(&staticResolver{identity: "alice"}),
	}))
	t.Cleanup(server.Close)

	resp, err := http.Post(server.URL+"/rpc", "application/json", bytes.NewBufferString(`{"jsonrpc":"2.0","method":"whoami","id":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPServer_ErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		body     string
		wantCode int
		wantData string
	}{
		{"domain", &mcp.APIError{Code: "NOT_OWNER", Message: "caller does not hold the record"}, "", ErrDomain, "NOT_OWNER"},
		{"invalid params", mcp.ErrInvalidParams, "", ErrInvalidParams, ""},
		{"unknown method", mcp.ErrUnknownMethod, "", ErrMethodNotFound, ""},
		{"internal", errors.New("boom"), "", ErrInternal, ""},
		{"parse", nil, `{"jsonrpc":`, ErrParseCode, ""},
		{"invalid request", nil, `{"jsonrpc":"1.0","method":"x","id":1}`, ErrInvalidReq, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(NewServer(Options{Handler: &testHandler{err: tt.err}}))
			t.Cleanup(server.Close)

			body := tt.body
			if body == "" {
				body = `{"jsonrpc":"2.0","method":"transfer","id":7}`
			}
			resp, out := postRPC(t, server.URL, body)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.NotNil(t, out.Error)
			require.Equal(t, tt.wantCode, out.Error.Code)
			if tt.wantData != "" {
				data, ok := out.Error.Data.(map[string]any)
				require.True(t, ok)
				require.Equal(t, tt.wantData, data["code"])
			}
		})
	}
}

func TestHTTPServer_HandlerUnauthorized(t *testing.T) {
	server := httptest.NewServer(NewServer(Options{Handler: &testHandler{err: mcp.ErrUnauthorized}}))
	t.Cleanup(server.Close)

	resp, _ := postRPC(t, server.URL, `{"jsonrpc":"2.0","method":"whoami","id":1}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPServer_Health(t *testing.T) {
	server := httptest.NewServer(NewServer(Options{Handler: &testHandler{}}))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer_Metrics(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	server := httptest.NewServer(NewServer(Options{Handler: &testHandler{}, Metrics: metricsHandler}))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bare := httptest.NewServer(NewServer(Options{Handler: &testHandler{}}))
	t.Cleanup(bare.Close)
	resp, err = http.Get(bare.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
