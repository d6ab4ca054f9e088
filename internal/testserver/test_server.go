// Package testserver boots the full ledger stack on an httptest server.
package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sonetyo/ledger/internal/domain/activity"
	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/events"
	"github.com/sonetyo/ledger/internal/mcp"
	"github.com/sonetyo/ledger/internal/metrics"
	"github.com/sonetyo/ledger/internal/sqlite"
	"github.com/sonetyo/ledger/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Registry *ledger.Registry
	Outbox   *events.Outbox
	Metrics  *metrics.Metrics

	keys   *sqlite.APIKeyRepository
	nextID int
}

func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	m := metrics.New()
	outbox := events.New(0, m, nil)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	outbox.Subscribe(activitySvc)

	registry := ledger.NewRegistry(ledger.Config{
		Store:  sqlite.NewLedgerRepository(db),
		Events: outbox,
	})
	require.NoError(t, registry.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = outbox.Run(ctx)
	}()

	keys := sqlite.NewAPIKeyRepository(db)
	handler := mcp.NewHandler(registry, activitySvc, m)
	mcpServer := mcp.NewServer(mcp.Config{
		Handler:       handler,
		Resolver:      keys,
		AuthEnabled:   true,
		TransportMode: "http",
	})

	server := httptest.NewServer(transport.NewServer(transport.Options{
		Handler: handler,
		Auth:    transport.AuthMiddleware(keys),
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer },
			nil,
		),
		Metrics: m.Handler(),
	}))

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Registry: registry,
		Outbox:   outbox,
		Metrics:  m,
		keys:     keys,
	}

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
		_ = db.Close()
	})

	return ts
}

// AddAPIKey lets token act as identity.
func (ts *TestServer) AddAPIKey(t *testing.T, token string, identity ledger.Identity) {
	t.Helper()
	require.NoError(t, ts.keys.AddAPIKey(context.Background(), token, identity, "test"))
}

// Call sends one JSON-RPC request with token as the bearer credential.
func (ts *TestServer) Call(t *testing.T, token, method string, params any) transport.Response {
	t.Helper()

	ts.nextID++
	payload := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      ts.nextID,
	}
	if params != nil {
		payload["params"] = params
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out transport.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// Result calls method and decodes a successful result into out.
func (ts *TestServer) Result(t *testing.T, token, method string, params, out any) {
	t.Helper()
	resp := ts.Call(t, token, method, params)
	require.Nil(t, resp.Error, "%s failed: %+v", method, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// ErrorCode calls method and returns the domain error code it failed with.
func (ts *TestServer) ErrorCode(t *testing.T, token, method string, params any) string {
	t.Helper()
	resp := ts.Call(t, token, method, params)
	require.NotNil(t, resp.Error, "%s unexpectedly succeeded", method)
	require.Equal(t, transport.ErrDomain, resp.Error.Code)
	data, ok := resp.Error.Data.(map[string]any)
	require.True(t, ok)
	code, _ := data["code"].(string)
	return code
}

// WaitForEvents blocks until the outbox has delivered everything queued.
func (ts *TestServer) WaitForEvents(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return ts.Outbox.Pending() == 0 }, 5*time.Second, 10*time.Millisecond)
}
