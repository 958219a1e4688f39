package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/config"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DataDir = t.TempDir()
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.Env = "test"
	return c
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(common.TokenHeaderName, token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestApp_ServesAccountLifecycleOverHTTP(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)

	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	status, _ := call(t, srv, http.MethodPost, "/accounts", "", map[string]any{
		"firstName": "Ada", "lastName": "Lovelace", "phone": "5551234567",
		"password": "hunter2", "tosAgreement": true,
	})
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, srv, http.MethodPost, "/tokens", "", map[string]any{"phone": "5551234567", "password": "hunter2"})
	require.Equal(t, http.StatusOK, status)
	var tok models.Token
	require.NoError(t, json.Unmarshal(body, &tok))

	status, body = call(t, srv, http.MethodPost, "/checks", tok.ID, map[string]any{
		"protocol": "https", "url": "example.com", "method": "get",
		"successCodes": []int{200}, "timeoutSeconds": 1,
	})
	require.Equal(t, http.StatusOK, status)
	var check models.Check
	require.NoError(t, json.Unmarshal(body, &check))

	status, body = call(t, srv, http.MethodGet, "/accounts?phone=5551234567", tok.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), "hashedPassword")
	assert.Contains(t, string(body), check.ID)

	status, body = call(t, srv, http.MethodGet, "/accounts?phone=5551234567", "", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, string(body), `"Error"`)

	status, _ = call(t, srv, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	app.reconcile(context.Background())
	status, body = call(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "pulsekeeper_reconcile_orphaned_checks 0")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	c := testConfig(t)
	c.ReconcileSchedule = "@every 1h"
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_RunRejectsBadSchedule(t *testing.T) {
	c := testConfig(t)
	c.ReconcileSchedule = "every now and then"
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	err = app.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid reconcile schedule"))
}

func TestNewApp_UnknownBackend(t *testing.T) {
	c := testConfig(t)
	c.StoreBackend = "tape"

	_, err := NewApp(context.Background(), c)
	assert.ErrorContains(t, err, `unknown store backend "tape"`)
}
