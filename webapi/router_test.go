package webapi

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/device"
	"github.com/industrialgo/cipstack/server"
)

func testRouter(t *testing.T) (http.Handler, *server.Server) {
	t.Helper()
	dev := device.New(device.Config{
		Identity: device.DefaultIdentity(),
		Network:  device.NetworkConfig{IP: net.ParseIP("127.0.0.1")},
	})
	dev.Tags.Declare("Speed", cip.TypeDINT, 1)
	srv := server.New(dev, dev)
	return NewRouter(srv, Config{AdminToken: "secret"}), srv
}

func TestHandleSnapshotReturnsSessionsAndTags(t *testing.T) {
	router, _ := testRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var snap server.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	require.True(t, snap.Enabled, "expected a freshly built server to be enabled")
	require.Equal(t, 0, snap.Sessions, "expected no sessions before any client connects")
	require.Equal(t, []string{"Speed"}, snap.Tags)
}

func TestHandleGetTagUnknownReturns404(t *testing.T) {
	router, _ := testRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tags/DoesNotExist", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminEndpointsRequireSession(t *testing.T) {
	router, _ := testRouter(t)
	body, _ := json.Marshal(map[string]bool{"enabled": false})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/enabled", bytes.NewReader(body)))
	require.Equal(t, http.StatusForbidden, rr.Code, "expected 403 without an admin session")
}

func TestAdminLoginThenSetEnabled(t *testing.T) {
	router, srv := testRouter(t)

	loginBody, _ := json.Marshal(map[string]string{"token": "secret"})
	loginReq := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(loginBody))
	loginRR := httptest.NewRecorder()
	router.ServeHTTP(loginRR, loginReq)
	require.Equal(t, http.StatusOK, loginRR.Code)

	cookies := loginRR.Result().Cookies()
	require.NotEmpty(t, cookies, "expected a session cookie to be set on login")

	body, _ := json.Marshal(map[string]bool{"enabled": false})
	req := httptest.NewRequest(http.MethodPost, "/admin/enabled", bytes.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, "expected 200 with a valid admin session")
	require.False(t, srv.Faults.Enabled(), "expected the server to be disabled after the admin call")
}

func TestAdminLoginRejectsWrongToken(t *testing.T) {
	router, _ := testRouter(t)
	body, _ := json.Marshal(map[string]string{"token": "not-the-token"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
