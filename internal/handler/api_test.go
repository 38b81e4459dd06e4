package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/waverly-store/internal/config"
	"github.com/prn-tf/waverly-store/internal/storefront"
)

// newTestServer spins up a router over a storefront backed by a temp
// directory.
func newTestServer(t *testing.T) (*httptest.Server, *storefront.Storefront) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:          "sqlite",
			Path:            filepath.Join(dir, "waverly.db"),
			JournalMode:     "WAL",
			BusyTimeout:     5000,
			CacheSize:       -2000,
			SynchronousMode: "NORMAL",
		},
		Session: config.SessionConfig{
			DurableBackend: "file",
			FilePath:       filepath.Join(dir, "session.json"),
		},
		Auth: config.AuthConfig{Hasher: "legacy"},
		Backup: config.BackupConfig{
			Sink: "file",
			Dir:  filepath.Join(dir, "exports"),
		},
	}

	sf := storefront.New(cfg, zerolog.Nop())
	require.NoError(t, sf.Open(context.Background()))
	t.Cleanup(func() { sf.Close() })

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Storefront: sf,
		Logger:     zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv, sf
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func registerViaAPI(t *testing.T, srv *httptest.Server) map[string]any {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", map[string]string{
		"email":    "anna@example.com",
		"password": "secret123",
		"name":     "Anna",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var identity map[string]any
	require.NoError(t, json.Unmarshal(body, &identity))
	return identity
}

func TestAPI_Health(t *testing.T) {
	srv, sf := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ready"}`, string(body))

	require.NoError(t, sf.Close())
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.JSONEq(t, `{"status":"closed"}`, string(body))
}

func TestAPI_RegisterAndSession(t *testing.T) {
	srv, _ := newTestServer(t)

	identity := registerViaAPI(t, srv)
	require.Equal(t, "anna@example.com", identity["email"])
	require.NotContains(t, identity, "password")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/auth/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &session))
	require.NotNil(t, session.User)
	require.Equal(t, identity["email"], session.User["email"])

	// Duplicate email conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", map[string]string{
		"email":    "anna@example.com",
		"password": "secret123",
		"name":     "Other",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Invalid payloads are rejected.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": "secret123",
		"name":     "Anna",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_LoginLogout(t *testing.T) {
	srv, _ := newTestServer(t)
	registerViaAPI(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email":    "anna@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email":    "anna@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestAPI_Orders(t *testing.T) {
	srv, _ := newTestServer(t)
	identity := registerViaAPI(t, srv)
	userID := int64(identity["id"].(float64))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"total": "$1,299.99",
		"items": []map[string]any{{"sku": "W-100", "qty": 1}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var order map[string]any
	require.NoError(t, json.Unmarshal(body, &order))
	require.Equal(t, "Pending", order["status"])
	require.Equal(t, 1299.99, order["total"])
	orderID := int64(order["id"].(float64))

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/users/%d/orders", srv.URL, userID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []map[string]any
	require.NoError(t, json.Unmarshal(body, &orders))
	require.Len(t, orders, 1)

	resp, body = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/orders/%d/status", srv.URL, orderID), map[string]string{
		"status": "Shipped",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &order))
	require.Equal(t, "Shipped", order["status"])

	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/orders/%d", srv.URL, orderID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/orders/%d", srv.URL, orderID), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_OrderRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{"total": 10})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Addresses(t *testing.T) {
	srv, _ := newTestServer(t)
	identity := registerViaAPI(t, srv)
	userID := int64(identity["id"].(float64))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/addresses", map[string]string{
		"label": "Home",
		"city":  "Riga",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var address map[string]any
	require.NoError(t, json.Unmarshal(body, &address))
	addressID := int64(address["id"].(float64))

	resp, body = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/addresses/%d", srv.URL, addressID), map[string]string{
		"city": "Tallinn",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &address))
	var fields map[string]any
	raw, err := json.Marshal(address["fields"])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, "Tallinn", fields["city"])
	require.Equal(t, "Home", fields["label"])

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/users/%d/addresses", srv.URL, userID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var addresses []map[string]any
	require.NoError(t, json.Unmarshal(body, &addresses))
	require.Len(t, addresses, 1)

	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/addresses/%d", srv.URL, addressID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_StatsAndExport(t *testing.T) {
	srv, _ := newTestServer(t)
	registerViaAPI(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{"total": 100.50})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(body, &stats))
	require.Equal(t, float64(1), stats["totalUsers"])
	require.Equal(t, float64(1), stats["totalOrders"])
	require.Equal(t, 100.50, stats["totalRevenue"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result map[string]any
	require.NoError(t, json.Unmarshal(body, &result))
	require.NotEmpty(t, result["snapshotId"])
	require.NotEmpty(t, result["location"])
}

func TestAPI_LocalState(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/local/language", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"language":"en"}`, string(body))

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/local/language", map[string]string{"language": "lv"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/local/language", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"language":"lv"}`, string(body))

	cart := []map[string]any{{"sku": "W-100", "qty": 2}}
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/local/cart", cart)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/local/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[{"sku":"W-100","qty":2}]`, string(body))
}

func TestAPI_InvalidIdentifiers(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/orders/abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/addresses/0", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ListUsers(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[]`, string(body))

	registerViaAPI(t, srv)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(body, &users))
	require.Len(t, users, 1)
	require.Equal(t, "anna@example.com", users[0]["email"])
	require.NotContains(t, users[0], "password")
}
