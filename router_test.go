package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/listing-sync/internal/app"
	"github.com/yourorg/listing-sync/internal/config"
	"github.com/yourorg/listing-sync/internal/tokenstore"
)

// upstream fakes the listing provider and the CRM in one server.
type upstream struct {
	contacts atomic.Int32
	tokens   atomic.Int32
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalResultCount": 2, "results": [
			{"zpid": 11, "streetAddress": "1 Main St", "city": "Austin", "state": "TX", "zipcode": "78701", "price": 400000},
			{"zpid": 12, "streetAddress": "2 Main St", "city": "Austin", "state": "TX", "zipcode": "78701", "price": 410000}
		]}`))
	})
	mux.HandleFunc("/propertyV2", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("zpid")
		_, _ = w.Write([]byte(`{"attributionInfo": {"agentName": "Agent ` + id + `", "agentPhoneNumber": "5125550100"},
			"data": {"address": {"streetAddress": "1 Main St", "city": "Austin", "state": "TX", "zipcode": "78701"}, "list_price": 400000}}`))
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		u.tokens.Add(1)
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","locationId":"loc-1","expires_in":3600}`))
	})
	mux.HandleFunc("/contacts/", func(w http.ResponseWriter, r *http.Request) {
		u.contacts.Add(1)
		_, _ = w.Write([]byte(`{"contact":{"id":"c-1"}}`))
	})
	return mux
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Env, *upstream) {
	t.Helper()
	up := &upstream{}
	upSrv := httptest.NewServer(up.handler())
	t.Cleanup(upSrv.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{RateLimitPerMinute: 1000, RequestTimeout: 5 * time.Second, PostConnectURL: "/connected"},
		Listings: config.ListingsConfig{BaseURL: upSrv.URL, Host: "zillow.example", APIKey: "k"},
		GHL: config.GHLConfig{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURI:  "http://localhost:4002/oauth/callback",
			AuthorizeURL: "https://marketplace.example/oauth/chooselocation",
			TokenURL:     upSrv.URL + "/oauth/token",
			ContactsURL:  upSrv.URL + "/contacts/",
			APIVersion:   "2021-07-28",
			Scopes:       []string{"contacts.write", "locations.readonly"},
		},
		Tokens: config.TokensConfig{Backend: "memory", KeyPrefix: "ghl_"},
	}
	env, err := app.Init(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(env.Close)

	srv := httptest.NewServer(BuildRouter(env, cfg.Server, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv, env, up
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func decode(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&m))
	return m
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp.Body)["ok"])
}

func TestSearchAndCurrent(t *testing.T) {
	srv, env, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/search", `{"location":"Austin","state":"TX"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp.Body)
	props := body["properties"].([]any)
	require.Len(t, props, 2)
	first := props[0].(map[string]any)
	assert.Equal(t, "11", first["id"])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.Finder.Wait(ctx))

	cur, err := http.Get(srv.URL + "/v1/search")
	require.NoError(t, err)
	defer cur.Body.Close()
	snap := decode(t, cur.Body)
	assert.EqualValues(t, 0, snap["pending"])
	agent := snap["properties"].([]any)[0].(map[string]any)["listingAgent"].(map[string]any)
	assert.Equal(t, "Agent 11", agent["name"])
}

func TestSearchValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/search", `{"location":"Austin"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_query", decode(t, resp.Body)["error"])

	bad, err := http.Get(srv.URL + "/v1/search?location=Austin&state=TX&beds=two")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestSearchViaQueryParams(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/v1/search?location=Austin&state=Texas&home_type=Condos,Townhomes&beds=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp.Body)
	q := body["query"].(map[string]any)
	assert.Equal(t, "TX", q["state"])
	assert.Equal(t, []any{"Condos", "Townhomes"}, q["homeType"])
}

func TestListingDetails(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/v1/listings/11")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prop := decode(t, resp.Body)["property"].(map[string]any)
	assert.Equal(t, "11", prop["id"])
	assert.Equal(t, "Agent 11", prop["listingAgent"].(map[string]any)["name"])
}

func TestExportRequiresAuthorization(t *testing.T) {
	srv, _, up := newTestServer(t)
	resp := postJSON(t, srv.URL+"/v1/search", `{"location":"Austin","state":"TX"}`)
	resp.Body.Close()

	one := postJSON(t, srv.URL+"/v1/export/11", ``)
	defer one.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, one.StatusCode)
	body := decode(t, one.Body)
	assert.Equal(t, "authorization_required", body["error"])
	assert.Contains(t, body["authorize_url"], "client_id=client")

	all := postJSON(t, srv.URL+"/v1/export", ``)
	defer all.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, all.StatusCode)
	assert.Len(t, decode(t, all.Body)["outcomes"], 2)

	assert.Equal(t, int32(0), up.contacts.Load())
}

func TestExportWithToken(t *testing.T) {
	srv, env, up := newTestServer(t)
	require.NoError(t, env.Tokens.Set(context.Background(), tokenstore.Bundle{
		AccessToken: "tok", LocationID: "loc-1", ExpiresAt: time.Now().Add(time.Hour),
	}))
	resp := postJSON(t, srv.URL+"/v1/search", `{"location":"Austin","state":"TX"}`)
	resp.Body.Close()

	one := postJSON(t, srv.URL+"/v1/export/11", ``)
	defer one.Body.Close()
	require.Equal(t, http.StatusOK, one.StatusCode)
	res := decode(t, one.Body)["result"].(map[string]any)
	assert.Equal(t, "c-1", res["contactId"])

	batch := postJSON(t, srv.URL+"/v1/export", `{"ids":["11","12"]}`)
	defer batch.Body.Close()
	require.Equal(t, http.StatusOK, batch.StatusCode)
	b := decode(t, batch.Body)
	assert.EqualValues(t, 2, b["succeeded"])
	assert.Equal(t, int32(3), up.contacts.Load())

	missing := postJSON(t, srv.URL+"/v1/export/999", ``)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestOAuthConnect(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := noRedirect().Get(srv.URL + "/v1/ghl/connect")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "https://marketplace.example/oauth/chooselocation?"))

	js, err := http.Get(srv.URL + "/v1/ghl/connect?redirect=false")
	require.NoError(t, err)
	defer js.Body.Close()
	assert.Contains(t, decode(t, js.Body)["authorize_url"], "response_type=code")
}

func TestOAuthCallbackStoresTokenAndRedirectsOnce(t *testing.T) {
	srv, env, up := newTestServer(t)
	resp, err := noRedirect().Get(srv.URL + "/oauth/callback?code=good-code")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/connected", resp.Header.Get("Location"))
	assert.Equal(t, int32(1), up.tokens.Load())

	b, ok, err := env.Tokens.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "loc-1", b.LocationID)

	st, err := http.Get(srv.URL + "/v1/ghl/status")
	require.NoError(t, err)
	defer st.Body.Close()
	status := decode(t, st.Body)
	assert.Equal(t, true, status["connected"])
	assert.Equal(t, "loc-1", status["location_id"])

	dc := postJSON(t, srv.URL+"/v1/ghl/disconnect", ``)
	defer dc.Body.Close()
	assert.Equal(t, http.StatusOK, dc.StatusCode)
	assert.False(t, env.Tokens.IsValid(context.Background()))
}

func TestOAuthCallbackFailuresLeaveStoreUntouched(t *testing.T) {
	srv, env, up := newTestServer(t)

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"missing code", "", http.StatusBadRequest, "missing_code"},
		{"provider denied", "?error=access_denied", http.StatusBadRequest, "authorization_denied"},
		{"rejected code", "?code=stale", http.StatusBadGateway, "exchange_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := noRedirect().Get(srv.URL + "/oauth/callback" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode(t, resp.Body)["error"])
			_, ok, err := env.Tokens.Get(context.Background())
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
	assert.Equal(t, int32(1), up.tokens.Load(), "only the rejected code reached the provider")
}

func TestStatusClearsExpiredBundle(t *testing.T) {
	srv, env, _ := newTestServer(t)
	require.NoError(t, env.Tokens.Set(context.Background(), tokenstore.Bundle{
		AccessToken: "tok", LocationID: "loc", ExpiresAt: time.Now().Add(-time.Second),
	}))
	resp, err := http.Get(srv.URL + "/v1/ghl/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := decode(t, resp.Body)
	assert.Equal(t, false, body["connected"])
	assert.Equal(t, true, body["expired"])

	_, ok, err := env.Tokens.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchEventsStream(t *testing.T) {
	srv, _, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/search/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	assert.Equal(t, "event: snapshot", sc.Text())

	search := postJSON(t, srv.URL+"/v1/search", `{"location":"Austin","state":"TX"}`)
	search.Body.Close()

	var agents []string
	for len(agents) < 2 && sc.Scan() {
		line := sc.Text()
		if line == "event: agent" {
			require.True(t, sc.Scan())
			var evt struct {
				ListingID string `json:"listingId"`
			}
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(sc.Text(), "data: ")), &evt))
			agents = append(agents, evt.ListingID)
		}
	}
	assert.Equal(t, []string{"11", "12"}, agents)
}
