package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"irisfleet.io/internal/auth"
	"irisfleet.io/internal/fleet"
)

type apiClient struct {
	baseURL  string
	client   *http.Client
	t        *testing.T
	authSvc  *auth.Service
	store    *auth.MemStore
	fleetSvc *fleet.InMemory
}

type testEnvelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []apiError      `json:"errors"`
	Pagination *pagination     `json:"pagination"`
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := auth.NewMemStore()
	codec, err := auth.NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	authSvc, err := auth.NewService(store, codec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	fleetSvc := fleet.NewInMemory()

	api := New(ReadyProbe{}, "test", authSvc, fleetSvc, Options{
		RateBurst:  1000,
		RatePerSec: 1000,
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL:  srv.URL,
		client:   srv.Client(),
		t:        t,
		authSvc:  authSvc,
		store:    store,
		fleetSvc: fleetSvc,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// signupUser registers a user through the API, optionally grants extra
// roles directly, and returns the access token plus the user id.
func (c *apiClient) signupUser(email string, roles ...auth.Role) (token, userID string) {
	c.t.Helper()
	resp := c.post("/api/auth/signup", map[string]any{
		"email": email, "password": "Passw0rd!", "firstName": "Test", "lastName": "User",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("signup status: %d", resp.StatusCode)
	}
	env := decodeEnvelope(c.t, resp)

	var data struct {
		User  userPayload `json:"user"`
		Token string      `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		c.t.Fatalf("decode signup data: %v", err)
	}
	for _, role := range roles {
		if err := c.authSvc.GrantRole(context.Background(), data.User.ID, role); err != nil {
			c.t.Fatalf("grant role: %v", err)
		}
	}
	return data.Token, data.User.ID
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeEnvelope(t *testing.T, r *http.Response) testEnvelope {
	t.Helper()
	defer r.Body.Close()
	var env testEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestHealthz(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/healthz", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadyzWithoutDB(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/readyz", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status: %d", resp.StatusCode)
	}
}

func TestUnknownPathReturnsEnvelope(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	env := decodeEnvelope(t, resp)
	if env.Success {
		t.Fatalf("expected success=false")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/healthz", nil, map[string]string{"X-Request-ID": "given-id"})
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "given-id" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	resp = c.get("/healthz", nil, nil)
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected generated request id")
	}
}
