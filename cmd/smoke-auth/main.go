// Command smoke-auth exercises the auth endpoints of a running API server
// end to end: signup, login, me, refresh and a role-gated write.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tokenData struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func main() {
	base := os.Getenv("IRIS_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	email := fmt.Sprintf("smoke-%d@example.com", rand.Int63())
	password := "SmokeTest123!"

	var signup tokenData
	mustCall(client, base+"/api/auth/signup", map[string]any{
		"email": email, "password": password,
		"firstName": "Smoke", "lastName": "Test",
	}, http.StatusCreated, &signup)
	if signup.Token == "" || signup.RefreshToken == "" {
		log.Fatal("signup returned empty tokens")
	}

	var login tokenData
	mustCall(client, base+"/api/auth/login", map[string]any{
		"email": email, "password": password,
	}, http.StatusOK, &login)

	me := authedGet(client, base+"/api/auth/me", login.Token)
	if me.StatusCode != http.StatusOK {
		log.Fatalf("me: unexpected status %d", me.StatusCode)
	}
	me.Body.Close()

	var refreshed tokenData
	mustCall(client, base+"/api/auth/refresh", map[string]any{
		"refreshToken": login.RefreshToken,
	}, http.StatusOK, &refreshed)

	// Tokens are stateless: the same refresh token works twice.
	mustCall(client, base+"/api/auth/refresh", map[string]any{
		"refreshToken": login.RefreshToken,
	}, http.StatusOK, nil)

	// A fresh signup only holds viewer; vehicle creation must be denied.
	resp := postJSON(client, base+"/api/vehicles", map[string]any{
		"vrn": fmt.Sprintf("SM%02d AAA", rand.Intn(100)), "name": "Smoke Van",
	}, refreshed.Token)
	if resp.StatusCode != http.StatusForbidden {
		log.Fatalf("vehicle create as viewer: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	fmt.Printf("auth smoke test passed: user=%s\n", signup.User.ID)
}

func postJSON(client *http.Client, url string, body map[string]any, token string) *http.Response {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func authedGet(client *http.Client, url, token string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("get %s: %v", url, err)
	}
	return resp
}

func mustCall(client *http.Client, url string, body map[string]any, wantStatus int, out *tokenData) {
	resp := postJSON(client, url, body, "")
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s: expected %d, got %d", url, wantStatus, resp.StatusCode)
	}
	if out == nil {
		return
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		log.Fatalf("decode %s: %v", url, err)
	}
	if !env.Success {
		log.Fatalf("%s: success=false (%s)", url, env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		log.Fatalf("decode data %s: %v", url, err)
	}
}
