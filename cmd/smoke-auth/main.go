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

// Exercises the credential lifecycle against a running gurukul-api:
// register, login, me, refresh, and rejection of the rotated-out
// refresh token.
func main() {
	base := os.Getenv("GURUKUL_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 10 * time.Second}

	identity := fmt.Sprintf("smoke-%d@example.com", rand.Int())
	password := "smoke-test-password"

	var registered struct {
		ID             string `json:"id"`
		ApprovalStatus string `json:"approval_status"`
	}
	status := post(client, base+"/v1/auth/register", "", map[string]any{
		"kind": "student", "identity": identity, "password": password,
	}, &registered)
	if status != http.StatusCreated {
		log.Fatalf("register: status %d", status)
	}
	if registered.ApprovalStatus != "pending" {
		log.Fatalf("register: expected pending approval, got %q", registered.ApprovalStatus)
	}

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	status = post(client, base+"/v1/auth/login", "", map[string]any{
		"kind": "student", "identity": identity, "password": password,
	}, &pair)
	if status != http.StatusOK {
		log.Fatalf("login: status %d", status)
	}

	var me struct {
		ID       string `json:"id"`
		Identity string `json:"identity"`
	}
	status = get(client, base+"/v1/auth/me", pair.AccessToken, &me)
	if status != http.StatusOK {
		log.Fatalf("me: status %d", status)
	}
	if me.ID != registered.ID {
		log.Fatalf("me: principal mismatch %q != %q", me.ID, registered.ID)
	}

	oldRefresh := pair.RefreshToken
	var rotated struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	status = post(client, base+"/v1/auth/refresh", "", map[string]any{
		"refresh_token": oldRefresh,
	}, &rotated)
	if status != http.StatusOK {
		log.Fatalf("refresh: status %d", status)
	}

	status = get(client, base+"/v1/auth/me", rotated.AccessToken, &me)
	if status != http.StatusOK {
		log.Fatalf("me after refresh: status %d", status)
	}

	// The rotated-out token must be rejected.
	status = post(client, base+"/v1/auth/refresh", "", map[string]any{
		"refresh_token": oldRefresh,
	}, &struct{}{})
	if status != http.StatusUnauthorized {
		log.Fatalf("stale refresh: expected 401, got %d", status)
	}

	fmt.Printf("✅ auth smoke test passed: principal=%s\n", registered.ID)
}

func post(client *http.Client, url, token string, body any, out any) int {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(client, req, out)
}

func get(client *http.Client, url, token string, out any) int {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(client, req, out)
}

func do(client *http.Client, req *http.Request, out any) int {
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}
