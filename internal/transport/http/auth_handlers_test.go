package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doJSON(t *testing.T, env *testEnv, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, env.ts.URL+path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	env.ts.Config.Handler.ServeHTTP(resp, req)
	return resp
}

func registerTestUser(t *testing.T, env *testEnv, name, email string) (string, int64) {
	t.Helper()

	resp := doJSON(t, env, http.MethodPost, "/api/auth/register", "",
		`{"name":"`+name+`","email":"`+email+`","password":"secret123"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", resp.Code, resp.Body.String())
	}

	var auth AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &auth); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	return auth.Token, auth.User.ID
}

func TestRegisterEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp := doJSON(t, env, http.MethodPost, "/api/auth/register", "",
		`{"name":"Alice","email":"alice@example.com","password":"secret123"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var auth AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &auth); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if auth.Token == "" || auth.User.Name != "Alice" || auth.User.Avatar != "A" {
		t.Fatalf("unexpected response: %+v", auth)
	}

	// Duplicate email conflicts.
	resp = doJSON(t, env, http.MethodPost, "/api/auth/register", "",
		`{"name":"Alice Again","email":"alice@example.com","password":"secret123"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}

	// Short password is rejected.
	resp = doJSON(t, env, http.MethodPost, "/api/auth/register", "",
		`{"name":"Bob","email":"bob@example.com","password":"123"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := startTestServer(t)
	registerTestUser(t, env, "Alice", "alice@example.com")

	resp := doJSON(t, env, http.MethodPost, "/api/auth/login", "",
		`{"email":"alice@example.com","password":"secret123"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, env, http.MethodPost, "/api/auth/login", "",
		`{"email":"alice@example.com","password":"wrong"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestProfileEndpoint(t *testing.T) {
	env := startTestServer(t)
	token, userID := registerTestUser(t, env, "Alice", "alice@example.com")

	// No token.
	resp := doJSON(t, env, http.MethodGet, "/api/auth/profile", "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/auth/profile", token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var user UserResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &user); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if user.ID != userID || user.Name != "Alice" {
		t.Fatalf("unexpected profile: %+v", user)
	}

	// Update the display name.
	resp = doJSON(t, env, http.MethodPut, "/api/auth/profile", token, `{"name":"Alice Cooper"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &user); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if user.Name != "Alice Cooper" {
		t.Fatalf("name not updated: %q", user.Name)
	}
}

func TestLogoutMarksUserOffline(t *testing.T) {
	env := startTestServer(t)
	token, userID := registerTestUser(t, env, "Alice", "alice@example.com")

	if err := env.store.SetOnlineStatus(context.Background(), userID, true); err != nil {
		t.Fatalf("set online: %v", err)
	}

	resp := doJSON(t, env, http.MethodPost, "/api/auth/logout", token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	user, err := env.store.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Online {
		t.Fatal("user still online after logout")
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}
