package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func TestFriendRequestLifecycle(t *testing.T) {
	env := startTestServer(t)
	aliceToken, _ := registerTestUser(t, env, "Alice", "alice@example.com")
	bobToken, _ := registerTestUser(t, env, "Bob", "bob@example.com")

	// Alice sends a request to Bob.
	resp := doJSON(t, env, http.MethodPost, "/api/friends/requests", aliceToken, `{"email":"bob@example.com"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("send request: %d %s", resp.Code, resp.Body.String())
	}

	// Self-friending is rejected.
	resp = doJSON(t, env, http.MethodPost, "/api/friends/requests", aliceToken, `{"email":"alice@example.com"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self request, got %d", resp.Code)
	}

	// Duplicate request conflicts.
	resp = doJSON(t, env, http.MethodPost, "/api/friends/requests", aliceToken, `{"email":"bob@example.com"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.Code)
	}

	// Bob sees the incoming request with requester info.
	resp = doJSON(t, env, http.MethodGet, "/api/friends/requests", bobToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list requests: %d", resp.Code)
	}
	var pending []PendingRequestResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &pending); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(pending) != 1 || pending[0].From == nil || pending[0].From.Name != "Alice" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	// Alice cannot accept her own request.
	acceptPath := fmt.Sprintf("/api/friends/requests/%d/accept", pending[0].ID)
	resp = doJSON(t, env, http.MethodPost, acceptPath, aliceToken, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for requester accept, got %d", resp.Code)
	}

	// Bob accepts.
	resp = doJSON(t, env, http.MethodPost, acceptPath, bobToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", resp.Code, resp.Body.String())
	}

	// Both sides list each other as friends.
	for _, token := range []string{aliceToken, bobToken} {
		resp = doJSON(t, env, http.MethodGet, "/api/friends", token, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("list friends: %d", resp.Code)
		}
		var friendsList []UserResponse
		if err := json.Unmarshal(resp.Body.Bytes(), &friendsList); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(friendsList) != 1 {
			t.Fatalf("expected 1 friend, got %d", len(friendsList))
		}
	}
}

func TestRejectFriendRequest(t *testing.T) {
	env := startTestServer(t)
	aliceToken, _ := registerTestUser(t, env, "Alice", "alice@example.com")
	bobToken, _ := registerTestUser(t, env, "Bob", "bob@example.com")

	resp := doJSON(t, env, http.MethodPost, "/api/friends/requests", aliceToken, `{"email":"bob@example.com"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("send request: %d", resp.Code)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/friends/requests", bobToken, "")
	var pending []PendingRequestResponse
	json.Unmarshal(resp.Body.Bytes(), &pending)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}

	resp = doJSON(t, env, http.MethodDelete, fmt.Sprintf("/api/friends/requests/%d", pending[0].ID), bobToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("reject: %d %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, env, http.MethodGet, "/api/friends", bobToken, "")
	var friendsList []UserResponse
	json.Unmarshal(resp.Body.Bytes(), &friendsList)
	if len(friendsList) != 0 {
		t.Fatalf("expected no friends after reject, got %d", len(friendsList))
	}
}

func TestUserSearchEndpoint(t *testing.T) {
	env := startTestServer(t)
	aliceToken, _ := registerTestUser(t, env, "Alice", "alice@example.com")
	registerTestUser(t, env, "Alicia", "alicia@example.com")

	// Missing query.
	resp := doJSON(t, env, http.MethodGet, "/api/users/search", aliceToken, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without query, got %d", resp.Code)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/users/search?q=ali", aliceToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("search: %d", resp.Code)
	}
	var results []UserResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &results); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// The searcher is excluded from their own results.
	if len(results) != 1 || results[0].Name != "Alicia" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
