package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func call(t *testing.T, s *Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func login(t *testing.T, s *Server) (access, refresh string) {
	t.Helper()
	resp, body := call(t, s, http.MethodPost, "/auth/login", "", map[string]string{
		"email": LearnerEmail, "password": Password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %v", resp.StatusCode, body)
	}
	access, _ = body["accessToken"].(string)
	refresh, _ = body["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("login returned no tokens: %v", body)
	}
	return access, refresh
}

func TestLoginAndExpireAll(t *testing.T) {
	s := New()
	defer s.Close()

	access, refresh := login(t, s)
	if resp, body := call(t, s, http.MethodGet, "/users/me", access, nil); resp.StatusCode != http.StatusOK || body["email"] != LearnerEmail {
		t.Fatalf("me: status %d body %v", resp.StatusCode, body)
	}

	s.ExpireAll()
	resp, body := call(t, s, http.MethodGet, "/users/me", access, nil)
	if resp.StatusCode != http.StatusUnauthorized || body["code"] != "token_expired" {
		t.Fatalf("expected token_expired, got %d %v", resp.StatusCode, body)
	}

	resp, body = call(t, s, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status %d: %v", resp.StatusCode, body)
	}
	if _, rotated := body["refreshToken"]; rotated {
		t.Fatalf("refresh without rotation should not return a refresh token")
	}
	next, _ := body["accessToken"].(string)
	if resp, _ := call(t, s, http.MethodGet, "/users/me", next, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("refreshed token rejected: %d", resp.StatusCode)
	}
	if s.RefreshCalls() != 1 {
		t.Fatalf("expected 1 refresh call, got %d", s.RefreshCalls())
	}
}

func TestRefreshRotationRevokesOldToken(t *testing.T) {
	s := New(WithRefreshRotation())
	defer s.Close()

	_, refresh := login(t, s)
	resp, body := call(t, s, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status %d", resp.StatusCode)
	}
	if rotated, _ := body["refreshToken"].(string); rotated == "" || rotated == refresh {
		t.Fatalf("expected a rotated refresh token, got %q", rotated)
	}

	resp, body = call(t, s, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if resp.StatusCode != http.StatusUnauthorized || body["code"] != "invalid_refresh_token" {
		t.Fatalf("reused refresh token: %d %v", resp.StatusCode, body)
	}
}

func TestFailRefreshAndRevoke(t *testing.T) {
	s := New()
	defer s.Close()

	_, refresh := login(t, s)
	s.FailRefresh(http.StatusServiceUnavailable)
	if resp, _ := call(t, s, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh}); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	s.FailRefresh(0)
	s.RevokeRefreshTokens()
	if resp, _ := call(t, s, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revoke, got %d", resp.StatusCode)
	}
}

func TestIssueSessionExpired(t *testing.T) {
	s := New()
	defer s.Close()

	access, refresh, err := s.IssueSession(LearnerEmail, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if resp, _ := call(t, s, http.MethodGet, "/users/me", access, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired token accepted: %d", resp.StatusCode)
	}
	if resp, _ := call(t, s, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh}); resp.StatusCode != http.StatusOK {
		t.Fatalf("issued refresh token rejected: %d", resp.StatusCode)
	}
	if _, _, err := s.IssueSession("nobody@example.com", time.Minute); err == nil {
		t.Fatalf("expected error for unknown account")
	}
}

func TestAnonymousCatalogueAndRequestID(t *testing.T) {
	s := New()
	defer s.Close()

	req, _ := http.NewRequest(http.MethodGet, s.URL+"/courses", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "abc" {
		t.Fatalf("request id not echoed: %q", got)
	}
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, c := range page.Items {
		if c.ID == PublishedCourseID {
			found = true
		}
	}
	if !found {
		t.Fatalf("published course missing from catalogue: %+v", page.Items)
	}
}

func TestPresignedUploadRejectsCredentials(t *testing.T) {
	s := New()
	defer s.Close()

	access, _ := login(t, s)
	resp, body := call(t, s, http.MethodPost, "/uploads/presign", access, map[string]any{
		"fileName": "a.txt", "contentType": "text/plain", "size": 3, "purpose": "notes",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("presign status %d: %v", resp.StatusCode, body)
	}
	uploadURL, _ := body["uploadUrl"].(string)
	key, _ := body["key"].(string)
	if !strings.HasPrefix(key, "notes/") {
		t.Fatalf("unexpected key %q", key)
	}

	put := func(auth bool) int {
		req, _ := http.NewRequest(http.MethodPut, uploadURL, strings.NewReader("abc"))
		req.Header.Set("Content-Type", "text/plain")
		if auth {
			req.Header.Set("Authorization", "Bearer "+access)
		}
		resp, err := s.Client().Do(req)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := put(true); code != http.StatusBadRequest {
		t.Fatalf("credentialed upload: expected 400, got %d", code)
	}
	if code := put(false); code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", code)
	}
	if data, ok := s.Object(key); !ok || string(data) != "abc" {
		t.Fatalf("stored object = %q, %v", data, ok)
	}
	if code := put(false); code != http.StatusForbidden {
		t.Fatalf("second upload to the same key: expected 403, got %d", code)
	}
}
