package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fathima-sithara/support-chat/internal/auth"
	"github.com/fathima-sithara/support-chat/internal/chat"
	"github.com/fathima-sithara/support-chat/internal/config"
	"github.com/fathima-sithara/support-chat/internal/crypto"
	"github.com/fathima-sithara/support-chat/internal/relay"
	"github.com/fathima-sithara/support-chat/internal/store"
	"github.com/fathima-sithara/support-chat/internal/ws"
	"github.com/gofiber/fiber/v2"
)

const (
	testAPIKey    = "widget-key"
	testSessionID = "custom_session_1700000000000_ab12cd34e"
	adminEmail    = "test@gmail.com"
	adminPassword = "Test@123"
)

type harness struct {
	app    *fiber.App
	tokens *auth.TokenManager
	store  *store.Memory
}

func newHarness(t *testing.T, webhookURL string) *harness {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Auth: config.Auth{
			APIKey:            testAPIKey,
			JWTSecret:         "unit-test-secret",
			AdminEmail:        adminEmail,
			AdminPasswordHash: string(hash),
		},
		RateLimits: config.RateLimits{
			Chat:  config.Limit{WindowMS: 60_000, Max: 100},
			Admin: config.Limit{WindowMS: 60_000, Max: 100},
			Login: config.Limit{WindowMS: 900_000, Max: 3},
		},
	}

	cs, err := crypto.NewService("unit-test-secret")
	if err != nil {
		t.Fatal(err)
	}
	mem := store.NewMemory()
	log := zap.NewNop()
	bridge := relay.New(webhookURL, 2*time.Second, log)
	svc := chat.NewService(mem, cs, bridge, nil, log)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)

	app := NewServer(cfg, Deps{
		Service:  svc,
		Tokens:   tokens,
		Grants:   auth.NewStaticGrants(adminEmail),
		Creds:    auth.Credentials{Email: adminEmail, PasswordHash: string(hash)},
		Streamer: ws.NewStreamer(mem, log),
		Log:      log,
	})
	return &harness{app: app, tokens: tokens, store: mem}
}

func (h *harness) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.HasPrefix(path, "/api/chat") {
		req.Header.Set("x-api-key", testAPIKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var parsed map[string]interface{}
	_ = json.Unmarshal(raw, &parsed)
	return resp, parsed
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	resp, body := h.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{
		"email": adminEmail, "password": adminPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]interface{})
	return data["token"].(string)
}

func TestChatRequiresAPIKey(t *testing.T) {
	h := newHarness(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/chat/session/"+testSessionID, nil)
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat/session/"+testSessionID, nil)
	req.Header.Set("x-api-key", "wrong")
	resp, _ = h.app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: status %d, want 401", resp.StatusCode)
	}
}

func TestCreateSessionAndWidgetView(t *testing.T) {
	h := newHarness(t, "")

	resp, body := h.do(t, http.MethodPost, "/api/chat/session", "", map[string]interface{}{
		"sessionId": testSessionID,
		"userInfo":  map[string]string{"location": "Kochi, IN", "url": "https://example.com/pricing"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, body)
	}
	if body["success"] != true {
		t.Fatalf("envelope: %v", body)
	}
	data := body["data"].(map[string]interface{})
	if data["sessionId"] != testSessionID || data["status"] != "active" {
		t.Errorf("session payload: %v", data)
	}

	// the widget read path must not carry userInfo at all
	req := httptest.NewRequest(http.MethodGet, "/api/chat/session/"+testSessionID, nil)
	req.Header.Set("x-api-key", testAPIKey)
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status %d", resp.StatusCode)
	}
	if strings.Contains(string(raw), "userInfo") {
		t.Errorf("widget session view leaked userInfo: %s", raw)
	}
}

func TestCreateSessionRejectsBadID(t *testing.T) {
	h := newHarness(t, "")
	resp, body := h.do(t, http.MethodPost, "/api/chat/session", "", map[string]string{
		"sessionId": "nope",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if body["error"] != "Validation failed" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestInvalidSessionIDOnPath(t *testing.T) {
	h := newHarness(t, "")
	resp, body := h.do(t, http.MethodGet, "/api/chat/session/not-a-session/messages", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if body["error"] != "Invalid session ID format" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestMessageFlow(t *testing.T) {
	h := newHarness(t, "")
	h.do(t, http.MethodPost, "/api/chat/session", "", map[string]string{"sessionId": testSessionID})

	resp, body := h.do(t, http.MethodPost, "/api/chat/message", "", map[string]interface{}{
		"sessionId": testSessionID,
		"text":      "Hi there",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, body)
	}
	msg := body["data"].(map[string]interface{})
	if msg["text"] != "Hi there" || msg["isBot"] != false {
		t.Errorf("message payload: %v", msg)
	}

	resp, body = h.do(t, http.MethodGet, "/api/chat/session/"+testSessionID+"/messages", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", resp.StatusCode)
	}
	msgs := body["data"].([]interface{})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
}

func TestMessageToUnknownSession(t *testing.T) {
	h := newHarness(t, "")
	resp, body := h.do(t, http.MethodPost, "/api/chat/message", "", map[string]string{
		"sessionId": "custom_session_1700000000000_missing1",
		"text":      "hello",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404: %v", resp.StatusCode, body)
	}
	if body["error"] != "Session not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestWebhookRelaysThroughBot(t *testing.T) {
	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"reply":"Hello! How can I help?"}`)
	}))
	defer bot.Close()

	h := newHarness(t, bot.URL)
	h.do(t, http.MethodPost, "/api/chat/session", "", map[string]string{"sessionId": testSessionID})

	resp, body := h.do(t, http.MethodPost, "/api/chat/webhook", "", map[string]string{
		"sessionId": testSessionID,
		"message":   "Hi",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]interface{})
	if data["botReply"] != "Hello! How can I help?" || data["userMessage"] != "Hi" {
		t.Errorf("webhook payload: %v", data)
	}
}

func TestAdminAuthGates(t *testing.T) {
	h := newHarness(t, "")

	resp, body := h.do(t, http.MethodGet, "/api/admin/sessions", "", nil)
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "Admin token required" {
		t.Fatalf("no token: %d %v", resp.StatusCode, body)
	}

	foreign, err := auth.NewTokenManager("other-secret").Generate(adminEmail, "admin-x")
	if err != nil {
		t.Fatal(err)
	}
	resp, body = h.do(t, http.MethodGet, "/api/admin/sessions", foreign, nil)
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "Invalid token" {
		t.Fatalf("foreign token: %d %v", resp.StatusCode, body)
	}

	// valid signature, but the identity carries no admin grant
	ungranted, err := h.tokens.Generate("intruder@example.com", "admin-y")
	if err != nil {
		t.Fatal(err)
	}
	resp, body = h.do(t, http.MethodGet, "/api/admin/sessions", ungranted, nil)
	if resp.StatusCode != http.StatusForbidden || body["error"] != "Admin access required" {
		t.Fatalf("ungranted token: %d %v", resp.StatusCode, body)
	}
}

func TestLoginValidationAndCredentials(t *testing.T) {
	h := newHarness(t, "")

	resp, body := h.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{
		"email": "not-an-email", "password": "short",
	})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Validation failed" {
		t.Fatalf("validation: %d %v", resp.StatusCode, body)
	}

	resp, body = h.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{
		"email": adminEmail, "password": "WrongPass1",
	})
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "Invalid credentials" {
		t.Fatalf("wrong password: %d %v", resp.StatusCode, body)
	}

	token := h.login(t)
	if token == "" {
		t.Fatal("empty token")
	}
	resp, body = h.do(t, http.MethodGet, "/api/admin/verify", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: %d %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]interface{})
	if data["verified"] != true {
		t.Errorf("verify payload: %v", data)
	}
}

func TestLoginRateLimit(t *testing.T) {
	h := newHarness(t, "")

	for i := 0; i < 3; i++ {
		resp, _ := h.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{
			"email": adminEmail, "password": "WrongPass1",
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i+1, resp.StatusCode)
		}
	}
	resp, body := h.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{
		"email": adminEmail, "password": "WrongPass1",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", resp.StatusCode)
	}
	if body["retryAfter"] != float64(900) {
		t.Errorf("retryAfter = %v, want 900", body["retryAfter"])
	}
}

func TestStreamRoutesRequireUpgrade(t *testing.T) {
	h := newHarness(t, "")
	h.do(t, http.MethodPost, "/api/chat/session", "", map[string]string{"sessionId": testSessionID})

	req := httptest.NewRequest(http.MethodGet, "/api/chat/session/"+testSessionID+"/stream", nil)
	req.Header.Set("x-api-key", testAPIKey)
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("plain GET on stream route: status %d, want 426", resp.StatusCode)
	}

	token := h.login(t)
	req = httptest.NewRequest(http.MethodGet, "/api/admin/sessions/stream", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = h.app.Test(req)
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("plain GET on admin stream route: status %d, want 426", resp.StatusCode)
	}
}

func TestAdminStreamAcceptsQueryToken(t *testing.T) {
	h := newHarness(t, "")
	token := h.login(t)

	// browser WebSocket clients carry the token in the query string; a valid
	// one passes the gate and stops at the upgrade check
	req := httptest.NewRequest(http.MethodGet, "/api/admin/sessions/stream?token="+token, nil)
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("query token: status %d, want 426", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/sessions/stream", nil)
	resp, _ = h.app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/sessions/stream?token=garbage", nil)
	resp, _ = h.app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status %d, want 401", resp.StatusCode)
	}
}

func TestAdminConsoleFlow(t *testing.T) {
	h := newHarness(t, "")
	token := h.login(t)

	h.do(t, http.MethodPost, "/api/chat/session", "", map[string]interface{}{
		"sessionId": testSessionID,
		"userInfo":  map[string]string{"location": "Kochi, IN"},
	})
	h.do(t, http.MethodPost, "/api/chat/message", "", map[string]string{
		"sessionId": testSessionID, "text": "I need help",
	})

	// default listing strips userInfo
	resp, body := h.do(t, http.MethodGet, "/api/admin/sessions", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions: %d %v", resp.StatusCode, body)
	}
	sessions := body["data"].([]interface{})
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions", len(sessions))
	}
	if _, ok := sessions[0].(map[string]interface{})["userInfo"]; ok {
		t.Error("default admin listing leaked userInfo")
	}

	// explicit opt-in decrypts it
	resp, body = h.do(t, http.MethodGet, "/api/admin/session/"+testSessionID+"?includeUserInfo=true", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session detail: %d %v", resp.StatusCode, body)
	}
	detail := body["data"].(map[string]interface{})
	info, ok := detail["userInfo"].(map[string]interface{})
	if !ok {
		t.Fatalf("userInfo missing with includeUserInfo=true: %v", detail)
	}
	if info["location"] != "Kochi, IN" {
		t.Errorf("location = %v", info["location"])
	}

	// admin reply latches the flag and carries identity
	resp, body = h.do(t, http.MethodPost, "/api/admin/message", token, map[string]string{
		"sessionId": testSessionID, "text": "How can I help?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin message: %d %v", resp.StatusCode, body)
	}
	msg := body["data"].(map[string]interface{})
	if msg["isAdmin"] != true || msg["isBot"] != true || msg["adminId"] != adminEmail {
		t.Errorf("admin message payload: %v", msg)
	}

	_, body = h.do(t, http.MethodGet, "/api/admin/session/"+testSessionID, token, nil)
	if body["data"].(map[string]interface{})["adminReplied"] != true {
		t.Error("adminReplied not latched")
	}

	// status lifecycle
	resp, body = h.do(t, http.MethodPut, "/api/admin/session/"+testSessionID+"/status", token, map[string]string{
		"status": "closed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status update: %d %v", resp.StatusCode, body)
	}
	resp, _ = h.do(t, http.MethodPut, "/api/admin/session/"+testSessionID+"/status", token, map[string]string{
		"status": "archived",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad status accepted: %d", resp.StatusCode)
	}

	// dashboard aggregate
	resp, body = h.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: %d %v", resp.StatusCode, body)
	}
	stats := body["data"].(map[string]interface{})
	if stats["totalSessions"] != float64(1) || stats["adminRepliedSessions"] != float64(1) || stats["closedSessions"] != float64(1) {
		t.Errorf("stats payload: %v", stats)
	}
}
