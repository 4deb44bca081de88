package telegram

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func newTestServer(t *testing.T, cfg ResolvedConfig) (*Server, *Transport, chan tgbotapi.Update) {
	t.Helper()
	tr := New()
	received := make(chan tgbotapi.Update, 4)
	tr.Start(func(u tgbotapi.Update) error {
		received <- u
		return nil
	}, nil)
	t.Cleanup(tr.Stop)
	return NewServer(cfg, tr, nil), tr, received
}

func TestHandleWebhookRejectsNonPost(t *testing.T) {
	srv, _, _ := newTestServer(t, ResolvedConfig{BearerToken: "tok"})
	req := httptest.NewRequest(http.MethodGet, "/ingest/telegram", nil)
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleWebhookRejectsMalformedBody(t *testing.T) {
	srv, _, _ := newTestServer(t, ResolvedConfig{BearerToken: "tok"})
	req := httptest.NewRequest(http.MethodPost, "/ingest/telegram", bytes.NewBufferString("not json"))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleWebhookRejectsMissingBearer(t *testing.T) {
	srv, _, _ := newTestServer(t, ResolvedConfig{BearerToken: "tok"})
	req := httptest.NewRequest(http.MethodPost, "/ingest/telegram", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"unauthorized"}` {
		t.Fatalf("expected unauthorized body, got %q", rec.Body.String())
	}
}

func TestHandleWebhookAcceptsValidBearer(t *testing.T) {
	srv, _, received := newTestServer(t, ResolvedConfig{BearerToken: "tok"})
	body := validUpdateJSON()
	req := httptest.NewRequest(http.MethodPost, "/ingest/telegram", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	select {
	case u := <-received:
		if u.UpdateID != 7 {
			t.Fatalf("unexpected update: %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("transport did not receive update")
	}
}

func TestHandleWebhookRejectsWrongBearer(t *testing.T) {
	srv, _, _ := newTestServer(t, ResolvedConfig{BearerToken: "tok"})
	req := httptest.NewRequest(http.MethodPost, "/ingest/telegram", bytes.NewReader(validUpdateJSON()))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"unauthorized"}` {
		t.Fatalf("expected unauthorized body, got %q", rec.Body.String())
	}
}

func TestHandleWebhookAcceptsValidHMAC(t *testing.T) {
	secret := "s3cret"
	srv, _, received := newTestServer(t, ResolvedConfig{HMACSecret: secret, HMACMaxSkewMs: 60_000, NonceTTLMs: 60_000})
	body := validUpdateJSON()

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := "nonce-1"
	sig := signHMAC(secret, ts, nonce, body)

	req := httptest.NewRequest(http.MethodPost, "/ingest/telegram", bytes.NewReader(body))
	req.Header.Set("X-Brewva-Timestamp", ts)
	req.Header.Set("X-Brewva-Nonce", nonce)
	req.Header.Set("X-Brewva-Signature", sig)
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("transport did not receive update")
	}
}

func TestHandleWebhookRejectsReplayedNonce(t *testing.T) {
	secret := "s3cret"
	srv, _, received := newTestServer(t, ResolvedConfig{HMACSecret: secret, HMACMaxSkewMs: 60_000, NonceTTLMs: 60_000})
	body := validUpdateJSON()
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := "replay-nonce"
	sig := signHMAC(secret, ts, nonce, body)

	req1 := httptest.NewRequest(http.MethodPost, "/ingest/telegram", bytes.NewReader(body))
	req1.Header.Set("X-Brewva-Timestamp", ts)
	req1.Header.Set("X-Brewva-Nonce", nonce)
	req1.Header.Set("X-Brewva-Signature", sig)
	rec1 := httptest.NewRecorder()
	srv.handleWebhook(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec1.Code)
	}
	<-received

	req2 := httptest.NewRequest(http.MethodPost, "/ingest/telegram", bytes.NewReader(body))
	req2.Header.Set("X-Brewva-Timestamp", ts)
	req2.Header.Set("X-Brewva-Nonce", nonce)
	req2.Header.Set("X-Brewva-Signature", sig)
	rec2 := httptest.NewRecorder()
	srv.handleWebhook(rec2, req2)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("replayed request: expected 401, got %d", rec2.Code)
	}
	if rec2.Body.String() != `{"error":"unauthorized"}` {
		t.Fatalf("expected unauthorized body, got %q", rec2.Body.String())
	}
}

func TestHandleWebhookRejectsStaleTimestamp(t *testing.T) {
	secret := "s3cret"
	srv, _, _ := newTestServer(t, ResolvedConfig{HMACSecret: secret, HMACMaxSkewMs: 1_000, NonceTTLMs: 60_000})
	body := validUpdateJSON()
	ts := strconv.FormatInt(time.Now().Add(-time.Hour).UnixMilli(), 10)
	nonce := "stale-nonce"
	sig := signHMAC(secret, ts, nonce, body)

	req := httptest.NewRequest(http.MethodPost, "/ingest/telegram", bytes.NewReader(body))
	req.Header.Set("X-Brewva-Timestamp", ts)
	req.Header.Set("X-Brewva-Nonce", nonce)
	req.Header.Set("X-Brewva-Signature", sig)
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale timestamp, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"unauthorized"}` {
		t.Fatalf("expected unauthorized body, got %q", rec.Body.String())
	}
}

func TestHandleWebhookRejectsNoAuthConfigured(t *testing.T) {
	srv, _, _ := newTestServer(t, ResolvedConfig{})
	req := httptest.NewRequest(http.MethodPost, "/ingest/telegram", bytes.NewReader(validUpdateJSON()))
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when no auth material is configured, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"unauthorized"}` {
		t.Fatalf("expected unauthorized body, got %q", rec.Body.String())
	}
}

func signHMAC(secret, ts, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("\n"))
	mac.Write([]byte(nonce))
	mac.Write([]byte("\n"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validUpdateJSON() []byte {
	update := tgbotapi.Update{
		UpdateID: 7,
		Message: &tgbotapi.Message{
			Text: "hi",
			Chat: &tgbotapi.Chat{ID: 1},
		},
	}
	b, err := json.Marshal(update)
	if err != nil {
		panic(fmt.Sprintf("marshal test update: %v", err))
	}
	return b
}
