package telegram

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Server binds an HTTP endpoint that authenticates and decodes inbound
// Telegram webhook requests, then hands them to a Transport.
//
// Uses a constant-time comparison for the bearer/HMAC check and a
// bucket-eviction shape for the nonce cache, the same pattern a
// rate-limiter's token bucket uses for its own eviction pass.
type Server struct {
	cfg       ResolvedConfig
	transport *Transport
	nonces    *nonceCache
	logger    *slog.Logger

	httpServer *http.Server
}

// NewServer creates a webhook Server bound to transport.
func NewServer(cfg ResolvedConfig, transport *Transport, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		transport: transport,
		nonces:    newNonceCache(cfg.NonceTTLMs),
		logger:    logger,
	}
}

// Start binds and serves the webhook endpoint in a background goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebhook)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("telegram webhook listen: %w", err)
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("telegram webhook server error", "error", err)
		}
	}()
	s.logger.Info("telegram webhook server started", "addr", addr, "path", s.cfg.Path)
	return nil
}

// Stop gracefully shuts down the HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid_json", http.StatusBadRequest)
		return
	}

	if !s.authenticate(r, body) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		http.Error(w, "invalid_json", http.StatusBadRequest)
		return
	}

	if _, err := s.transport.Ingest(update); err != nil {
		s.logger.Error("telegram update handler failed", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

// authenticate validates the request against whichever auth mechanism is
// configured. If both are configured, bearer is tried first.
func (s *Server) authenticate(r *http.Request, body []byte) bool {
	if s.cfg.BearerToken != "" {
		return s.authenticateBearer(r)
	}
	if s.cfg.HMACSecret != "" {
		return s.authenticateHMAC(r, body)
	}
	return false
}

func (s *Server) authenticateBearer(r *http.Request) bool {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return false
	}
	token := auth[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.BearerToken)) == 1
}

func (s *Server) authenticateHMAC(r *http.Request, body []byte) bool {
	timestampRaw := r.Header.Get("X-Brewva-Timestamp")
	nonce := r.Header.Get("X-Brewva-Nonce")
	signature := r.Header.Get("X-Brewva-Signature")
	if timestampRaw == "" || nonce == "" || signature == "" {
		return false
	}

	timestampMs, err := strconv.ParseInt(timestampRaw, 10, 64)
	if err != nil {
		return false
	}
	nowMs := time.Now().UnixMilli()
	skew := nowMs - timestampMs
	if skew < 0 {
		skew = -skew
	}
	if skew > s.cfg.HMACMaxSkewMs {
		return false
	}

	if s.nonces.SeenRecently(nonce, time.UnixMilli(nowMs)) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.HMACSecret))
	mac.Write([]byte(timestampRaw))
	mac.Write([]byte("\n"))
	mac.Write([]byte(nonce))
	mac.Write([]byte("\n"))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}
