// Package telegram implements the Telegram Webhook Transport: HTTP ingress
// for inbound updates (bearer or HMAC authenticated) and an outbound Bot API
// client, bridged through a small start/stop/ingest lifecycle object.
//
// Uses go-telegram-bot-api/v5 for the Bot API wiring, a constant-time-compare
// auth pattern for the bearer/HMAC check, and a bounded-cache-with-eviction
// shape re-themed from API-key rate limiting to HMAC nonce replay
// prevention.
package telegram

import (
	"fmt"
	"os"
	"strconv"

	"github.com/arcthur/brewva/internal/config"
)

const (
	defaultHost          = "0.0.0.0"
	defaultPath          = "/ingest/telegram"
	defaultHMACMaxSkewMs = int64(5 * 60 * 1000)  // 5 minutes
	defaultNonceTTLMs    = int64(10 * 60 * 1000) // 10 minutes
)

// ResolvedConfig is the fully resolved (explicit > env overlay > defaults)
// Telegram ingress configuration.
type ResolvedConfig struct {
	Enabled       bool
	BotToken      string
	Host          string
	Port          int
	Path          string
	BearerToken   string
	HMACSecret    string
	HMACMaxSkewMs int64
	NonceTTLMs    int64
}

// HasAuthMaterial reports whether at least one auth mechanism is configured.
func (c ResolvedConfig) HasAuthMaterial() bool {
	return c.BearerToken != "" || c.HMACSecret != ""
}

// Resolve applies the environment overlay on top of the explicit channel
// config, then fills in defaults. If webhook mode is enabled but no auth
// material resolves from either source, it errors — Brewva refuses to
// serve an unauthenticated webhook.
func Resolve(explicit config.TelegramChannelConfig) (ResolvedConfig, error) {
	rc := ResolvedConfig{
		Enabled:       explicit.Enabled,
		BotToken:      explicit.BotToken,
		Host:          explicit.Host,
		Port:          explicit.Port,
		Path:          explicit.Path,
		BearerToken:   explicit.BearerToken,
		HMACSecret:    explicit.HMACSecret,
		HMACMaxSkewMs: explicit.HMACMaxSkewMs,
		NonceTTLMs:    explicit.NonceTTLMs,
	}

	if rc.Host == "" {
		if v := os.Getenv("BREWVA_TELEGRAM_INGRESS_HOST"); v != "" {
			rc.Host = v
		}
	}
	if rc.Port == 0 {
		if v := os.Getenv("BREWVA_TELEGRAM_INGRESS_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				rc.Port = p
			}
		}
	}
	if rc.Path == "" {
		if v := os.Getenv("BREWVA_TELEGRAM_INGRESS_PATH"); v != "" {
			rc.Path = v
		}
	}
	if rc.BearerToken == "" {
		rc.BearerToken = os.Getenv("BREWVA_TELEGRAM_INGRESS_BEARER_TOKEN")
	}
	if rc.HMACSecret == "" {
		rc.HMACSecret = os.Getenv("BREWVA_TELEGRAM_INGRESS_HMAC_SECRET")
	}
	if rc.HMACMaxSkewMs == 0 {
		if v := os.Getenv("BREWVA_TELEGRAM_INGRESS_HMAC_MAX_SKEW_MS"); v != "" {
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				rc.HMACMaxSkewMs = ms
			}
		}
	}
	if rc.NonceTTLMs == 0 {
		if v := os.Getenv("BREWVA_TELEGRAM_INGRESS_NONCE_TTL_MS"); v != "" {
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				rc.NonceTTLMs = ms
			}
		}
	}

	if rc.Host == "" {
		rc.Host = defaultHost
	}
	if rc.Path == "" {
		rc.Path = defaultPath
	}
	if rc.HMACMaxSkewMs == 0 {
		rc.HMACMaxSkewMs = defaultHMACMaxSkewMs
	}
	if rc.NonceTTLMs == 0 {
		rc.NonceTTLMs = defaultNonceTTLMs
	}

	if rc.Enabled && !rc.HasAuthMaterial() {
		return rc, fmt.Errorf("telegram webhook auth is not configured")
	}
	return rc, nil
}
